// Package discovery registers the service with a Consul agent.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// Registration describes one service instance.
type Registration struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string

	// GRPCPort, when set, makes Consul check the gRPC health service instead
	// of HTTP GET /healthz.
	GRPCPort        int
	CheckInterval   time.Duration
	DeregisterAfter time.Duration
}

// ConsulRegistry registers and deregisters service instances.
type ConsulRegistry struct {
	client *api.Client
	logger *zerolog.Logger
}

// NewConsulRegistry creates a registry talking to the agent at address.
func NewConsulRegistry(address string, logger *zerolog.Logger) (*ConsulRegistry, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulRegistry{client: client, logger: logger}, nil
}

// Register adds reg to the local agent.
func (r *ConsulRegistry) Register(reg Registration) error {
	if err := r.client.Agent().ServiceRegister(serviceDefinition(reg)); err != nil {
		return fmt.Errorf("failed to register %s with consul: %w", reg.ID, err)
	}

	r.logger.Info().Str("service_id", reg.ID).Str("service", reg.Name).Msg("registered with consul")

	return nil
}

// Deregister removes the instance with the given id.
func (r *ConsulRegistry) Deregister(id string) error {
	if err := r.client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("failed to deregister %s from consul: %w", id, err)
	}

	r.logger.Info().Str("service_id", id).Msg("deregistered from consul")

	return nil
}

func serviceDefinition(reg Registration) *api.AgentServiceRegistration {
	interval := reg.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	deregisterAfter := reg.DeregisterAfter
	if deregisterAfter <= 0 {
		deregisterAfter = time.Minute
	}

	check := &api.AgentServiceCheck{
		Interval:                       interval.String(),
		Timeout:                        "5s",
		DeregisterCriticalServiceAfter: deregisterAfter.String(),
	}
	if reg.GRPCPort > 0 {
		check.GRPC = net.JoinHostPort(reg.Address, strconv.Itoa(reg.GRPCPort)) + "/" + reg.Name
	} else {
		check.HTTP = "http://" + net.JoinHostPort(reg.Address, strconv.Itoa(reg.Port)) + "/healthz"
	}

	return &api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
		Check:   check,
	}
}
