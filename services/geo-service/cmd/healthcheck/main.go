package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "github.com/mbobakov/grpc-consul-resolver"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/config"
	"github.com/luizclaudiolc/ozmap/shared/utilities"
)

// checkConfig selects the instance to check. Target wins over Consul lookup.
type checkConfig struct {
	Target        string        `env:"HEALTHCHECK_TARGET"`
	ConsulAddress string        `env:"CONSUL_ADDRESS"      envDefault:"127.0.0.1:8500"`
	ServiceName   string        `env:"CONSUL_SERVICE_NAME" envDefault:"geo-service"`
	Timeout       time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"5s"`
}

func (c checkConfig) target() string {
	if c.Target != "" {
		return c.Target
	}
	return fmt.Sprintf("consul://%s/%s?healthy=true", c.ConsulAddress, c.ServiceName)
}

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", config.ServiceName+"-healthcheck").Logger()

	cfg, err := env.ParseAs[checkConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	target := cfg.target()
	status, err := utilities.CheckHealth(ctx, target, cfg.ServiceName)
	if err != nil {
		logger.Error().Err(err).Str("target", target).Msg("health check failed")
		os.Exit(1)
	}
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		logger.Error().Str("target", target).Str("status", status.String()).Msg("service is not serving")
		os.Exit(1)
	}

	logger.Info().Str("target", target).Msg("service is serving")
}
