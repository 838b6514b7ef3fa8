package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const ServiceName = "geo-service"

// GeoServiceConfig holds every setting of the geo service.
type GeoServiceConfig struct {
	Env        string           `env:"APP_ENV"     envDefault:"development"`
	Log        LogConfig        `envPrefix:"LOG_"`
	HTTP       HTTPConfig       `envPrefix:"HTTP_"`
	Mongo      MongoConfig      `envPrefix:"MONGO_"`
	Geocoder   GeocoderConfig   `envPrefix:"GEOCODER_"`
	Pagination PaginationConfig `envPrefix:"PAGINATION_"`
	JWT        JWTConfig        `envPrefix:"JWT_"`
	GRPC       GRPCConfig       `envPrefix:"GRPC_"`
	Consul     ConsulConfig     `envPrefix:"CONSUL_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL"  envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

type HTTPConfig struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type MongoConfig struct {
	URI            string        `env:"URI"`
	Database       string        `env:"DATABASE"        envDefault:"oz-map"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

type GeocoderConfig struct {
	BaseURL   string        `env:"BASE_URL"   envDefault:"https://nominatim.openstreetmap.org"`
	UserAgent string        `env:"USER_AGENT" envDefault:"GeoLib/1.0"`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"10s"`
}

type PaginationConfig struct {
	MaxLimit int `env:"MAX_LIMIT" envDefault:"100"`
}

// JWTConfig protects mutating routes when Secret is set.
type JWTConfig struct {
	Secret   string `env:"SECRET"`
	Audience string `env:"AUDIENCE"`
	Issuer   string `env:"ISSUER"`
}

// GRPCConfig enables the gRPC health server when Port is set.
type GRPCConfig struct {
	Port int `env:"PORT"`
}

// ConsulConfig enables service registration when Address is set.
type ConsulConfig struct {
	Address          string `env:"ADDRESS"`
	ServiceName      string `env:"SERVICE_NAME"      envDefault:"geo-service"`
	AdvertiseAddress string `env:"ADVERTISE_ADDRESS" envDefault:"127.0.0.1"`
}

// RedisConfig enables the geocoding cache when Address is set.
type RedisConfig struct {
	Address  string        `env:"ADDRESS"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB"        envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"24h"`
}

// NewGeoServiceConfig loads the configuration from environment variables,
// exiting the process when it is incomplete.
func NewGeoServiceConfig(logger *zerolog.Logger) *GeoServiceConfig {
	cfg, err := Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load geo service configuration")
	}

	return cfg
}

// Load parses and validates the configuration.
func Load() (*GeoServiceConfig, error) {
	cfg, err := env.ParseAs[GeoServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether raw error details must be hidden from clients.
func (c *GeoServiceConfig) IsProduction() bool {
	return c.Env == "production"
}

// Address returns the HTTP listen address.
func (c HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// validate checks if the configuration is complete.
func (c *GeoServiceConfig) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("missing MONGO_DATABASE environment variable")
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP_PORT environment variable: %d", c.HTTP.Port)
	}
	if c.Geocoder.BaseURL == "" {
		return fmt.Errorf("missing GEOCODER_BASE_URL environment variable")
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("invalid GEOCODER_TIMEOUT environment variable: %s", c.Geocoder.Timeout)
	}
	if c.Pagination.MaxLimit <= 0 {
		return fmt.Errorf("invalid PAGINATION_MAX_LIMIT environment variable: %d", c.Pagination.MaxLimit)
	}
	if c.Redis.Address != "" && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("invalid REDIS_CACHE_TTL environment variable: %s", c.Redis.CacheTTL)
	}
	if c.Consul.Address != "" && c.Consul.ServiceName == "" {
		return fmt.Errorf("missing CONSUL_SERVICE_NAME environment variable")
	}

	return nil
}
