package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/config"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/handler"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/i18n"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/observability"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/repository"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/usecase"
	"github.com/luizclaudiolc/ozmap/shared/auth"
	"github.com/luizclaudiolc/ozmap/shared/discovery"
	"github.com/luizclaudiolc/ozmap/shared/geocoding"
	sharedmw "github.com/luizclaudiolc/ozmap/shared/middleware"
	"github.com/luizclaudiolc/ozmap/shared/provider"
	"github.com/luizclaudiolc/ozmap/shared/utilities"
)

const mongoWatchInterval = 10 * time.Second

func main() {
	_ = godotenv.Load()

	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Str("service", config.ServiceName).Logger()
	cfg := config.NewGeoServiceConfig(&bootLogger)
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()
	logger.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	db := client.Database(cfg.Mongo.Database)
	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)
	regionRepo := repository.NewRegionMongoRepository(ctx, &logger, db)
	txn := repository.NewMongoTransactor(client)

	collector, err := observability.NewGeoCollector(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	nominatim := provider.NewNominatimProvider(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, &http.Client{
		Timeout: cfg.Geocoder.Timeout,
	})
	gatewayOpts := []geocoding.Option{
		geocoding.WithTimeout(cfg.Geocoder.Timeout),
		geocoding.WithRecorder(collector),
	}
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("Redis unreachable, geocoding fallback store may miss")
		}
		gatewayOpts = append(gatewayOpts, geocoding.WithCache(geocoding.NewRedisCache(rdb, cfg.Redis.CacheTTL)))
		logger.Info().Str("address", cfg.Redis.Address).Msg("geocoding fallback store enabled")
	}
	gateway := geocoding.NewGateway(nominatim, &logger, gatewayOpts...)

	userUsecase := usecase.NewUserUsecase(
		txn, userRepo, regionRepo, usecase.NewGeocodeHook(gateway), cfg.Pagination.MaxLimit,
	)
	regionUsecase := usecase.NewRegionUsecase(txn, regionRepo, userRepo, cfg.Pagination.MaxLimit)

	translator, err := i18n.NewTranslator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load translations")
	}

	routerCfg := handler.RouterConfig{
		UserUsecase:   userUsecase,
		RegionUsecase: regionUsecase,
		Translator:    translator,
		HealthCheck: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Logger:       &logger,
		ExposeErrors: !cfg.IsProduction(),
		Metrics:      collector,
	}
	if cfg.JWT.Secret != "" {
		jwtAuth := auth.NewJWTAuthenticator(cfg.JWT.Secret, cfg.JWT.Audience, cfg.JWT.Issuer)
		routerCfg.Auth = sharedmw.NewJWTMiddleware(jwtAuth, []string{http.MethodGet, http.MethodHead, http.MethodOptions})
		logger.Info().Msg("JWT authentication enabled for mutating routes")
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address(),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serverErr := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPC.Port > 0 {
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()))
		healthServer := utilities.RegisterHealthServer(grpcServer, cfg.Consul.ServiceName)

		lis, err := net.Listen("tcp", net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.GRPC.Port)))
		if err != nil {
			logger.Fatal().Err(err).Int("port", cfg.GRPC.Port).Msg("failed to listen for gRPC")
		}

		go func() {
			logger.Info().Str("address", lis.Addr().String()).Msg("gRPC health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				serverErr <- err
			}
		}()

		go watchMongo(ctx, &logger, healthServer, cfg.Consul.ServiceName, routerCfg.HealthCheck)
	}

	if cfg.Consul.Address != "" {
		registry, err := discovery.NewConsulRegistry(cfg.Consul.Address, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Consul client")
		}

		reg := discovery.Registration{
			ID:       cfg.Consul.ServiceName + "-" + strconv.Itoa(cfg.HTTP.Port),
			Name:     cfg.Consul.ServiceName,
			Address:  cfg.Consul.AdvertiseAddress,
			Port:     cfg.HTTP.Port,
			Tags:     []string{"http"},
			GRPCPort: cfg.GRPC.Port,
		}
		if err := registry.Register(reg); err != nil {
			logger.Fatal().Err(err).Msg("failed to register with Consul")
		}
		defer func() {
			if err := registry.Deregister(reg.ID); err != nil {
				logger.Error().Err(err).Msg("failed to deregister from Consul")
			}
		}()
	}

	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down HTTP server")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Str("service", config.ServiceName).Logger()
}

// watchMongo mirrors MongoDB reachability into the gRPC health status.
func watchMongo(
	ctx context.Context,
	logger *zerolog.Logger,
	healthServer *health.Server,
	service string,
	check handler.HealthCheck,
) {
	ticker := time.NewTicker(mongoWatchInterval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			utilities.SetServingStatus(healthServer, false, service)
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, mongoWatchInterval/2)
			err := check(checkCtx)
			cancel()

			if ok := err == nil; ok != serving {
				serving = ok
				utilities.SetServingStatus(healthServer, serving, service)
				logger.Warn().Err(err).Bool("serving", serving).Msg("gRPC health status changed")
			}
		}
	}
}
