package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trackgate/trackgate/pkg/api"
	"github.com/trackgate/trackgate/pkg/artifacts"
	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/config"
	"github.com/trackgate/trackgate/pkg/credstore"
	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
	"github.com/trackgate/trackgate/pkg/tracking"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	store, storePinger, err := buildStore(ctx, cfg, logger, metrics, group)
	if err != nil {
		logger.WithError(err).Error("failed to initialize credential store")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Auth.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Auth.RedisURL)
		if err != nil {
			logger.WithError(err).Error("invalid redis URL")
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
	}

	hasher := password.NewBcryptHasher(cfg.Auth.BcryptCost)

	var s3Provider artifacts.Provider
	if cfg.Artifacts.S3Region != "" || cfg.Artifacts.S3Endpoint != "" {
		p, err := artifacts.NewS3Provider(ctx, artifacts.S3Config{
			Endpoint:     cfg.Artifacts.S3Endpoint,
			Region:       cfg.Artifacts.S3Region,
			UsePathStyle: cfg.Artifacts.S3UsePathStyle,
		})
		if err != nil {
			logger.WithError(err).Error("failed to initialize object storage")
			os.Exit(1)
		}
		s3Provider = p
	}

	tenantOpts := []tenants.Option{
		tenants.WithArtifactProvisioner(artifacts.NewSelector(s3Provider)),
		tenants.WithLogger(logger),
		tenants.WithMetrics(metrics),
	}
	if cfg.Tracking.BaseURI != "" {
		baseURI := cfg.Tracking.BaseURI
		tenantOpts = append(tenantOpts, tenants.WithTrackingURIDefault(func(tenantID string) (string, error) {
			return tracking.SchemaTrackingURI(baseURI, tenantID)
		}))
	}
	if cfg.Tracking.ArtifactRootBase != "" {
		rootBase := strings.TrimRight(cfg.Tracking.ArtifactRootBase, "/")
		tenantOpts = append(tenantOpts, tenants.WithArtifactRootDefault(func(tenantID string) string {
			return rootBase + "/" + tenantID
		}))
	}
	tenantService := tenants.NewService(store, hasher, tenantOpts...)

	sessions := auth.NewSessionStore(cfg.Auth.SessionTTL,
		auth.WithSessionLogger(logger),
		auth.WithSessionMetrics(metrics))
	if err := sessions.StartSweeper(ctx, cfg.Auth.SweepSchedule); err != nil {
		logger.WithError(err).Error("invalid session sweep schedule")
		os.Exit(1)
	}

	var throttle auth.LoginThrottle
	if redisClient != nil {
		throttle = auth.NewRedisThrottle(redisClient, cfg.Auth.LoginAttemptsPerWindow, cfg.Auth.LoginWindow)
	} else {
		throttle = auth.NewMemoryThrottle(cfg.Auth.LoginAttemptsPerWindow, cfg.Auth.LoginWindow)
	}

	authService := auth.NewService(tenantService, sessions, hasher,
		auth.WithThrottle(throttle),
		auth.WithServiceLogger(logger),
		auth.WithServiceMetrics(metrics))

	server := api.NewServer(api.ServerConfig{
		Tenants:        tenantService,
		Auth:           authService,
		Tracking:       tracking.NewHTTPClient(30 * time.Second),
		Logger:         logger,
		Metrics:        metrics,
		TenantCacheTTL: 30 * time.Second,
	})

	mainServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(storePinger, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group.Go(func() error {
		logger.WithField("addr", mainServer.Addr).Info("gateway listening")
		if err := mainServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, mainServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server error")
		os.Exit(1)
	}
}

// buildStore selects the credential store backend from config. The file
// backend optionally watches for external writes; postgres registers its
// pool for shutdown via the returned pinger's Close.
func buildStore(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, group *errgroup.Group) (tenants.Store, observability.Pinger, error) {
	switch cfg.Store.Type {
	case "postgres":
		store, err := credstore.NewPostgresStore(credstore.PostgresConfig{
			URL:      cfg.Store.PostgresURL,
			MaxConns: cfg.Store.PostgresMaxConns,
			Timeout:  cfg.Store.PostgresTimeout,
		}, credstore.WithPostgresLogger(logger), credstore.WithPostgresMetrics(metrics))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := credstore.NewFileStore(cfg.Store.FilePath,
			credstore.WithFileLogger(logger), credstore.WithFileMetrics(metrics))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.WatchFile {
			group.Go(func() error {
				if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.WithError(err).Warn("credential file watcher stopped")
				}
				return nil
			})
		}
		return store, store, nil
	}
}
