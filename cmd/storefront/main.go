package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/backend"
	"pixel-storefront/internal/config"
	"pixel-storefront/internal/db"
	"pixel-storefront/internal/httpclient"
	"pixel-storefront/internal/httpserver"
	"pixel-storefront/internal/logging"
	"pixel-storefront/internal/metrics"
	"pixel-storefront/internal/migrate"
	"pixel-storefront/internal/repository/session"
	"pixel-storefront/internal/service/address"
	"pixel-storefront/internal/service/cart"
	"pixel-storefront/internal/service/catalog"
	"pixel-storefront/internal/service/orders"
	"pixel-storefront/internal/service/payment"
	"pixel-storefront/internal/service/profile"
	"pixel-storefront/internal/storefront"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("storefront", cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("storefront stopped")
		os.Exit(1)
	}
}

// run serves until a signal arrives or the listener fails. Every resource it
// opens is released before it returns.
func run(cfg config.Config, logger zerolog.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, ready, closeStore, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s session store: %w", cfg.SessionStore, err)
	}
	defer closeStore()

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.BackendTimeout
	httpCfg.MaxRetries = cfg.BackendMaxRetries
	transport := httpclient.New(httpCfg)

	backendDoer := httpclient.NewCircuitBreakerClient(transport, httpclient.DefaultCircuitBreakerConfig("backend"), logger, m)
	authDoer := httpclient.NewCircuitBreakerClient(transport, httpclient.DefaultCircuitBreakerConfig("auth"), logger, m)

	api := backend.New(cfg.BackendURL, backendDoer)
	gateway := auth.NewClient(cfg.AuthURL, cfg.AuthAnonKey, authDoer, auth.NewVerifier(cfg.AuthJWTSecret))

	var verifier payment.Verifier = payment.NewBackendVerifier(api)
	if cfg.StripeSecretKey != "" {
		verifier = payment.NewStripeVerifier(cfg.StripeSecretKey)
		logger.Info().Msg("verifying payments with stripe")
	}

	manager := storefront.NewManager(gateway, api, verifier, repo, logger, m, storefront.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		Cart:        cart.DefaultOptions(),
	})
	go manager.Run(ctx)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions:       manager,
		Catalog:        catalog.New(api),
		Orders:         orders.New(api, verifier),
		Addresses:      address.New(api),
		Profiles:       profile.New(api),
		Ready:          ready,
		Gatherer:       reg,
		CookieSecure:   cfg.CookieSecure,
		SessionTTL:     cfg.SessionTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthRateLimit:  httpserver.RateLimit{Limit: rate.Limit(cfg.AuthRateLimit), Burst: cfg.AuthRateBurst},
	})
	if err != nil {
		manager.Close(context.Background())
		return fmt.Errorf("init server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received signal, shutting down")
	case runErr = <-serverErr:
		logger.Error().Err(runErr).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	manager.Close(shutdownCtx)
	logger.Info().Msg("server stopped")
	return runErr
}

// openSessionStore connects the configured browser-session store and returns
// its readiness checks.
func openSessionStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (session.Repository, map[string]httpserver.CheckFunc, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info().Msg("browser sessions stored in postgres")
		return session.NewPostgres(pool, cfg.SessionTTL),
			map[string]httpserver.CheckFunc{"postgres": pool.Ping},
			pool.Close, nil

	case config.SessionStoreRedis:
		client, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("browser sessions stored in redis")
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return session.NewRedis(client, cfg.SessionTTL),
			map[string]httpserver.CheckFunc{"redis": ping},
			func() { _ = client.Close() }, nil

	default:
		logger.Warn().Msg("browser sessions kept in memory only")
		return session.NewMemory(cfg.SessionTTL), nil, func() {}, nil
	}
}
