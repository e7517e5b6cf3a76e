package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/manan-gakkhar/Doc-Plus/internal/config"
	"github.com/manan-gakkhar/Doc-Plus/internal/domain/dashboard"
	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
	"github.com/manan-gakkhar/Doc-Plus/internal/domain/signup"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/db"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/middleware"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/recordsclient"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/sessionstore"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/telemetry"
	"github.com/manan-gakkhar/Doc-Plus/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		return err
	}

	e, cleanup, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return serve(e, cfg, logger)
}

// newServer wires the web application. The returned cleanup closes the
// session store connection.
func newServer(cfg *config.Config, logger zerolog.Logger) (*echo.Echo, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	renderer, err := web.NewRenderer(loc)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}

	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceName:       "docplus-server",
		ServiceVersion:    version,
		Environment:       cfg.Env,
		ProcessCollectors: !cfg.IsDev(),
	})

	store, closeStore, err := newSessionStore(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	client, err := recordsclient.New(cfg.RecordsAPIURL,
		recordsclient.WithTimeout(cfg.FetchTimeout),
		recordsclient.WithObserver(metrics),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	provider, err := newSignupProvider(cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	dashSvc := dashboard.NewService(dashboard.NewLoader(client, logger), store, logger, dashboard.Options{
		SessionTTL: cfg.SessionTTL,
		CacheTTL:   cfg.CacheTTL,
		Location:   loc,
		Observer:   metrics,
	})
	signupSvc := signup.NewService(provider, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.Sanitize(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevAuthHeader},
		AllowCredentials: true,
	}))
	e.Use(metrics.Middleware())

	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("using development auth, do not use in production")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			LoginURL: "/signup",
			Skipper:  auth.AuthSkipper,
		}))
	}

	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}))
	e.Use(middleware.Audit(logger, middleware.AccessRecorderFunc(func(entry middleware.AccessEntry) error {
		metrics.CountAccess(entry.Action, entry.StatusCode)
		return nil
	})))
	// Three records calls at most run per dashboard load; leave headroom
	// over a single fetch timeout.
	e.Use(middleware.RequestTimeout(2*cfg.FetchTimeout + 5*time.Second))

	e.GET("/health", db.HealthHandler(store, nil))
	e.GET("/metrics", metrics.Handler())

	web.RegisterRoutes(e)
	signup.NewHandler(signupSvc, cfg.TLSEnabled || !cfg.IsDev()).RegisterRoutes(e)

	dashHandler := dashboard.NewHandler(dashSvc)
	dashHandler.RegisterPages(e)
	dashHandler.RegisterAPI(e.Group("/api/v1", middleware.ETag(middleware.DefaultETagConfig())))

	return e, closeStore, nil
}

// newSessionStore returns Redis when a URL is configured and an in-process
// store otherwise.
func newSessionStore(redisURL string) (sessionstore.Store, func(), error) {
	if redisURL == "" {
		return sessionstore.NewMemoryStore(), func() {}, nil
	}
	client, store, err := sessionstore.NewRedisFromURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return store, func() { _ = client.Close() }, nil
}

func newSignupProvider(cfg *config.Config) (signup.Provider, error) {
	if cfg.ResolvedAuthMode() == "development" {
		return signup.NewDevProvider(), nil
	}
	return signup.NewFirebaseProvider(cfg.FirebaseAPIKey)
}

// serve starts e and blocks until SIGINT or SIGTERM, then drains in-flight
// requests.
func serve(e *echo.Echo, cfg *config.Config, logger zerolog.Logger) error {
	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(ctx)
}

func runRecords(port, schema string, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if migrate {
		migrator, err := db.NewMigrator(pool, records.Migrations(), schema)
		if err != nil {
			return err
		}
		n, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info().Int("applied", n).Str("schema", schema).Msg("migrations complete")
	}

	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "docplus-records",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if err := registerPoolGauges(metrics, pool); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.Sanitize(logger))
	e.Use(metrics.Middleware())

	e.GET("/health", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	svc := records.NewService(
		records.NewPatientRepo(pool),
		records.NewDoctorRepo(pool),
		records.NewInteractionRepo(pool),
	)
	records.NewHandler(svc).RegisterRoutes(e.Group("/backend", middleware.ETag(middleware.ETagConfig{Private: true})))

	recordsCfg := *cfg
	recordsCfg.Port = port
	recordsCfg.TLSEnabled = false
	return serve(e, &recordsCfg, logger)
}

func registerPoolGauges(metrics *telemetry.Provider, pool *pgxpool.Pool) error {
	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"db_pool_total_conns", "Open connections in the records pool.", func() float64 { return float64(pool.Stat().TotalConns()) }},
		{"db_pool_idle_conns", "Idle connections in the records pool.", func() float64 { return float64(pool.Stat().IdleConns()) }},
		{"db_pool_acquired_conns", "Connections currently checked out.", func() float64 { return float64(pool.Stat().AcquiredConns()) }},
	}
	for _, g := range gauges {
		if err := metrics.RegisterGaugeFunc(g.name, g.help, g.fn); err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}
	return nil
}

func runSeed(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc := records.NewService(
		records.NewPatientRepo(pool),
		records.NewDoctorRepo(pool),
		records.NewInteractionRepo(pool),
	)
	res, err := svc.Seed(ctx, f)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	fmt.Printf("Seeded %d patient(s), %d doctor(s), %d interaction(s).\n", res.Patients, res.Doctors, res.Interactions)
	return nil
}
