package main

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"

	"github.com/shanthivalli/tcm-claims-focus/internal/config"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/member"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/wizard"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/db"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/middleware"
)

// sweepInterval is how often abandoned wizard sessions are expired.
const sweepInterval = time.Minute

// app holds everything the HTTP routes depend on.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	repo     logentry.Repository
	pool     *pgxpool.Pool
	roster   member.RosterSource
	creds    *member.CredentialStore
	sessions *wizard.SessionStore
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	repo, pool, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.RecordStore).Msg("failed to open record store")
		return err
	}
	defer closeStore()
	logger.Info().Str("backend", cfg.RecordStore).Msg("record store ready")

	// Roster and credentials
	creds, err := member.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load credentials")
		return err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		pool:     pool,
		roster:   member.NewRosterSource(cfg.RosterPath),
		creds:    creds,
		sessions: wizard.NewSessionStore(cfg.SessionTTL, logger),
	}
	e, err := a.routes()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.sessions.Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openStore opens the configured record store. pool is nil unless the store
// is postgres.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (logentry.Repository, *pgxpool.Pool, func(), error) {
	switch cfg.RecordStore {
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		repo, err := logentry.NewSQLiteRepo(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, nil, nil, err
		}
		return repo, nil, func() { sqlDB.Close() }, nil

	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, nil, err
		}
		return logentry.NewRepoPG(pool), pool, pool.Close, nil

	case config.StoreJSON:
		return logentry.NewJSONRepo(cfg.RecordsPath, logger), nil, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
}

func unitRule(name string) logentry.UnitRule {
	if name == config.UnitRuleAdjusted {
		return logentry.AdjustedUnits
	}
	return logentry.BaselineUnits
}

// routes builds the echo server with the global middleware chain and every
// domain handler mounted under /api/v1.
func (a *app) routes() (*echo.Echo, error) {
	cfg, logger := a.cfg, a.logger

	signingKey, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: signingKey,
		Skipper:    auth.AuthSkipper,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	dir := member.NewDirectory(a.roster, a.creds, logger)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(cfg.RecordStore, a.repo, a.pool, dir))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.Audit(logger, "/api/v1"))

	// Members and login
	issuer := auth.NewIssuer(jwtCfg, cfg.TokenTTL)
	member.NewHandler(dir, a.creds, issuer, logger).RegisterRoutes(apiV1)

	// Log entries, claims, payroll and exports
	entrySvc := logentry.NewService(a.repo, unitRule(cfg.TCMUnitRule), cfg.PayRate, logger)
	logentry.NewHandler(entrySvc, logger).RegisterRoutes(apiV1)

	// Note wizard
	wizardSvc := wizard.NewService(a.sessions, entrySvc, dir, wizard.Rules{Units: unitRule(cfg.TCMUnitRule)}, logger)
	wizard.NewHandler(wizardSvc, logger).RegisterRoutes(apiV1)

	return e, nil
}
