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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/domain/scheduling"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/civil"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/middleware"
	"github.com/odonto/odonto/internal/platform/telemetry"
)

const version = "0.1.0"

// retryAfterSeconds accompanies every 503.
const retryAfterSeconds = "2"

// app holds everything the HTTP surface needs. Tests fill it with in-memory
// repositories.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	clock   civil.Clock

	events       odontogram.EventRepository
	schedules    scheduling.ScheduleRepository
	appointments scheduling.AppointmentRepository

	audit    middleware.AuditRecorder
	dbHealth echo.HandlerFunc
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.New()
		metrics.Register(poolCollectors(pool)...)
	}

	e, err := newEcho(app{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		clock:        civil.SystemClock(),
		events:       odontogram.NewEventRepoPG(pool),
		schedules:    scheduling.NewScheduleRepoPG(pool),
		appointments: scheduling.NewAppointmentRepoPG(pool),
		audit:        middleware.NewAuditRecorderPG(pool),
		dbHealth:     db.HealthHandler(pool),
	})
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.ClinicTimezone).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(a app) (*echo.Echo, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	authMW, err := authMiddleware(a.cfg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e)

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(a.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if a.dbHealth != nil {
		e.GET("/health/db", a.dbHealth)
	}
	if a.metrics != nil {
		e.GET("/metrics", a.metrics.Handler())
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	apiV1.Use(authMW)
	apiV1.Use(middleware.Audit(a.logger, a.audit))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	chartSvc := odontogram.NewService(a.events, a.clock, loc, a.logger, a.metrics)
	odontogram.NewHandler(chartSvc).RegisterRoutes(apiV1)

	schedSvc := scheduling.NewService(a.schedules, a.appointments, scheduling.ServiceConfig{
		Calendar:           scheduling.NewCalendar(loc),
		Clock:              a.clock,
		DefaultSlotMinutes: a.cfg.DefaultSlotMinutes,
		Logger:             a.logger,
		Metrics:            a.metrics,
	})
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)

	return e, nil
}

func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthPublicKeyFile == "" {
		return auth.DevAuthMiddleware(), nil
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	if cfg.AuthPublicKeyFile != "" {
		key, err := auth.LoadPublicKey(cfg.AuthPublicKeyFile)
		if err != nil {
			return nil, err
		}
		jwtCfg.PublicKey = key
	}
	return auth.JWTMiddleware(jwtCfg), nil
}

// errorHandler adds Retry-After to 503 responses before delegating to echo's
// default handler.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", retryAfterSeconds)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

func poolCollectors(pool *pgxpool.Pool) []prometheus.Collector {
	gauge := func(name, help string, read func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "odonto",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(pool.Stat()) })
	}
	return []prometheus.Collector{
		gauge("total_conns", "Connections currently open", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections currently in use", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Connections currently idle", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("max_conns", "Configured pool size", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
	}
}
