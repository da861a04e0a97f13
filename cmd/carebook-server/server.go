package main

import (
	"context"
	"crypto/rand"
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain/admin"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/auditlog"
	"github.com/carebook/carebook/internal/domain/document"
	"github.com/carebook/carebook/internal/domain/identity"
	"github.com/carebook/carebook/internal/domain/inbox"
	"github.com/carebook/carebook/internal/domain/medicalrecord"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/blobstore"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/hipaa"
	"github.com/carebook/carebook/internal/platform/middleware"
	"github.com/carebook/carebook/internal/platform/notification"
	"github.com/carebook/carebook/internal/platform/telemetry"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveSigningKey returns AUTH_JWT_SECRET as bytes, or a random 32-byte
// key when it is empty. The second return value is true when a random key
// was generated.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		return []byte(secret), false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

func openBlobStore(cfg *config.Config) (blobstore.BlobStore, func() error, error) {
	if cfg.BlobBackend == "leveldb" {
		store, err := blobstore.OpenLevelDBBlobStore(cfg.BlobPath, cfg.UploadMaxSize)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return blobstore.NewInMemoryBlobStore(cfg.UploadMaxSize), func() error { return nil }, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	blobs, closeBlobs, err := openBlobStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}
	defer func() {
		if err := closeBlobs(); err != nil {
			logger.Error().Err(err).Msg("failed to close blob store")
		}
	}()
	logger.Info().Str("backend", cfg.BlobBackend).Msg("blob store ready")

	e, err := newRouter(cfg, pool, blobs, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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

// newRouter builds every service and mounts its routes. Nothing touches
// the pool until a request arrives.
func newRouter(cfg *config.Config, pool *pgxpool.Pool, blobs blobstore.BlobStore, reg *prometheus.Registry, logger zerolog.Logger) (*echo.Echo, error) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	enc, err := hipaa.NewEncryptionService(hipaa.KeyConfig{
		Key:          cfg.HIPAAEncryptionKey,
		Version:      cfg.HIPAAKeyVersion,
		PreviousKeys: cfg.HIPAAPreviousKeys,
	}, logger)
	if err != nil {
		return nil, err
	}

	signingKey, generated, err := resolveSigningKey(cfg.AuthJWTSecret)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn().Msg("AUTH_JWT_SECRET is not set: using a random signing key, tokens will not survive a restart")
	}

	tx := db.NewTxRunner(pool)
	appointmentRepo := appointment.NewAppointmentRepoPG(pool)

	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewProfileRepoPG(pool),
		tx,
		auth.NewPasswordHasher(0),
		auth.NewTokenIssuer(signingKey, cfg.AuthTokenTTL, cfg.AuthIssuer),
		logger,
	)
	inboxSvc := inbox.NewService(inbox.NewNotificationRepoPG(pool))
	auditSvc := auditlog.NewService(auditlog.NewEntryRepoPG(pool))

	dispatcher := notification.NewDispatcher(inboxSvc, nil, metrics, logger)
	appointmentSvc := appointment.NewService(appointmentRepo, identitySvc, dispatcher, metrics, appointment.Options{
		InitialStatus:      appointment.Status(cfg.AppointmentInitialStatus),
		EnforceTransitions: cfg.AppointmentEnforceTransitions,
		AdminPageSize:      cfg.AdminFanoutPageSize,
	}, logger)
	recordSvc := medicalrecord.NewService(medicalrecord.NewRecordRepoPG(pool), appointmentRepo, auditSvc, tx, enc, metrics, logger)
	documentSvc := document.NewService(document.NewDocumentRepoPG(pool), blobs, logger)
	adminSvc := admin.NewService(identitySvc, appointmentSvc, auditSvc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role", "X-User-Name"},
	}))
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/v1/files/"))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadMaxSize, "/api/v1/upload", "/api/v1/medical-records/upload"))

	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	case "external":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: signingKey,
			Skipper:    auth.AuthSkipper,
		}))
	}
	if cfg.ResolvedAuthMode() == "standalone" {
		// Tokens are ours, so every subject is a local account.
		e.Use(auth.RequireActive(identitySvc, auth.AuthSkipper))
	}
	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Msg("authentication configured")

	e.Use(middleware.Audit(logger, metrics))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, metrics.ObservePool))
	e.GET("/metrics", telemetry.Handler(reg))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)
	document.NewHandler(documentSvc).RegisterRoutes(apiV1)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(apiV1)
	inbox.NewHandler(inboxSvc).RegisterRoutes(apiV1)
	admin.NewHandler(adminSvc).RegisterRoutes(apiV1)
	blobstore.NewHandler(blobs).RegisterRoutes(apiV1)

	return e, nil
}
