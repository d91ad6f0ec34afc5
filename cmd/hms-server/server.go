package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/domain/doctor"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/phone"
)

const (
	version         = "1.0.0"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runServer() error {
	ctx := context.Background()
	cfg, logger, pool, err := setup(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer pool.Close()
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger.Info().Str("env", cfg.Env).Msg("connected to database")

	reg := metrics.New()

	// Token revocations and the doctor cache live in Redis when it is
	// configured, in process memory otherwise.
	var (
		revocations auth.RevocationStore
		doctorCache cache.Cache
		healthDeps  []db.Check
	)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer rdb.Close()
		revocations = auth.NewRedisRevocationStore(rdb)
		doctorCache = cache.NewRedis(rdb, "hms:cache:")
		healthDeps = append(healthDeps, db.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info().Msg("connected to redis")
	} else {
		mem := auth.NewMemoryRevocationStore()
		defer mem.Close()
		revocations = mem
		memCache := cache.NewMemory(time.Minute)
		defer memCache.Close()
		doctorCache = memCache
	}

	// Platform services.
	txm := db.NewTxManager(pool)
	ids := seqid.New(seqid.NewPGSource(pool), logger,
		seqid.WithLocker(db.NewAdvisoryLocker(pool)),
		seqid.WithConflictRecorder(reg),
	)
	policy := auth.NewPolicy()
	phones := phone.NewNormalizer(cfg.PhoneDefaultRegion)
	tokens := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.AccessTokenTTL())

	// Domain services.
	accounts := account.NewService(account.NewUserRepoPG(pool), tokens, revocations, logger)
	patients := patient.NewService(patient.NewPatientRepoPG(pool), accounts, txm, ids, policy, phones, reg, logger)
	doctorRepo := doctor.NewCachedRepo(doctor.NewDoctorRepoPG(pool), doctorCache, cfg.DoctorCacheTTL, logger)
	doctors := doctor.NewService(doctorRepo, accounts, txm, ids, policy, phones, reg, logger)
	appointments := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), doctors, txm, ids, policy, reg, logger)

	if cfg.AdminPassword != "" {
		created, err := accounts.EnsureAdmin(ctx, account.NewUser{
			Email:    cfg.AdminEmail,
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to bootstrap admin user")
			return err
		}
		if created {
			logger.Info().Str("email", cfg.AdminEmail).Msg("bootstrap admin created")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(reg.Middleware())
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		SigningKey:  []byte(cfg.SecretKey),
		Issuer:      cfg.TokenIssuer,
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
		Logger:      logger,
	}))
	e.Use(auth.ActorMiddleware(accounts))
	e.Use(middleware.Audit(logger))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "Hospital Management System API",
			"version": version,
		})
	})
	e.GET("/health", db.HealthHandler(pool, healthDeps...))
	e.GET("/health/db", db.PoolStatsHandler(pool))
	e.GET("/metrics", echo.WrapHandler(reg.Handler()))

	api := e.Group("/api")
	account.NewHandler(accounts).RegisterRoutes(api, middleware.RateLimit(middleware.LoginRateLimitConfig()))
	patient.NewHandler(patients).RegisterRoutes(api)
	doctor.NewHandler(doctors).RegisterRoutes(api)
	scheduling.NewHandler(appointments).RegisterRoutes(api)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
