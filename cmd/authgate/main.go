package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/authgate/api/swagger"
	"github.com/noah-isme/authgate/internal/handler"
	"github.com/noah-isme/authgate/internal/middleware"
	"github.com/noah-isme/authgate/internal/repository"
	"github.com/noah-isme/authgate/internal/service"
	"github.com/noah-isme/authgate/pkg/cache"
	"github.com/noah-isme/authgate/pkg/config"
	"github.com/noah-isme/authgate/pkg/database"
	"github.com/noah-isme/authgate/pkg/logger"
	corsmiddleware "github.com/noah-isme/authgate/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/authgate/pkg/middleware/requestid"
	"github.com/noah-isme/authgate/pkg/ratelimit"
)

// @title Authgate
// @version 0.1.0
// @description Bearer-token authentication gateway
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var registry service.RevocationRegistry
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		registry = repository.NewRedisRevocationSet(redisClient)
	} else {
		registry = repository.NewRevocationSet()
	}

	tokenSvc, err := service.NewTokenService(service.TokenConfig{
		SigningKey: cfg.JWT.SigningKey,
		TTL:        cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to init token service", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	users := repository.NewUserRepository(db)
	tokens := repository.NewActiveTokenRepository(db)
	authSvc := service.NewAuthService(users, tokens, registry, tokenSvc, validator.New(), logr)
	sweeper := service.NewSweeperService(tokens, registry, cfg.Sweeper.Interval, logr, metricsSvc)

	limiter := ratelimit.New(ratelimit.Config{
		Capacity:     cfg.RateLimit.Capacity,
		RefillPerSec: cfg.RateLimit.RefillPerSec,
		IdleEviction: cfg.RateLimit.IdleEviction,
		Logger:       logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()
	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.RateLimit(limiter, metricsSvc))
	r.Use(middleware.Authenticate(authSvc, metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc)
	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		protected := api.Group("", middleware.RequireAuth())
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/logout-all", authHandler.LogoutAll)
		protected.GET("/auth/me", authHandler.Me)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
