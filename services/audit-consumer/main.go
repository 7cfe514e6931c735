package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/config"
	"github.com/pavitra93/go-multi-tenant-saas/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.KafkaBroker == "" {
		logrus.Fatal("KAFKA_BROKER is required")
	}

	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
	}()
	if err := config.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}
	store := repository.New(db)

	consumer := NewConsumer(NewKafkaReader(cfg.KafkaBroker, cfg.AuditKafkaTopic), audit.NewDBSink(store))
	defer func() {
		if err := consumer.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close consumer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.Recovery())
	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			utils.InternalServerErrorResponse(c, "Database connection failed")
			return
		}
		utils.OKResponse(c, "Audit consumer is healthy", gin.H{"topic": cfg.AuditKafkaTopic})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{Addr: ":" + cfg.ConsumerPort, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logrus.Infof("Audit consumer health endpoint on port %s", cfg.ConsumerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("health server failed")
		}
	}()

	runErr := consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("health server shutdown failed")
	}

	if runErr != nil {
		logrus.WithError(runErr).Error("audit consumer stopped")
		return
	}
	logrus.Info("audit consumer stopped")
}
