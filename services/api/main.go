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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/config"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Multi-tenant SaaS REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(config.Load())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *gorm.DB) error {
					if err := config.Migrate(db); err != nil {
						return err
					}
					logrus.Info("database migrated")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load demo data into an empty database",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *gorm.DB) error {
					if err := config.Migrate(db); err != nil {
						return err
					}
					return Seed(cmd.Context(), repository.New(db))
				})
			},
		},
	)
	return root
}

func setupLogging(cfg *config.AppConfig) {
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func withDatabase(fn func(db *gorm.DB) error) error {
	cfg := config.Load()
	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
	}()
	return fn(db)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	jwtSecret, err := resolveJWTSecret(ctx, cfg)
	if err != nil {
		return err
	}

	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
		logrus.Info("database connection closed")
	}()
	if cfg.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			return err
		}
	}
	store := repository.New(db)

	deps := &Deps{
		Store:  store,
		Tokens: utils.NewTokenManager(jwtSecret, cfg.JWTExpiresIn),
	}

	if cfg.RedisEnabled() {
		client, err := utils.NewRedisClient(ctx, utils.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer closeRedis(client)
		deps.Revoker = utils.NewTokenStore(client)
		logrus.Info("token revocation backed by Redis")
	} else {
		logrus.Warn("REDIS_HOST not set, logout will not revoke tokens")
	}

	auditLogger := audit.NewLogger(newAuditSink(cfg, store), audit.Options{
		Workers:   cfg.AuditWorkers,
		QueueSize: cfg.AuditQueueSize,
	})
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close audit logger")
		}
		logrus.Info("audit logger drained")
	}()
	deps.Audit = auditLogger

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(deps, cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("API server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logrus.Infof("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logrus.Info("HTTP server stopped")
	return nil
}

// resolveJWTSecret only reaches for AWS when no literal secret is configured
func resolveJWTSecret(ctx context.Context, cfg *config.AppConfig) (string, error) {
	if cfg.JWTSecret != "" || cfg.JWTSecretARN == "" {
		return config.ResolveJWTSecret(ctx, cfg, nil)
	}
	client, err := config.NewSecretsManagerClient(cfg.AWSRegion)
	if err != nil {
		return "", err
	}
	return config.ResolveJWTSecret(ctx, cfg, client)
}

func newAuditSink(cfg *config.AppConfig, store *repository.Store) audit.Sink {
	if cfg.KafkaAuditEnabled() {
		logrus.Infof("audit events published to Kafka topic %s", cfg.AuditKafkaTopic)
		return audit.NewKafkaSink(audit.NewKafkaWriter(cfg.KafkaBroker), cfg.AuditKafkaTopic)
	}
	return audit.NewDBSink(store)
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close Redis")
		return
	}
	logrus.Info("Redis connection closed")
}
