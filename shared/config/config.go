package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds everything the API process reads from the environment
type AppConfig struct {
	Port       string
	CORSOrigin string
	GinMode    string

	JWTSecret    string
	JWTSecretARN string
	JWTExpiresIn time.Duration

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBroker     string
	AuditKafkaTopic string
	AuditSink       string
	AuditWorkers    int
	AuditQueueSize  int
	ConsumerPort    string

	AWSRegion string

	LogLevel  string
	LogFormat string

	AutoMigrate bool
	Database    *DatabaseConfig
}

// Load reads AppConfig from the environment, applying defaults
func Load() *AppConfig {
	return &AppConfig{
		Port:       getEnv("PORT", "5000"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		GinMode:    getEnv("GIN_MODE", "release"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTSecretARN: getEnv("JWT_SECRET_ARN", ""),
		JWTExpiresIn: getEnvAsDuration("JWT_EXPIRES_IN", 24*time.Hour),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBroker:     getEnv("KAFKA_BROKER", ""),
		AuditKafkaTopic: getEnv("AUDIT_KAFKA_TOPIC", "audit-events"),
		AuditSink:       strings.ToLower(getEnv("AUDIT_SINK", "db")),
		AuditWorkers:    getEnvAsInt("AUDIT_WORKERS", 4),
		AuditQueueSize:  getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
		ConsumerPort:    getEnv("AUDIT_CONSUMER_PORT", "8010"),

		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		Database:    GetDatabaseConfig(),
	}
}

// RedisEnabled reports whether a Redis host was configured
func (c *AppConfig) RedisEnabled() bool {
	return c.RedisHost != ""
}

// KafkaAuditEnabled reports whether audit events go to Kafka instead of the database
func (c *AppConfig) KafkaAuditEnabled() bool {
	return c.AuditSink == "kafka" && c.KafkaBroker != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90m") and bare seconds ("3600")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
