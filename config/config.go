package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	Env        string
	LogLevel   string
	Session    SessionConfig
	Database   DatabaseConfig
	MQ         MQConfig
	Storage    StorageConfig
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// MQConfig selects the event backend. An empty Backend disables publishing.
type MQConfig struct {
	Backend  string
	Topic    string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

// RabbitMQConfig configures the topic exchange. An empty Queue gives each
// watcher its own exclusive queue.
type RabbitMQConfig struct {
	URL           string
	Durable       bool
	Queue         string
	PrefetchCount int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// StorageConfig selects the object storage used for history exports.
type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "cafe"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "cafe_inventory"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	sessionConfig := SessionConfig{
		Secret:       strings.TrimSpace(getEnv("SESSION_SECRET", "")),
		TTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
		SecureCookie: getEnvBool("SESSION_SECURE_COOKIE", false),
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", "")),
		Topic:   getEnv("MQ_TOPIC", "stock-events"),
		RabbitMQ: RabbitMQConfig{
			URL:           getEnv("RABBITMQ_URL", ""),
			Durable:       getEnvBool("RABBITMQ_DURABLE", true),
			Queue:         getEnv("RABBITMQ_QUEUE", ""),
			PrefetchCount: getEnvInt("RABBITMQ_PREFETCH", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "cafe-exports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Env:        getEnv("ENV", "production"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Session:    sessionConfig,
		Database:   dbConfig,
		MQ:         mqConfig,
		Storage:    storageConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
