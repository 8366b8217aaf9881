package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	sharedUtils "github.com/davicafu/orderbus/internal/shared/infra/utils"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	LogLevel        string

	// Broker
	UseKafka         bool
	KafkaBrokers     []string
	OrderTopic       string
	ConsumerGroup    string
	ConsumerEnabled  bool
	MemoryPartitions int

	// Cliente y publisher
	ConnectMaxAttempts int
	ConnectBaseDelay   time.Duration
	ConnectMaxDelay    time.Duration
	PublishMaxAttempts int
	PublishBaseDelay   time.Duration
	PublishMaxDelay    time.Duration
	SendTimeout        time.Duration
	BatchTimeout       time.Duration
	SchemaFile         string

	// Cache / proyección
	RedisAddr string
	CacheTTL  time.Duration

	// Dead letters
	LocalDeployment bool
	SQLitePath      string
	PostgresDSN     string
	ReplayBatchSize int
}

// LoadConfig lee .env (si existe) y después las variables de entorno.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // sin .env se usan solo las variables del proceso

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		UseKafka:         getEnvBool("USE_KAFKA", false),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderTopic:       getEnv("ORDER_TOPIC", "order.events"),
		ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "orderbus-projection"),
		ConsumerEnabled:  getEnvBool("CONSUMER_ENABLED", true),
		MemoryPartitions: getEnvInt("MEMORY_PARTITIONS", 3),

		ConnectMaxAttempts: getEnvInt("CONNECT_MAX_ATTEMPTS", 5),
		ConnectBaseDelay:   getEnvDuration("CONNECT_BASE_DELAY", 200*time.Millisecond),
		ConnectMaxDelay:    getEnvDuration("CONNECT_MAX_DELAY", 5*time.Second),
		PublishMaxAttempts: getEnvInt("PUBLISH_MAX_ATTEMPTS", 3),
		PublishBaseDelay:   getEnvDuration("PUBLISH_BASE_DELAY", 100*time.Millisecond),
		PublishMaxDelay:    getEnvDuration("PUBLISH_MAX_DELAY", 2*time.Second),
		SendTimeout:        getEnvDuration("SEND_TIMEOUT", 5*time.Second),
		BatchTimeout:       getEnvDuration("BATCH_TIMEOUT", 10*time.Millisecond),
		SchemaFile:         getEnv("SCHEMA_FILE", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),

		LocalDeployment: getEnvBool("LOCAL_DEPLOYMENT", true),
		SQLitePath:      getEnv("SQLITE_PATH", "./orderbus_dead_letters.db"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		ReplayBatchSize: getEnvInt("REPLAY_BATCH_SIZE", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rechaza combinaciones que no pueden funcionar.
func (c *Config) Validate() error {
	var errs []error
	if c.UseKafka && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when USE_KAFKA=true"))
	}
	if c.OrderTopic == "" {
		errs = append(errs, errors.New("ORDER_TOPIC must not be empty"))
	}
	if c.ConnectMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CONNECT_MAX_ATTEMPTS must be >= 1, got %d", c.ConnectMaxAttempts))
	}
	if c.PublishMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PUBLISH_MAX_ATTEMPTS must be >= 1, got %d", c.PublishMaxAttempts))
	}
	if c.ConnectBaseDelay > c.ConnectMaxDelay {
		errs = append(errs, errors.New("CONNECT_BASE_DELAY must not exceed CONNECT_MAX_DELAY"))
	}
	if c.PublishBaseDelay > c.PublishMaxDelay {
		errs = append(errs, errors.New("PUBLISH_BASE_DELAY must not exceed PUBLISH_MAX_DELAY"))
	}
	if c.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT must be positive"))
	}
	if c.MemoryPartitions < 1 {
		errs = append(errs, fmt.Errorf("MEMORY_PARTITIONS must be >= 1, got %d", c.MemoryPartitions))
	}
	if !c.LocalDeployment && c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required when LOCAL_DEPLOYMENT=false"))
	}
	return errors.Join(errs...)
}

// ConnectPolicy es la política de reintentos de Connect.
func (c *Config) ConnectPolicy() sharedUtils.BackoffPolicy {
	return sharedUtils.BackoffPolicy{
		MaxAttempts: c.ConnectMaxAttempts,
		BaseDelay:   c.ConnectBaseDelay,
		MaxDelay:    c.ConnectMaxDelay,
		Jitter:      0.2,
	}
}

// PublishPolicy es la política de reintentos del publisher.
func (c *Config) PublishPolicy() sharedUtils.BackoffPolicy {
	return sharedUtils.BackoffPolicy{
		MaxAttempts: c.PublishMaxAttempts,
		BaseDelay:   c.PublishBaseDelay,
		MaxDelay:    c.PublishMaxDelay,
		Jitter:      0.2,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

// getEnvDuration acepta "250ms", "5s"...
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
