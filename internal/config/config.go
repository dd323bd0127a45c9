package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"paynotify/internal/backoff"
	"paynotify/internal/infrastructure/database"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

type Config struct {
	DBConfig struct {
		Host           string
		Port           int
		User           string
		Password       string
		Name           string
		SSLMode        string
		MigrationsPath string
	}

	KafkaBrokerURL             string
	KafkaPaymentEventsTopic    string
	KafkaEnrichedEventsTopic   string
	KafkaPaymentConsumerGroup  string
	KafkaEnrichedConsumerGroup string
	KafkaTopicPartitions       int
	KafkaTopicReplication      int
	KafkaEnsureTopics          bool

	IngestRetry   RetryConfig
	DeliveryRetry RetryConfig
	RetryMaxDelay time.Duration

	WebhookTimeout         time.Duration
	WebhookSubscriptionURL string
	WebhookAPIKey          string

	OpsHTTPAddr    string
	OpsCORSOrigins []string
	LogLevel       zapcore.Level

	parseErrs []error
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	env := &envReader{}

	cfg.DBConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DBConfig.Port = env.getEnvAsInt("DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	cfg.DBConfig.MigrationsPath = getEnvOrDefault("DB_MIGRATIONS_PATH", "/app/migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaPaymentEventsTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment-events")
	cfg.KafkaEnrichedEventsTopic = getEnvOrDefault("KAFKA_ENRICHED_EVENTS_TOPIC", "enriched-payment-events")
	cfg.KafkaPaymentConsumerGroup = getEnvOrDefault("KAFKA_PAYMENT_CONSUMER_GROUP", "payment-enrichment-group")
	cfg.KafkaEnrichedConsumerGroup = getEnvOrDefault("KAFKA_ENRICHED_CONSUMER_GROUP", "payment-notification-group")
	cfg.KafkaTopicPartitions = env.getEnvAsInt("KAFKA_TOPIC_PARTITIONS", 3)
	cfg.KafkaTopicReplication = env.getEnvAsInt("KAFKA_TOPIC_REPLICATION", 1)
	cfg.KafkaEnsureTopics = env.getEnvAsBool("KAFKA_ENSURE_TOPICS", true)

	cfg.IngestRetry = RetryConfig{
		MaxAttempts: env.getEnvAsInt("INGEST_RETRY_MAX_ATTEMPTS", 3),
		Delay:       env.getEnvAsDuration("INGEST_RETRY_DELAY", time.Second),
		Multiplier:  env.getEnvAsFloat("INGEST_RETRY_MULTIPLIER", 2),
	}
	cfg.DeliveryRetry = RetryConfig{
		MaxAttempts: env.getEnvAsInt("DELIVERY_RETRY_MAX_ATTEMPTS", 3),
		Delay:       env.getEnvAsDuration("DELIVERY_RETRY_DELAY", time.Second),
		Multiplier:  env.getEnvAsFloat("DELIVERY_RETRY_MULTIPLIER", 2),
	}
	cfg.RetryMaxDelay = env.getEnvAsDuration("RETRY_MAX_DELAY", backoff.DefaultMaxDelay)

	cfg.WebhookTimeout = env.getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.WebhookSubscriptionURL = getEnvOrDefault("WEBHOOK_SUBSCRIPTION_URL", "")
	cfg.WebhookAPIKey = getEnvOrDefault("WEBHOOK_API_KEY", "")

	cfg.OpsHTTPAddr = getEnvOrDefault("OPS_HTTP_ADDR", ":8080")
	cfg.OpsCORSOrigins = splitList(getEnvOrDefault("OPS_CORS_ORIGINS", "*"))

	level, err := zapcore.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level
	cfg.parseErrs = env.errs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if c.WebhookAPIKey == "" {
		errs = append(errs, errors.New("WEBHOOK_API_KEY is required"))
	}
	if c.WebhookSubscriptionURL == "" {
		errs = append(errs, errors.New("WEBHOOK_SUBSCRIPTION_URL is required"))
	} else if u, err := url.Parse(c.WebhookSubscriptionURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("WEBHOOK_SUBSCRIPTION_URL %q is not an absolute URL", c.WebhookSubscriptionURL))
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", c.WebhookTimeout))
	}
	if len(c.GetKafkaBrokers()) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKER_URL is required"))
	}
	if c.KafkaPaymentEventsTopic == c.KafkaEnrichedEventsTopic {
		errs = append(errs, errors.New("payment and enriched event topics must differ"))
	}
	if c.KafkaTopicPartitions < 1 || c.KafkaTopicReplication < 1 {
		errs = append(errs, errors.New("KAFKA_TOPIC_PARTITIONS and KAFKA_TOPIC_REPLICATION must be at least 1"))
	}
	if err := c.IngestPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingest retry: %w", err))
	}
	if err := c.DeliveryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("delivery retry: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Config) IngestPolicy() backoff.Policy {
	return c.policy(c.IngestRetry)
}

func (c *Config) DeliveryPolicy() backoff.Policy {
	return c.policy(c.DeliveryRetry)
}

func (c *Config) policy(r RetryConfig) backoff.Policy {
	return backoff.Policy{
		InitialDelay: r.Delay,
		Multiplier:   r.Multiplier,
		MaxAttempts:  r.MaxAttempts,
		MaxDelay:     c.RetryMaxDelay,
	}
}

func (c *Config) Database() database.DBConfig {
	return database.DBConfig{
		Host:     c.DBConfig.Host,
		Port:     c.DBConfig.Port,
		User:     c.DBConfig.User,
		Password: c.DBConfig.Password,
		DBName:   c.DBConfig.Name,
		SSLMode:  c.DBConfig.SSLMode,
	}
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps every parse failure, so a
// malformed value fails startup instead of falling back to the default.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string, parse func(string) error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return
	}
	if err := parse(value); err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
	}
}

func (r *envReader) getEnvAsInt(key string, defaultValue int) int {
	result := defaultValue
	r.lookup(key, func(value string) (err error) {
		result, err = strconv.Atoi(value)
		return err
	})
	return result
}

func (r *envReader) getEnvAsFloat(key string, defaultValue float64) float64 {
	result := defaultValue
	r.lookup(key, func(value string) (err error) {
		result, err = strconv.ParseFloat(value, 64)
		return err
	})
	return result
}

func (r *envReader) getEnvAsBool(key string, defaultValue bool) bool {
	result := defaultValue
	r.lookup(key, func(value string) (err error) {
		result, err = strconv.ParseBool(value)
		return err
	})
	return result
}

func (r *envReader) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	result := defaultValue
	r.lookup(key, func(value string) (err error) {
		result, err = time.ParseDuration(value)
		return err
	})
	return result
}
