package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	// CartDriverRedis допустим только для корзин.
	CartDriverRedis = "redis"
)

const envPrefix = "STOREFRONT_"

// Config описывает настройки запуска витрины.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        string

	// StorageDriver выбирает хранилище заказов, каталога и служебных таблиц.
	StorageDriver string
	// CartDriver выбирает хранилище корзин; пустое значение означает StorageDriver.
	CartDriver string

	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Без KafkaBrokers события заказов не публикуются.
	KafkaBrokers  []string
	KafkaClientID string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	// OutboxBreakerFailures ошибок подряд размыкают цепь на OutboxBreakerReset.
	OutboxBreakerFailures int
	OutboxBreakerReset    time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	SeedDemo bool
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		ShutdownTimeout:             5 * time.Second,
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		RedisAddr:                   "localhost:6379",
		RedisKeyPrefix:              "storefront:",
		KafkaClientID:               "storefront",
		KafkaTopic:                  "storefront.order.events",
		KafkaDLQTopic:               "storefront.order.events.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		OutboxBreakerFailures:       5,
		OutboxBreakerReset:          30 * time.Second,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		SeedDemo:                    true,
	}
}

// LoadConfig читает .env (если есть) и переменные окружения STOREFRONT_* поверх DefaultConfig.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	return configFromEnv(os.LookupEnv)
}

func configFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	cfg.HTTPAddr = env.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = env.str("METRICS_ADDR", cfg.MetricsAddr)
	cfg.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)

	cfg.StorageDriver = strings.ToLower(env.str("STORAGE_DRIVER", cfg.StorageDriver))
	cfg.CartDriver = strings.ToLower(env.str("CART_DRIVER", cfg.CartDriver))
	cfg.PostgresDSN = env.str("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = env.boolean("POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = env.str("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = env.str("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = env.integer("REDIS_DB", cfg.RedisDB)
	cfg.RedisKeyPrefix = env.str("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)

	if raw, ok := env.get("KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(raw)
	}
	cfg.KafkaClientID = env.str("KAFKA_CLIENT_ID", cfg.KafkaClientID)
	cfg.KafkaTopic = env.str("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaDLQTopic = env.str("KAFKA_DLQ_TOPIC", cfg.KafkaDLQTopic)

	cfg.OutboxPollInterval = env.duration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = env.integer("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = env.integer("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = env.duration("OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.OutboxBreakerFailures = env.integer("OUTBOX_BREAKER_FAILURES", cfg.OutboxBreakerFailures)
	cfg.OutboxBreakerReset = env.duration("OUTBOX_BREAKER_RESET", cfg.OutboxBreakerReset)

	cfg.IdempotencyTTL = env.duration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = env.duration("IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = env.integer("IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.SeedDemo = env.boolean("SEED_DEMO", cfg.SeedDemo)

	if len(env.errs) > 0 {
		return Config{}, fmt.Errorf("invalid environment: %s", strings.Join(env.errs, "; "))
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q (use memory|postgres)", c.StorageDriver)
	}
	switch c.CartDriver {
	case "", StorageDriverMemory, StorageDriverPostgres, CartDriverRedis:
	default:
		return fmt.Errorf("unsupported cart driver %q (use memory|postgres|redis)", c.CartDriver)
	}
	if c.usesPostgres() && strings.TrimSpace(c.PostgresDSN) == "" {
		return fmt.Errorf("%sPOSTGRES_DSN is required for postgres driver", envPrefix)
	}
	if c.cartDriver() == CartDriverRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("%sREDIS_ADDR is required for redis cart driver", envPrefix)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%sHTTP_ADDR must not be empty", envPrefix)
	}
	return nil
}

func (c Config) cartDriver() string {
	if c.CartDriver == "" {
		return c.StorageDriver
	}
	return c.CartDriver
}

func (c Config) usesPostgres() bool {
	return c.StorageDriver == StorageDriverPostgres || c.cartDriver() == StorageDriverPostgres
}

// envReader читает STOREFRONT_* и копит ошибки разбора, чтобы сообщить обо всех сразу.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.get(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: not an integer", envPrefix, key))
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: not a boolean", envPrefix, key))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: not a duration", envPrefix, key))
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
