package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo   MongoConfig
	Redis   RedisConfig
	Gateway GatewayConfig
	Kafka   KafkaConfig
	Engine  EngineConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=handyfix"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	DedupTTL time.Duration `env:"REDIS_DEDUP_TTL, default=72h"`
}

// GatewayConfig selects and configures the payment gateway adapter.
// Mode "sandbox" runs an in-process gateway; "http" talks to BaseURL.
type GatewayConfig struct {
	Mode          string        `env:"GATEWAY_MODE,           default=sandbox"`
	BaseURL       string        `env:"GATEWAY_BASE_URL,       default=http://localhost:8080/sandbox"`
	APIKey        string        `env:"GATEWAY_API_KEY"`
	WebhookSecret string        `env:"GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `env:"GATEWAY_TIMEOUT,        default=10s"`
	SuccessURL    string        `env:"CHECKOUT_SUCCESS_URL,   default=http://localhost:3000/bookings/{booking_id}/paid"`
	CancelURL     string        `env:"CHECKOUT_CANCEL_URL,    default=http://localhost:3000/bookings/{booking_id}"`

	BreakerFailureRatio float64       `env:"GATEWAY_BREAKER_FAILURE_RATIO, default=0.5"`
	BreakerMinRequests  uint32        `env:"GATEWAY_BREAKER_MIN_REQUESTS,  default=5"`
	BreakerOpenTimeout  time.Duration `env:"GATEWAY_BREAKER_OPEN_TIMEOUT,  default=30s"`
}

// KafkaConfig enables domain event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC, default=marketplace.events"`
}

// EngineConfig tunes the booking and payment engine.
type EngineConfig struct {
	DispatchWorkers    int           `env:"DISPATCH_WORKERS,     default=8"`
	RecentThreadsLimit int           `env:"RECENT_THREADS_LIMIT, default=5"`
	PaymentLockTTL     time.Duration `env:"PAYMENT_LOCK_TTL,     default=30s"`
	ImplicitClient     bool          `env:"ROLE_IMPLICIT_CLIENT, default=true"`
	RoleWaitTimeout    time.Duration `env:"ROLE_WAIT_TIMEOUT,    default=2s"`
	RoleCacheTTL       time.Duration `env:"ROLE_CACHE_TTL,       default=1m"`
	Currency           string        `env:"CURRENCY,             default=usd"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	if cfg.JWTSecret == "" && !cfg.IsDevelopment() {
		panic("config: JWT_SECRET is required outside development")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	return &cfg
}
