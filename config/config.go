package config

import (
	"fmt"
	"strings"
	"time"

	"ordercore/pkg/money"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config Application Configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig Application Configuration
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// ServerConfig Server Configuration
type ServerConfig struct {
	Port            string          `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig Rate Limiting Configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Rate           float64       `mapstructure:"rate"`  // Requests per second
	Burst          int           `mapstructure:"burst"` // Burst capacity
	IdleTTL        time.Duration `mapstructure:"idle_ttl"`
	ExemptPrefixes []string      `mapstructure:"exempt_prefixes"` // 网关回调、探活不限流
}

// DatabaseConfig Database Configuration
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // mysql, sqlite, mongo, memory
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SeedDemo        bool          `mapstructure:"seed_demo"` // upsert demo variants at startup, never in production
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// RetryConfig Retry configuration for transactional units of work
type RetryConfig struct {
	Enabled                       bool          `mapstructure:"enabled"`
	MaxAttempts                   int           `mapstructure:"max_attempts"`
	InitialDelay                  time.Duration `mapstructure:"initial_delay"`
	MaxDelay                      time.Duration `mapstructure:"max_delay"`
	BackoffFactor                 float64       `mapstructure:"backoff_factor"`
	JitterEnabled                 bool          `mapstructure:"jitter_enabled"`
	RetryOnConcurrentModification bool          `mapstructure:"retry_on_concurrent_modification"`
	RetryOnDeadlock               bool          `mapstructure:"retry_on_deadlock"`
	RetryOnLockTimeout            bool          `mapstructure:"retry_on_lock_timeout"`
}

// MongoConfig MongoDB connection (replica set required for transactions)
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig Redis cache used as idempotency fast path
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// KafkaConfig Outbox relay target
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"` // comma separated, empty disables kafka
	Topic   string `mapstructure:"topic"`
}

// LogConfig Log Configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, console
	Output     string `mapstructure:"output"` // stdout, file
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// CORSConfig CORS Configuration
type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// AuthConfig Bearer token verification. Tokens are issued by the auth service.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// CheckoutConfig Pricing and checkout policy. Fee amounts are major units ("70.00").
type CheckoutConfig struct {
	OrderPrefix           string        `mapstructure:"order_prefix"`
	Currency              string        `mapstructure:"currency"`
	Timezone              string        `mapstructure:"timezone"`
	DeliveryFee           string        `mapstructure:"delivery_fee"`
	FreeDeliveryThreshold string        `mapstructure:"free_delivery_threshold"`
	CODFee                string        `mapstructure:"cod_fee"`
	IdempotencyRetention  time.Duration `mapstructure:"idempotency_retention"`
	GatewayTimeout        time.Duration `mapstructure:"gateway_timeout"`
}

// Fees Checkout fees resolved to minor units
type Fees struct {
	Delivery              int64
	FreeDeliveryThreshold int64
	COD                   int64
}

// Fees converts the configured major-unit fees once.
func (c CheckoutConfig) Fees() (Fees, error) {
	delivery, err := money.ParseMinor(c.DeliveryFee)
	if err != nil {
		return Fees{}, fmt.Errorf("checkout.delivery_fee: %w", err)
	}
	threshold, err := money.ParseMinor(c.FreeDeliveryThreshold)
	if err != nil {
		return Fees{}, fmt.Errorf("checkout.free_delivery_threshold: %w", err)
	}
	cod, err := money.ParseMinor(c.CODFee)
	if err != nil {
		return Fees{}, fmt.Errorf("checkout.cod_fee: %w", err)
	}
	return Fees{Delivery: delivery, FreeDeliveryThreshold: threshold, COD: cod}, nil
}

// Location returns the timezone used for order number periods.
func (c CheckoutConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PaymentConfig Provider credentials
type PaymentConfig struct {
	EnabledMethods []string       `mapstructure:"enabled_methods"`
	PublicBaseURL  string         `mapstructure:"public_base_url"`
	Razorpay       RazorpayConfig `mapstructure:"razorpay"`
	PhonePe        PhonePeConfig  `mapstructure:"phonepe"`
}

// RazorpayConfig card/UPI aggregator credentials
type RazorpayConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// PhonePeConfig pay-page gateway credentials
type PhonePeConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	MerchantID  string `mapstructure:"merchant_id"`
	SaltKey     string `mapstructure:"salt_key"`
	SaltIndex   string `mapstructure:"salt_index"`
	RedirectURL string `mapstructure:"redirect_url"`
	CallbackURL string `mapstructure:"callback_url"`
}

// WorkerConfig Outbox relay
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// SweeperConfig Reservation expiry sweeper
type SweeperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Embedded  bool          `mapstructure:"embedded"` // also run inside the HTTP process
	Interval  time.Duration `mapstructure:"interval"`
	TTL       time.Duration `mapstructure:"ttl"`
	BatchSize int           `mapstructure:"batch_size"`
}

// MetricsConfig Prometheus exposition
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment Whether it's development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction Whether it's production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load Load Configuration
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ORDERCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch config.Database.Type {
	case "mysql", "sqlite", "mongo", "memory":
	default:
		return nil, fmt.Errorf("unsupported database.type %q", config.Database.Type)
	}
	if _, err := config.Checkout.Fees(); err != nil {
		return nil, err
	}
	if config.IsProduction() && config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required in production")
	}

	return &config, nil
}

// setDefaults Set default configuration
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "ordercore")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	// Server
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.rate", 100)
	v.SetDefault("server.rate_limit.burst", 200)
	v.SetDefault("server.rate_limit.idle_ttl", "10m")
	v.SetDefault("server.rate_limit.exempt_prefixes", []string{"/api/v1/webhooks/", "/api/v1/health", "/metrics"})

	// Database
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "ordercore")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.seed_demo", false)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("database.retry.enabled", true)
	v.SetDefault("database.retry.max_attempts", 3)
	v.SetDefault("database.retry.initial_delay", "100ms")
	v.SetDefault("database.retry.max_delay", "2s")
	v.SetDefault("database.retry.backoff_factor", 2.0)
	v.SetDefault("database.retry.jitter_enabled", true)
	v.SetDefault("database.retry.retry_on_concurrent_modification", true)
	v.SetDefault("database.retry.retry_on_deadlock", true)
	v.SetDefault("database.retry.retry_on_lock_timeout", true)

	// Mongo
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "ordercore")
	v.SetDefault("mongo.connect_timeout", "10s")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ordercore")

	// Kafka
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "order-events")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/app.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)

	// CORS
	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allow_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "Idempotency-Key", "X-User-ID", "X-Admin-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	// Auth
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	// Checkout
	v.SetDefault("checkout.order_prefix", "ORD")
	v.SetDefault("checkout.currency", "INR")
	v.SetDefault("checkout.timezone", "UTC")
	v.SetDefault("checkout.delivery_fee", "70.00")
	v.SetDefault("checkout.free_delivery_threshold", "999.00")
	v.SetDefault("checkout.cod_fee", "40.00")
	v.SetDefault("checkout.idempotency_retention", "168h")
	v.SetDefault("checkout.gateway_timeout", "15s")

	// Payment
	v.SetDefault("payment.enabled_methods", []string{"razorpay", "phonepe", "cod"})
	v.SetDefault("payment.public_base_url", "http://localhost:8080")
	v.SetDefault("payment.razorpay.base_url", "https://api.razorpay.com")
	v.SetDefault("payment.razorpay.key_id", "rzp_placeholder")
	v.SetDefault("payment.razorpay.key_secret", "placeholder")
	v.SetDefault("payment.razorpay.webhook_secret", "placeholder")
	v.SetDefault("payment.phonepe.base_url", "https://api-preprod.phonepe.com/apis/pg-sandbox")
	v.SetDefault("payment.phonepe.merchant_id", "PLACEHOLDER")
	v.SetDefault("payment.phonepe.salt_key", "placeholder")
	v.SetDefault("payment.phonepe.salt_index", "1")
	v.SetDefault("payment.phonepe.redirect_url", "http://localhost:3000/checkout/complete")
	v.SetDefault("payment.phonepe.callback_url", "http://localhost:8080/api/v1/webhooks/phonepe")

	// Worker
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", "2s")
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.max_retries", 5)

	// Sweeper
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.embedded", false)
	v.SetDefault("sweeper.interval", "60s")
	v.SetDefault("sweeper.ttl", "15m")
	v.SetDefault("sweeper.batch_size", 200)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
