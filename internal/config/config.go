package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/nthlam/WEB-NOVA-SCI/pkg/config"
)

// Config holds all configuration for the ordering service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ORDERS_HTTP_PORT" envDefault:"8003"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"webnova"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"webnova_secret"`
	PostgresDB   string `env:"ORDERS_DB_NAME" envDefault:"webnova"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (settlement idempotency store)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	SettlementGroupID     string   `env:"SETTLEMENT_GROUP_ID" envDefault:"webnova-settlement"`
	IdempotencyTTLHours   int      `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`
	ReconcileIntervalMins int      `env:"RECONCILE_INTERVAL_MINUTES" envDefault:"5"`
	ReconcileStaleMins    int      `env:"RECONCILE_STALE_MINUTES" envDefault:"10"`
	ReconcileBatchSize    int      `env:"RECONCILE_BATCH_SIZE" envDefault:"100"`

	// Payment webhook
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET,required"`

	// Payment gateway
	GatewayBaseURL        string `env:"PAYMENT_GATEWAY_URL" envDefault:"https://api.vietqr.io"`
	GatewayAccountNo      string `env:"PAYMENT_GATEWAY_ACCOUNT_NO" envDefault:""`
	GatewayAccountName    string `env:"PAYMENT_GATEWAY_ACCOUNT_NAME" envDefault:""`
	GatewayAcquirerID     string `env:"PAYMENT_GATEWAY_ACQUIRER_ID" envDefault:""`
	GatewayTemplate       string `env:"PAYMENT_GATEWAY_TEMPLATE" envDefault:"compact"`
	GatewayTimeoutSeconds int    `env:"PAYMENT_GATEWAY_TIMEOUT_SECONDS" envDefault:"10"`

	// Circuit breaker settings for the gateway call
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load orders config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if c.GatewayBaseURL == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_URL is required")
	}
	if _, err := url.ParseRequestURI(c.GatewayBaseURL); err != nil {
		return fmt.Errorf("invalid PAYMENT_GATEWAY_URL %q: %w", c.GatewayBaseURL, err)
	}
	if c.GatewayTimeoutSeconds < 1 {
		return fmt.Errorf("PAYMENT_GATEWAY_TIMEOUT_SECONDS must be positive, got %d", c.GatewayTimeoutSeconds)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.ReconcileStaleMins < 1 {
		return fmt.Errorf("RECONCILE_STALE_MINUTES must be positive, got %d", c.ReconcileStaleMins)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
