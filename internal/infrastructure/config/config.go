package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Ledger      LedgerConfig
	Reservation ReservationConfig
	Sweep       SweepConfig
	Alert       AlertConfig
	Sync        SyncConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// Without Redis the alert suppression window is per process and every replica sweeps.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// KafkaConfig holds the event transport settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	QueueSize    int // events buffered before publishing drops
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
	MetricsEnabled  bool
}

// LedgerConfig holds stock ledger settings
type LedgerConfig struct {
	MaxAttempts    int           // optimistic concurrency attempts per write
	RetryBaseDelay time.Duration // first pause before a conflict retry, jittered and doubled
}

// ReservationConfig holds reservation settings
type ReservationConfig struct {
	DefaultTTL time.Duration
}

// SweepConfig holds the reservation expiry sweep settings
type SweepConfig struct {
	Enabled            bool
	Interval           time.Duration
	BatchSize          int
	Concurrency        int
	LockTTL            time.Duration // distributed lock lease, Redis only
	TransferRetryAfter time.Duration // age before a pending transfer is retried, 0 disables
	TransferMaxAge     time.Duration // age at which a pending transfer is cancelled instead of retried
}

// AlertConfig holds low stock alert settings
type AlertConfig struct {
	LowThreshold      int
	CriticalThreshold int
	MinInterval       time.Duration // repeats of the same alert are suppressed within this window
}

// SyncConfig holds cross-location sync settings
type SyncConfig struct {
	DefaultFloor int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOCK_ prefix (e.g., STOCK_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      v.GetStringSlice("kafka.brokers"),
			Topic:        v.GetString("kafka.topic"),
			ClientID:     v.GetString("kafka.client_id"),
			BatchTimeout: v.GetDuration("kafka.batch_timeout"),
			QueueSize:    v.GetInt("kafka.queue_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			MetricsEnabled:  !v.IsSet("http.metrics_enabled") || v.GetBool("http.metrics_enabled"),
		},
		Ledger: LedgerConfig{
			MaxAttempts:    v.GetInt("ledger.max_attempts"),
			RetryBaseDelay: v.GetDuration("ledger.retry_base_delay"),
		},
		Reservation: ReservationConfig{
			DefaultTTL: v.GetDuration("reservation.default_ttl"),
		},
		Sweep: SweepConfig{
			Enabled:            !v.IsSet("sweep.enabled") || v.GetBool("sweep.enabled"),
			Interval:           v.GetDuration("sweep.interval"),
			BatchSize:          v.GetInt("sweep.batch_size"),
			Concurrency:        v.GetInt("sweep.concurrency"),
			LockTTL:            v.GetDuration("sweep.lock_ttl"),
			TransferRetryAfter: v.GetDuration("sweep.transfer_retry_after"),
			TransferMaxAge:     v.GetDuration("sweep.transfer_max_age"),
		},
		Alert: AlertConfig{
			LowThreshold:      v.GetInt("alert.low_threshold"),
			CriticalThreshold: v.GetInt("alert.critical_threshold"),
			MinInterval:       v.GetDuration("alert.min_interval"),
		},
		Sync: SyncConfig{
			DefaultFloor: v.GetInt("sync.default_floor"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "stocksync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "stocksync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "inventory-events"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "stocksync"
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Kafka.QueueSize == 0 {
		cfg.Kafka.QueueSize = 1024
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 4 << 20 // 4MB
	}
	if cfg.Ledger.MaxAttempts == 0 {
		cfg.Ledger.MaxAttempts = 3
	}
	if cfg.Ledger.RetryBaseDelay == 0 {
		cfg.Ledger.RetryBaseDelay = 5 * time.Millisecond
	}
	if cfg.Reservation.DefaultTTL == 0 {
		cfg.Reservation.DefaultTTL = 15 * time.Minute
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = time.Minute
	}
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = 500
	}
	if cfg.Sweep.Concurrency == 0 {
		cfg.Sweep.Concurrency = 4
	}
	if cfg.Sweep.LockTTL == 0 {
		cfg.Sweep.LockTTL = 50 * time.Second
	}
	if cfg.Sweep.TransferMaxAge == 0 {
		cfg.Sweep.TransferMaxAge = time.Hour
	}
	if cfg.Alert.LowThreshold == 0 {
		cfg.Alert.LowThreshold = 10
	}
	if cfg.Alert.CriticalThreshold == 0 {
		cfg.Alert.CriticalThreshold = 3
	}
	if cfg.Alert.MinInterval == 0 {
		cfg.Alert.MinInterval = 15 * time.Minute
	}
	if cfg.Sync.DefaultFloor == 0 {
		cfg.Sync.DefaultFloor = 5
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "stocksync"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1")
	}
	if c.Alert.CriticalThreshold < 0 || c.Alert.LowThreshold < 0 {
		return fmt.Errorf("alert thresholds cannot be negative")
	}
	if c.Alert.CriticalThreshold > c.Alert.LowThreshold {
		return fmt.Errorf("alert.critical_threshold (%d) cannot exceed alert.low_threshold (%d)",
			c.Alert.CriticalThreshold, c.Alert.LowThreshold)
	}
	if c.Sync.DefaultFloor < 0 {
		return fmt.Errorf("sync.default_floor cannot be negative")
	}
	if c.Sweep.Enabled && c.Sweep.Interval < time.Second {
		return fmt.Errorf("sweep.interval must be at least 1s, got %s", c.Sweep.Interval)
	}
	if c.Sweep.Concurrency < 1 {
		return fmt.Errorf("sweep.concurrency must be positive")
	}
	if c.Sweep.TransferRetryAfter > 0 && c.Sweep.TransferMaxAge <= c.Sweep.TransferRetryAfter {
		return fmt.Errorf("sweep.transfer_max_age (%s) must exceed sweep.transfer_retry_after (%s)",
			c.Sweep.TransferMaxAge, c.Sweep.TransferRetryAfter)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
