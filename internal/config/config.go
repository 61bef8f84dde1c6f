package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Auth     AuthConfig
	TTS      TTSConfig
	Quota    QuotaConfig
	Usage    UsageConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port             int
	Host             string
	BasePath         string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
	Production       bool
	EnableTestRoutes bool
	LoginRPS         int
	LoginBurst       int
}

// DatabaseConfig holds database configuration.
// AdminUser/AdminPassword are the credentials of the privileged pool used for
// admin operations; they default to User/Password.
type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	AdminUser     string
	AdminPassword string
	DBName        string
	SSLMode       string
	MaxConns      int
	MinConns      int
}

// ForAdmin returns a copy of the configuration using the admin credentials
func (c DatabaseConfig) ForAdmin() DatabaseConfig {
	admin := c
	if c.AdminUser != "" {
		admin.User = c.AdminUser
		admin.Password = c.AdminPassword
	}
	return admin
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

// StorageConfig holds object storage configuration for the audio archive
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration for usage events
type QueueConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	Vhost      string
	Exchange   string
	AuditQueue string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	SecureCookies bool
}

// TTSConfig holds upstream synthesis service configuration
type TTSConfig struct {
	BaseURL        string
	SynthesizePath string
	Timeout        time.Duration
}

// QuotaConfig holds quota ledger configuration
type QuotaConfig struct {
	DefaultLimit int
	Policy       string // soft, hard
}

// UsageConfig holds usage logger configuration
type UsageConfig struct {
	QueueSize int
	Workers   int
}

// CORSConfig holds the origin allow-list
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("invalid config: auth.jwtSecret is required")
	}
	if c.TTS.BaseURL == "" {
		return fmt.Errorf("invalid config: tts.baseURL is required")
	}
	switch c.Quota.Policy {
	case "soft", "hard":
	default:
		return fmt.Errorf("invalid config: unknown quota.policy %q", c.Quota.Policy)
	}
	if c.Quota.DefaultLimit < 0 {
		return fmt.Errorf("invalid config: quota.defaultLimit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.basePath", "/api/v1")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "90s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.production", false)
	v.SetDefault("server.enableTestRoutes", false)
	v.SetDefault("server.loginRPS", 5)
	v.SetDefault("server.loginBurst", 10)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ttsgate_app")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.dbname", "ttsgate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", "1h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "tts-audio")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.exchange", "tts_usage")
	v.SetDefault("queue.auditQueue", "tts_usage_audit")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "168h")
	v.SetDefault("auth.secureCookies", false)

	// TTS defaults
	v.SetDefault("tts.baseURL", "http://localhost:5002")
	v.SetDefault("tts.synthesizePath", "/synthesize")
	v.SetDefault("tts.timeout", "60s")

	// Quota defaults
	v.SetDefault("quota.defaultLimit", 20)
	v.SetDefault("quota.policy", "soft")

	// Usage logger defaults
	v.SetDefault("usage.queueSize", 1024)
	v.SetDefault("usage.workers", 2)

	v.SetDefault("cors.allowedOrigins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics and tracing defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "ttsgate")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}
