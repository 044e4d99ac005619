package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Payroll   PayrollConfig
	RateTable RateTableConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Email     EmailConfig
	Renderer  RendererConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// DatabaseConfig selects the persistence backend. Driver "memory" keeps
// everything in process and is meant for demos and local runs.
type DatabaseConfig struct {
	Driver   string // postgres | memory
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds the shared secret used to verify bearer tokens.
// Tokens are issued by the identity provider, never by this service.
type JWTConfig struct {
	Secret         string
	AcceptableSkew time.Duration
}

// PayrollConfig controls the run orchestrator
type PayrollConfig struct {
	Workers      int
	AbortOnError bool
	LockBackend  string // memory | redis
	LockTTL      time.Duration
	LockOwner    string
	ExportOnPaid bool
	NotifyOnPaid bool
}

type RateTableConfig struct {
	File           string
	ReloadInterval time.Duration
	UseDatabase    bool
}

// StorageConfig selects the export sink
type StorageConfig struct {
	Type     string // local | s3
	BasePath string
	BaseURL  string
	S3Bucket string
	S3Region string
	S3Prefix string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	PayslipTopic string
}

// EmailConfig holds payslip mail settings. Transport is "ses" or "smtp".
type EmailConfig struct {
	Enabled   bool
	Transport string
	From      string
	FromName  string
	SESRegion string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
}

type RendererConfig struct {
	URL     string
	Timeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, reading configuration from environment")
	}

	config := &Config{}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	jwtSkew, err := time.ParseDuration(getEnv("JWT_ACCEPTABLE_SKEW", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCEPTABLE_SKEW: %w", err)
	}

	config.JWT = JWTConfig{
		Secret:         getEnv("JWT_SECRET_KEY", ""),
		AcceptableSkew: jwtSkew,
	}

	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("PAYROLL_LOCK_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_LOCK_TTL: %w", err)
	}
	hostname, _ := os.Hostname()

	config.Payroll = PayrollConfig{
		Workers:      workers,
		AbortOnError: getEnvBool("PAYROLL_ABORT_ON_ERROR", false),
		LockBackend:  getEnv("PAYROLL_LOCK_BACKEND", "memory"),
		LockTTL:      lockTTL,
		LockOwner:    getEnv("PAYROLL_LOCK_OWNER", hostname),
		ExportOnPaid: getEnvBool("PAYROLL_EXPORT_ON_PAID", true),
		NotifyOnPaid: getEnvBool("PAYROLL_NOTIFY_ON_PAID", true),
	}

	reload, err := time.ParseDuration(getEnv("RATE_TABLE_RELOAD_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_TABLE_RELOAD_INTERVAL: %w", err)
	}

	config.RateTable = RateTableConfig{
		File:           getEnv("RATE_TABLE_FILE", ""),
		ReloadInterval: reload,
		UseDatabase:    getEnvBool("RATE_TABLE_USE_DATABASE", true),
	}

	config.Storage = StorageConfig{
		Type:     getEnv("STORAGE_TYPE", "local"),
		BasePath: getEnv("STORAGE_BASE_PATH", "./exports"),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/exports"),
		S3Bucket: getEnv("STORAGE_S3_BUCKET", ""),
		S3Region: getEnv("STORAGE_S3_REGION", "eu-central-2"),
		S3Prefix: getEnv("STORAGE_S3_PREFIX", ""),
	}

	redisPort, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     redisPort,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	config.Kafka = KafkaConfig{
		Enabled:      getEnvBool("KAFKA_ENABLED", false),
		Brokers:      getEnvSlice("KAFKA_BROKERS"),
		PayslipTopic: getEnv("KAFKA_PAYSLIP_TOPIC", "hr.payroll.payslip.issued.v1"),
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	config.Email = EmailConfig{
		Enabled:   getEnvBool("EMAIL_ENABLED", false),
		Transport: getEnv("EMAIL_TRANSPORT", "smtp"),
		From:      getEnv("EMAIL_FROM", "payroll@example.ch"),
		FromName:  getEnv("EMAIL_FROM_NAME", "Payroll"),
		SESRegion: getEnv("EMAIL_SES_REGION", "eu-central-1"),
		SMTPHost:  getEnv("SMTP_HOST", "localhost"),
		SMTPPort:  smtpPort,
		SMTPUser:  getEnv("SMTP_USERNAME", ""),
		SMTPPass:  getEnv("SMTP_PASSWORD", ""),
	}

	rendererTimeout, err := time.ParseDuration(getEnv("PDF_RENDERER_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_RENDERER_TIMEOUT: %w", err)
	}

	config.Renderer = RendererConfig{
		URL:     getEnv("PDF_RENDERER_URL", ""),
		Timeout: rendererTimeout,
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	config.RateLimit = RateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	switch c.Payroll.LockBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported PAYROLL_LOCK_BACKEND: %s", c.Payroll.LockBackend)
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE: %s", c.Storage.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.Email.Enabled && c.Email.Transport != "ses" && c.Email.Transport != "smtp" {
		return fmt.Errorf("unsupported EMAIL_TRANSPORT: %s", c.Email.Transport)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisAddr returns host:port for the redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
