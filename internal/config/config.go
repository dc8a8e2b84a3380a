package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port          string
	Env           string
	JWTSecret     string
	JWTTTL        time.Duration
	PublicBaseURL string
	CORSHosts     []string

	DB       DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Worker   WorkerConfig
	Exchange ExchangeConfig
	RabbitMQ RabbitMQConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// S3Config contains object storage settings for export payloads.
// Any S3-compatible backend works (AWS, MinIO).
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignTTL      time.Duration
}

// Enabled reports whether enough settings are present to talk to S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// WorkerConfig contains export worker pool settings.
type WorkerConfig struct {
	ExportWorkers      int
	ExportPollInterval time.Duration
	ExportStaleAfter   time.Duration
	StaleCheckInterval time.Duration
	ExportWaitTimeout  time.Duration
}

// ExchangeConfig contains interchange settings: offer package owner data,
// import limits and local payload storage.
type ExchangeConfig struct {
	OwnerID         string
	OwnerName       string
	OwnerLegalName  string
	OwnerINN        string
	XMLOrderItems   bool
	MaxImportBatch  int
	PayloadDir      string
	FileLinkSecret  string
	FileLinkTTL     time.Duration
	RecentJobsLimit int
}

// RabbitMQConfig contains the optional job event broker settings.
// Publishing is disabled when URL is empty.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.PublicBaseURL = strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")
	cfg.CORSHosts = getEnvList("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000")

	// Database
	cfg.DB = DatabaseConfig{
		Host:         getEnv("DB_HOST", ""),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", ""),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", ""),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// S3
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "us-east-1"),
		Bucket:          getEnv("S3_BUCKET", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
	}

	// Exchange
	cfg.Exchange = ExchangeConfig{
		OwnerID:         getEnv("EXCHANGE_OWNER_ID", "spares-store"),
		OwnerName:       getEnv("EXCHANGE_OWNER_NAME", "Spares Store"),
		OwnerLegalName:  getEnv("EXCHANGE_OWNER_LEGAL_NAME", "Spares Store LLC"),
		OwnerINN:        getEnv("EXCHANGE_OWNER_INN", ""),
		XMLOrderItems:   getEnvBool("EXCHANGE_XML_ORDER_ITEMS", false),
		MaxImportBatch:  getEnvInt("EXCHANGE_MAX_IMPORT_BATCH", 5000),
		PayloadDir:      getEnv("EXCHANGE_PAYLOAD_DIR", "data/exports"),
		FileLinkSecret:  getEnv("EXCHANGE_FILE_LINK_SECRET", ""),
		RecentJobsLimit: getEnvInt("EXCHANGE_RECENT_JOBS_LIMIT", 20),
	}

	// RabbitMQ
	cfg.RabbitMQ = RabbitMQConfig{
		URL:   getEnv("RABBITMQ_URL", ""),
		Queue: getEnv("RABBITMQ_EXPORT_QUEUE", "exchange.export.finished"),
	}

	// Durations
	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.S3.PresignTTL, err = parseDurationEnv("S3_PRESIGN_TTL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGN_TTL: %w", err)
	}
	if cfg.Exchange.FileLinkTTL, err = parseDurationEnv("EXCHANGE_FILE_LINK_TTL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid EXCHANGE_FILE_LINK_TTL: %w", err)
	}
	cfg.Worker.ExportWorkers = getEnvInt("EXPORT_WORKERS", 4)
	if cfg.Worker.ExportPollInterval, err = parseDurationEnv("EXPORT_POLL_INTERVAL", "5s"); err != nil {
		return nil, fmt.Errorf("invalid EXPORT_POLL_INTERVAL: %w", err)
	}
	if cfg.Worker.ExportStaleAfter, err = parseDurationEnv("EXPORT_STALE_AFTER", "15m"); err != nil {
		return nil, fmt.Errorf("invalid EXPORT_STALE_AFTER: %w", err)
	}
	if cfg.Worker.StaleCheckInterval, err = parseDurationEnv("STALE_CHECK_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid STALE_CHECK_INTERVAL: %w", err)
	}
	if cfg.Worker.ExportWaitTimeout, err = parseDurationEnv("EXPORT_WAIT_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid EXPORT_WAIT_TIMEOUT: %w", err)
	}

	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if cfg.DB.MaxOpenConns <= 0 {
		return nil, errors.New("DB_MAX_OPEN_CONNS must be positive: the store pool is always bounded")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}
	if cfg.Worker.ExportWorkers <= 0 {
		return nil, errors.New("EXPORT_WORKERS must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"EXPORT_POLL_INTERVAL": cfg.Worker.ExportPollInterval,
		"EXPORT_WAIT_TIMEOUT":  cfg.Worker.ExportWaitTimeout,
		"STALE_CHECK_INTERVAL": cfg.Worker.StaleCheckInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be greater than zero", name)
		}
	}
	if cfg.Exchange.MaxImportBatch <= 0 {
		return nil, errors.New("EXCHANGE_MAX_IMPORT_BATCH must be positive")
	}
	if cfg.Exchange.FileLinkSecret == "" {
		// Local download links fall back to the JWT secret.
		cfg.Exchange.FileLinkSecret = cfg.JWTSecret
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
