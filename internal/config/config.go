package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the import service
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Platform      PlatformConfig      `yaml:"platform"`
	Redis         RedisConfig         `yaml:"redis"`
	Database      DatabaseConfig      `yaml:"database"`
	Upload        UploadConfig        `yaml:"upload"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// PlatformConfig points at the business platform that owns object
// metadata, configuration persistence and ingestion.
type PlatformConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseMS    int    `yaml:"retry_base_ms"`
	RetryMaxMS     int    `yaml:"retry_max_ms"`
}

// Timeout returns the per-request timeout as a duration
func (c PlatformConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the base and maximum delay between read retries
func (c PlatformConfig) RetryBackoff() (base, maxDelay time.Duration) {
	return time.Duration(c.RetryBaseMS) * time.Millisecond, time.Duration(c.RetryMaxMS) * time.Millisecond
}

// RedisConfig holds the session store connection
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig holds the import job ledger connection
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// UploadConfig controls wizard sessions and chunked submission
type UploadConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	MaxFileSizeMB     int    `yaml:"max_file_size_mb"`
	PrimaryKeyField   string `yaml:"primary_key_field"`
	TimeoutMinutes    int    `yaml:"timeout_minutes"`
}

// SessionTTL returns how long an idle wizard session is kept
func (c UploadConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// MaxFileBytes returns the upload size limit in bytes
func (c UploadConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Timeout bounds a whole background upload
func (c UploadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// ArchiveConfig controls the copy of each raw CSV kept in S3 before
// ingestion starts, and the optional DynamoDB mirror of import jobs.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	Prefix          string `yaml:"prefix"`
	DynamoDBTable   string `yaml:"dynamodb_table"`
	JobTTLDays      int    `yaml:"job_ttl_days"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// NotificationsConfig overrides the user-facing message templates. Keys
// are message names (upload_success, upload_failed, ...), values Liquid
// templates.
type NotificationsConfig struct {
	Templates map[string]string `yaml:"templates"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactEnabled defaults to true when unset
func (c LoggingConfig) RedactEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Platform.TimeoutSeconds == 0 {
		cfg.Platform.TimeoutSeconds = 30
	}
	if cfg.Platform.MaxRetries == 0 {
		cfg.Platform.MaxRetries = 3
	}
	if cfg.Platform.RetryBaseMS == 0 {
		cfg.Platform.RetryBaseMS = 1000
	}
	if cfg.Platform.RetryMaxMS == 0 {
		cfg.Platform.RetryMaxMS = 30000
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "import"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = 200
	}
	if cfg.Upload.SessionTTLMinutes == 0 {
		cfg.Upload.SessionTTLMinutes = 120
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 50
	}
	if cfg.Upload.PrimaryKeyField == "" {
		cfg.Upload.PrimaryKeyField = "Id"
	}
	if cfg.Upload.TimeoutMinutes == 0 {
		cfg.Upload.TimeoutMinutes = 60
	}
	if cfg.Archive.S3Region == "" {
		cfg.Archive.S3Region = "us-west-2"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "imports/"
	}
	if cfg.Archive.JobTTLDays == 0 {
		cfg.Archive.JobTTLDays = 90
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if baseURL := os.Getenv("PLATFORM_BASE_URL"); baseURL != "" {
		cfg.Platform.BaseURL = baseURL
	}
	if token := os.Getenv("PLATFORM_TOKEN"); token != "" {
		cfg.Platform.Token = token
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if bucket := os.Getenv("ARCHIVE_S3_BUCKET"); bucket != "" {
		cfg.Archive.S3Bucket = bucket
		cfg.Archive.Enabled = true
	}
	if table := os.Getenv("ARCHIVE_DYNAMODB_TABLE"); table != "" {
		cfg.Archive.DynamoDBTable = table
	}
	if region := os.Getenv("ARCHIVE_S3_REGION"); region != "" {
		cfg.Archive.S3Region = region
	}
	if chunk := os.Getenv("UPLOAD_CHUNK_SIZE"); chunk != "" {
		if n, err := strconv.Atoi(chunk); err == nil && n > 0 {
			cfg.Upload.ChunkSize = n
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
