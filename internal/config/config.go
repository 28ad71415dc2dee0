package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	CORS       CORSConfig
	Log        LogConfig
	Ingest     IngestConfig
	Dedup      DedupConfig
	Enrichment EnrichmentConfig
	Archive    ArchiveConfig
	Security   SecurityConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig selects log level and output format (json or console)
type LogConfig struct {
	Level  string
	Format string
}

// IngestConfig controls file ingestion
type IngestConfig struct {
	InboxDir       string
	FailedDir      string
	Workers        int
	MaxUploadBytes int64
	UserID         string
	// Schedule is a cron spec for the inbox scan; empty disables it
	Schedule string
}

// DedupConfig controls the deduplication engine
type DedupConfig struct {
	Mode     string
	Schedule string
}

// EnrichmentConfig controls OpenFIGI classification
type EnrichmentConfig struct {
	Enabled           bool
	BaseURL           string
	APIKey            string
	BatchSize         int
	BatchDelay        time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	CacheTTL          time.Duration
	Schedule          string
}

// ArchiveConfig selects where ingested source files are kept
type ArchiveConfig struct {
	Backend     string
	Dir         string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// SecurityConfig holds secrets
type SecurityConfig struct {
	APIKey string
	// SealingKeys are fernet keys; the first seals, all open
	SealingKeys string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5002"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/custody.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost",
			}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Ingest: IngestConfig{
			InboxDir:       getEnv("INBOX_DIR", "./data/inbox"),
			FailedDir:      getEnv("FAILED_DIR", ""),
			Workers:        getEnvAsInt("INGEST_WORKERS", 4),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 32<<20)),
			UserID:         getEnv("INGEST_USER_ID", ""),
			Schedule:       getEnv("INBOX_SCHEDULE", "*/5 * * * *"),
		},
		Dedup: DedupConfig{
			Mode:     getEnv("DEDUP_MODE", "delete"),
			Schedule: getEnv("DEDUP_SCHEDULE", "30 3 * * *"),
		},
		Enrichment: EnrichmentConfig{
			Enabled:           getEnvAsBool("ENRICHMENT_ENABLED", false),
			BaseURL:           getEnv("OPENFIGI_BASE_URL", "https://api.openfigi.com/v3"),
			APIKey:            getEnv("OPENFIGI_API_KEY", ""),
			BatchSize:         getEnvAsInt("ENRICHMENT_BATCH_SIZE", 10),
			BatchDelay:        getEnvAsDuration("ENRICHMENT_BATCH_DELAY", 2*time.Second),
			RequestsPerSecond: getEnvAsFloat("OPENFIGI_REQUESTS_PER_SECOND", 0.4),
			MaxAttempts:       getEnvAsInt("OPENFIGI_MAX_ATTEMPTS", 5),
			CacheTTL:          getEnvAsDuration("ENRICHMENT_CACHE_TTL", 24*time.Hour),
			Schedule:          getEnv("ENRICHMENT_SCHEDULE", "0 4 * * *"),
		},
		Archive: ArchiveConfig{
			Backend:     getEnv("ARCHIVE_BACKEND", "local"),
			Dir:         getEnv("ARCHIVE_DIR", "./data/archive"),
			S3Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
			S3Prefix:    getEnv("ARCHIVE_S3_PREFIX", "statements"),
			S3Region:    getEnv("ARCHIVE_S3_REGION", "eu-west-1"),
			S3Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
			S3AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		},
		Security: SecurityConfig{
			APIKey:      getEnv("API_KEY", ""),
			SealingKeys: getEnv("PAYLOAD_SEALING_KEYS", ""),
		},
	}

	if config.Ingest.FailedDir == "" {
		config.Ingest.FailedDir = config.Ingest.InboxDir + "/failed"
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Dedup.Mode) {
	case "delete", "flag":
	default:
		return fmt.Errorf("DEDUP_MODE must be delete or flag, got %q", c.Dedup.Mode)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.Ingest.Workers)
	}
	if strings.EqualFold(c.Archive.Backend, "s3") && c.Archive.S3Bucket == "" {
		return fmt.Errorf("ARCHIVE_S3_BUCKET is required for the s3 archive backend")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("2").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
