// Package config provides environment-based configuration management
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreFile    = "file"
	StoreMariaDB = "mariadb"
	StoreSQLite  = "sqlite"
)

// AppConfig holds application-level configuration
type AppConfig struct {
	Port             int
	LogLevel         string
	LogFormat        string
	DefaultProjectID string
	ProjectsFile     string
	CallTimeout      time.Duration
	AdminToken       string
}

// StoreConfig selects and configures persistence
type StoreConfig struct {
	Driver     string
	DataDir    string
	SQLitePath string
}

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Addr string // host:port, empty disables chat state
}

// AvitoConfig holds the marketplace account and OAuth client settings
type AvitoConfig struct {
	APIBaseURL    string
	AuthBaseURL   string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	UserID        string
	WebhookSecret string
}

// SpeechKitConfig holds transcription credentials. Checked lazily per call.
type SpeechKitConfig struct {
	APIKey   string
	FolderID string
}

// CompletionConfig holds the OpenAI-compatible completion endpoint settings
type CompletionConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// PollerConfig controls the unread-chat responder
type PollerConfig struct {
	Enabled         bool
	Interval        time.Duration
	Batch           int
	MessagesPerChat int
}

// WatchdogConfig controls the audit log purge
type WatchdogConfig struct {
	Interval      time.Duration
	RetentionDays int
	DiskThreshold float64
}

// Config aggregates all configuration sections
type Config struct {
	App        AppConfig
	Store      StoreConfig
	DB         DBConfig
	Redis      RedisConfig
	Avito      AvitoConfig
	SpeechKit  SpeechKitConfig
	Completion CompletionConfig
	Poller     PollerConfig
	Watchdog   WatchdogConfig
}

// LoadConfig reads .env files (without overriding the environment) and then
// the environment. Returns an error if critical variables are missing.
func LoadConfig() (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{}

	// Application
	cfg.App.Port = getEnvAsInt("APP_PORT", 8000)
	cfg.App.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.App.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	cfg.App.DefaultProjectID = getEnv("DEFAULT_PROJECT_ID", "default")
	cfg.App.ProjectsFile = getEnv("PROJECTS_FILE", "")
	cfg.App.CallTimeout = getEnvAsDuration("CALL_TIMEOUT", 20*time.Second)
	cfg.App.AdminToken = getEnv("ADMIN_TOKEN", "")

	// Storage
	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", StoreFile))
	cfg.Store.DataDir = getEnv("DATA_DIR", "data")
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", "data/avito-assist.db")

	switch cfg.Store.Driver {
	case StoreFile, StoreMariaDB, StoreSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be one of file, mariadb, sqlite (got %q)", cfg.Store.Driver)
	}

	// Database
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "avito_assist")

	if cfg.Store.Driver == StoreMariaDB && cfg.DB.Password == "" {
		return nil, fmt.Errorf("DB_PASS environment variable is required for STORE_DRIVER=mariadb")
	}

	// Redis
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")

	// Avito
	cfg.Avito.APIBaseURL = getEnv("AVITO_API_BASE_URL", "https://api.avito.ru")
	cfg.Avito.AuthBaseURL = getEnv("AVITO_AUTH_BASE_URL", "https://api.avito.ru")
	cfg.Avito.ClientID = getEnv("AVITO_CLIENT_ID", "")
	cfg.Avito.ClientSecret = getEnv("AVITO_CLIENT_SECRET", "")
	cfg.Avito.RedirectURI = getEnv("AVITO_REDIRECT_URI", "")
	cfg.Avito.UserID = getEnv("AVITO_USER_ID", "")
	cfg.Avito.WebhookSecret = getEnv("WEBHOOK_SECRET", "")

	// Transcription
	cfg.SpeechKit.APIKey = getEnv("YANDEX_SPEECHKIT_API_KEY", "")
	cfg.SpeechKit.FolderID = getEnv("YANDEX_SPEECHKIT_FOLDER_ID", "")

	// Completion
	cfg.Completion.APIKey = getEnv("PERPLEXITY_API_KEY", "")
	cfg.Completion.Model = getEnv("PERPLEXITY_MODEL", "sonar")
	cfg.Completion.BaseURL = getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai")

	if cfg.Completion.APIKey == "" {
		return nil, fmt.Errorf("PERPLEXITY_API_KEY environment variable is required")
	}

	// Messenger paths are built from the account id
	if cfg.Avito.UserID == "" {
		return nil, fmt.Errorf("AVITO_USER_ID environment variable is required")
	}

	// Poller
	cfg.Poller.Enabled = getEnvAsBool("POLLER_ENABLED", false)
	cfg.Poller.Interval = getEnvAsDuration("POLL_INTERVAL", 30*time.Second)
	cfg.Poller.Batch = getEnvAsInt("POLL_BATCH", 3)
	cfg.Poller.MessagesPerChat = getEnvAsInt("POLL_MESSAGES", 5)

	// Watchdog
	cfg.Watchdog.Interval = getEnvAsDuration("WATCHDOG_INTERVAL", 10*time.Minute)
	cfg.Watchdog.RetentionDays = getEnvAsInt("RETENTION_DAYS", 7)
	cfg.Watchdog.DiskThreshold = getEnvAsFloat("DISK_THRESHOLD", 70)

	return cfg, nil
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Retention converts the retention days into a duration
func (c *WatchdogConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBool accepts the strconv.ParseBool spellings
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
