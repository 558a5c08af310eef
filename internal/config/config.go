package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"spartispese/internal/classifier"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	SeedDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Classifier
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	ClassifierTemperature float64
	ClassifierMaxTokens   int
	ClassifierTimeout     time.Duration
	ClassifierCacheSize   int
	ClassifierCacheTTL    time.Duration

	// Feature flags
	FeatureCategoryExtract bool

	// Google Sheets ledger export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	WorkerMetricsAddr    string
	WorkerMessageTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"memory", "sqlite"}

var validLogFormats = []string{"text", "json", "tint"}

func Load() *Config {
	defaults := classifier.DefaultConfig()

	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spartispese.db"),
		SeedDir:      getEnv("SEED_DIR", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spartispese"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_export"),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", defaults.Model),
		ClassifierTemperature: getEnvFloat("CLASSIFIER_TEMPERATURE", float64(defaults.Temperature)),
		ClassifierMaxTokens:   getEnvInt("CLASSIFIER_MAX_TOKENS", defaults.MaxTokens),
		ClassifierTimeout:     getEnvDuration("CLASSIFIER_TIMEOUT", defaults.Timeout),
		ClassifierCacheSize:   getEnvInt("CLASSIFIER_CACHE_SIZE", defaults.CacheSize),
		ClassifierCacheTTL:    getEnvDuration("CLASSIFIER_CACHE_TTL", defaults.CacheTTL),

		FeatureCategoryExtract: getEnvBool("FEATURE_CATEGORY_EXTRACT", true),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		WorkerMetricsAddr:    getEnv("WORKER_METRICS_ADDR", ":9091"),
		WorkerMessageTimeout: getEnvDuration("WORKER_MESSAGE_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// ClassifierConfig returns the classifier settings.
func (c *Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		Model:       c.OpenAIModel,
		Temperature: float32(c.ClassifierTemperature),
		MaxTokens:   c.ClassifierMaxTokens,
		Timeout:     c.ClassifierTimeout,
		CacheSize:   c.ClassifierCacheSize,
		CacheTTL:    c.ClassifierCacheTTL,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// AMQP is optional; when set it needs a valid URL, exchange and queue.
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.OpenAIBaseURL != "" {
		if u, err := url.Parse(c.OpenAIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OpenAI base URL '%s'", c.OpenAIBaseURL))
		}
	}
	if c.ClassifierTemperature < 0 || c.ClassifierTemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid classifier temperature %v: must be between 0 and 2", c.ClassifierTemperature))
	}
	if c.ClassifierMaxTokens < 1 || c.ClassifierMaxTokens > 16 {
		errors = append(errors, fmt.Sprintf("invalid classifier max tokens %d: must be between 1 and 16", c.ClassifierMaxTokens))
	}
	if c.ClassifierTimeout < 100*time.Millisecond || c.ClassifierTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid classifier timeout %v: must be between 100ms and 2m", c.ClassifierTimeout))
	}
	if c.ClassifierCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid classifier cache size %d: must not be negative", c.ClassifierCacheSize))
	}
	if c.ClassifierCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid classifier cache ttl %v: must not be negative", c.ClassifierCacheTTL))
	}

	// Service account is only needed when the ledger export is on.
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.WorkerMessageTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid worker message timeout %v: must not be negative", c.WorkerMessageTimeout))
	}

	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
