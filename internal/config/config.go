package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecretKey string
	JWTTTL       time.Duration

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPQueue      string
	AMQPAlertQueue string

	// Budget alerts
	BudgetAlertThreshold float64

	// Mail
	MailServer        string
	MailPort          int
	MailUseTLS        bool
	MailUsername      string
	MailPassword      string
	MailDefaultSender string

	// Google Sheets mirror
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Classifier
	ClassifierWarmUp         bool
	ClassifierCategoriesFile string

	// Reports
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "5050"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
		JWTTTL:       getEnvDuration("JWT_TTL", 24*time.Hour),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "sync_transactions"),
		AMQPAlertQueue: getEnv("AMQP_ALERT_QUEUE", "budget_alerts"),

		BudgetAlertThreshold: getEnvFloat("BUDGET_ALERT_THRESHOLD", 90),

		MailServer:        getEnv("MAIL_SERVER", "smtp.gmail.com"),
		MailPort:          getEnvInt("MAIL_PORT", 587),
		MailUseTLS:        getEnvBool("MAIL_USE_TLS", true),
		MailUsername:      getEnv("MAIL_USERNAME", ""),
		MailPassword:      getEnv("MAIL_PASSWORD", ""),
		MailDefaultSender: getEnv("MAIL_DEFAULT_SENDER", getEnv("MAIL_USERNAME", "")),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		ClassifierWarmUp:         getEnvBool("CLASSIFIER_WARMUP", true),
		ClassifierCategoriesFile: getEnv("CLASSIFIER_CATEGORIES_FILE", ""),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 256),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.MailUsername != "" && c.MailServer != ""
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if len(c.JWTSecretKey) < 16 {
		errors = append(errors, "JWT secret key must be at least 16 characters")
	}
	if c.JWTTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid JWT TTL %v: must be at least 1 minute", c.JWTTTL))
	}

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
		if c.AMQPAlertQueue != "" && c.AMQPAlertQueue == c.AMQPQueue {
			errors = append(errors, "AMQP alert queue must differ from the sync queue")
		}
	}

	if c.BudgetAlertThreshold <= 0 || c.BudgetAlertThreshold > 1000 {
		errors = append(errors, fmt.Sprintf("invalid budget alert threshold %v: must be in (0, 1000]", c.BudgetAlertThreshold))
	}

	if c.MailEnabled() && (c.MailPort < 1 || c.MailPort > 65535) {
		errors = append(errors, fmt.Sprintf("invalid mail port %d", c.MailPort))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
		if (c.GoogleOAuthClientFile == "") != (c.GoogleOAuthTokenFile == "") {
			errors = append(errors, "GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE must be set together")
		}
	}

	if c.ClassifierCategoriesFile != "" {
		if _, err := os.Stat(c.ClassifierCategoriesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("classifier categories file does not exist: %s", c.ClassifierCategoriesFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}

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
