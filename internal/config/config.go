package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/netzema/fintrack/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Database and local files
	SQLiteDBPath string
	RulesPath    string
	StampPath    string
	LogPath      string

	// Bank feed
	BankBaseURL   string
	BankSecretID  string
	BankSecretKey string
	BankAccountID string

	// AMQP (empty URL disables the event bus)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (empty spreadsheet id disables it)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Monthly budgets per category, in cents
	Budgets map[string]int64
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		RulesPath:    getEnv("RULES_PATH", "./data/rules.json"),
		StampPath:    getEnv("STAMP_PATH", "./data/last_run"),
		LogPath:      getEnv("LOG_PATH", "./data/fintrack.log"),

		BankBaseURL:   getEnv("BANK_BASE_URL", ""),
		BankSecretID:  getEnv("BANK_SECRET_ID", ""),
		BankSecretKey: getEnv("BANK_SECRET_KEY", ""),
		BankAccountID: getEnv("BANK_ACCOUNT_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "fintrack_events"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		Budgets: parseBudgets(os.Getenv("BUDGETS")),
	}

	return cfg
}

// HasBank reports whether the bank feed credentials are configured.
func (c *Config) HasBank() bool {
	return c.BankSecretID != "" && c.BankSecretKey != "" && c.BankAccountID != ""
}

// HasAMQP reports whether the event bus is configured.
func (c *Config) HasAMQP() bool {
	return c.AMQPURL != ""
}

// HasSheets reports whether the spreadsheet export is configured.
func (c *Config) HasSheets() bool {
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
	}
	if c.RulesPath == "" {
		errors = append(errors, "rules file path cannot be empty")
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

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// parseBudgets reads "Groceries=400,Rent=900.50" into cents per category.
// Malformed entries are dropped.
func parseBudgets(raw string) map[string]int64 {
	budgets := make(map[string]int64)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		amount, err := core.ParseAmount(strings.TrimSpace(value))
		if err != nil || amount.Cents <= 0 {
			continue
		}
		budgets[name] = amount.Cents
	}
	return budgets
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
