package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Bank     BankConfig
	Secrets  SecretsConfig
	Email    EmailConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string

	// RateLimit is the per-client request budget per second on the
	// checkout surface; Burst allows short spikes.
	RateLimit float64
	Burst     int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// BankConfig holds the virtual POS merchant configuration. The password is
// resolved through the secret manager at startup, not carried in the
// environment.
type BankConfig struct {
	Environment     string // "test" or "production"
	MerchantID      string
	CustomerID      string
	Username        string
	PasswordSecret  string // secret manager path for the merchant password
	OkCallbackURL   string
	FailCallbackURL string
	SuccessURL      string // browser redirect after a recorded success
	FailureURL      string // browser redirect after a recorded failure
	TimeoutSeconds  int
}

// SecretsConfig selects the secret manager backend.
type SecretsConfig struct {
	Backend string // "env", "aws", "vault"

	AWSRegion string

	VaultAddress string
	VaultToken   string
	VaultMount   string
}

// EmailConfig holds the transactional email settings.
type EmailConfig struct {
	APIURL   string
	APIToken string
	From     string
	FromName string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			RateLimit: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "dergipress_payments"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Bank: BankConfig{
			Environment:     getEnv("POS_ENVIRONMENT", "test"),
			MerchantID:      getEnv("POS_MERCHANT_ID", ""),
			CustomerID:      getEnv("POS_CUSTOMER_ID", ""),
			Username:        getEnv("POS_USERNAME", ""),
			PasswordSecret:  getEnv("POS_PASSWORD_SECRET", "pos/merchant-password"),
			OkCallbackURL:   getEnv("POS_OK_CALLBACK_URL", ""),
			FailCallbackURL: getEnv("POS_FAIL_CALLBACK_URL", ""),
			SuccessURL:      getEnv("POS_SUCCESS_URL", ""),
			FailureURL:      getEnv("POS_FAILURE_URL", ""),
			TimeoutSeconds:  getEnvAsInt("POS_TIMEOUT", 30),
		},
		Secrets: SecretsConfig{
			Backend:      getEnv("SECRETS_BACKEND", "env"),
			AWSRegion:    getEnv("AWS_REGION", "eu-central-1"),
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT", "secret"),
		},
		Email: EmailConfig{
			APIURL:   getEnv("MAILTRAP_API_URL", ""),
			APIToken: getEnv("MAILTRAP_API_TOKEN", ""),
			From:     getEnv("EMAIL_FROM", "odeme@dergipress.com"),
			FromName: getEnv("EMAIL_FROM_NAME", "DergiPress"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Incomplete merchant setup is fatal at startup, never at charge time.
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Bank.MerchantID == "" {
		return nil, fmt.Errorf("POS_MERCHANT_ID is required")
	}
	if cfg.Bank.CustomerID == "" {
		return nil, fmt.Errorf("POS_CUSTOMER_ID is required")
	}
	if cfg.Bank.Username == "" {
		return nil, fmt.Errorf("POS_USERNAME is required")
	}
	if cfg.Bank.OkCallbackURL == "" || cfg.Bank.FailCallbackURL == "" {
		return nil, fmt.Errorf("POS_OK_CALLBACK_URL and POS_FAIL_CALLBACK_URL are required")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
