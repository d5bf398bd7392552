package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	BotToken string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Security
	JWTSecret      string
	AESKey         string
	SuperAdminTgID int64
	AdminTgIDs     []int64

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Rate Limiting
	RateLimitPerUser int
	RateLimitPerIP   int

	// Background jobs
	SettlementCheckMinutes   int
	DepositPendingTTLMinutes int

	// Channels
	DefaultChannelCapacity int64

	Payments PaymentSettings
	Referral ReferralDefaults
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "cashbot"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "cashbot_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),
		AESKey:    getEnv("AES_ENCRYPTION_KEY", ""),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitPerUser: getEnvInt("RATE_LIMIT_PER_USER", 20),
		RateLimitPerIP:   getEnvInt("RATE_LIMIT_PER_IP", 100),

		SettlementCheckMinutes:   getEnvInt("SETTLEMENT_CHECK_MINUTES", 60),
		DepositPendingTTLMinutes: getEnvInt("DEPOSIT_PENDING_TTL_MINUTES", 0),

		DefaultChannelCapacity: getEnvInt64("DEFAULT_CHANNEL_CAPACITY", 5400),

		Payments: loadPaymentSettings(),
		Referral: loadReferralDefaults(),
	}

	// Parse super admin telegram ID
	superAdminStr := getEnv("SUPER_ADMIN_TELEGRAM_ID", "")
	if superAdminStr != "" {
		id, err := strconv.ParseInt(superAdminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SUPER_ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.SuperAdminTgID = id
	}

	admins, err := parseIDList(getEnv("ADMIN_TELEGRAM_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_IDS: %w", err)
	}
	cfg.AdminTgIDs = admins

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.AESKey == "" {
		return fmt.Errorf("AES_ENCRYPTION_KEY is required")
	}
	if len(c.AESKey) != 32 {
		return fmt.Errorf("AES_ENCRYPTION_KEY must be exactly 32 bytes")
	}
	if c.DefaultChannelCapacity <= 0 {
		return fmt.Errorf("DEFAULT_CHANNEL_CAPACITY must be positive")
	}
	if c.SettlementCheckMinutes <= 0 {
		return fmt.Errorf("SETTLEMENT_CHECK_MINUTES must be positive")
	}
	if c.DepositPendingTTLMinutes < 0 {
		return fmt.Errorf("DEPOSIT_PENDING_TTL_MINUTES must not be negative")
	}
	if err := c.Payments.Validate(); err != nil {
		return err
	}
	return c.Referral.Validate()
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}
	if c.AESKey == "your_aes_key_must_be_32_bytes!!" {
		return fmt.Errorf("AES_ENCRYPTION_KEY must be changed from default in production")
	}
	if c.SuperAdminTgID == 0 {
		return fmt.Errorf("SUPER_ADMIN_TELEGRAM_ID must be set in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin reports whether the Telegram id belongs to an operator.
func (c *Config) IsAdmin(telegramID int64) bool {
	if telegramID == 0 {
		return false
	}
	if telegramID == c.SuperAdminTgID {
		return true
	}
	for _, id := range c.AdminTgIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// AllAdmins returns the super admin followed by the extra operators, without duplicates.
func (c *Config) AllAdmins() []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range append([]int64{c.SuperAdminTgID}, c.AdminTgIDs...) {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (c *Config) GetSettlementCheckInterval() time.Duration {
	return time.Duration(c.SettlementCheckMinutes) * time.Minute
}

// GetDepositPendingTTL is zero when pending deposits never expire.
func (c *Config) GetDepositPendingTTL() time.Duration {
	return time.Duration(c.DepositPendingTTLMinutes) * time.Minute
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
