package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Notify struct {
	WebhookURLs  []string
	WebhookToken string
	From         string
}

type Config struct {
	EnvFilePath          string
	HTTPPort             string
	DatabaseURL          string
	JWTSecret            string
	JWTIssuer            string
	AdminPassword        string
	AdminAllowedIPs      []string
	AdminTOTPSecret      string
	SettingsCacheTTL     time.Duration
	SettingsScheduleSpec string
	PayoutAmount         decimal.Decimal
	Location             *time.Location

	Notify Notify
}

func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		envPath = ".env"
		_ = godotenv.Load()
	}

	cfg := &Config{
		EnvFilePath:          getEnv("ENV_FILE_PATH", envPath),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          getEnv("DATABASE_URL", getEnv("POSTGRES_URL", "sqlite:data.db")),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTIssuer:            getEnv("JWT_ISSUER", "chama-connect"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		AdminAllowedIPs:      splitCSV(os.Getenv("ADMIN_ALLOWED_IPS")),
		AdminTOTPSecret:      os.Getenv("ADMIN_TOTP_SECRET"),
		SettingsCacheTTL:     getDuration("SETTINGS_CACHE_TTL", 30*time.Second),
		SettingsScheduleSpec: getEnv("SETTINGS_SCHEDULE_SPEC", "@every 10s"),
		Notify: Notify{
			WebhookURLs:  splitCSV(os.Getenv("NOTIFY_WEBHOOK_URL")),
			WebhookToken: os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
			From:         getEnv("NOTIFY_FROM", "raffle@chama-connect.local"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD is required")
	}
	if cfg.AdminTOTPSecret == "" {
		return nil, errors.New("ADMIN_TOTP_SECRET is required for admin login")
	}

	payout, err := decimal.NewFromString(getEnv("RAFFLE_PAYOUT_AMOUNT", "0"))
	if err != nil {
		return nil, fmt.Errorf("RAFFLE_PAYOUT_AMOUNT: %w", err)
	}
	if payout.IsNegative() {
		return nil, errors.New("RAFFLE_PAYOUT_AMOUNT must not be negative")
	}
	cfg.PayoutAmount = payout

	loc, err := time.LoadLocation(getEnv("RAFFLE_TIMEZONE", "Africa/Nairobi"))
	if err != nil {
		return nil, fmt.Errorf("RAFFLE_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return time.Duration(v) * time.Second
	}
	return def
}

func resolveEnvPath() string {
	if path := os.Getenv("ENV_FILE_PATH"); path != "" {
		return path
	}
	candidates := []string{".env", "local-only/.env"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
