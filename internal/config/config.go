package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bizshop/storefront/internal/infrastructure/postgres"
)

type Config struct {
	Env         string
	ServiceName string
	Port        int

	JWTSecret     string
	TokenTTL      time.Duration
	WebhookSecret string

	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	GatewayTimeout   time.Duration

	Currency          string
	DefaultPaidAmount decimal.Decimal

	Postgres postgres.Config
}

func Default() Config {
	return Config{
		Env:               "dev",
		ServiceName:       "storefront",
		Port:              8080,
		TokenTTL:          7 * 24 * time.Hour,
		GatewayTimeout:    10 * time.Second,
		Currency:          "INR",
		DefaultPaidAmount: decimal.NewFromInt(1999),
		Postgres: postgres.Config{
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

// UsePostgres reports whether the Postgres repositories should be wired in
// place of the in-memory ones.
func (c Config) UsePostgres() bool {
	return c.Postgres.Host != ""
}

func fromEnv(c Config) Config {
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			c.TokenTTL = time.Duration(h) * time.Hour
		}
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.WebhookSecret = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		c.GatewayBaseURL = v
	}
	if v := os.Getenv("GATEWAY_KEY_ID"); v != "" {
		c.GatewayKeyID = v
	}
	if v := os.Getenv("GATEWAY_KEY_SECRET"); v != "" {
		c.GatewayKeySecret = v
	}
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			c.GatewayTimeout = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("CURRENCY"); v != "" {
		c.Currency = v
	}
	if v := os.Getenv("DEFAULT_PAID_AMOUNT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			c.DefaultPaidAmount = d
		}
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Postgres.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Postgres.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Postgres.SSLMode = v
	}
	return c
}
