// Package config loads engine configuration from environment variables
// and an optional .env file. All settings carry working defaults so the
// engine runs locally with no configuration at all.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// OracleTier configures one source in the price fallback chain. An empty
// endpoint disables the tier.
type OracleTier struct {
	Name     string
	Endpoint string
	Symbol   string
	Scale    decimal.Decimal
	Offset   decimal.Decimal
}

// Config holds all engine settings.
type Config struct {
	Port string

	// DatabaseURL selects PostgreSQL; empty falls back to the in-memory
	// store. RedisURL layers a read-through cache over PostgreSQL.
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// Oracle fallback chain, primary then secondary.
	OraclePrimary   OracleTier
	OracleSecondary OracleTier
	FallbackMin     int64
	FallbackMax     int64

	// StalenessTolerance bounds how far before expiry a price observation
	// may be taken and still settle a market.
	StalenessTolerance time.Duration

	// Notional caps; zero disables the check.
	MaxPositionNotional decimal.Decimal
	MaxAccountNotional  decimal.Decimal
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first if present.
func Load() (*Config, error) {
	// Best effort; absence of .env is the normal case in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GASDEX")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", "30s")

	v.SetDefault("ORACLE_PRIMARY_ENDPOINT", "")
	v.SetDefault("ORACLE_PRIMARY_SYMBOL", "GASGWEI")
	v.SetDefault("ORACLE_PRIMARY_SCALE", "100000000") // 8-decimal feed
	v.SetDefault("ORACLE_PRIMARY_OFFSET", "0")
	v.SetDefault("ORACLE_SECONDARY_ENDPOINT", "")
	v.SetDefault("ORACLE_SECONDARY_SYMBOL", "GASFAST")
	v.SetDefault("ORACLE_SECONDARY_SCALE", "100000000")
	v.SetDefault("ORACLE_SECONDARY_OFFSET", "0")
	v.SetDefault("FALLBACK_MIN", 25)
	v.SetDefault("FALLBACK_MAX", 75)

	v.SetDefault("STALENESS_TOLERANCE", "1h")

	v.SetDefault("MAX_POSITION_NOTIONAL", "0")
	v.SetDefault("MAX_ACCOUNT_NOTIONAL", "0")

	cacheTTL, err := time.ParseDuration(v.GetString("CACHE_TTL"))
	if err != nil {
		return nil, err
	}
	tolerance, err := time.ParseDuration(v.GetString("STALENESS_TOLERANCE"))
	if err != nil {
		return nil, err
	}

	maxPos, err := decimal.NewFromString(v.GetString("MAX_POSITION_NOTIONAL"))
	if err != nil {
		return nil, err
	}
	maxAcct, err := decimal.NewFromString(v.GetString("MAX_ACCOUNT_NOTIONAL"))
	if err != nil {
		return nil, err
	}

	primary, err := loadTier(v, "primary", "ORACLE_PRIMARY")
	if err != nil {
		return nil, err
	}
	secondary, err := loadTier(v, "secondary", "ORACLE_SECONDARY")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                v.GetString("PORT"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		CacheTTL:            cacheTTL,
		OraclePrimary:       primary,
		OracleSecondary:     secondary,
		FallbackMin:         v.GetInt64("FALLBACK_MIN"),
		FallbackMax:         v.GetInt64("FALLBACK_MAX"),
		StalenessTolerance:  tolerance,
		MaxPositionNotional: maxPos,
		MaxAccountNotional:  maxAcct,
	}, nil
}

func loadTier(v *viper.Viper, name, prefix string) (OracleTier, error) {
	scale, err := decimal.NewFromString(v.GetString(prefix + "_SCALE"))
	if err != nil {
		return OracleTier{}, err
	}
	offset, err := decimal.NewFromString(v.GetString(prefix + "_OFFSET"))
	if err != nil {
		return OracleTier{}, err
	}
	return OracleTier{
		Name:     name,
		Endpoint: v.GetString(prefix + "_ENDPOINT"),
		Symbol:   v.GetString(prefix + "_SYMBOL"),
		Scale:    scale,
		Offset:   offset,
	}, nil
}
