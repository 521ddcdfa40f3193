package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the market service.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	JWTSecret   string `yaml:"jwt_secret"`

	BasePriceKWh  float64       `yaml:"base_price_kwh"`
	TradeValidity time.Duration `yaml:"trade_validity"`
	MarketTick    time.Duration `yaml:"market_tick"`
	PricingTick   time.Duration `yaml:"pricing_tick"`
	StepInterval  time.Duration `yaml:"step_interval"`
	HistoryLimit  int           `yaml:"history_limit"`
	HistoryCap    int           `yaml:"history_cap"`

	WebhookURL         string `yaml:"webhook_url"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisChannelPrefix string `yaml:"redis_channel_prefix"`
	NATSURL            string `yaml:"nats_url"`
	NATSSubjectPrefix  string `yaml:"nats_subject_prefix"`

	SeedFile string `yaml:"seed_file"`
}

// Load builds configuration from environment variables, optionally
// overlaid by the YAML file named in CONFIG_FILE.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		BasePriceKWh:       getenvFloatDefault("BASE_PRICE_KWH", 0.15),
		TradeValidity:      getenvDuration("TRADE_VALIDITY", 5*time.Minute),
		MarketTick:         getenvDuration("MARKET_TICK", 30*time.Second),
		PricingTick:        getenvDuration("PRICING_TICK", 5*time.Minute),
		StepInterval:       getenvDuration("SIM_STEP_INTERVAL", time.Minute),
		HistoryLimit:       getenvIntDefault("HISTORY_LIMIT", 50),
		HistoryCap:         getenvIntDefault("HISTORY_CAP", 10000),
		WebhookURL:         getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		RedisAddr:          getenvDefault("REDIS_ADDR", ""),
		RedisChannelPrefix: getenvDefault("REDIS_CHANNEL_PREFIX", "microgrid"),
		NATSURL:            getenvDefault("NATS_URL", ""),
		NATSSubjectPrefix:  getenvDefault("NATS_SUBJECT_PREFIX", "microgrid"),
		SeedFile:           getenvDefault("SEED_FILE", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.BasePriceKWh <= 0 {
		return cfg, errors.New("config: base price must be positive")
	}
	if cfg.MarketTick <= 0 || cfg.PricingTick <= 0 || cfg.StepInterval <= 0 {
		return cfg, errors.New("config: tick intervals must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
