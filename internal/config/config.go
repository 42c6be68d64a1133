// Package config loads runtime configuration for the Molt Markets backends.
//
// Configuration is environment-first (every deployment target injects env
// vars), with an optional YAML file for local overrides. A .env file in the
// working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payments PaymentsConfig `yaml:"payments"`
	Moltbook MoltbookConfig `yaml:"moltbook"`
}

type ServerConfig struct {
	Port    string `yaml:"port"`
	Env     string `yaml:"env"`
	BaseURL string `yaml:"base_url"` // public URL used in deep links
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty = in-memory cooldowns only
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PaymentsConfig carries the x402 gateway settings. Wallets here are the
// platform defaults; per-agent wallets override them per transaction.
type PaymentsConfig struct {
	FacilitatorURL string  `yaml:"facilitator_url"`
	FeeRate        float64 `yaml:"fee_rate"`
	WalletEVM      string  `yaml:"wallet_evm"`
	WalletSol      string  `yaml:"wallet_sol"`
	Network        string  `yaml:"network"` // mainnet or testnet
}

type MoltbookConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// NetworkID returns the chain identifier for a payment rail under the
// configured network environment.
func (p PaymentsConfig) NetworkID(rail string) string {
	testnet := p.Network == "testnet"
	switch rail {
	case "evm":
		if testnet {
			return "base-sepolia"
		}
		return "base"
	case "solana":
		if testnet {
			return "solana-devnet"
		}
		return "solana"
	}
	return rail
}

// Load builds a Config from the environment. A .env file is loaded first if
// one exists; missing optional values fall back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	feeRate := 0.10
	if raw := os.Getenv("PLATFORM_FEE_RATE"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, fmt.Errorf("invalid PLATFORM_FEE_RATE %q", raw)
		}
		feeRate = parsed
	}

	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q", raw)
		}
		redisDB = parsed
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:    envOr("PORT", "8080"),
			Env:     envOr("APP_ENV", "development"),
			BaseURL: envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Payments: PaymentsConfig{
			FacilitatorURL: envOr("X402_FACILITATOR_URL", "https://facilitator.x402.org"),
			FeeRate:        feeRate,
			WalletEVM:      os.Getenv("X402_PAY_TO_EVM"),
			WalletSol:      os.Getenv("X402_PAY_TO_SOL"),
			Network:        envOr("X402_NETWORK", "mainnet"),
		},
		Moltbook: MoltbookConfig{
			APIKey:  os.Getenv("MOLTBOOK_API_KEY"),
			BaseURL: os.Getenv("MOLTBOOK_BASE_URL"),
		},
	}

	return cfg, nil
}

// LoadFile reads a YAML config file and merges it over the environment
// config. Used by local tooling; servers normally run env-only.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
