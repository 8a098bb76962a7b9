package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	LedgerURL       string `yaml:"ledger_url"`
	LedgerToken     string `yaml:"ledger_token"`
	LedgerTimeoutMS int    `yaml:"ledger_timeout_ms"`
	LedgerRetry     int    `yaml:"ledger_retry"`

	MatchStateTTLSec   int  `yaml:"match_state_ttl_sec"`
	SettleClaimTTLSec  int  `yaml:"settle_claim_ttl_sec"`
	SyncCompareAndSwap bool `yaml:"sync_compare_and_swap"`

	MessagesDir string `yaml:"messages_dir"`
}

func defaults() *AppConfig {
	return &AppConfig{
		LedgerTimeoutMS:    8000,
		LedgerRetry:        3,
		MatchStateTTLSec:   86400,
		SettleClaimTTLSec:  7 * 86400,
		SyncCompareAndSwap: true,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// DAMAS_CONFIG_FILE (optional) and finally the environment.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("DAMAS_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGER_URL")); v != "" {
		cfg.LedgerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGER_TOKEN")); v != "" {
		cfg.LedgerToken = v
	}
	if v := strings.TrimSpace(os.Getenv("LEDGER_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LedgerTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEDGER_RETRY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LedgerRetry = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATCH_STATE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MatchStateTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SETTLE_CLAIM_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SettleClaimTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SYNC_COMPARE_AND_SWAP")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SyncCompareAndSwap = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("MESSAGES_DIR")); v != "" {
		cfg.MessagesDir = v
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

// applyFile overlays the non-zero values of a YAML file.
func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f AppConfig
	// sync_compare_and_swap defaults to on unless the file says otherwise
	f.SyncCompareAndSwap = c.SyncCompareAndSwap
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if s := strings.TrimSpace(f.RedisURL); s != "" {
		c.RedisURL = s
	}
	if s := strings.TrimSpace(f.DatabaseURL); s != "" {
		c.DatabaseURL = s
	}
	if s := strings.TrimSpace(f.LedgerURL); s != "" {
		c.LedgerURL = s
	}
	if s := strings.TrimSpace(f.LedgerToken); s != "" {
		c.LedgerToken = s
	}
	if f.LedgerTimeoutMS > 0 {
		c.LedgerTimeoutMS = f.LedgerTimeoutMS
	}
	if f.LedgerRetry > 0 {
		c.LedgerRetry = f.LedgerRetry
	}
	if f.MatchStateTTLSec > 0 {
		c.MatchStateTTLSec = f.MatchStateTTLSec
	}
	if f.SettleClaimTTLSec > 0 {
		c.SettleClaimTTLSec = f.SettleClaimTTLSec
	}
	c.SyncCompareAndSwap = f.SyncCompareAndSwap
	if s := strings.TrimSpace(f.MessagesDir); s != "" {
		c.MessagesDir = s
	}
	return nil
}

func (c *AppConfig) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutMS) * time.Millisecond
}

func (c *AppConfig) MatchStateTTL() time.Duration {
	return time.Duration(c.MatchStateTTLSec) * time.Second
}

func (c *AppConfig) SettleClaimTTL() time.Duration {
	return time.Duration(c.SettleClaimTTLSec) * time.Second
}
