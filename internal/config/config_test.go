package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DAMAS_CONFIG_FILE", "REDIS_URL", "DATABASE_URL", "LEDGER_URL", "LEDGER_TOKEN",
		"LEDGER_TIMEOUT_MS", "LEDGER_RETRY", "MATCH_STATE_TTL_SEC", "SETTLE_CLAIM_TTL_SEC",
		"SYNC_COMPARE_AND_SWAP", "MESSAGES_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if !cfg.SyncCompareAndSwap { t.Fatalf("compare-and-swap should default on") }
	if cfg.MatchStateTTL() != 24*time.Hour { t.Fatalf("unexpected state ttl %v", cfg.MatchStateTTL()) }
	if cfg.LedgerTimeout() != 8*time.Second { t.Fatalf("unexpected ledger timeout %v", cfg.LedgerTimeout()) }
	if cfg.LedgerRetry != 3 { t.Fatalf("unexpected retry %d", cfg.LedgerRetry) }
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "damas.yaml")
	body := []byte("redis_url: redis://file:6379/1\n" +
		"ledger_url: http://ledger.file\n" +
		"ledger_retry: 5\n" +
		"match_state_ttl_sec: 600\n" +
		"sync_compare_and_swap: false\n")
	if err := os.WriteFile(path, body, 0o600); err != nil { t.Fatalf("write: %v", err) }

	t.Setenv("DAMAS_CONFIG_FILE", path)
	t.Setenv("LEDGER_URL", "http://ledger.env")
	t.Setenv("LEDGER_RETRY", "not-a-number")

	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.RedisURL != "redis://file:6379/1" { t.Fatalf("redis url from file not applied: %q", cfg.RedisURL) }
	if cfg.LedgerURL != "http://ledger.env" { t.Fatalf("env should override file: %q", cfg.LedgerURL) }
	if cfg.LedgerRetry != 5 { t.Fatalf("invalid env value should keep file value, got %d", cfg.LedgerRetry) }
	if cfg.MatchStateTTL() != 10*time.Minute { t.Fatalf("unexpected ttl %v", cfg.MatchStateTTL()) }
	if cfg.SyncCompareAndSwap { t.Fatalf("file should disable compare-and-swap") }

	t.Setenv("SYNC_COMPARE_AND_SWAP", "true")
	cfg, err = Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if !cfg.SyncCompareAndSwap { t.Fatalf("env should re-enable compare-and-swap") }
}

func TestLoadBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DAMAS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("ledger_retry: [1, 2"), 0o600); err != nil { t.Fatalf("write: %v", err) }
	t.Setenv("DAMAS_CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config file")
	}
}
