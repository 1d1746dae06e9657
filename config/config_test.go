package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRADIER_ACCESS_TOKEN", "abc123")
	t.Setenv("PG_DSN", "postgres://localhost/options?sslmode=disable")
	t.Setenv("PG_DSN_HIST", "")
	t.Setenv("PG_DSN_EOD", "")
	t.Setenv("FRONTEND_TICKERS", "")
	t.Setenv("ROOT_MOUNT_PATH", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got %s", err)
	}

	if cfg.TradierToken != "abc123" {
		t.Errorf("Expected abc123, got %s", cfg.TradierToken)
	}
	if cfg.EODDSN != cfg.HistoryDSN {
		t.Errorf("Expected EOD DSN to default to history DSN, got %s", cfg.EODDSN)
	}
	if len(cfg.Tickers) != 4 || cfg.Tickers[0] != "AAPL" {
		t.Errorf("Expected default tickers, got %v", cfg.Tickers)
	}
	if cfg.RootMount != "/" {
		t.Errorf("Expected / root mount, got %s", cfg.RootMount)
	}
}

func TestLoadTickers(t *testing.T) {
	t.Setenv("TRADIER_ACCESS_TOKEN", "abc123")
	t.Setenv("PG_DSN", "postgres://localhost/options?sslmode=disable")
	t.Setenv("FRONTEND_TICKERS", " spy, qqq ,,nvda")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got %s", err)
	}

	expected := []string{"SPY", "QQQ", "NVDA"}
	if len(cfg.Tickers) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, cfg.Tickers)
	}
	for i := range expected {
		if cfg.Tickers[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, cfg.Tickers)
			break
		}
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TRADIER_ACCESS_TOKEN", "")
	t.Setenv("TRADIER_TOKEN_CIPHER", "")
	t.Setenv("PG_DSN", "postgres://localhost/options?sslmode=disable")

	_, err := Load("")
	if err == nil {
		t.Errorf("Expected an error for a missing token, got nil")
	}
}

func TestLoadMissingDSN(t *testing.T) {
	t.Setenv("TRADIER_ACCESS_TOKEN", "abc123")
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_DSN_HIST", "")

	_, err := Load("")
	if err == nil {
		t.Errorf("Expected an error for a missing DSN, got nil")
	}
}
