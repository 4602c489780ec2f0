package config

import (
	"os"
	"path/filepath"
	"testing"

	marketpkg "perpscan/pkg/market"
	_ "perpscan/pkg/market/exchanges/binance"
	_ "perpscan/pkg/market/exchanges/okx"
)

// Test_marketConfig_envExpansion verifies that the market section expands
// environment variables correctly when loaded directly via its LoadConfig
// function.
func Test_marketConfig_envExpansion(t *testing.T) {
	dir := t.TempDir()

	// Prepare market.yaml using env placeholders for base_url and durations
	marketYAML := []byte(`
default: binance
providers:
  binance:
    type: binance
    base_url: ${BINANCE_BASE}
    timeout: ${BINANCE_TIMEOUT}
    http_timeout: ${BINANCE_HTTP_TIMEOUT}
    max_retries: 2
`)
	mktPath := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(mktPath, marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}

	// Set envs consumed by the file above
	t.Setenv("BINANCE_BASE", "https://fapi.binance.example")
	t.Setenv("BINANCE_TIMEOUT", "7s")
	t.Setenv("BINANCE_HTTP_TIMEOUT", "11s")

	mktCfg, err := marketpkg.LoadConfig(mktPath)
	if err != nil {
		t.Fatalf("market.LoadConfig: %v", err)
	}
	p := mktCfg.Providers["binance"]
	if p == nil {
		t.Fatalf("Market provider 'binance' missing")
	}
	if got := p.BaseURL; got != "https://fapi.binance.example" {
		t.Fatalf("Market BaseURL not expanded, got %q", got)
	}
	if p.Timeout.String() != "7s" || p.HTTPTimeout.String() != "11s" {
		t.Fatalf("Market timeouts not parsed, got timeout=%s http_timeout=%s", p.Timeout, p.HTTPTimeout)
	}
}

// Test_hydrateSections_withSectionFiles verifies per-section hydration
// without going through go-zero conf.Load.
func Test_hydrateSections_withSectionFiles(t *testing.T) {
	dir := t.TempDir()

	marketYAML := []byte(`
default: okx
providers:
  okx:
    type: okx
    timeout: 5s
    inst_type: SWAP
`)
	mktPath := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(mktPath, marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}

	screenerYAML := []byte(`
quote_assets:
  - USDT
top: 5
include_raw: true
keep: 3
`)
	scrPath := filepath.Join(dir, "screener.yaml")
	if err := os.WriteFile(scrPath, screenerYAML, 0o600); err != nil {
		t.Fatalf("write screener.yaml: %v", err)
	}

	cfg := &Config{
		DataPath: "./data",
		Keep:     1,
		TTL:      CacheTTL{Short: 10, Medium: 60, Long: 300},
	}
	cfg.Market.File = "market.yaml"
	cfg.Screener.File = "screener.yaml"
	cfg.baseDir = dir

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := cfg.hydrateSections(); err != nil {
		t.Fatalf("hydrateSections: %v", err)
	}

	if cfg.Market.Value == nil {
		t.Fatalf("Market.Value not hydrated")
	}
	p := cfg.Market.Value.Providers["okx"]
	if p == nil {
		t.Fatalf("Market provider 'okx' missing")
	}
	if p.Timeout.String() != "5s" || p.InstType != "SWAP" {
		t.Fatalf("Market provider not parsed, got timeout=%s inst_type=%q", p.Timeout, p.InstType)
	}

	if cfg.Screener.Value == nil {
		t.Fatalf("Screener.Value not hydrated")
	}
	params := cfg.Screener.Value.Params()
	if params.Top != 5 || !params.IncludeRaw {
		t.Fatalf("Screener params not parsed, got top=%d include_raw=%v", params.Top, params.IncludeRaw)
	}
	if cfg.Screener.Value.Keep != 3 {
		t.Fatalf("Screener keep not parsed, got %d", cfg.Screener.Value.Keep)
	}
	if len(params.QuoteAssets) != 1 || params.QuoteAssets[0] != "USDT" {
		t.Fatalf("Screener quote assets not parsed, got %v", params.QuoteAssets)
	}
}

func TestValidate_TTLBounds(t *testing.T) {
	cfg := &Config{}
	cfg.DataPath = "./data"
	cfg.TTL.Short = 0
	cfg.TTL.Medium = 60
	cfg.TTL.Long = 300
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected ttl.short validation error")
	}
}

func TestValidate_EnvEnum(t *testing.T) {
	cfg := &Config{}
	cfg.Env = "staging"
	cfg.DataPath = "./data"
	cfg.TTL = CacheTTL{Short: 10, Medium: 60, Long: 300}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected env validation error")
	}

	cfg.Env = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Env != "test" {
		t.Fatalf("empty env should default to test, got %q", cfg.Env)
	}
	if !cfg.IsTestEnv() {
		t.Fatalf("IsTestEnv should be true for defaulted env")
	}
}

func TestValidate_KeepBounds(t *testing.T) {
	cfg := &Config{}
	cfg.DataPath = "./data"
	cfg.Keep = -1
	cfg.TTL = CacheTTL{Short: 10, Medium: 60, Long: 300}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected keep validation error")
	}
}
