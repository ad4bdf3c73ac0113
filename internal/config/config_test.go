package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbols: [ETHUSDT, SOLUSDT]
  interval: 1h
  days: 14
profile:
  tick_sizes:
    ETH: 5
storage:
  type: sqlite
`)
	t.Setenv("MPROFILE_BINANCE_API_KEY", "key-from-env")
	t.Setenv("MPROFILE_SQLITE_PATH", "/tmp/test.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Trading.Symbols; len(got) != 2 || got[0] != "ETHUSDT" {
		t.Errorf("Symbols = %v", got)
	}
	if cfg.Trading.Days != 14 {
		t.Errorf("Days = %d, want 14", cfg.Trading.Days)
	}
	if cfg.Trading.BracketPeriod != "1h" {
		t.Errorf("BracketPeriod = %q, want interval 1h", cfg.Trading.BracketPeriod)
	}
	if cfg.BracketMinutes() != 60 {
		t.Errorf("BracketMinutes() = %d, want 60", cfg.BracketMinutes())
	}
	if cfg.Binance.APIKey != "key-from-env" {
		t.Errorf("APIKey = %q, want value from env", cfg.Binance.APIKey)
	}
	if cfg.Storage.SQLitePath != "/tmp/test.db" {
		t.Errorf("SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q", cfg.Storage.Type)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Trading.Interval != "30m" || cfg.Trading.Days != 7 {
		t.Errorf("Trading = %+v", cfg.Trading)
	}
	if cfg.Storage.Type != "none" {
		t.Errorf("Storage.Type = %q, want none", cfg.Storage.Type)
	}
	if len(cfg.Control.Timeframes) != 3 || len(cfg.Control.DateRanges) != 3 {
		t.Errorf("Control = %+v", cfg.Control)
	}
	if cfg.POC.Mode != "days" {
		t.Errorf("POC.Mode = %q", cfg.POC.Mode)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "trading: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for malformed yaml")
	}
}

func TestLoad_ExplicitZeros(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"default tick", "profile:\n  default_tick: 0\n"},
		{"value area", "profile:\n  value_area: 0\n"},
		{"negative default tick", "profile:\n  default_tick: -0.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_ZeroRetriesAndStrongFactor(t *testing.T) {
	path := writeConfig(t, `
binance:
  max_retries: 0
control:
  strong_factor: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Binance.Retries(); got != 0 {
		t.Errorf("Retries() = %d, want 0", got)
	}
	if got := cfg.Control.Factor(); got != 0 {
		t.Errorf("Factor() = %d, want 0", got)
	}

	cfg, err = Load(writeConfig(t, "trading:\n  days: 3\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Binance.Retries() != DefaultMaxRetries || cfg.Control.Factor() != DefaultStrongFactor {
		t.Errorf("unset values: retries %d, factor %d", cfg.Binance.Retries(), cfg.Control.Factor())
	}
	if cfg.Profile.Tick() != DefaultTick || cfg.Profile.Fraction() != DefaultValueArea {
		t.Errorf("unset values: tick %v, fraction %v", cfg.Profile.Tick(), cfg.Profile.Fraction())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad interval", func(c *Config) { c.Trading.Interval = "7x" }},
		{"negative days", func(c *Config) { c.Trading.Days = -1 }},
		{"negative tick", func(c *Config) { c.Profile.TickSizes = map[string]float64{"BTC": -1} }},
		{"value area above one", func(c *Config) { c.Profile.ValueAreaFraction = floatPtr(1.5) }},
		{"zero default tick", func(c *Config) { c.Profile.DefaultTick = floatPtr(0) }},
		{"negative retries", func(c *Config) { c.Binance.MaxRetries = intPtr(-1) }},
		{"bad control timeframe", func(c *Config) { c.Control.Timeframes = []string{"2w"} }},
		{"bad date range", func(c *Config) { c.Control.DateRanges = []int{0} }},
		{"unknown poc mode", func(c *Config) { c.POC.Mode = "week" }},
		{"unknown market", func(c *Config) { c.Binance.Market = "options" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTickSize(t *testing.T) {
	cfg := Default()
	cfg.Profile.TickSizes = map[string]float64{"ETH": 5}

	tests := []struct {
		symbol string
		want   string
	}{
		{"ETHUSDT", "5"},
		{"btcusdt", "100"},
		{"XRPUSDT", "0.005"},
		{"DOGEUSDT", "1"},
	}
	for _, tt := range tests {
		if got := cfg.TickSize(tt.symbol).String(); got != tt.want {
			t.Errorf("TickSize(%s) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestNewBuilder(t *testing.T) {
	cfg := Default()
	if _, err := cfg.NewBuilder("BTCUSDT", "1h"); err != nil {
		t.Errorf("NewBuilder() error = %v", err)
	}
	if _, err := cfg.NewBuilder("BTCUSDT", "13x"); err == nil {
		t.Error("NewBuilder() expected error for unknown period")
	}
}
