package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.StreamConfig().ReconnectDelay; got != 5*time.Second {
		t.Errorf("ReconnectDelay = %s, want 5s", got)
	}
	if got := cfg.StreamConfig().MaxReconnectDelay; got != 60*time.Second {
		t.Errorf("MaxReconnectDelay = %s, want 60s", got)
	}
	if got := cfg.FeatureWindow(); got != 6*time.Hour {
		t.Errorf("FeatureWindow = %s, want 6h", got)
	}
	if got := cfg.IngestionConfig().LiquidityFloorUSD; got != 250000 {
		t.Errorf("LiquidityFloorUSD = %v, want 250000", got)
	}
	if got := cfg.Model.DistanceMetric; got != "mahalanobis" {
		t.Errorf("DistanceMetric = %q, want mahalanobis", got)
	}
	if got := cfg.IngestionConfig().SmoothingWeight; got != 0.2 {
		t.Errorf("SmoothingWeight = %v, want 0.2", got)
	}
	if got := cfg.ModelParams().NeighborCount; got != 7 {
		t.Errorf("NeighborCount = %d, want 7", got)
	}
	if got := cfg.RiskParams().RewardRatio; got != 2.5 {
		t.Errorf("RewardRatio = %v, want 2.5", got)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
stream:
  endpoint: wss://feed.example.com/ws
  reconnect_delay: 2s
  max_reconnect_delay: 30s
ingestion:
  liquidity_floor_usd: 5000
  feature_window: 30m
  volume_ewma_weight: 0.3
model:
  neighbor_count: 5
  target_anomaly_fraction: 0.05
risk:
  max_daily_trades: 3
  min_confidence_score: 0.25
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Stream.Endpoint != "wss://feed.example.com/ws" {
		t.Errorf("Endpoint = %q", cfg.Stream.Endpoint)
	}
	if got := cfg.StreamConfig().ReconnectDelay; got != 2*time.Second {
		t.Errorf("ReconnectDelay = %s, want 2s", got)
	}
	if got := cfg.FeatureWindow(); got != 30*time.Minute {
		t.Errorf("FeatureWindow = %s, want 30m", got)
	}
	if got := cfg.IngestionConfig().LiquidityFloorUSD; got != 5000 {
		t.Errorf("LiquidityFloorUSD = %v, want 5000", got)
	}
	if got := cfg.ModelParams().NeighborCount; got != 5 {
		t.Errorf("NeighborCount = %d, want 5", got)
	}
	params := cfg.RiskParams()
	if params.MaxDailyTrades != 3 {
		t.Errorf("MaxDailyTrades = %d, want 3", params.MaxDailyTrades)
	}
	if params.MinConfidence != 0.25 {
		t.Errorf("MinConfidence = %v, want 0.25", params.MinConfidence)
	}
	// Risk shares the ingestion floor.
	if params.LiquidityFloorUSD != 5000 {
		t.Errorf("risk LiquidityFloorUSD = %v, want 5000", params.LiquidityFloorUSD)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "stream:\n  endpoint: wss://file.example.com/ws\n")
	t.Setenv("STREAM_ENDPOINT", "wss://env.example.com/ws")
	t.Setenv("LIQUIDITY_FLOOR_USD", "2500")
	t.Setenv("MAX_DAILY_TRADES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Stream.Endpoint != "wss://env.example.com/ws" {
		t.Errorf("Endpoint = %q, want env override", cfg.Stream.Endpoint)
	}
	if cfg.Ingestion.LiquidityFloorUSD != 2500 {
		t.Errorf("LiquidityFloorUSD = %v, want 2500", cfg.Ingestion.LiquidityFloorUSD)
	}
	if cfg.Risk.MaxDailyTrades != 7 {
		t.Errorf("MaxDailyTrades = %d, want 7", cfg.Risk.MaxDailyTrades)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Stream.Endpoint = "" }},
		{"ewma weight above one", func(c *Config) { c.Ingestion.VolumeEWMAWeight = 1.5 }},
		{"anomaly fraction at one", func(c *Config) { c.Model.TargetAnomalyFraction = 1 }},
		{"unsupported distance metric", func(c *Config) { c.Model.DistanceMetric = "euclidean" }},
		{"negative reward ratio", func(c *Config) { c.Risk.RewardRatio = -1 }},
		{"trailing stop at one", func(c *Config) { c.Risk.TrailingStopFraction = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			cfg.Stream.Endpoint = "wss://feed.example.com/ws"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
