// Package config loads engine configuration from a YAML file with
// environment variable overrides. A .env file, when present, is folded
// into the environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"token-alpha-engine/internal/alpha"
	"token-alpha-engine/internal/ingestion"
	"token-alpha-engine/internal/risk"
	"token-alpha-engine/internal/stream"
)

// Duration unmarshals from YAML strings like "5s" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all application configuration.
type Config struct {
	Stream struct {
		Endpoint          string   `yaml:"endpoint"`
		ReconnectDelay    Duration `yaml:"reconnect_delay"`
		MaxReconnectDelay Duration `yaml:"max_reconnect_delay"`
		IdleTimeout       Duration `yaml:"idle_timeout"`
	} `yaml:"stream"`
	Ingestion struct {
		LiquidityFloorUSD float64  `yaml:"liquidity_floor_usd"`
		FeatureWindow     Duration `yaml:"feature_window"`
		VolumeEWMAWeight  float64  `yaml:"volume_ewma_weight"`
	} `yaml:"ingestion"`
	Model struct {
		NeighborCount         int     `yaml:"neighbor_count"`
		TargetAnomalyFraction float64 `yaml:"target_anomaly_fraction"`
		DistanceMetric        string  `yaml:"distance_metric"`
	} `yaml:"model"`
	Risk struct {
		MaxPositionFraction  float64 `yaml:"max_position_fraction"`
		PositionCeiling      float64 `yaml:"position_ceiling"`
		TrailingStopFraction float64 `yaml:"trailing_stop_fraction"`
		RewardRatio          float64 `yaml:"reward_ratio"`
		MaxDailyTrades       int     `yaml:"max_daily_trades"`
		MinConfidenceScore   float64 `yaml:"min_confidence_score"`
		OrderPremiumFraction float64 `yaml:"order_premium_fraction"`
	} `yaml:"risk"`
	Storage struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("STREAM_ENDPOINT"); v != "" {
		cfg.Stream.Endpoint = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := getEnvFloat("LIQUIDITY_FLOOR_USD"); v != nil {
		cfg.Ingestion.LiquidityFloorUSD = *v
	}
	if v := getEnvFloat("MIN_CONFIDENCE_SCORE"); v != nil {
		cfg.Risk.MinConfidenceScore = *v
	}
	if v := getEnvInt("MAX_DAILY_TRADES"); v != nil {
		cfg.Risk.MaxDailyTrades = *v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = Duration(5 * time.Second)
	}
	if c.Stream.MaxReconnectDelay == 0 {
		c.Stream.MaxReconnectDelay = Duration(60 * time.Second)
	}
	if c.Stream.IdleTimeout == 0 {
		c.Stream.IdleTimeout = Duration(10 * time.Second)
	}
	if c.Ingestion.LiquidityFloorUSD == 0 {
		c.Ingestion.LiquidityFloorUSD = 250000
	}
	if c.Ingestion.FeatureWindow == 0 {
		c.Ingestion.FeatureWindow = Duration(6 * time.Hour)
	}
	if c.Ingestion.VolumeEWMAWeight == 0 {
		c.Ingestion.VolumeEWMAWeight = 0.2
	}
	if c.Model.NeighborCount == 0 {
		c.Model.NeighborCount = 7
	}
	if c.Model.TargetAnomalyFraction == 0 {
		c.Model.TargetAnomalyFraction = 0.01
	}
	if c.Model.DistanceMetric == "" {
		c.Model.DistanceMetric = "mahalanobis"
	}
	if c.Risk.MaxPositionFraction == 0 {
		c.Risk.MaxPositionFraction = 0.03
	}
	if c.Risk.PositionCeiling == 0 {
		c.Risk.PositionCeiling = 0.1
	}
	if c.Risk.TrailingStopFraction == 0 {
		c.Risk.TrailingStopFraction = 0.15
	}
	if c.Risk.RewardRatio == 0 {
		c.Risk.RewardRatio = 2.5
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 10
	}
	if c.Risk.MinConfidenceScore == 0 {
		c.Risk.MinConfidenceScore = 0.1
	}
	if c.Risk.OrderPremiumFraction == 0 {
		c.Risk.OrderPremiumFraction = 0.01
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9091"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Stream.Endpoint == "" {
		return fmt.Errorf("stream.endpoint is required")
	}
	if c.Ingestion.VolumeEWMAWeight < 0 || c.Ingestion.VolumeEWMAWeight > 1 {
		return fmt.Errorf("ingestion.volume_ewma_weight must be in [0, 1]")
	}
	if c.Model.NeighborCount < 1 {
		return fmt.Errorf("model.neighbor_count must be at least 1")
	}
	if c.Model.TargetAnomalyFraction <= 0 || c.Model.TargetAnomalyFraction >= 1 {
		return fmt.Errorf("model.target_anomaly_fraction must be in (0, 1)")
	}
	if c.Model.DistanceMetric != "mahalanobis" {
		return fmt.Errorf("model.distance_metric %q is not supported, only mahalanobis", c.Model.DistanceMetric)
	}
	if c.Risk.RewardRatio <= 0 {
		return fmt.Errorf("risk.reward_ratio must be positive")
	}
	if c.Risk.TrailingStopFraction <= 0 || c.Risk.TrailingStopFraction >= 1 {
		return fmt.Errorf("risk.trailing_stop_fraction must be in (0, 1)")
	}
	if c.Risk.MaxDailyTrades < 1 {
		return fmt.Errorf("risk.max_daily_trades must be at least 1")
	}
	return nil
}

// StreamConfig returns the stream client configuration.
func (c *Config) StreamConfig() stream.Config {
	return stream.Config{
		ReconnectDelay:    time.Duration(c.Stream.ReconnectDelay),
		MaxReconnectDelay: time.Duration(c.Stream.MaxReconnectDelay),
		IdleTimeout:       time.Duration(c.Stream.IdleTimeout),
	}
}

// IngestionConfig returns the normalization configuration.
func (c *Config) IngestionConfig() ingestion.Config {
	return ingestion.Config{
		LiquidityFloorUSD: c.Ingestion.LiquidityFloorUSD,
		SmoothingWeight:   c.Ingestion.VolumeEWMAWeight,
	}
}

// FeatureWindow returns the rolling history window for feature derivation.
func (c *Config) FeatureWindow() time.Duration {
	return time.Duration(c.Ingestion.FeatureWindow)
}

// ModelParams returns the alpha model parameters.
func (c *Config) ModelParams() alpha.ModelParams {
	return alpha.ModelParams{
		NeighborCount:         c.Model.NeighborCount,
		TargetAnomalyFraction: c.Model.TargetAnomalyFraction,
	}
}

// RiskParams returns the risk engine parameters. The liquidity floor is
// shared with ingestion.
func (c *Config) RiskParams() risk.Params {
	return risk.Params{
		LiquidityFloorUSD:    c.Ingestion.LiquidityFloorUSD,
		MaxPositionFraction:  c.Risk.MaxPositionFraction,
		PositionCeiling:      c.Risk.PositionCeiling,
		TrailingStopFraction: c.Risk.TrailingStopFraction,
		RewardRatio:          c.Risk.RewardRatio,
		MaxDailyTrades:       c.Risk.MaxDailyTrades,
		MinConfidence:        c.Risk.MinConfidenceScore,
		OrderPremiumFraction: c.Risk.OrderPremiumFraction,
	}
}

func getEnvFloat(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return &f
		}
	}
	return nil
}

func getEnvInt(key string) *int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return &n
		}
	}
	return nil
}
