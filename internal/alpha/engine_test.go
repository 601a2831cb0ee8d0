package alpha

import (
	"context"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/storage/memory"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedPatterns inserts n recent pattern records forming a tight cluster.
func seedPatterns(t *testing.T, store *memory.PatternStore, n int) {
	t.Helper()
	now := time.Now().UnixMilli()
	for i := 0; i < n; i++ {
		jitter := float64(i) * 0.01
		rec := &domain.PatternRecord{
			Features:    domain.FeatureVector{1 + jitter, 10 + jitter, 1 + jitter, 0.5 + jitter},
			CreatedAtMs: now - int64(i)*1000,
		}
		if err := store.Insert(context.Background(), rec); err != nil {
			t.Fatalf("seed pattern: %v", err)
		}
	}
}

func TestNewEngine_EmptyCorpusIsDegradedNotFatal(t *testing.T) {
	hist := history.NewStore(6*time.Hour, 1000)

	engine, err := NewEngine(context.Background(), memory.NewPatternStore(), hist, DefaultModelParams(), testLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if engine.Ready() {
		t.Error("engine should not be ready without a corpus")
	}

	snap := domain.TokenSnapshot{Address: "tok1", TimestampMs: 1000, PriceUSD: 1}
	if got := engine.Score(snap); got != 0 {
		t.Errorf("degraded score = %f, want 0", got)
	}
}

func TestEngine_NoHistoryScoresNeutral(t *testing.T) {
	hist := history.NewStore(6*time.Hour, 1000)
	patterns := memory.NewPatternStore()
	seedPatterns(t, patterns, 30)

	engine, err := NewEngine(context.Background(), patterns, hist, DefaultModelParams(), testLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if !engine.Ready() {
		t.Fatal("engine should be ready")
	}

	// Address has never been seen; scoring must short-circuit to neutral.
	snap := domain.TokenSnapshot{Address: "fresh", TimestampMs: 5000, LiquidityUSD: 300000, PriceUSD: 0.01}
	if got := engine.Score(snap); got != 0 {
		t.Errorf("score without history = %f, want 0", got)
	}
}

func TestEngine_ExtractFeatures(t *testing.T) {
	hist := history.NewStore(6*time.Hour, 1000)
	hist.RecordVolatility(50)
	hist.Record(domain.TokenSnapshot{
		Address: "tok1", TimestampMs: 1000,
		LiquidityUSD: 100000, VolumeUSD: 40000, Holders: 99, PriceUSD: 0.001,
	})

	engine := &Engine{hist: hist, logger: testLogger()}

	current := domain.TokenSnapshot{
		Address: "tok1", TimestampMs: 2000,
		LiquidityUSD: 250000, VolumeUSD: 100000, Holders: 250, PriceUSD: 0.002,
	}

	features, ok := engine.ExtractFeatures(current)
	if !ok {
		t.Fatal("expected features")
	}

	if got := features[domain.FeatureLiquidityVelocity]; got != 2.5 {
		t.Errorf("liquidity velocity = %f, want 2.5", got)
	}
	if got := features[domain.FeatureVolumeAcceleration]; got != 100000-2*40000 {
		t.Errorf("volume acceleration = %f, want 20000", got)
	}
	if got := features[domain.FeatureHolderGrowth]; got != 2.5 {
		t.Errorf("holder growth = %f, want 2.5", got)
	}
	wantRatio := 0.002 / (50 + volatilityEpsilon)
	if math.Abs(features[domain.FeaturePriceVolatility]-wantRatio) > 1e-15 {
		t.Errorf("price-volatility ratio = %g, want %g", features[domain.FeaturePriceVolatility], wantRatio)
	}
}

func TestEngine_ReferenceMustPredateSnapshot(t *testing.T) {
	hist := history.NewStore(6*time.Hour, 1000)

	snap := domain.TokenSnapshot{
		Address: "tok1", TimestampMs: 1000,
		LiquidityUSD: 100000, VolumeUSD: 1, Holders: 1, PriceUSD: 1,
	}
	hist.Record(snap)

	engine := &Engine{hist: hist, logger: testLogger()}

	// The only history entry is the snapshot itself.
	if _, ok := engine.ExtractFeatures(snap); ok {
		t.Error("snapshot must not be its own reference")
	}
}

func TestEngine_FrozenScalingSurvivesCorpusGrowth(t *testing.T) {
	hist := history.NewStore(6*time.Hour, 1000)
	hist.RecordVolatility(50)
	hist.Record(domain.TokenSnapshot{
		Address: "tok1", TimestampMs: 1000,
		LiquidityUSD: 100000, VolumeUSD: 40000, Holders: 99, PriceUSD: 0.001,
	})

	patterns := memory.NewPatternStore()
	seedPatterns(t, patterns, 30)

	engine, err := NewEngine(context.Background(), patterns, hist, DefaultModelParams(), testLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	snap := domain.TokenSnapshot{
		Address: "tok1", TimestampMs: 2000,
		LiquidityUSD: 900000, VolumeUSD: 500000, Holders: 5000, PriceUSD: 0.05,
	}

	before := engine.Score(snap)

	// New corpus records arrive after fit; without a refit they must not
	// change anything.
	seedPatterns(t, patterns, 20)

	after := engine.Score(snap)
	if before != after {
		t.Errorf("score changed without refit: %f vs %f", before, after)
	}
}
