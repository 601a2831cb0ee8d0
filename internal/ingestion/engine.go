// Package ingestion normalizes raw stream messages into token snapshots.
// The engine owns the hot path: one message at a time is parsed,
// dispatched, normalized, cached, and handed to the downstream sink.
// Persistence happens off the hot path and its failures never interrupt
// the stream.
package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/observability"
	"token-alpha-engine/internal/storage"
	"token-alpha-engine/internal/stream"
)

// Config configures normalization behavior.
type Config struct {
	// LiquidityFloorUSD drops snapshots below this liquidity outright.
	LiquidityFloorUSD float64
	// SmoothingWeight is the weight of the raw volume sample in the EWMA;
	// the remainder anchors to the market-wide volatility baseline.
	SmoothingWeight float64
}

// DefaultConfig returns default normalization configuration.
func DefaultConfig() Config {
	return Config{
		LiquidityFloorUSD: 250000,
		SmoothingWeight:   0.2,
	}
}

// Sink receives every accepted, cached snapshot. Called synchronously on
// the message loop, after the snapshot is recorded into history.
type Sink func(ctx context.Context, snap domain.TokenSnapshot)

// Engine normalizes stream messages.
type Engine struct {
	config    Config
	hist      *history.Store
	snapshots storage.SnapshotStore
	sink      Sink
	logger    *log.Logger

	// nowMs is the clock; overridable in tests.
	nowMs func() int64

	persistWG sync.WaitGroup
}

// NewEngine creates an ingestion engine. snapshots may be nil to disable
// persistence; sink may be nil to disable forwarding.
func NewEngine(config Config, hist *history.Store, snapshots storage.SnapshotStore, sink Sink, logger *log.Logger) *Engine {
	return &Engine{
		config:    config,
		hist:      hist,
		snapshots: snapshots,
		sink:      sink,
		logger:    logger,
		nowMs:     func() int64 { return time.Now().UnixMilli() },
	}
}

// HandleMessage processes one raw stream message. Malformed messages are
// logged and skipped; unknown types are ignored.
func (e *Engine) HandleMessage(ctx context.Context, raw []byte) {
	env, err := stream.ParseEnvelope(raw)
	if err != nil {
		e.logger.Printf("skipping malformed message: %v", err)
		observability.RecordParseError("envelope")
		return
	}

	switch env.Type {
	case stream.MessageTypeHeartbeat:
		e.handleHeartbeat(raw)
	case stream.MessageTypeTokenUpdate:
		e.handleTokenUpdate(ctx, raw)
	default:
		// Feed carries message types we do not consume.
	}
	observability.DefaultMetrics.LastMessageTimestamp.Set(float64(e.nowMs()) / 1000)
}

func (e *Engine) handleHeartbeat(raw []byte) {
	hb, err := stream.ParseHeartbeat(raw)
	if err != nil {
		e.logger.Printf("skipping malformed heartbeat: %v", err)
		observability.RecordParseError(stream.MessageTypeHeartbeat)
		return
	}
	e.hist.RecordVolatility(hb.Volatility)
	observability.RecordMessage(stream.MessageTypeHeartbeat)
}

func (e *Engine) handleTokenUpdate(ctx context.Context, raw []byte) {
	update, err := stream.ParseTokenUpdate(raw)
	if err != nil {
		e.logger.Printf("skipping malformed token update: %v", err)
		observability.RecordParseError(stream.MessageTypeTokenUpdate)
		return
	}
	observability.RecordMessage(stream.MessageTypeTokenUpdate)

	snap := e.normalize(update)
	if snap.LiquidityUSD < e.config.LiquidityFloorUSD {
		observability.RecordSnapshotDropped("below_liquidity_floor")
		return
	}

	e.hist.Record(snap)
	observability.RecordSnapshotCached(mintStyle(snap.Address))

	e.persist(snap)

	if e.sink != nil {
		e.sink(ctx, snap)
	}
}

// normalize builds a snapshot from a parsed update. Volume is smoothed
// against the market-wide volatility baseline to damp wash-trading noise.
func (e *Engine) normalize(update *stream.TokenUpdate) domain.TokenSnapshot {
	now := e.nowMs()

	baseline := e.hist.Baseline()
	smoothed := e.config.SmoothingWeight*update.Volume24h.USD + (1-e.config.SmoothingWeight)*baseline

	var ageHours float64
	if update.LaunchedAt > 0 && update.LaunchedAt < now {
		ageHours = float64(now-update.LaunchedAt) / float64(time.Hour/time.Millisecond)
	}

	return domain.TokenSnapshot{
		Address:      update.ContractAddress,
		TimestampMs:  now,
		LiquidityUSD: update.Liquidity.USD,
		VolumeUSD:    smoothed,
		PriceUSD:     update.Price.USD,
		Holders:      update.Holders,
		AgeHours:     ageHours,
	}
}

// persist writes the snapshot in the background. Storage failure is
// logged, never surfaced to the message loop.
func (e *Engine) persist(snap domain.TokenSnapshot) {
	if e.snapshots == nil {
		return
	}
	e.persistWG.Add(1)
	go func() {
		defer e.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.snapshots.Insert(ctx, &snap); err != nil {
			e.logger.Printf("failed to persist snapshot for %s: %v", snap.Address, err)
			observability.RecordPersistError("snapshots")
			return
		}
		observability.DefaultMetrics.SnapshotsStored.Inc()
	}()
}

// Drain waits for in-flight persistence writes. Called on shutdown.
func (e *Engine) Drain() {
	e.persistWG.Wait()
}

func mintStyle(address string) string {
	if stream.IsOnCurve(address) {
		return "keypair"
	}
	return "pda"
}
