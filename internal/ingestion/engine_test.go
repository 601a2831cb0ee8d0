package ingestion

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/storage/memory"
)

const testAddress = "11111111111111111111111111111111"

func newTestEngine(t *testing.T, sink Sink) (*Engine, *history.Store, *memory.SnapshotStore) {
	t.Helper()
	hist := history.NewStore(time.Hour, 1000)
	snapshots := memory.NewSnapshotStore()
	engine := NewEngine(DefaultConfig(), hist, snapshots, sink, log.New(io.Discard, "", 0))
	engine.nowMs = func() int64 { return 1_700_000_000_000 }
	return engine, hist, snapshots
}

func tokenUpdateJSON(liquidity, volume, price float64, holders int64) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "token_update",
		"contractAddress": %q,
		"liquidity": {"usd": %v},
		"volume24h": {"usd": %v},
		"price": {"usd": %v},
		"holders": %d,
		"launchedAt": 1699996400000
	}`, testAddress, liquidity, volume, price, holders))
}

func TestHandleMessageSmoothsVolumeAgainstBaseline(t *testing.T) {
	engine, hist, _ := newTestEngine(t, nil)

	engine.HandleMessage(context.Background(), []byte(`{"type":"heartbeat","volatility":50}`))
	engine.HandleMessage(context.Background(), tokenUpdateJSON(300000, 100, 0.002, 40))

	snap, ok := hist.Latest(testAddress)
	if !ok {
		t.Fatal("snapshot was not cached")
	}
	// 0.2*100 + 0.8*50
	if snap.VolumeUSD != 60 {
		t.Errorf("VolumeUSD = %v, want 60", snap.VolumeUSD)
	}
	if snap.LiquidityUSD != 300000 {
		t.Errorf("LiquidityUSD = %v, want 300000", snap.LiquidityUSD)
	}
	if snap.Holders != 40 {
		t.Errorf("Holders = %d, want 40", snap.Holders)
	}
	// launchedAt is one hour before the fixed clock.
	if snap.AgeHours != 1 {
		t.Errorf("AgeHours = %v, want 1", snap.AgeHours)
	}
}

func TestHandleMessageDropsBelowLiquidityFloor(t *testing.T) {
	var forwarded []domain.TokenSnapshot
	sink := func(_ context.Context, snap domain.TokenSnapshot) {
		forwarded = append(forwarded, snap)
	}
	engine, hist, snapshots := newTestEngine(t, sink)

	engine.HandleMessage(context.Background(), tokenUpdateJSON(100000, 100, 0.002, 40))
	engine.Drain()

	if _, ok := hist.Latest(testAddress); ok {
		t.Error("below-floor snapshot was cached")
	}
	if len(forwarded) != 0 {
		t.Errorf("below-floor snapshot was forwarded %d times", len(forwarded))
	}
	stored, err := snapshots.GetByAddress(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("below-floor snapshot was persisted %d times", len(stored))
	}
}

func TestHandleMessageForwardsAndPersistsAcceptedSnapshots(t *testing.T) {
	var forwarded []domain.TokenSnapshot
	sink := func(_ context.Context, snap domain.TokenSnapshot) {
		forwarded = append(forwarded, snap)
	}
	engine, _, snapshots := newTestEngine(t, sink)

	engine.HandleMessage(context.Background(), tokenUpdateJSON(300000, 100, 0.002, 40))
	engine.Drain()

	if len(forwarded) != 1 {
		t.Fatalf("forwarded %d snapshots, want 1", len(forwarded))
	}
	stored, err := snapshots.GetByAddress(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("persisted %d snapshots, want 1", len(stored))
	}
	if *stored[0] != forwarded[0] {
		t.Errorf("persisted snapshot %+v differs from forwarded %+v", *stored[0], forwarded[0])
	}
}

func TestHandleMessageSkipsMalformedInput(t *testing.T) {
	engine, hist, _ := newTestEngine(t, nil)

	engine.HandleMessage(context.Background(), []byte(`not json`))
	engine.HandleMessage(context.Background(), []byte(`{"volatility":1}`))
	engine.HandleMessage(context.Background(), []byte(`{"type":"token_update","contractAddress":"bogus"}`))
	engine.HandleMessage(context.Background(), []byte(`{"type":"unknown_event"}`))

	if _, ok := hist.Latest(testAddress); ok {
		t.Error("malformed input produced a cached snapshot")
	}
}

func TestHeartbeatUpdatesBaseline(t *testing.T) {
	engine, hist, _ := newTestEngine(t, nil)

	engine.HandleMessage(context.Background(), []byte(`{"type":"heartbeat","volatility":10}`))
	engine.HandleMessage(context.Background(), []byte(`{"type":"heartbeat","volatility":30}`))

	if got := hist.Baseline(); got != 20 {
		t.Errorf("Baseline() = %v, want 20", got)
	}
}
