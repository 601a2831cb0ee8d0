package memory

import (
	"context"
	"errors"
	"testing"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/storage"
)

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap := &domain.TokenSnapshot{
		Address:      "tok1",
		TimestampMs:  1704067200000,
		LiquidityUSD: 300000,
		VolumeUSD:    75000,
		PriceUSD:     0.0042,
		Holders:      1200,
		AgeHours:     18,
	}

	if err := store.Insert(ctx, snap); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByAddress(ctx, "tok1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(result))
	}

	if result[0].PriceUSD != 0.0042 {
		t.Errorf("Price mismatch: got %f, want %f", result[0].PriceUSD, 0.0042)
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap := &domain.TokenSnapshot{Address: "tok1", TimestampMs: 1000}

	if err := store.Insert(ctx, snap); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, snap)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_GetByTimeRange(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		snap := &domain.TokenSnapshot{Address: "tok1", TimestampMs: ts}
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, "tok1", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result))
	}

	if result[0].TimestampMs != 2000 || result[1].TimestampMs != 3000 {
		t.Errorf("Wrong ordering: got %d, %d", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	if err := store.Insert(ctx, &domain.TokenSnapshot{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty address, got %v", err)
	}
}
