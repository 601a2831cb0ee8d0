// Package orchestrator wires the full decision pipeline.
// Flow: stream → ingestion/normalization → scoring → risk gate → order sink
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"token-alpha-engine/internal/alpha"
	"token-alpha-engine/internal/config"
	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/ingestion"
	"token-alpha-engine/internal/observability"
	"token-alpha-engine/internal/risk"
	"token-alpha-engine/internal/storage"
	"token-alpha-engine/internal/stream"
)

// ringCapacity is the fixed size of the volatility baseline ring.
const ringCapacity = 1000

// restartDelay is the pause before restarting the stream loop after a
// fatal error.
const restartDelay = 30 * time.Second

// dailyResetSpec fires at UTC midnight.
const dailyResetSpec = "0 0 * * *"

// OrderSink receives every emitted order intent.
type OrderSink func(domain.OrderIntent)

// Options for creating an Orchestrator.
type Options struct {
	Config    *config.Config
	Snapshots storage.SnapshotStore
	Patterns  storage.PatternStore

	// OrderSink receives emitted orders. Required.
	OrderSink OrderSink

	// Dialer overrides the stream transport. Nil means websocket.
	Dialer stream.Dialer

	Logger *log.Logger
}

// Orchestrator owns the pipeline components and the run loop.
type Orchestrator struct {
	config   *config.Config
	hist     *history.Store
	alpha    *alpha.Engine
	risk     *risk.Engine
	ingest   *ingestion.Engine
	client   *stream.Client
	patterns storage.PatternStore
	orders   OrderSink
	cron     *cron.Cron
	logger   *log.Logger
}

// New builds the pipeline. The alpha model is fit once here, from the
// trailing pattern corpus.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.OrderSink == nil {
		return nil, fmt.Errorf("order sink is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hist := history.NewStore(opts.Config.FeatureWindow(), ringCapacity)

	alphaEngine, err := alpha.NewEngine(ctx, opts.Patterns, hist, opts.Config.ModelParams(), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build alpha engine: %w", err)
	}

	o := &Orchestrator{
		config:   opts.Config,
		hist:     hist,
		alpha:    alphaEngine,
		risk:     risk.NewEngine(opts.Config.RiskParams(), hist, opts.Logger),
		patterns: opts.Patterns,
		orders:   opts.OrderSink,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   opts.Logger,
	}

	o.ingest = ingestion.NewEngine(opts.Config.IngestionConfig(), hist, opts.Snapshots, o.handleSnapshot, opts.Logger)
	o.client = stream.NewClient(opts.Config.Stream.Endpoint, opts.Config.StreamConfig(), opts.Dialer, opts.Logger)

	if _, err := o.cron.AddFunc(dailyResetSpec, o.resetDailyTrades); err != nil {
		return nil, fmt.Errorf("failed to schedule daily reset: %w", err)
	}

	return o, nil
}

// Run drives the stream loop until ctx is cancelled. A loop exit that is
// not a cancellation is logged and the loop restarts after a fixed delay.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.cron.Start()
	defer o.cron.Stop()
	defer o.ingest.Drain()

	for {
		err := o.runStream(ctx)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}

		o.logger.Printf("stream loop exited: %v, restarting in %s", err, restartDelay)
		timer := time.NewTimer(restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runStream drives one streaming session. Messages are handled on the
// read loop's goroutine, so a panic anywhere in the per-message path
// unwinds to here; it is converted into an error and handed to the
// restart loop instead of taking the process down.
func (o *Orchestrator) runStream(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return o.client.Run(ctx, func(msg []byte) {
		o.ingest.HandleMessage(ctx, msg)
	})
}

// handleSnapshot runs scoring and the risk gate for one accepted
// snapshot. Called on the message loop; everything here is synchronous
// except the pattern write-back.
func (o *Orchestrator) handleSnapshot(ctx context.Context, snap domain.TokenSnapshot) {
	start := time.Now()
	score := o.alpha.Score(snap)
	observability.RecordScore(score, time.Since(start).Seconds())

	order, ok := o.risk.EvaluateTrade(score, snap)
	if !ok {
		return
	}

	observability.DefaultMetrics.OrdersEmitted.Inc()
	observability.DefaultMetrics.DailyTrades.Set(float64(o.risk.DailyTrades()))
	o.logger.Printf("order emitted: %s %s %.8f amount=%.6f stop=%.8f tp=%.8f",
		order.Side, order.Symbol, order.Price, order.Amount, order.StopLoss, order.TakeProfit)

	o.recordPattern(snap, score)
	o.orders(*order)
}

// recordPattern writes the acted-on feature vector back into the corpus
// so future fits learn from emitted trades. Best-effort, off the hot
// path.
func (o *Orchestrator) recordPattern(snap domain.TokenSnapshot, score float64) {
	features, ok := o.alpha.ExtractFeatures(snap)
	if !ok {
		return
	}
	record := &domain.PatternRecord{
		Features:      features,
		Profitability: score,
		CreatedAtMs:   snap.TimestampMs,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.patterns.Insert(ctx, record); err != nil {
			o.logger.Printf("failed to record pattern for %s: %v", snap.Address, err)
			observability.RecordPersistError("patterns")
			return
		}
		observability.DefaultMetrics.PatternsRecorded.Inc()
	}()
}

func (o *Orchestrator) resetDailyTrades() {
	o.risk.ResetDailyTrades()
	observability.DefaultMetrics.DailyTrades.Set(0)
	o.logger.Printf("daily trade counter reset")
}
