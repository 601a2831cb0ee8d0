// Package risk gates alpha signals against hard trading limits and sizes
// the orders that pass. Limits are enforced here and nowhere else; no
// upstream data quality problem may breach them.
package risk

import (
	"log"
	"math"
	"sync"

	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/history"
	"token-alpha-engine/internal/observability"
)

// Params holds the risk-control configuration.
type Params struct {
	LiquidityFloorUSD    float64 // minimum liquidity for any trade
	MaxPositionFraction  float64 // cap as a fraction of portfolio
	PositionCeiling      float64 // absolute sizing ceiling, overrides the formula
	TrailingStopFraction float64 // stop distance below entry
	RewardRatio          float64 // take-profit multiple over entry
	MaxDailyTrades       int     // hard daily cap
	MinConfidence        float64 // minimum decision score
	OrderPremiumFraction float64 // limit-price premium over spot
}

// Position is an open entry in the position book.
type Position struct {
	Address    string
	EntryPrice float64
	Amount     float64
	OpenedAtMs int64
}

// Engine evaluates scored snapshots against the pre-trade gate and builds
// order intents. The daily counter and position book are guarded by a
// mutex: the gate check and its state updates must be atomic, and the
// daily reset runs on the scheduler goroutine.
type Engine struct {
	params Params
	hist   *history.Store
	logger *log.Logger

	mu          sync.Mutex
	dailyTrades int
	positions   map[string]Position
}

// NewEngine creates a risk engine with a fresh state.
func NewEngine(params Params, hist *history.Store, logger *log.Logger) *Engine {
	return &Engine{
		params:    params,
		hist:      hist,
		logger:    logger,
		positions: make(map[string]Position),
	}
}

// EvaluateTrade runs the pre-trade gate and, on pass, sizes and builds an
// order intent. The second return is false when any gate blocks the trade;
// blocked trades are silent, never errors. On emission the daily counter
// and position book are updated under the same lock as the gate check, so
// two concurrent evaluations can never both pass the last daily slot.
func (e *Engine) EvaluateTrade(score float64, snap domain.TokenSnapshot) (*domain.OrderIntent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dailyTrades >= e.params.MaxDailyTrades {
		observability.RecordTradeBlocked("daily_cap")
		return nil, false
	}
	if snap.LiquidityUSD < e.params.LiquidityFloorUSD {
		observability.RecordTradeBlocked("liquidity_floor")
		return nil, false
	}
	if score < e.params.MinConfidence {
		observability.RecordTradeBlocked("confidence")
		return nil, false
	}

	size, ok := e.positionSize(snap)
	if !ok {
		observability.RecordTradeBlocked("no_reference")
		return nil, false
	}

	order := &domain.OrderIntent{
		Symbol:     snap.Address,
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		Price:      snap.PriceUSD * (1 + e.params.OrderPremiumFraction),
		Amount:     size,
		StopLoss:   snap.PriceUSD * (1 - e.params.TrailingStopFraction),
		TakeProfit: snap.PriceUSD * (1 + e.params.RewardRatio),
	}

	e.dailyTrades++
	e.positions[snap.Address] = Position{
		Address:    snap.Address,
		EntryPrice: order.Price,
		Amount:     size,
		OpenedAtMs: snap.TimestampMs,
	}

	return order, true
}

// positionSize computes the volatility-adjusted Kelly-style size:
// |price / reference price| / reward ratio, scaled by the portfolio
// fraction and clamped to the absolute ceiling. Allocation grows with
// recent price movement and shrinks as the reward target rises.
func (e *Engine) positionSize(snap domain.TokenSnapshot) (float64, bool) {
	ref, ok := e.hist.Reference(snap.Address, snap.TimestampMs)
	if !ok || ref.TimestampMs >= snap.TimestampMs || ref.PriceUSD == 0 {
		// A signal without usable price history cannot be sized.
		return 0, false
	}

	kelly := math.Abs(snap.PriceUSD/ref.PriceUSD) / e.params.RewardRatio
	return math.Min(kelly*e.params.MaxPositionFraction, e.params.PositionCeiling), true
}

// DailyTrades returns the number of trades emitted since the last reset.
func (e *Engine) DailyTrades() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyTrades
}

// Position returns the open position for an address, if any.
func (e *Engine) Position(address string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[address]
	return p, ok
}

// ResetDailyTrades zeroes the daily counter. Called at the trading-day
// boundary by the scheduler.
func (e *Engine) ResetDailyTrades() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dailyTrades > 0 {
		e.logger.Printf("daily trade counter reset (was %d)", e.dailyTrades)
	}
	e.dailyTrades = 0
}
