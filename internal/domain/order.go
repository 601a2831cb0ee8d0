package domain

// Side represents the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType represents the execution style of an order.
type OrderType string

const (
	// OrderTypeLimit rests at a fixed price to avoid adverse slippage.
	OrderTypeLimit OrderType = "LIMIT"
)

// OrderIntent is the output artifact of the risk engine: a fully sized and
// bracketed order, immutable once built, handed to the external execution
// venue. This system constructs and gates intents; it never places them.
type OrderIntent struct {
	Symbol     string    // token contract address
	Side       Side      // always BUY for alpha entries
	Type       OrderType // always LIMIT
	Price      float64   // limit price, premium over spot
	Amount     float64   // position size as a fraction of portfolio
	StopLoss   float64   // trailing stop below entry
	TakeProfit float64   // reward target above entry
}
