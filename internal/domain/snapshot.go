package domain

// TokenSnapshot is a normalized observation of a single token at one point
// in time. Snapshots are immutable once created; a newer snapshot for the
// same address supersedes the previous one, it never mutates it.
type TokenSnapshot struct {
	Address      string  // token contract address (base58 mint)
	TimestampMs  int64   // observation time, Unix milliseconds
	LiquidityUSD float64 // pool liquidity in USD, taken verbatim from the feed
	VolumeUSD    float64 // 24h volume in USD, EWMA-smoothed against the volatility baseline
	PriceUSD     float64 // spot price in USD
	Holders      int64   // holder count
	AgeHours     float64 // hours since token launch
}
