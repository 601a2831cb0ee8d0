package stream

import (
	"encoding/json"
	"fmt"
)

// Message types carried in the envelope discriminator.
const (
	MessageTypeTokenUpdate = "token_update"
	MessageTypeHeartbeat   = "heartbeat"
)

// Envelope carries the message type discriminator.
type Envelope struct {
	Type string `json:"type"`
}

// TokenUpdate is the per-token market snapshot message.
type TokenUpdate struct {
	ContractAddress string `json:"contractAddress"`
	Liquidity       struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume24h struct {
		USD float64 `json:"usd"`
	} `json:"volume24h"`
	Price struct {
		USD float64 `json:"usd"`
	} `json:"price"`
	Holders    int64 `json:"holders"`
	LaunchedAt int64 `json:"launchedAt"`
}

// Heartbeat carries the feed's market volatility sample.
type Heartbeat struct {
	Volatility float64 `json:"volatility"`
}

// ParseEnvelope extracts the message type from raw bytes.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("message missing type discriminator")
	}
	return env, nil
}

// ParseTokenUpdate parses and validates a token_update payload.
func ParseTokenUpdate(data []byte) (*TokenUpdate, error) {
	var update TokenUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to parse token update: %w", err)
	}
	if err := ValidateAddress(update.ContractAddress); err != nil {
		return nil, fmt.Errorf("token update %q: %w", update.ContractAddress, err)
	}
	if update.Liquidity.USD < 0 || update.Volume24h.USD < 0 || update.Price.USD < 0 {
		return nil, fmt.Errorf("token update %s: negative market values", update.ContractAddress)
	}
	if update.Holders < 0 {
		return nil, fmt.Errorf("token update %s: negative holder count", update.ContractAddress)
	}
	return &update, nil
}

// ParseHeartbeat parses a heartbeat payload.
func ParseHeartbeat(data []byte) (*Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("failed to parse heartbeat: %w", err)
	}
	return &hb, nil
}
