package models

import (
	"fmt"
	"time"
)

// SignalType tags the kind of a detected signal.
type SignalType string

const (
	SignalBigTrade      SignalType = "big_trade"
	SignalPriceMovement SignalType = "price_movement"
	SignalVolumeSpike   SignalType = "volume_spike"
)

// Label returns the human-readable name used on the dashboard.
func (t SignalType) Label() string {
	switch t {
	case SignalBigTrade:
		return "Large Order"
	case SignalPriceMovement:
		return "Price Move"
	case SignalVolumeSpike:
		return "Volume Spike"
	default:
		return string(t)
	}
}

// Bias is the inferred trade direction associated with a signal.
type Bias int

const (
	BiasNone Bias = iota
	BiasLong
	BiasShort
)

func (b Bias) String() string {
	switch b {
	case BiasLong:
		return "long"
	case BiasShort:
		return "short"
	default:
		return "none"
	}
}

// Signal is a scored trading opportunity. The common envelope is always
// populated; exactly one of the per-kind field groups is, keyed by Type.
type Signal struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Type        SignalType `json:"type"`
	Time        string     `json:"time"` // detection time, HH:MM:SS
	DetectedAt  time.Time  `json:"detected_at"`
	AddedAt     time.Time  `json:"added_at"` // ledger insertion time
	Score       float64    `json:"score"`
	Bias        Bias       `json:"bias"`
	HighQuality bool       `json:"high_quality"`

	// big_trade
	Price float64 `json:"price,omitempty"`
	Size  float64 `json:"size,omitempty"`
	Value float64 `json:"value,omitempty"`
	Side  Side    `json:"side,omitempty"`

	// price_movement
	CurrentPrice float64 `json:"current_price,omitempty"`
	PrevPrice    float64 `json:"prev_price,omitempty"`
	PctChange    float64 `json:"pct_change,omitempty"`
	Direction    string  `json:"direction,omitempty"` // "up" or "down"
	HasTrend     bool    `json:"has_trend,omitempty"`

	// volume_spike
	RecentVolume    float64 `json:"recent_volume,omitempty"`
	AvgHourlyVolume float64 `json:"avg_hourly_volume,omitempty"`
	Ratio           float64 `json:"ratio,omitempty"`
}

// SignalID builds the stable identity key used for ledger deduplication.
// Two signals with the same symbol, type, and second-resolution detection
// time collapse to one ledger entry.
func SignalID(symbol string, t SignalType, timeStr string) string {
	return fmt.Sprintf("%s_%s_%s", symbol, t, timeStr)
}
