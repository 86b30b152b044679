// Package models defines the core domain entities: tickers, trades, and signals.
package models

import (
	"errors"
	"time"
)

// Ticker is one parsed market snapshot for a USDT perpetual symbol.
// PrevPrice is the last price carried over from the previous snapshot;
// it stays zero until the symbol has been seen twice.
type Ticker struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	PrevPrice    float64 `json:"prev_price"`
	Volume24h    float64 `json:"volume_24h"`
	Turnover24h  float64 `json:"turnover_24h"`
	Price24hPcnt float64 `json:"price_24h_pcnt"`
	HighPrice24h float64 `json:"high_price_24h"`
	LowPrice24h  float64 `json:"low_price_24h"`
}

// Validate checks ticker field constraints.
func (t *Ticker) Validate() error {
	if t.Symbol == "" {
		return errors.New("ticker symbol must not be empty")
	}
	if t.LastPrice < 0 {
		return errors.New("last price must not be negative")
	}
	if t.Volume24h < 0 {
		return errors.New("24h volume must not be negative")
	}
	if t.Turnover24h < 0 {
		return errors.New("24h turnover must not be negative")
	}
	return nil
}

// Side is the taker side of an executed trade.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Trade is one executed trade from a symbol's recent-trade window.
type Trade struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  Side    `json:"side"`
	Time  int64   `json:"time"` // exchange timestamp, ms epoch
}

// Validate checks trade field constraints.
func (tr *Trade) Validate() error {
	if tr.Price <= 0 {
		return errors.New("trade price must be positive")
	}
	if tr.Size < 0 {
		return errors.New("trade size must not be negative")
	}
	if tr.Side != SideBuy && tr.Side != SideSell {
		return errors.New("trade side must be Buy or Sell")
	}
	if tr.Time < 0 {
		return errors.New("trade time must not be negative")
	}
	return nil
}

// Timestamp returns the trade's exchange time as time.Time.
func (tr *Trade) Timestamp() time.Time {
	return time.UnixMilli(tr.Time)
}

// StatusTrading is the instrument status of an actively tradable
// contract. Other statuses cover pre-launch, settlement, and delisting.
const StatusTrading = "Trading"

// Instrument describes a tradable contract from the instruments endpoint.
type Instrument struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	BaseCoin  string `json:"base_coin"`
	QuoteCoin string `json:"quote_coin"`
}
