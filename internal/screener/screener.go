// Package screener implements the signal-detection and scoring engine: it
// ingests ticker and trade snapshots, maintains bounded per-symbol history,
// detects big trades, price movements, and volume spikes, scores the
// survivors, and keeps a rolling deduplicated opportunity history.
package screener

import (
	"sort"
	"sync"
	"time"

	"github.com/perpscope/perpscope/internal/logger"
	"github.com/perpscope/perpscope/internal/models"
)

// Market is the top-level market-state aggregate. One update cycle (tick)
// mutates it under the exclusive lock: tickers, then recent trades, then
// UpdateOpportunities. Readers only ever observe fully-ingested state.
type Market struct {
	mu  sync.RWMutex
	cfg Config

	tickers      map[string]*models.Ticker
	instruments  map[string]models.Instrument
	recentTrades map[string][]models.Trade

	history  *historyStore
	cooldown *cooldownTracker
	ledger   *ledger

	lastUpdate time.Time
	now        func() time.Time
}

// New creates an empty market-state aggregate with the given thresholds.
func New(cfg Config) *Market {
	return &Market{
		cfg:          cfg,
		tickers:      make(map[string]*models.Ticker),
		instruments:  make(map[string]models.Instrument),
		recentTrades: make(map[string][]models.Trade),
		history:      newHistoryStore(cfg.HistoryWindow),
		cooldown:     newCooldownTracker(cfg.SignalCooldown),
		ledger:       newLedger(),
		now:          time.Now,
	}
}

// UpdateTickers replaces each symbol's ticker with the new snapshot,
// carrying the previous last price forward for instantaneous-change
// detection, and appends to the rolling price/volume history.
func (m *Market) UpdateTickers(tickers []models.Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tickers {
		if t.Symbol == "" {
			continue
		}
		next := t
		if prev, ok := m.tickers[t.Symbol]; ok {
			next.PrevPrice = prev.LastPrice
		}
		m.tickers[t.Symbol] = &next

		m.history.RecordPrice(t.Symbol, t.LastPrice)
		m.history.RecordVolume(t.Symbol, t.Volume24h)
	}
	m.lastUpdate = m.now()
	logger.Debug("Updated tickers for %d symbols", len(tickers))
}

// UpdateLastPrice applies a single streamed last-price update. Unlike a
// full snapshot it does not touch PrevPrice or the rolling history, so
// instantaneous-change detection still compares poll-to-poll prices.
func (m *Market) UpdateLastPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickers[symbol]
	if !ok || price <= 0 {
		return
	}
	t.LastPrice = price
}

// UpdateInstruments replaces the stored instrument metadata.
func (m *Market) UpdateInstruments(instruments []models.Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, in := range instruments {
		if in.Symbol == "" {
			continue
		}
		m.instruments[in.Symbol] = in
	}
	logger.Debug("Updated instruments for %d symbols", len(instruments))
}

// UpdateRecentTrades replaces the symbol's recent-trade window wholesale.
// Windows are never merged incrementally.
func (m *Market) UpdateRecentTrades(symbol string, trades []models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentTrades[symbol] = trades
	logger.Debug("Updated %d recent trades for %s", len(trades), symbol)
}

// UpdateOpportunities runs the three detectors against the current
// snapshot state, scores surviving candidates, merges them into the
// opportunity ledger, and returns the resulting view.
func (m *Market) UpdateOpportunities() []models.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var candidates []models.Signal

	// Big trades are only scanned for the top-volume subset; that is the
	// set the driver fetches recent-trade windows for.
	for _, coin := range m.topVolumeLocked(m.cfg.TopCoinsLimit) {
		candidates = append(candidates, m.detectBigTrades(coin.Symbol, now)...)
	}
	candidates = append(candidates, m.detectPriceMovements(now)...)
	candidates = append(candidates, m.detectVolumeSpikes(now)...)

	for i := range candidates {
		s := &candidates[i]
		m.scoreSignal(s, now)
		s.HighQuality = s.Score >= m.cfg.MinSignalScore &&
			(!m.cfg.DirectionalBiasRequired || s.Bias != models.BiasNone)
		s.ID = models.SignalID(s.Symbol, s.Type, s.Time)
	}

	m.ledger.Ingest(candidates, now)

	view := m.ledger.View()
	highQuality := 0
	for _, s := range view {
		if s.HighQuality {
			highQuality++
		}
	}
	logger.Info("Updated opportunities: %d signals in history, %d high-quality", len(view), highQuality)
	return view
}

// Opportunities returns the current opportunity view, newest first.
func (m *Market) Opportunities() []models.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledger.View()
}

// TopVolumeCoins returns up to limit tickers ordered by 24h volume
// descending, excluding symbols whose instrument metadata reports a
// non-trading status.
func (m *Market) TopVolumeCoins(limit int) []models.Ticker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topVolumeLocked(limit)
}

// LastUpdate reports when the aggregate last ingested a ticker snapshot.
func (m *Market) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}

// ConfirmsTrend reports whether the symbol's price history is strictly
// monotonic in the given direction over the configured lookback.
func (m *Market) ConfirmsTrend(symbol, direction string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.confirmsTrendLocked(symbol, direction)
}

// HasRecentSignalCluster reports whether several signal types fired for
// the symbol recently. The dashboard uses it to annotate combined signals.
func (m *Market) HasRecentSignalCluster(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cooldown.HasMultipleRecentTypes(symbol, m.now())
}

func (m *Market) confirmsTrendLocked(symbol, direction string) bool {
	return confirmsTrend(m.history.Prices(symbol), direction, m.cfg.TrendConfirmationPeriods)
}

func (m *Market) topVolumeLocked(limit int) []models.Ticker {
	coins := make([]models.Ticker, 0, len(m.tickers))
	for sym, t := range m.tickers {
		// Contracts in settlement or delisting still publish tickers;
		// keep them out of the scan subset. Symbols without instrument
		// metadata pass through.
		if in, ok := m.instruments[sym]; ok && in.Status != models.StatusTrading {
			continue
		}
		coins = append(coins, *t)
	}
	sort.Slice(coins, func(i, j int) bool {
		return coins[i].Volume24h > coins[j].Volume24h
	})
	if limit > 0 && len(coins) > limit {
		coins = coins[:limit]
	}
	return coins
}
