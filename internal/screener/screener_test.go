package screener

import (
	"testing"
	"time"

	"github.com/perpscope/perpscope/internal/models"
)

func newTestMarket(t *testing.T) (*Market, time.Time) {
	t.Helper()
	m := New(DefaultConfig())
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, now
}

func ticker(symbol string, lastPrice, volume24h float64) models.Ticker {
	return models.Ticker{Symbol: symbol, LastPrice: lastPrice, Volume24h: volume24h}
}

func TestUpdateTickers_CarriesPreviousPrice(t *testing.T) {
	m, _ := newTestMarket(t)

	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 100, 1000)})
	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 103, 1000)})

	m.mu.RLock()
	defer m.mu.RUnlock()
	tk := m.tickers["BTCUSDT"]
	if tk.PrevPrice != 100 {
		t.Errorf("expected previous price 100, got %v", tk.PrevPrice)
	}
	if tk.LastPrice != 103 {
		t.Errorf("expected last price 103, got %v", tk.LastPrice)
	}
}

func TestUpdateLastPrice_StreamedTouch(t *testing.T) {
	m, _ := newTestMarket(t)

	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 100, 1000)})
	m.UpdateLastPrice("BTCUSDT", 101.5)
	m.UpdateLastPrice("ETHUSDT", 50) // unknown symbol ignored
	m.UpdateLastPrice("BTCUSDT", -1) // bad price ignored

	m.mu.RLock()
	defer m.mu.RUnlock()
	if got := m.tickers["BTCUSDT"].LastPrice; got != 101.5 {
		t.Errorf("expected streamed price 101.5, got %v", got)
	}
	if _, ok := m.tickers["ETHUSDT"]; ok {
		t.Error("streamed update must not create tickers")
	}
	if got := len(m.history.Prices("BTCUSDT")); got != 1 {
		t.Errorf("streamed update must not append history, got %d samples", got)
	}
}

func TestUpdateRecentTrades_ReplacesWholesale(t *testing.T) {
	m, _ := newTestMarket(t)

	m.UpdateRecentTrades("BTCUSDT", []models.Trade{
		{Price: 1, Size: 1, Side: models.SideBuy, Time: 1},
		{Price: 2, Size: 1, Side: models.SideSell, Time: 2},
	})
	m.UpdateRecentTrades("BTCUSDT", []models.Trade{
		{Price: 3, Size: 1, Side: models.SideBuy, Time: 3},
	})

	m.mu.RLock()
	defer m.mu.RUnlock()
	if got := len(m.recentTrades["BTCUSDT"]); got != 1 {
		t.Errorf("expected window replaced wholesale, got %d trades", got)
	}
}

func TestDetectBigTrades_InclusiveBoundary(t *testing.T) {
	m, now := newTestMarket(t)
	tradeTime := now.Add(-time.Minute).UnixMilli()

	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 100000, 0)})
	m.UpdateRecentTrades("BTCUSDT", []models.Trade{
		{Price: 100000, Size: 1.99999, Side: models.SideBuy, Time: tradeTime}, // 199,999: below
		{Price: 100000, Size: 2, Side: models.SideBuy, Time: tradeTime},       // 200,000: exact
	})

	opps := m.UpdateOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected exactly the boundary trade detected, got %d signals", len(opps))
	}
	s := opps[0]
	if s.Type != models.SignalBigTrade {
		t.Fatalf("expected a big-trade signal, got %s", s.Type)
	}
	if s.Value != 200000 {
		t.Errorf("expected value 200000, got %v", s.Value)
	}
	if s.Bias != models.BiasLong {
		t.Errorf("expected long bias for a buy, got %s", s.Bias)
	}
}

func TestDetectBigTrades_CooldownSuppressesRepeat(t *testing.T) {
	m, now := newTestMarket(t)
	tradeTime := now.Add(-time.Minute).UnixMilli()
	trades := []models.Trade{
		{Price: 150000, Size: 2, Side: models.SideBuy, Time: tradeTime},
		{Price: 160000, Size: 2, Side: models.SideBuy, Time: tradeTime + 1000},
	}

	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 150000, 0)})
	m.UpdateRecentTrades("BTCUSDT", trades)

	opps := m.UpdateOpportunities()
	bigTrades := 0
	for _, s := range opps {
		if s.Type == models.SignalBigTrade {
			bigTrades++
		}
	}
	if bigTrades != 1 {
		t.Errorf("expected one buy signal per cooldown window, got %d", bigTrades)
	}
}

func TestPriceMovement_EndToEnd(t *testing.T) {
	m, _ := newTestMarket(t)

	// four strictly increasing prior prices, then the 3% move
	for _, p := range []float64{95, 97, 98, 99, 100} {
		m.UpdateTickers([]models.Ticker{ticker("XBTUSD", p, 0)})
	}
	m.UpdateTickers([]models.Ticker{ticker("XBTUSD", 103, 0)})

	opps := m.UpdateOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one signal, got %d", len(opps))
	}
	s := opps[0]
	if s.Type != models.SignalPriceMovement {
		t.Fatalf("expected a price-movement signal, got %s", s.Type)
	}
	if s.Direction != "up" || !s.HasTrend {
		t.Errorf("expected confirmed up move, got direction=%s trend=%v", s.Direction, s.HasTrend)
	}
	// base (3/1.5)*8 = 16, trend bonus x2 = 32; pct 3 is not > 2*1.5 so
	// the strong-move bonus does not stack
	if s.Score != 32.0 {
		t.Errorf("expected score 32.0, got %v", s.Score)
	}
	if s.Bias != models.BiasLong {
		t.Errorf("expected long bias, got %s", s.Bias)
	}
	if !s.HighQuality {
		t.Error("expected a high-quality signal")
	}
	if s.ID != models.SignalID("XBTUSD", models.SignalPriceMovement, s.Time) {
		t.Errorf("unexpected identity key %s", s.ID)
	}
}

func TestPriceMovement_FirstSnapshotProducesNothing(t *testing.T) {
	m, _ := newTestMarket(t)

	m.UpdateTickers([]models.Ticker{ticker("XBTUSD", 103, 0)})
	if opps := m.UpdateOpportunities(); len(opps) != 0 {
		t.Errorf("no previous price yet, expected no signals, got %d", len(opps))
	}
}

func TestVolumeSpike_BiasPenalty(t *testing.T) {
	m, now := newTestMarket(t)

	// avg hourly volume = 240/24 = 10; one recent trade of size 1 gives
	// ratio 0.10, above the 0.05 default threshold
	m.UpdateTickers([]models.Ticker{ticker("DOGEUSDT", 0.1, 240)})
	m.UpdateRecentTrades("DOGEUSDT", []models.Trade{
		{Price: 0.1, Size: 1, Side: models.SideBuy, Time: now.Add(-time.Minute).UnixMilli()},
	})

	opps := m.UpdateOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one signal, got %d", len(opps))
	}
	s := opps[0]
	if s.Type != models.SignalVolumeSpike {
		t.Fatalf("expected a volume-spike signal, got %s", s.Type)
	}
	// base (0.10/0.05)*5 = 10, no bias resolvable: x0.3 penalty
	if s.Score != 3.0 {
		t.Errorf("expected score 3.0, got %v", s.Score)
	}
	if s.Bias != models.BiasNone {
		t.Errorf("expected no bias, got %s", s.Bias)
	}
	if s.HighQuality {
		t.Error("penalized biasless signal must not be high quality")
	}
}

func TestVolumeSpike_ZeroVolumeGuard(t *testing.T) {
	m, now := newTestMarket(t)

	m.UpdateTickers([]models.Ticker{ticker("NEWUSDT", 1, 0)})
	m.UpdateRecentTrades("NEWUSDT", []models.Trade{
		{Price: 1, Size: 5, Side: models.SideBuy, Time: now.UnixMilli()},
	})

	if opps := m.UpdateOpportunities(); len(opps) != 0 {
		t.Errorf("zero 24h volume must not produce a spike, got %d signals", len(opps))
	}
}

func TestVolumeSpike_OldTradesExcluded(t *testing.T) {
	m, now := newTestMarket(t)

	m.UpdateTickers([]models.Ticker{ticker("DOGEUSDT", 0.1, 240)})
	m.UpdateRecentTrades("DOGEUSDT", []models.Trade{
		{Price: 0.1, Size: 1, Side: models.SideBuy, Time: now.Add(-11 * time.Minute).UnixMilli()},
	})

	if opps := m.UpdateOpportunities(); len(opps) != 0 {
		t.Errorf("trades older than the recency window must not count, got %d signals", len(opps))
	}
}

func TestScoreSignal_Deterministic(t *testing.T) {
	m, now := newTestMarket(t)
	for _, p := range []float64{95, 97, 98, 99, 100, 103} {
		m.UpdateTickers([]models.Ticker{ticker("XBTUSD", p, 0)})
	}

	base := models.Signal{
		Symbol:    "XBTUSD",
		Type:      models.SignalPriceMovement,
		PctChange: 3,
		Direction: "up",
	}
	a, b := base, base
	m.mu.Lock()
	m.scoreSignal(&a, now)
	m.scoreSignal(&b, now)
	m.mu.Unlock()

	if a.Score != b.Score || a.Bias != b.Bias {
		t.Errorf("scoring must be deterministic: %v/%s vs %v/%s", a.Score, a.Bias, b.Score, b.Bias)
	}
}

func TestScoreSignal_BigTradeTrendBonus(t *testing.T) {
	m, now := newTestMarket(t)
	for _, p := range []float64{100, 101, 102, 103, 104} {
		m.UpdateTickers([]models.Ticker{ticker("UPUSDT", p, 0)})
	}
	for _, p := range []float64{104, 103, 102, 101, 100} {
		m.UpdateTickers([]models.Ticker{ticker("DOWNUSDT", p, 0)})
	}

	buy := models.Signal{
		Symbol: "UPUSDT",
		Type:   models.SignalBigTrade,
		Side:   models.SideBuy,
		Value:  250000,
	}
	sell := models.Signal{
		Symbol: "DOWNUSDT",
		Type:   models.SignalBigTrade,
		Side:   models.SideSell,
		Value:  250000,
	}
	m.mu.Lock()
	m.scoreSignal(&buy, now)
	m.scoreSignal(&sell, now)
	m.mu.Unlock()

	// 250000/200000 x 10 = 12.5 base, x1.5 with the confirmed trend
	if buy.Score != 18.75 || buy.Bias != models.BiasLong {
		t.Errorf("expected 18.75/long for buy with uptrend, got %v/%s", buy.Score, buy.Bias)
	}
	if sell.Score != 18.75 || sell.Bias != models.BiasShort {
		t.Errorf("expected 18.75/short for sell with downtrend, got %v/%s", sell.Score, sell.Bias)
	}
}

func TestScoreSignal_CorrelationBonusSetsBias(t *testing.T) {
	m, now := newTestMarket(t)

	// Prices end flat over the last three samples, so the short price
	// trend assigns no bias. The volume series tracks the price deltas
	// exactly (volume = 2*delta + 10 shifted one sample), giving a
	// perfect positive correlation.
	prices := []float64{100, 103, 101, 103, 101}
	volumes := []float64{12, 16, 6, 14, 6}
	for i := range prices {
		m.UpdateTickers([]models.Ticker{ticker("FLATUSDT", prices[i], volumes[i])})
	}
	// Same prices, volumes mirrored (volume = -2*delta + 20), giving a
	// perfect negative correlation.
	inverse := []float64{12, 14, 24, 16, 24}
	for i := range prices {
		m.UpdateTickers([]models.Ticker{ticker("INVUSDT", prices[i], inverse[i])})
	}

	pos := models.Signal{
		Symbol: "FLATUSDT",
		Type:   models.SignalVolumeSpike,
		Ratio:  0.10,
	}
	neg := models.Signal{
		Symbol: "INVUSDT",
		Type:   models.SignalVolumeSpike,
		Ratio:  0.10,
	}
	m.mu.Lock()
	m.scoreSignal(&pos, now)
	m.scoreSignal(&neg, now)
	m.mu.Unlock()

	// 0.10/0.05 x 5 = 10 base, x1.8 correlation bonus, and the
	// correlation sign supplies the bias the flat trend could not
	if pos.Score != 18.0 || pos.Bias != models.BiasLong {
		t.Errorf("expected 18.0/long with positive correlation, got %v/%s", pos.Score, pos.Bias)
	}
	if neg.Score != 18.0 || neg.Bias != models.BiasShort {
		t.Errorf("expected 18.0/short with negative correlation, got %v/%s", neg.Score, neg.Bias)
	}
}

func TestCombinedSignalBonus(t *testing.T) {
	m, now := newTestMarket(t)
	for _, p := range []float64{95, 97, 98, 99, 100, 103} {
		m.UpdateTickers([]models.Ticker{ticker("XBTUSD", p, 0)})
	}

	// a prior signal of another type within twice the cooldown window
	m.mu.Lock()
	m.cooldown.Allow("XBTUSD", "volume_spike", now.Add(-15*time.Minute))
	m.mu.Unlock()

	opps := m.UpdateOpportunities()
	if len(opps) != 1 {
		t.Fatalf("expected one signal, got %d", len(opps))
	}
	// 32 from the confirmed move, x2.5 combined bonus
	if opps[0].Score != 80.0 {
		t.Errorf("expected score 80.0 with combined bonus, got %v", opps[0].Score)
	}
}

func TestTopVolumeCoins_Ordering(t *testing.T) {
	m, _ := newTestMarket(t)
	m.UpdateTickers([]models.Ticker{
		ticker("AUSDT", 1, 300),
		ticker("BUSDT", 1, 900),
		ticker("CUSDT", 1, 600),
	})

	coins := m.TopVolumeCoins(2)
	if len(coins) != 2 {
		t.Fatalf("expected 2 coins, got %d", len(coins))
	}
	if coins[0].Symbol != "BUSDT" || coins[1].Symbol != "CUSDT" {
		t.Errorf("unexpected ordering: %s, %s", coins[0].Symbol, coins[1].Symbol)
	}
}

func TestTopVolumeCoins_SkipsNonTradingInstruments(t *testing.T) {
	m, _ := newTestMarket(t)
	m.UpdateTickers([]models.Ticker{
		ticker("AUSDT", 1, 300),
		ticker("BUSDT", 1, 900),
		ticker("CUSDT", 1, 600),
	})
	m.UpdateInstruments([]models.Instrument{
		{Symbol: "BUSDT", Status: "Settling"},
		{Symbol: "CUSDT", Status: models.StatusTrading},
	})

	coins := m.TopVolumeCoins(3)
	if len(coins) != 2 {
		t.Fatalf("expected 2 coins after filtering, got %d", len(coins))
	}
	if coins[0].Symbol != "CUSDT" || coins[1].Symbol != "AUSDT" {
		t.Errorf("unexpected ordering: %s, %s", coins[0].Symbol, coins[1].Symbol)
	}
}

func TestOpportunities_PersistAcrossQuietTicks(t *testing.T) {
	m, now := newTestMarket(t)
	tradeTime := now.Add(-time.Minute).UnixMilli()

	m.UpdateTickers([]models.Ticker{ticker("BTCUSDT", 100000, 0)})
	m.UpdateRecentTrades("BTCUSDT", []models.Trade{
		{Price: 100000, Size: 3, Side: models.SideSell, Time: tradeTime},
	})
	first := m.UpdateOpportunities()
	if len(first) != 1 {
		t.Fatalf("expected one signal, got %d", len(first))
	}

	// same window again: the sell cooldown suppresses a duplicate, but
	// the ledger keeps the original entry
	second := m.UpdateOpportunities()
	if len(second) != 1 {
		t.Fatalf("expected history retained, got %d", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Errorf("expected the same ledger entry, got %s vs %s", second[0].ID, first[0].ID)
	}
}
