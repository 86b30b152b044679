package screener

import (
	"math"
	"strings"
	"time"

	"github.com/perpscope/perpscope/internal/models"
)

// recentTradeWindow bounds how far back trades count toward a volume spike.
const recentTradeWindow = 600 * time.Second

// detectBigTrades scans the symbol's recent-trade window for trades whose
// USD value meets the threshold. The cooldown check is consumed per side,
// so at most one buy and one sell signal survive per cooldown window.
func (m *Market) detectBigTrades(symbol string, now time.Time) []models.Signal {
	trades, ok := m.recentTrades[symbol]
	if !ok {
		return nil
	}

	var out []models.Signal
	for _, tr := range trades {
		value := tr.Price * tr.Size
		if value < m.cfg.BigTradeThreshold {
			continue
		}
		signalType := "big_trade_" + strings.ToLower(string(tr.Side))
		if !m.cooldown.Allow(symbol, signalType, now) {
			continue
		}
		detected := tr.Timestamp()
		out = append(out, models.Signal{
			Symbol:     symbol,
			Type:       models.SignalBigTrade,
			Time:       detected.Format("15:04:05"),
			DetectedAt: detected,
			Price:      tr.Price,
			Size:       tr.Size,
			Value:      value,
			Side:       tr.Side,
		})
	}
	return out
}

// detectPriceMovements compares each symbol's current last price with the
// one kept from the previous snapshot. Symbols without a previous price
// produce nothing.
func (m *Market) detectPriceMovements(now time.Time) []models.Signal {
	var out []models.Signal
	for symbol, tk := range m.tickers {
		if tk.PrevPrice == 0 {
			continue
		}
		pctChange := (tk.LastPrice - tk.PrevPrice) / tk.PrevPrice * 100
		if math.Abs(pctChange) < m.cfg.PriceChangeThreshold {
			continue
		}
		direction := "down"
		if pctChange > 0 {
			direction = "up"
		}
		if !m.cooldown.Allow(symbol, "price_movement_"+direction, now) {
			continue
		}
		out = append(out, models.Signal{
			Symbol:       symbol,
			Type:         models.SignalPriceMovement,
			Time:         now.Format("15:04:05"),
			DetectedAt:   now,
			CurrentPrice: tk.LastPrice,
			PrevPrice:    tk.PrevPrice,
			PctChange:    pctChange,
			Direction:    direction,
			HasTrend:     m.confirmsTrendLocked(symbol, direction),
		})
	}
	return out
}

// detectVolumeSpikes compares the traded size of the last 10 minutes with
// the symbol's average hourly volume. Symbols with no 24h volume or no
// recent-trade window produce nothing.
func (m *Market) detectVolumeSpikes(now time.Time) []models.Signal {
	cutoff := now.Add(-recentTradeWindow).UnixMilli()

	var out []models.Signal
	for symbol, tk := range m.tickers {
		avgHourly := tk.Volume24h / 24
		if avgHourly == 0 {
			continue
		}
		trades, ok := m.recentTrades[symbol]
		if !ok {
			continue
		}
		var recent float64
		for _, tr := range trades {
			if tr.Time > cutoff {
				recent += tr.Size
			}
		}
		ratio := recent / avgHourly
		if ratio <= m.cfg.VolumeSpikePct/100 {
			continue
		}
		if !m.cooldown.Allow(symbol, "volume_spike", now) {
			continue
		}
		out = append(out, models.Signal{
			Symbol:          symbol,
			Type:            models.SignalVolumeSpike,
			Time:            now.Format("15:04:05"),
			DetectedAt:      now,
			RecentVolume:    recent,
			AvgHourlyVolume: avgHourly,
			Ratio:           ratio,
		})
	}
	return out
}
