package screener

import (
	"math"
	"time"

	"github.com/perpscope/perpscope/internal/models"
)

// base weights and bonus multipliers per signal type
const (
	bigTradeWeight    = 10.0
	priceMoveWeight   = 8.0
	volumeSpikeWeight = 5.0

	bigTradeTrendBonus  = 1.5
	priceMoveTrendBonus = 2.0
	strongMoveBonus     = 1.5
	correlationBonus    = 1.8

	missingBiasPenalty = 0.3
)

// scoreSignal assigns the signal's quality score and directional bias.
// Deterministic given the aggregate's state and the candidate.
func (m *Market) scoreSignal(s *models.Signal, now time.Time) {
	var score float64
	bias := models.BiasNone

	switch s.Type {
	case models.SignalBigTrade:
		score = s.Value / m.cfg.BigTradeThreshold * bigTradeWeight
		switch s.Side {
		case models.SideBuy:
			bias = models.BiasLong
			if m.confirmsTrendLocked(s.Symbol, "up") {
				score *= bigTradeTrendBonus
			}
		case models.SideSell:
			bias = models.BiasShort
			if m.confirmsTrendLocked(s.Symbol, "down") {
				score *= bigTradeTrendBonus
			}
		}

	case models.SignalPriceMovement:
		pct := math.Abs(s.PctChange)
		score = pct / m.cfg.PriceChangeThreshold * priceMoveWeight
		if s.Direction == "up" {
			bias = models.BiasLong
		} else {
			bias = models.BiasShort
		}
		if m.confirmsTrendLocked(s.Symbol, s.Direction) {
			score *= priceMoveTrendBonus
		}
		// strictly greater than twice the threshold, boundary excluded
		if pct > m.cfg.PriceChangeThreshold*2 {
			score *= strongMoveBonus
		}

	case models.SignalVolumeSpike:
		score = s.Ratio / (m.cfg.VolumeSpikePct / 100) * volumeSpikeWeight
		prices := m.history.Prices(s.Symbol)
		if len(prices) >= 3 {
			switch {
			case prices[len(prices)-1] > prices[len(prices)-3]:
				bias = models.BiasLong
			case prices[len(prices)-1] < prices[len(prices)-3]:
				bias = models.BiasShort
			}
		}
		corr := volumePriceCorrelation(prices, m.history.Volumes(s.Symbol))
		if math.Abs(corr) > m.cfg.CorrelationThreshold {
			score *= correlationBonus
			if bias == models.BiasNone {
				if corr > 0 {
					bias = models.BiasLong
				} else {
					bias = models.BiasShort
				}
			}
		}
	}

	if m.cooldown.HasMultipleRecentTypes(s.Symbol, now) {
		score *= m.cfg.CombinedSignalBonus
	}
	if m.cfg.DirectionalBiasRequired && bias == models.BiasNone {
		score *= missingBiasPenalty
	}

	s.Score = round2(score)
	s.Bias = bias
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
