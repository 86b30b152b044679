package screener

import "time"

// Config carries the tunable thresholds of the detection engine. There is
// no process-wide mutable configuration; a Config is handed to New once.
type Config struct {
	BigTradeThreshold        float64       // USD value for a trade to count as big
	PriceChangeThreshold     float64       // percent move between consecutive snapshots
	VolumeSpikePct           float64       // recent volume as percent of hourly average
	SignalCooldown           time.Duration // minimum gap between same-type signals per symbol
	TrendConfirmationPeriods int           // consecutive transitions needed to confirm a trend
	CombinedSignalBonus      float64       // score multiplier when several signal types cluster
	MinSignalScore           float64       // score floor for the high-quality flag
	CorrelationThreshold     float64       // |corr| needed for the volume-spike bonus
	DirectionalBiasRequired  bool          // penalize signals without a clear direction
	TopCoinsLimit            int           // symbols scanned for big trades / shown as top volume
	HistoryWindow            int           // rolling price/volume samples kept per symbol
}

func DefaultConfig() Config {
	return Config{
		BigTradeThreshold:        200000,
		PriceChangeThreshold:     1.5,
		VolumeSpikePct:           5.0,
		SignalCooldown:           600 * time.Second,
		TrendConfirmationPeriods: 4,
		CombinedSignalBonus:      2.5,
		MinSignalScore:           12.0,
		CorrelationThreshold:     0.8,
		DirectionalBiasRequired:  true,
		TopCoinsLimit:            20,
		HistoryWindow:            10,
	}
}
