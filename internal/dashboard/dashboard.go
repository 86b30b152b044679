// Package dashboard renders the live terminal view of the screener:
// a header with the last update time, the high-quality opportunity
// table, and the top-volume symbols.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/perpscope/perpscope/internal/models"
	"github.com/perpscope/perpscope/internal/screener"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBright = "\033[97m"
	colorDim    = "\033[2m"
	colorCyan   = "\033[36m"

	clearScreen = "\033[2J\033[H"

	newBadgeWindow = 30 * time.Second
)

// Dashboard periodically renders the market state to a terminal.
type Dashboard struct {
	market   *screener.Market
	out      io.Writer
	refresh  time.Duration
	topLimit int
	now      func() time.Time
}

// New creates a dashboard reading from market. topLimit bounds the
// top-volume table.
func New(market *screener.Market, refresh time.Duration, topLimit int) *Dashboard {
	if refresh <= 0 {
		refresh = time.Second
	}
	return &Dashboard{
		market:   market,
		out:      os.Stdout,
		refresh:  refresh,
		topLimit: topLimit,
		now:      time.Now,
	}
}

// Run re-renders every refresh interval until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) {
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()

	d.draw()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.draw()
		}
	}
}

func (d *Dashboard) draw() {
	fmt.Fprint(d.out, clearScreen+d.render())
}

func (d *Dashboard) render() string {
	var b strings.Builder
	now := d.now()

	b.WriteString(colorCyan + "Bybit Perpetual Futures Screener" + colorReset + "\n")
	lastUpdate := "N/A"
	if lu := d.market.LastUpdate(); !lu.IsZero() {
		lastUpdate = lu.Format("15:04:05")
	}
	fmt.Fprintf(&b, colorDim+"Last Update: %s | Current Time: %s"+colorReset+"\n\n",
		lastUpdate, now.Format("2006-01-02 15:04:05"))

	b.WriteString(d.renderOpportunities(now))
	b.WriteString("\n")
	b.WriteString(d.renderTopVolume())

	return b.String()
}

// renderOpportunities shows only high-quality signals that carry a
// directional bias.
func (d *Dashboard) renderOpportunities(now time.Time) string {
	var b strings.Builder
	b.WriteString("Trading Opportunities\n")
	fmt.Fprintf(&b, "%-14s | %-6s | %-12s | %-22s | %14s | %s\n",
		"Time", "Dir", "Symbol", "Signal Type", "Details", "Strength")

	shown := 0
	for _, s := range d.market.Opportunities() {
		if !s.HighQuality || s.Bias == models.BiasNone {
			continue
		}
		shown++

		timeStr := s.Time
		if now.Sub(s.AddedAt) < newBadgeWindow {
			timeStr = colorBright + "NEW" + colorReset + " " + timeStr
		}

		direction := colorGreen + "LONG" + colorReset
		if s.Bias == models.BiasShort {
			direction = colorRed + "SHORT" + colorReset
		}

		signalType, details := d.describe(s)

		fmt.Fprintf(&b, "%-14s | %-6s | %-12s | %-22s | %14s | %s\n",
			timeStr, direction, s.Symbol, signalType, details, strength(s.Score))
	}

	if shown == 0 {
		b.WriteString(colorDim + "No trading opportunities at this time" + colorReset + "\n")
	}
	return b.String()
}

// describe renders the type column (with confirmation markers) and the
// details column for one signal.
func (d *Dashboard) describe(s models.Signal) (string, string) {
	signalType := s.Type.Label()

	switch s.Type {
	case models.SignalBigTrade:
		direction := "up"
		if s.Bias == models.BiasShort {
			direction = "down"
		}
		if d.market.ConfirmsTrend(s.Symbol, direction) {
			signalType += " + Trend ✓"
		}
		return signalType, fmt.Sprintf("$%s", humanUSD(s.Value))

	case models.SignalPriceMovement:
		if d.market.HasRecentSignalCluster(s.Symbol) {
			signalType += " + Volume"
		}
		details := fmt.Sprintf("%.2f%%", math.Abs(s.PctChange))
		if s.HasTrend {
			details += " ✓"
		}
		return signalType, details

	case models.SignalVolumeSpike:
		if d.market.HasRecentSignalCluster(s.Symbol) {
			signalType += " + Price"
		}
		return signalType, fmt.Sprintf("%.2fx avg", s.Ratio)
	}
	return signalType, ""
}

func strength(score float64) string {
	switch {
	case score >= 20:
		return fmt.Sprintf(colorBright+colorGreen+"VERY STRONG (%.1f)"+colorReset, score)
	case score >= 15:
		return fmt.Sprintf(colorGreen+"STRONG (%.1f)"+colorReset, score)
	default:
		return fmt.Sprintf("GOOD (%.1f)", score)
	}
}

func (d *Dashboard) renderTopVolume() string {
	var b strings.Builder
	b.WriteString("Top Volume\n")
	fmt.Fprintf(&b, "%-12s | %12s | %12s | %8s\n", "Symbol", "Last", "Turnover($)", "24h Δ%")

	for _, tk := range d.market.TopVolumeCoins(d.topLimit) {
		pct := tk.Price24hPcnt * 100
		color := colorGreen
		if pct < 0 {
			color = colorRed
		}
		fmt.Fprintf(&b, "%-12s | %12.6g | %12s | %s%7.2f%%%s\n",
			tk.Symbol, tk.LastPrice, humanUSD(tk.Turnover24h), color, pct, colorReset)
	}
	return b.String()
}

func humanUSD(x float64) string {
	ax := math.Abs(x)
	switch {
	case ax >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", x/1_000_000_000)
	case ax >= 1_000_000:
		return fmt.Sprintf("%.2fM", x/1_000_000)
	case ax >= 1_000:
		return fmt.Sprintf("%.2fK", x/1_000)
	default:
		return fmt.Sprintf("%.0f", x)
	}
}
