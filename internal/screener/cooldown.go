package screener

import "time"

// cooldownTracker records the last trigger time per (symbol, signal type)
// and suppresses repeats inside the cooldown window. Entries live for the
// process lifetime; they are only ever superseded, never cleared.
type cooldownTracker struct {
	window   time.Duration
	triggers map[string]map[string]time.Time
}

func newCooldownTracker(window time.Duration) *cooldownTracker {
	return &cooldownTracker{
		window:   window,
		triggers: make(map[string]map[string]time.Time),
	}
}

// Allow reports whether the signal may fire and, when it may, records now
// as the new last-trigger time. It is NOT idempotent: a call that returns
// true resets the cooldown clock, so callers must consume the result
// rather than re-check.
func (c *cooldownTracker) Allow(symbol, signalType string, now time.Time) bool {
	types, ok := c.triggers[symbol]
	if !ok {
		types = make(map[string]time.Time)
		c.triggers[symbol] = types
	}
	if last, ok := types[signalType]; ok && now.Sub(last) < c.window {
		return false
	}
	types[signalType] = now
	return true
}

// HasMultipleRecentTypes reports whether at least two distinct signal types
// fired for symbol within twice the cooldown window. It inspects every
// recorded type, including ones still inside their individual cooldown.
func (c *cooldownTracker) HasMultipleRecentTypes(symbol string, now time.Time) bool {
	recent := 0
	for _, last := range c.triggers[symbol] {
		if now.Sub(last) < 2*c.window {
			recent++
		}
	}
	return recent > 1
}
