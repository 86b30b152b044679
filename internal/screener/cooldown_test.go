package screener

import (
	"testing"
	"time"
)

func TestCooldown_AllowConsumesWindow(t *testing.T) {
	c := newCooldownTracker(600 * time.Second)
	now := time.Now()

	if !c.Allow("BTCUSDT", "big_trade_buy", now) {
		t.Fatal("first Allow should succeed")
	}
	if c.Allow("BTCUSDT", "big_trade_buy", now) {
		t.Fatal("second Allow with identical arguments should be suppressed")
	}
}

func TestCooldown_ExpiredWindowAllowsAgain(t *testing.T) {
	c := newCooldownTracker(600 * time.Second)
	t0 := time.Now()

	c.Allow("BTCUSDT", "volume_spike", t0)

	if c.Allow("BTCUSDT", "volume_spike", t0.Add(599*time.Second)) {
		t.Error("signal inside cooldown window should be suppressed")
	}
	// age exactly equal to the window passes
	if !c.Allow("BTCUSDT", "volume_spike", t0.Add(600*time.Second)) {
		t.Error("signal at exact window age should be allowed")
	}
}

func TestCooldown_SuppressedCallHasNoSideEffect(t *testing.T) {
	c := newCooldownTracker(600 * time.Second)
	t0 := time.Now()

	c.Allow("BTCUSDT", "price_movement_up", t0)
	c.Allow("BTCUSDT", "price_movement_up", t0.Add(300*time.Second)) // suppressed

	// A suppressed call must not push the cooldown clock forward.
	if !c.Allow("BTCUSDT", "price_movement_up", t0.Add(600*time.Second)) {
		t.Error("cooldown clock was reset by a suppressed call")
	}
}

func TestCooldown_TypesAndSymbolsIndependent(t *testing.T) {
	c := newCooldownTracker(600 * time.Second)
	now := time.Now()

	c.Allow("BTCUSDT", "big_trade_buy", now)
	if !c.Allow("BTCUSDT", "big_trade_sell", now) {
		t.Error("different signal type should not share a cooldown")
	}
	if !c.Allow("ETHUSDT", "big_trade_buy", now) {
		t.Error("different symbol should not share a cooldown")
	}
}

func TestCooldown_HasMultipleRecentTypes(t *testing.T) {
	c := newCooldownTracker(600 * time.Second)
	t0 := time.Now()

	if c.HasMultipleRecentTypes("BTCUSDT", t0) {
		t.Error("no recorded types should not count as a cluster")
	}

	c.Allow("BTCUSDT", "big_trade_buy", t0)
	if c.HasMultipleRecentTypes("BTCUSDT", t0) {
		t.Error("one type is not a cluster")
	}

	c.Allow("BTCUSDT", "volume_spike", t0)
	if !c.HasMultipleRecentTypes("BTCUSDT", t0) {
		t.Error("two recent types should count as a cluster")
	}

	// still counted while inside the individual cooldowns, but not once
	// both records age past twice the window
	if !c.HasMultipleRecentTypes("BTCUSDT", t0.Add(1199*time.Second)) {
		t.Error("types within twice the window should still count")
	}
	if c.HasMultipleRecentTypes("BTCUSDT", t0.Add(1200*time.Second)) {
		t.Error("types older than twice the window should not count")
	}
}
