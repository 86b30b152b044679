package screener

import (
	"sort"
	"time"

	"github.com/perpscope/perpscope/internal/models"
)

// ledgerCapacity bounds the rolling opportunity history.
const ledgerCapacity = 20

// ledger holds the rolling, deduplicated opportunity history. Its view is
// the only externally visible list of signals; there is no separate
// this-cycle-only view.
type ledger struct {
	entries []models.Signal
}

func newLedger() *ledger {
	return &ledger{}
}

// Ingest stamps each candidate with the insertion time, merges it into the
// history, keeps only the latest entry per identity key, orders by the
// HH:MM:SS detection string descending, and truncates to capacity.
//
// The ordering is a plain string sort on the time-of-day, so entries
// straddling a midnight rollover sort out of chronological order. That
// matches the dashboard's display contract and is kept deliberately.
func (l *ledger) Ingest(candidates []models.Signal, now time.Time) {
	if len(candidates) == 0 {
		return
	}
	for i := range candidates {
		candidates[i].AddedAt = now
	}
	l.entries = append(l.entries, candidates...)

	// Later entries with the same ID supersede earlier ones.
	unique := make([]models.Signal, 0, len(l.entries))
	byID := make(map[string]int, len(l.entries))
	for _, s := range l.entries {
		if j, ok := byID[s.ID]; ok {
			unique[j] = s
			continue
		}
		byID[s.ID] = len(unique)
		unique = append(unique, s)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Time > unique[j].Time
	})
	if len(unique) > ledgerCapacity {
		unique = unique[:ledgerCapacity]
	}
	l.entries = unique
}

// View returns a copy of the current opportunity history, newest first.
func (l *ledger) View() []models.Signal {
	out := make([]models.Signal, len(l.entries))
	copy(out, l.entries)
	return out
}
