package screener

// historyStore keeps bounded per-symbol price and volume windows for trend
// and correlation checks. Oldest samples are evicted once a window is full.
type historyStore struct {
	capacity int
	prices   map[string][]float64
	volumes  map[string][]float64
}

func newHistoryStore(capacity int) *historyStore {
	if capacity <= 0 {
		capacity = 10
	}
	return &historyStore{
		capacity: capacity,
		prices:   make(map[string][]float64),
		volumes:  make(map[string][]float64),
	}
}

func (h *historyStore) RecordPrice(symbol string, price float64) {
	h.prices[symbol] = appendBounded(h.prices[symbol], price, h.capacity)
}

func (h *historyStore) RecordVolume(symbol string, volume float64) {
	h.volumes[symbol] = appendBounded(h.volumes[symbol], volume, h.capacity)
}

// Prices returns the current window for symbol, oldest first. Unknown
// symbols yield an empty slice, never an error.
func (h *historyStore) Prices(symbol string) []float64 {
	return h.prices[symbol]
}

func (h *historyStore) Volumes(symbol string) []float64 {
	return h.volumes[symbol]
}

func appendBounded(window []float64, v float64, capacity int) []float64 {
	window = append(window, v)
	if len(window) > capacity {
		window = window[len(window)-capacity:]
	}
	return window
}
