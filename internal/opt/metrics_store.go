package opt

import (
	"sync"
	"time"

	"vrp/internal/geo"
)

// RunMetrics is the last-run snapshot kept per algorithm and unit.
type RunMetrics struct {
	Algorithm     Algorithm `json:"algorithm"`
	Unit          geo.Unit  `json:"distance_unit"`
	Vehicles      int       `json:"vehicles"`
	Orders        int       `json:"orders"`
	RoutesUsed    int       `json:"routes_used"`
	TotalDistance float64   `json:"total_distance"`
	Stats         *Stats    `json:"stats,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

type key struct {
	Algo Algorithm
	Unit geo.Unit
}

var (
	mu    sync.Mutex
	store = map[key]RunMetrics{}
)

// RecordMetrics remembers the outcome as the latest run for its algorithm and unit.
func RecordMetrics(algo Algorithm, unit geo.Unit, out Outcome) {
	m := RunMetrics{
		Algorithm:     algo,
		Unit:          unit,
		Vehicles:      out.Summary.TotalVehicles,
		Orders:        out.Summary.TotalOrders,
		RoutesUsed:    out.Summary.RoutesUsed,
		TotalDistance: out.TotalDistance,
		RecordedAt:    time.Now().UTC(),
	}
	if out.Stats != nil {
		st := *out.Stats
		st.BestCostHistory = nil
		st.Trace = nil
		m.Stats = &st
	}
	mu.Lock()
	store[key{Algo: algo, Unit: unit}] = m
	mu.Unlock()
}

// LastMetrics returns the latest run per "algorithm/unit".
func LastMetrics() map[string]RunMetrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]RunMetrics{}
	for k, v := range store {
		out[string(k.Algo)+"/"+string(k.Unit)] = v
	}
	return out
}
