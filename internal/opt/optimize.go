package opt

import (
	"context"
	"fmt"
	"strings"

	"vrp/internal/geo"
	"vrp/internal/model"
)

// Algorithm names a solver selectable by callers.
type Algorithm string

const (
	AlgorithmGreedy             Algorithm = "greedy"
	AlgorithmSimulatedAnnealing Algorithm = "simulated_annealing"
)

var algorithmAliases = map[string]Algorithm{
	"greedy":              AlgorithmGreedy,
	"nearest_neighbor":    AlgorithmGreedy,
	"simulated_annealing": AlgorithmSimulatedAnnealing,
	"sa":                  AlgorithmSimulatedAnnealing,
	"annealing":           AlgorithmSimulatedAnnealing,
}

// Algorithms lists the canonical algorithm names.
func Algorithms() []Algorithm { return []Algorithm{AlgorithmGreedy, AlgorithmSimulatedAnnealing} }

// ParseAlgorithm resolves a name or alias. Empty selects simulated annealing.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AlgorithmSimulatedAnnealing, nil
	}
	if a, ok := algorithmAliases[s]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown algorithm %q, use greedy or simulated_annealing", ErrConfiguration, s)
}

// Request is one optimization call. Anneal.Unit is the unit for both algorithms.
type Request struct {
	Vehicles  []model.Vehicle
	Orders    []model.Order
	Algorithm Algorithm
	Anneal    Config
	// WarmStart seeds annealing with the greedy solution.
	WarmStart bool
}

// Outcome is the algorithm-independent result of Optimize.
type Outcome struct {
	Algorithm     Algorithm
	Unit          geo.Unit
	Routes        []model.Route
	RouteCosts    []float64
	TotalDistance float64
	Unassigned    []model.Order
	Summary       Summary
	// Stats is set for simulated annealing only.
	Stats *Stats
}

// Optimize runs the selected algorithm and prices the resulting routes.
func Optimize(ctx context.Context, req Request) (Outcome, error) {
	cfg := req.Anneal
	if cfg.Unit == "" {
		cfg.Unit = geo.Kilometers
	}
	if !cfg.Unit.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", geo.ErrInvalidUnit, string(cfg.Unit))
	}
	algo := req.Algorithm
	if algo == "" {
		algo = AlgorithmSimulatedAnnealing
	}
	out := Outcome{Algorithm: algo, Unit: cfg.Unit}
	switch algo {
	case AlgorithmGreedy:
		sol, unassigned, err := Greedy(req.Vehicles, req.Orders)
		if err != nil {
			return Outcome{}, err
		}
		out.Routes = sol.Routes(req.Vehicles, req.Orders)
		out.Unassigned = unassigned
	case AlgorithmSimulatedAnnealing:
		if req.WarmStart && cfg.InitialSolution == nil {
			sol, _, err := Greedy(req.Vehicles, req.Orders)
			if err != nil {
				return Outcome{}, err
			}
			cfg.InitialSolution = &sol
		}
		res, err := Anneal(ctx, req.Vehicles, req.Orders, cfg)
		if err != nil {
			return Outcome{}, err
		}
		out.Routes = res.Routes
		out.Unassigned = []model.Order{}
		out.Stats = &res.Stats
	default:
		return Outcome{}, fmt.Errorf("%w: unknown algorithm %q", ErrConfiguration, string(algo))
	}
	sum, err := Summarize(out.Routes, out.Unassigned, cfg.Unit)
	if err != nil {
		return Outcome{}, err
	}
	out.Summary = sum
	out.RouteCosts = make([]float64, len(sum.Routes))
	for i, rs := range sum.Routes {
		out.RouteCosts[i] = rs.Distance
	}
	out.TotalDistance = sum.TotalDistance
	RecordMetrics(algo, cfg.Unit, out)
	return out, nil
}
