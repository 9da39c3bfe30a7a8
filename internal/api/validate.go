package api

import (
	"fmt"
	"math"

	"vrp/internal/geo"
	"vrp/internal/model"
	"vrp/internal/opt"
)

// Limits caps the problem size accepted from callers. Zero means unlimited.
type Limits struct {
	MaxVehicles   int
	MaxOrders     int
	MaxIterations int
}

// PrepareRequest validates a wire request and resolves it against the annealing defaults.
// Every error it returns carries an opt.ErrorKind.
func PrepareRequest(req model.SolveRequest, defaults opt.Config, lim Limits) (opt.Request, error) {
	algo, err := opt.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return opt.Request{}, err
	}
	unit := defaults.Unit
	if req.DistanceUnit != "" {
		if unit, err = geo.ParseUnit(req.DistanceUnit); err != nil {
			return opt.Request{}, err
		}
	}
	if unit == "" {
		unit = geo.Kilometers
	}
	if len(req.Vehicles) == 0 {
		return opt.Request{}, fmt.Errorf("%w: vehicles list cannot be empty", opt.ErrEmptyInput)
	}
	if len(req.Orders) == 0 {
		return opt.Request{}, fmt.Errorf("%w: orders list cannot be empty", opt.ErrEmptyInput)
	}
	if lim.MaxVehicles > 0 && len(req.Vehicles) > lim.MaxVehicles {
		return opt.Request{}, fmt.Errorf("%w: %d vehicles exceeds the limit of %d", opt.ErrConfiguration, len(req.Vehicles), lim.MaxVehicles)
	}
	if lim.MaxOrders > 0 && len(req.Orders) > lim.MaxOrders {
		return opt.Request{}, fmt.Errorf("%w: %d orders exceeds the limit of %d", opt.ErrConfiguration, len(req.Orders), lim.MaxOrders)
	}
	vehicles, orders, err := req.Domain()
	if err != nil {
		return opt.Request{}, err
	}
	if err := opt.CheckUnique(vehicles, orders); err != nil {
		return opt.Request{}, err
	}

	cfg := defaults
	cfg.Unit = unit
	warm := false
	if p := req.SAParams; p != nil {
		if p.InitialTemp != nil {
			cfg.InitialTemperature = *p.InitialTemp
		}
		if p.FinalTemp != nil {
			cfg.FinalTemperature = *p.FinalTemp
		}
		if p.CoolingRate != nil {
			cfg.CoolingRate = *p.CoolingRate
		}
		if p.MaxIterations != nil {
			cfg.MaxIterations = *p.MaxIterations
		}
		if p.Seed != nil {
			cfg.Seed = *p.Seed
		}
		cfg.Polish = p.Polish
		cfg.Verbose = p.Verbose
		warm = p.WarmStart
	}
	if algo == opt.AlgorithmSimulatedAnnealing {
		if err := cfg.Validate(); err != nil {
			return opt.Request{}, err
		}
		if lim.MaxIterations > 0 && cfg.MaxIterations > lim.MaxIterations {
			return opt.Request{}, fmt.Errorf("%w: max_iterations %d exceeds the limit of %d", opt.ErrConfiguration, cfg.MaxIterations, lim.MaxIterations)
		}
	}
	return opt.Request{Vehicles: vehicles, Orders: orders, Algorithm: algo, Anneal: cfg, WarmStart: warm}, nil
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round4(x float64) float64 { return math.Round(x*10000) / 10000 }

// BuildResponse renders an outcome as the public solve document.
func BuildResponse(out opt.Outcome) model.SolveResponse {
	resp := model.SolveResponse{
		Status:           "success",
		AlgorithmUsed:    string(out.Algorithm),
		TotalDistance:    round2(out.TotalDistance),
		DistanceUnit:     string(out.Unit),
		Routes:           make([]model.RouteOut, 0, len(out.Routes)),
		UnassignedOrders: make([]string, 0, len(out.Unassigned)),
	}
	for i, r := range out.Routes {
		resp.Routes = append(resp.Routes, model.RouteOut{
			VehicleID:     r.Vehicle.ID,
			Orders:        r.OrderIDs(),
			TotalDistance: round2(out.RouteCosts[i]),
		})
	}
	for _, o := range out.Unassigned {
		resp.UnassignedOrders = append(resp.UnassignedOrders, o.ID)
	}
	resp.Statistics = statistics(out)
	return resp
}

func statistics(out opt.Outcome) map[string]any {
	sum := out.Summary
	if out.Stats == nil {
		details := make([]map[string]any, 0, len(sum.Routes))
		for _, rs := range sum.Routes {
			details = append(details, map[string]any{
				"vehicle_id":     rs.VehicleID,
				"orders_count":   rs.OrdersCount,
				"order_sequence": rs.Sequence,
				"distance":       round2(rs.Distance),
			})
		}
		return map[string]any{
			"total_vehicles":             sum.TotalVehicles,
			"total_orders":               sum.TotalOrders,
			"assigned_orders":            sum.AssignedOrders,
			"unassigned_orders":          sum.UnassignedOrders,
			"routes_used":                sum.RoutesUsed,
			"total_distance":             round2(sum.TotalDistance),
			"average_distance_per_route": round2(sum.AverageDistancePerRoute),
			"distance_unit":              string(sum.DistanceUnit),
			"route_details":              details,
		}
	}
	st := out.Stats
	m := map[string]any{
		"iterations_completed":   st.IterationsCompleted,
		"total_attempts":         st.TotalAttempts,
		"total_accepted":         st.TotalAccepted,
		"better_accepted":        st.BetterAccepted,
		"worse_accepted":         st.WorseAccepted,
		"acceptance_rate":        round4(st.AcceptanceRate),
		"initial_cost":           round2(st.InitialCost),
		"final_cost":             round2(st.FinalCost),
		"improvement":            round2(st.Improvement),
		"improvement_percentage": round2(st.ImprovementPercentage),
		"initial_temperature":    st.InitialTemperature,
		"final_temperature":      round4(st.FinalTemperature),
		"cooling_rate":           st.CoolingRate,
		"seed":                   st.Seed,
		"stop_reason":            st.StopReason,
		"duration_ms":            st.DurationMs,
		"moves":                  st.Moves,
		"total_vehicles":         sum.TotalVehicles,
		"total_orders":           sum.TotalOrders,
		"routes_used":            sum.RoutesUsed,
	}
	if st.PolishGain > 0 {
		m["polish_gain"] = round2(st.PolishGain)
	}
	if len(st.Trace) > 0 {
		m["trace"] = st.Trace
		m["best_cost_history"] = st.BestCostHistory
	}
	return m
}
