package opt

import (
	"fmt"

	"vrp/internal/model"
)

// RoutePlan is the visiting sequence of one vehicle, as indices into the order list.
type RoutePlan struct {
	VehicleID string
	Order     []int
}

// Solution holds one RoutePlan per vehicle, positionally aligned with the vehicle list.
type Solution struct {
	Plans []RoutePlan
}

// NewSolution returns a solution with an empty plan for every vehicle.
func NewSolution(vehicles []model.Vehicle) Solution {
	plans := make([]RoutePlan, len(vehicles))
	for i, v := range vehicles {
		plans[i] = RoutePlan{VehicleID: v.ID, Order: []int{}}
	}
	return Solution{Plans: plans}
}

// Clone returns an independently owned copy.
func (s Solution) Clone() Solution {
	out := Solution{Plans: make([]RoutePlan, len(s.Plans))}
	for i, pl := range s.Plans {
		out.Plans[i] = RoutePlan{VehicleID: pl.VehicleID, Order: append(make([]int, 0, len(pl.Order)+1), pl.Order...)}
	}
	return out
}

// Assigned returns the number of order slots across all plans.
func (s Solution) Assigned() int {
	n := 0
	for _, pl := range s.Plans {
		n += len(pl.Order)
	}
	return n
}

// CheckConservation verifies that every order index in [0, n) appears exactly once.
func (s Solution) CheckConservation(n int) error {
	seen := make([]bool, n)
	count := 0
	for vi, pl := range s.Plans {
		for _, idx := range pl.Order {
			if idx < 0 || idx >= n {
				return fmt.Errorf("plan %d: order index %d out of range", vi, idx)
			}
			if seen[idx] {
				return fmt.Errorf("plan %d: order index %d assigned twice", vi, idx)
			}
			seen[idx] = true
			count++
		}
	}
	if count != n {
		return fmt.Errorf("%d of %d orders assigned", count, n)
	}
	return nil
}

// FromRoutes converts routes back into index form. Routes must follow the vehicle order.
func FromRoutes(routes []model.Route, vehicles []model.Vehicle, orders []model.Order) (Solution, error) {
	if len(routes) != len(vehicles) {
		return Solution{}, fmt.Errorf("%w: %d routes for %d vehicles", ErrConfiguration, len(routes), len(vehicles))
	}
	pos := make(map[string]int, len(orders))
	for i, o := range orders {
		pos[o.ID] = i
	}
	sol := NewSolution(vehicles)
	for vi, r := range routes {
		if r.Vehicle.ID != vehicles[vi].ID {
			return Solution{}, fmt.Errorf("%w: route %d belongs to %q, want %q", ErrConfiguration, vi, r.Vehicle.ID, vehicles[vi].ID)
		}
		for _, o := range r.Orders {
			idx, ok := pos[o.ID]
			if !ok {
				return Solution{}, fmt.Errorf("%w: unknown order %q", ErrConfiguration, o.ID)
			}
			sol.Plans[vi].Order = append(sol.Plans[vi].Order, idx)
		}
	}
	return sol, nil
}

// Routes zips each vehicle with its order sequence.
func (s Solution) Routes(vehicles []model.Vehicle, orders []model.Order) []model.Route {
	out := make([]model.Route, len(s.Plans))
	for vi, pl := range s.Plans {
		r := model.Route{Vehicle: vehicles[vi], Orders: make([]model.Order, 0, len(pl.Order))}
		for _, idx := range pl.Order {
			r.Orders = append(r.Orders, orders[idx])
		}
		out[vi] = r
	}
	return out
}
