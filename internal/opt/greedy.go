package opt

import (
	"math"
	"math/rand"

	"vrp/internal/geo"
	"vrp/internal/model"
)

// Greedy builds a baseline solution by nearest-pickup assignment, taking vehicles in
// round-robin order. Each vehicle moves to the dropoff of the order it just took.
// Ties go to the earliest order in input order. The unassigned list is always empty
// today; it is kept for constrained variants.
func Greedy(vehicles []model.Vehicle, orders []model.Order) (Solution, []model.Order, error) {
	if err := checkInput(vehicles, orders); err != nil {
		return Solution{}, nil, err
	}
	n := len(orders)
	used := make([]bool, n)
	sol := NewSolution(vehicles)
	pos := make([]geo.Point, len(vehicles))
	for vi, v := range vehicles {
		pos[vi] = v.Location
	}
	for assigned, vi := 0, 0; assigned < n; vi = (vi + 1) % len(vehicles) {
		bestIdx, bestDist := -1, math.MaxFloat64
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			d := geo.Haversine(pos[vi].Lat, pos[vi].Lon, orders[i].Pickup.Lat, orders[i].Pickup.Lon)
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		sol.Plans[vi].Order = append(sol.Plans[vi].Order, bestIdx)
		used[bestIdx] = true
		pos[vi] = orders[bestIdx].Dropoff
		assigned++
	}
	return sol, []model.Order{}, nil
}

// RandomSolution deals a shuffled order list to the vehicles round-robin.
func RandomSolution(vehicles []model.Vehicle, n int, rng *rand.Rand) Solution {
	sol := NewSolution(vehicles)
	for k, idx := range rng.Perm(n) {
		vi := k % len(vehicles)
		sol.Plans[vi].Order = append(sol.Plans[vi].Order, idx)
	}
	return sol
}
