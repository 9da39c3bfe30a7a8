package opt

// maximum full 2-opt sweeps per route during polish
const polishSweeps = 50

// polish applies 2-opt to each route's order sequence, keeping a reversal only when it
// shortens the route. Orders stay on their vehicle and each pickup still precedes its dropoff.
func polish(t *costTable, s Solution) Solution {
	out := s.Clone()
	for vi := range out.Plans {
		out.Plans[vi].Order = improveOrder2Opt(t, vi, out.Plans[vi].Order, polishSweeps)
	}
	return out
}

// improveOrder2Opt reverses segments [i, k] of order while that lowers the route cost.
func improveOrder2Opt(t *costTable, vi int, order []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), order...)
	bestDist := t.planCost(vi, best)
	n := len(order)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				d := t.planCost(vi, cand)
				if d+1e-9 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
