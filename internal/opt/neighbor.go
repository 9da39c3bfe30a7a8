package opt

import "math/rand"

// Move identifies the perturbation Neighbor applied.
type Move int

const (
	MoveNone Move = iota
	MoveIntraSwap
	MoveInterMove
	MoveInterSwap
)

func (m Move) String() string {
	switch m {
	case MoveIntraSwap:
		return "intra_swap"
	case MoveInterMove:
		return "inter_move"
	case MoveInterSwap:
		return "inter_swap"
	}
	return "none"
}

// draw weights for intra swap, inter move, inter swap
var moveWeights = []float64{0.4, 0.4, 0.2}

var moveByOp = []Move{MoveIntraSwap, MoveInterMove, MoveInterSwap}

// Neighbor returns a perturbed copy of s and the move applied. s is never modified.
//
// A drawn move that cannot apply falls back: an intra swap with no route of two or more
// orders becomes an inter move; an inter swap with fewer than two non-empty routes
// becomes an intra swap, or an inter move when no route can swap internally.
func Neighbor(s Solution, rng *rand.Rand) (Solution, Move) {
	out := s.Clone()
	if out.Assigned() == 0 {
		return out, MoveNone
	}
	move := moveByOp[selectOp(moveWeights, rng)]
	if move == MoveInterSwap && len(routesWithAtLeast(out, 1)) < 2 {
		move = MoveIntraSwap
	}
	if move == MoveIntraSwap && len(routesWithAtLeast(out, 2)) == 0 {
		move = MoveInterMove
	}
	switch move {
	case MoveIntraSwap:
		intraSwap(out, rng)
	case MoveInterMove:
		interMove(out, rng)
	case MoveInterSwap:
		interSwap(out, rng)
	}
	return out, move
}

func routesWithAtLeast(s Solution, k int) []int {
	var idx []int
	for vi, pl := range s.Plans {
		if len(pl.Order) >= k {
			idx = append(idx, vi)
		}
	}
	return idx
}

// distinctPair returns two different values in [0, n), n >= 2.
func distinctPair(n int, rng *rand.Rand) (int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

func intraSwap(s Solution, rng *rand.Rand) {
	cands := routesWithAtLeast(s, 2)
	ord := s.Plans[cands[rng.Intn(len(cands))]].Order
	i, j := distinctPair(len(ord), rng)
	ord[i], ord[j] = ord[j], ord[i]
}

// interMove relocates one order. The destination may be the source route.
func interMove(s Solution, rng *rand.Rand) {
	cands := routesWithAtLeast(s, 1)
	src := cands[rng.Intn(len(cands))]
	dst := rng.Intn(len(s.Plans))
	from := s.Plans[src].Order
	k := rng.Intn(len(from))
	idx := from[k]
	s.Plans[src].Order = append(from[:k], from[k+1:]...)
	to := s.Plans[dst].Order
	at := rng.Intn(len(to) + 1)
	to = append(to, 0)
	copy(to[at+1:], to[at:])
	to[at] = idx
	s.Plans[dst].Order = to
}

func interSwap(s Solution, rng *rand.Rand) {
	cands := routesWithAtLeast(s, 1)
	a, b := distinctPair(len(cands), rng)
	ra, rb := s.Plans[cands[a]].Order, s.Plans[cands[b]].Order
	i, j := rng.Intn(len(ra)), rng.Intn(len(rb))
	ra[i], rb[j] = rb[j], ra[i]
}

// selectOp draws an index with probability proportional to its weight.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
