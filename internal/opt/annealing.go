package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"vrp/internal/geo"
	"vrp/internal/model"
)

// Config tunes Anneal. Zero-valued optional fields are off.
type Config struct {
	InitialTemperature float64
	FinalTemperature   float64
	CoolingRate        float64
	MaxIterations      int
	Unit               geo.Unit

	// InitialSolution warm-starts the search, usually from Greedy. Nil starts from a random assignment.
	InitialSolution *Solution
	// Seed fixes the random source. Zero seeds from the clock; Stats.Seed reports the value used.
	Seed       int64
	Verbose    bool
	TimeBudget time.Duration
	// Progress, when set, is called every ProgressEvery iterations and once at the end.
	ProgressEvery int
	Progress      func(model.Progress)
	// Polish applies route-local 2-opt to the best solution before returning.
	Polish bool
}

// DefaultConfig returns the standard schedule: 1000 down to 1 at 0.995 per step, at most 10000 steps.
func DefaultConfig() Config {
	return Config{
		InitialTemperature: 1000,
		FinalTemperature:   1,
		CoolingRate:        0.995,
		MaxIterations:      10000,
		Unit:               geo.Kilometers,
	}
}

// Validate normalizes an empty unit to kilometers and rejects out-of-range parameters.
func (c *Config) Validate() error {
	if c.Unit == "" {
		c.Unit = geo.Kilometers
	}
	switch {
	case !(c.InitialTemperature > 0) || math.IsInf(c.InitialTemperature, 0):
		return fmt.Errorf("%w: initial temperature must be positive, got %v", ErrConfiguration, c.InitialTemperature)
	case !(c.FinalTemperature > 0):
		return fmt.Errorf("%w: final temperature must be positive, got %v", ErrConfiguration, c.FinalTemperature)
	case c.FinalTemperature >= c.InitialTemperature:
		return fmt.Errorf("%w: final temperature %v must be below initial temperature %v", ErrConfiguration, c.FinalTemperature, c.InitialTemperature)
	case !(c.CoolingRate > 0 && c.CoolingRate < 1):
		return fmt.Errorf("%w: cooling rate must be in (0, 1), got %v", ErrConfiguration, c.CoolingRate)
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrConfiguration, c.MaxIterations)
	case c.TimeBudget < 0:
		return fmt.Errorf("%w: time budget must not be negative", ErrConfiguration)
	case c.ProgressEvery < 0:
		return fmt.Errorf("%w: progress interval must not be negative", ErrConfiguration)
	}
	if !c.Unit.Valid() {
		return fmt.Errorf("%w: %q", geo.ErrInvalidUnit, string(c.Unit))
	}
	return nil
}

// Stop reasons reported in Stats.StopReason.
const (
	StopTemperature   = "temperature"
	StopMaxIterations = "max_iterations"
	StopCanceled      = "canceled"
	StopTimeBudget    = "time_budget"
)

// MaxTraceRecords bounds the verbose trace and best-cost history. Longer runs record
// every ceil(MaxIterations/MaxTraceRecords)-th iteration.
const MaxTraceRecords = 10000

// traceStride is the iteration spacing between verbose records.
func traceStride(maxIterations int) int {
	if maxIterations <= MaxTraceRecords {
		return 1
	}
	return (maxIterations + MaxTraceRecords - 1) / MaxTraceRecords
}

// IterationRecord is one step of the verbose trace.
type IterationRecord struct {
	Iteration     int     `json:"iteration"`
	Temperature   float64 `json:"temperature"`
	CurrentCost   float64 `json:"current_cost"`
	CandidateCost float64 `json:"candidate_cost"`
	Delta         float64 `json:"delta"`
	Accepted      bool    `json:"accepted"`
	Move          string  `json:"move"`
}

// MoveCounts tallies the moves Neighbor actually applied.
type MoveCounts struct {
	IntraSwap int `json:"intra_swap"`
	InterMove int `json:"inter_move"`
	InterSwap int `json:"inter_swap"`
}

func (m *MoveCounts) add(mv Move) {
	switch mv {
	case MoveIntraSwap:
		m.IntraSwap++
	case MoveInterMove:
		m.InterMove++
	case MoveInterSwap:
		m.InterSwap++
	}
}

// Stats summarizes one annealing run. BestCostHistory and Trace are only filled
// when Config.Verbose is set, at most MaxTraceRecords entries each.
type Stats struct {
	IterationsCompleted   int               `json:"iterations_completed"`
	TotalAttempts         int               `json:"total_attempts"`
	TotalAccepted         int               `json:"total_accepted"`
	BetterAccepted        int               `json:"better_accepted"`
	WorseAccepted         int               `json:"worse_accepted"`
	AcceptanceRate        float64           `json:"acceptance_rate"`
	InitialCost           float64           `json:"initial_cost"`
	FinalCost             float64           `json:"final_cost"`
	Improvement           float64           `json:"improvement"`
	ImprovementPercentage float64           `json:"improvement_percentage"`
	InitialTemperature    float64           `json:"initial_temperature"`
	FinalTemperature      float64           `json:"final_temperature"`
	CoolingRate           float64           `json:"cooling_rate"`
	Seed                  int64             `json:"seed"`
	StopReason            string            `json:"stop_reason"`
	DurationMs            int64             `json:"duration_ms"`
	PolishGain            float64           `json:"polish_gain,omitempty"`
	Moves                 MoveCounts        `json:"moves"`
	BestCostHistory       []float64         `json:"-"`
	Trace                 []IterationRecord `json:"trace,omitempty"`
}

// Result is the outcome of Anneal.
type Result struct {
	Routes   []model.Route
	Solution Solution
	BestCost float64
	Stats    Stats
}

// above this Δ/T, exp(-Δ/T) underflows to zero
const maxExpArg = 745.0

// acceptanceProbability is exp(-delta/temp), or 0 when the ratio would underflow.
func acceptanceProbability(delta, temp float64) float64 {
	if delta <= 0 {
		return 1
	}
	if temp <= 0 {
		return 0
	}
	x := delta / temp
	if math.IsNaN(x) || x > maxExpArg {
		return 0
	}
	return math.Exp(-x)
}

// Anneal improves a solution by simulated annealing and returns the best one found.
// It stops when the temperature reaches the final temperature, after MaxIterations,
// when ctx is done, or when TimeBudget elapses. The last two still return the best
// solution so far with a nil error.
func Anneal(ctx context.Context, vehicles []model.Vehicle, orders []model.Order, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := checkInput(vehicles, orders); err != nil {
		return Result{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	table, err := newCostTable(vehicles, orders, cfg.Unit)
	if err != nil {
		return Result{}, err
	}

	var curr Solution
	if cfg.InitialSolution != nil {
		if len(cfg.InitialSolution.Plans) != len(vehicles) {
			return Result{}, fmt.Errorf("%w: initial solution has %d plans for %d vehicles", ErrConfiguration, len(cfg.InitialSolution.Plans), len(vehicles))
		}
		if err := cfg.InitialSolution.CheckConservation(len(orders)); err != nil {
			return Result{}, fmt.Errorf("%w: initial solution: %v", ErrConfiguration, err)
		}
		curr = cfg.InitialSolution.Clone()
	} else {
		curr = RandomSolution(vehicles, len(orders), rng)
	}

	started := time.Now()
	var deadline time.Time
	if cfg.TimeBudget > 0 {
		deadline = started.Add(cfg.TimeBudget)
	}
	currCost := table.total(curr)
	best, bestCost := curr, currCost
	temp := cfg.InitialTemperature
	st := Stats{
		InitialCost:        currCost,
		InitialTemperature: cfg.InitialTemperature,
		CoolingRate:        cfg.CoolingRate,
		Seed:               seed,
	}
	stride := traceStride(cfg.MaxIterations)
	if cfg.Verbose {
		n := min(cfg.MaxIterations, MaxTraceRecords)
		st.Trace = make([]IterationRecord, 0, n)
		st.BestCostHistory = make([]float64, 0, n)
	}
	report := func() {
		if cfg.Progress != nil {
			cfg.Progress(model.Progress{Iteration: st.IterationsCompleted, Temperature: temp, CurrentCost: currCost, BestCost: bestCost, Accepted: st.TotalAccepted})
		}
	}

	for {
		if temp <= cfg.FinalTemperature {
			st.StopReason = StopTemperature
			break
		}
		if st.IterationsCompleted >= cfg.MaxIterations {
			st.StopReason = StopMaxIterations
			break
		}
		select {
		case <-ctx.Done():
			st.StopReason = StopCanceled
		default:
		}
		if st.StopReason != "" {
			break
		}
		if !deadline.IsZero() && st.IterationsCompleted%64 == 0 && time.Now().After(deadline) {
			st.StopReason = StopTimeBudget
			break
		}

		cand, mv := Neighbor(curr, rng)
		st.Moves.add(mv)
		candCost := table.total(cand)
		delta := candCost - currCost
		accepted := delta < 0 || rng.Float64() < acceptanceProbability(delta, temp)
		st.TotalAttempts++
		if accepted {
			st.TotalAccepted++
			if delta < 0 {
				st.BetterAccepted++
			} else {
				st.WorseAccepted++
			}
			curr, currCost = cand, candCost
			if currCost < bestCost {
				best, bestCost = curr, currCost
			}
		}
		if cfg.Verbose && st.IterationsCompleted%stride == 0 {
			st.BestCostHistory = append(st.BestCostHistory, bestCost)
			st.Trace = append(st.Trace, IterationRecord{
				Iteration:     st.IterationsCompleted + 1,
				Temperature:   temp,
				CurrentCost:   currCost,
				CandidateCost: candCost,
				Delta:         delta,
				Accepted:      accepted,
				Move:          mv.String(),
			})
		}
		temp *= cfg.CoolingRate
		st.IterationsCompleted++
		if cfg.ProgressEvery > 0 && st.IterationsCompleted%cfg.ProgressEvery == 0 {
			report()
		}
	}

	if cfg.Polish {
		polished := polish(table, best)
		if c := table.total(polished); c < bestCost {
			st.PolishGain = bestCost - c
			best, bestCost = polished, c
		}
	}

	st.FinalTemperature = temp
	st.FinalCost = bestCost
	st.Improvement = st.InitialCost - bestCost
	if st.InitialCost > 0 {
		st.ImprovementPercentage = 100 * st.Improvement / st.InitialCost
	}
	if st.IterationsCompleted > 0 {
		st.AcceptanceRate = float64(st.TotalAccepted) / float64(st.IterationsCompleted)
	}
	st.DurationMs = time.Since(started).Milliseconds()
	report()

	return Result{
		Routes:   best.Routes(vehicles, orders),
		Solution: best,
		BestCost: bestCost,
		Stats:    st,
	}, nil
}
