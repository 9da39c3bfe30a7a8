package opt

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/geo"
	"vrp/internal/model"
)

func smallInstance() ([]model.Vehicle, []model.Order) {
	vs := []model.Vehicle{
		{ID: "V1", Location: geo.Point{Lat: 40.7128, Lon: -74.0060}},
		{ID: "V2", Location: geo.Point{Lat: 40.6782, Lon: -73.9442}},
	}
	ors := []model.Order{
		{ID: "O1", Pickup: geo.Point{Lat: 40.7580, Lon: -73.9855}, Dropoff: geo.Point{Lat: 40.7614, Lon: -73.9776}},
		{ID: "O2", Pickup: geo.Point{Lat: 40.7484, Lon: -73.9857}, Dropoff: geo.Point{Lat: 40.7061, Lon: -74.0087}},
		{ID: "O3", Pickup: geo.Point{Lat: 40.6892, Lon: -74.0445}, Dropoff: geo.Point{Lat: 40.7282, Lon: -73.7949}},
		{ID: "O4", Pickup: geo.Point{Lat: 40.6413, Lon: -73.7781}, Dropoff: geo.Point{Lat: 40.7769, Lon: -73.8740}},
	}
	return vs, ors
}

func testConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return cfg
}

func TestAnnealBestCostNeverIncreases(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	vs := make([]model.Vehicle, 3)
	for i := range vs {
		vs[i] = model.Vehicle{ID: string(rune('A' + i)), Location: geo.Point{Lat: 40 + rng.Float64(), Lon: -74 + rng.Float64()}}
	}
	ors := make([]model.Order, 15)
	for i := range ors {
		ors[i] = model.Order{ID: string(rune('a' + i)), Pickup: geo.Point{Lat: 40 + rng.Float64(), Lon: -74 + rng.Float64()}, Dropoff: geo.Point{Lat: 40 + rng.Float64(), Lon: -74 + rng.Float64()}}
	}
	cfg := testConfig(99)
	cfg.Verbose = true
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Stats.BestCostHistory)
	for i := 1; i < len(res.Stats.BestCostHistory); i++ {
		require.LessOrEqual(t, res.Stats.BestCostHistory[i], res.Stats.BestCostHistory[i-1], "iteration %d", i)
	}
	require.NoError(t, res.Solution.CheckConservation(len(ors)))
	assert.LessOrEqual(t, res.BestCost, res.Stats.InitialCost)
	assert.Equal(t, res.BestCost, res.Stats.FinalCost)

	total, err := TotalCost(res.Solution, vs, ors, geo.Kilometers)
	require.NoError(t, err)
	assert.InDelta(t, total, res.BestCost, 1e-9)
}

func TestAnnealFromGreedyNeverWorse(t *testing.T) {
	vs, ors := smallInstance()
	greedy, _, err := Greedy(vs, ors)
	require.NoError(t, err)
	greedyCost, err := TotalCost(greedy, vs, ors, geo.Kilometers)
	require.NoError(t, err)

	before := greedy.Clone()

	cfg := testConfig(7)
	cfg.InitialTemperature = 1000
	cfg.CoolingRate = 0.995
	cfg.MaxIterations = 2000
	cfg.InitialSolution = &greedy
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.BestCost, greedyCost)
	assert.InDelta(t, greedyCost, res.Stats.InitialCost, 1e-9)
	assert.Equal(t, before, greedy, "warm start must not be mutated")
}

func TestAcceptanceRates(t *testing.T) {
	const trials = 200000
	rate := func(delta, temp float64) float64 {
		rng := rand.New(rand.NewSource(17))
		hit := 0
		for i := 0; i < trials; i++ {
			if rng.Float64() < acceptanceProbability(delta, temp) {
				hit++
			}
		}
		return float64(hit) / trials
	}
	assert.InDelta(t, math.Exp(-5.0/500), rate(5, 500), 0.005)
	assert.InDelta(t, math.Exp(-5.0), rate(5, 1), 0.002)
}

func TestAcceptanceProbabilityUnderflow(t *testing.T) {
	assert.Equal(t, 0.0, acceptanceProbability(1e6, 1e-3))
	assert.Equal(t, 0.0, acceptanceProbability(1, 0))
	assert.Equal(t, 0.0, acceptanceProbability(math.Inf(1), math.Inf(1)))
	assert.Equal(t, 1.0, acceptanceProbability(-3, 10))
	assert.Equal(t, 1.0, acceptanceProbability(0, 10))
}

func TestAnnealSingleOrder(t *testing.T) {
	vs := []model.Vehicle{{ID: "V1", Location: geo.Point{Lat: 40.7128, Lon: -74.0060}}}
	ors := []model.Order{{ID: "O1", Pickup: geo.Point{Lat: 40.7580, Lon: -73.9855}, Dropoff: geo.Point{Lat: 40.7614, Lon: -73.9776}}}
	res, err := Anneal(context.Background(), vs, ors, testConfig(3))
	require.NoError(t, err)

	only, err := RouteCost(model.Route{Vehicle: vs[0], Orders: ors}, geo.Kilometers)
	require.NoError(t, err)
	assert.Equal(t, only, res.BestCost)
	assert.Zero(t, res.Stats.Improvement)
	assert.Zero(t, res.Stats.ImprovementPercentage)
	assert.Equal(t, []string{"O1"}, res.Routes[0].OrderIDs())
}

func TestAnnealStopsOnTemperature(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(1)
	cfg.InitialTemperature = 10
	cfg.FinalTemperature = 1
	cfg.CoolingRate = 0.5
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	// 10, 5, 2.5, 1.25 then 0.625 <= 1
	assert.Equal(t, 4, res.Stats.IterationsCompleted)
	assert.Equal(t, StopTemperature, res.Stats.StopReason)
	assert.InDelta(t, 0.625, res.Stats.FinalTemperature, 1e-12)

	cfg = testConfig(1)
	cfg.MaxIterations = 25
	res, err = Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Stats.IterationsCompleted)
	assert.Equal(t, StopMaxIterations, res.Stats.StopReason)
	assert.Equal(t, res.Stats.TotalAccepted, res.Stats.BetterAccepted+res.Stats.WorseAccepted)
	assert.InDelta(t, float64(res.Stats.TotalAccepted)/25, res.Stats.AcceptanceRate, 1e-12)
	assert.Equal(t, 25, res.Stats.Moves.IntraSwap+res.Stats.Moves.InterMove+res.Stats.Moves.InterSwap)
}

func TestAnnealSeedIsReproducible(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(1234)
	cfg.Verbose = true
	a, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	b, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Solution, b.Solution)
	assert.Equal(t, a.Stats.BestCostHistory, b.Stats.BestCostHistory)
	assert.Equal(t, int64(1234), a.Stats.Seed)

	c, err := Anneal(context.Background(), vs, ors, testConfig(0))
	require.NoError(t, err)
	assert.NotZero(t, c.Stats.Seed)
}

func TestAnnealConfigValidation(t *testing.T) {
	vs, ors := smallInstance()
	cases := map[string]func(*Config){
		"zero initial":     func(c *Config) { c.InitialTemperature = 0 },
		"nan initial":      func(c *Config) { c.InitialTemperature = math.NaN() },
		"final above":      func(c *Config) { c.FinalTemperature = 2000 },
		"final zero":       func(c *Config) { c.FinalTemperature = 0 },
		"cooling one":      func(c *Config) { c.CoolingRate = 1 },
		"cooling zero":     func(c *Config) { c.CoolingRate = 0 },
		"no iterations":    func(c *Config) { c.MaxIterations = 0 },
		"negative budget":  func(c *Config) { c.TimeBudget = -time.Second },
		"short warm start": func(c *Config) { c.InitialSolution = &Solution{Plans: []RoutePlan{{VehicleID: "V1"}}} },
		"lossy warm start": func(c *Config) { c.InitialSolution = &Solution{Plans: []RoutePlan{{VehicleID: "V1", Order: []int{0}}, {VehicleID: "V2"}}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(1)
			mutate(&cfg)
			_, err := Anneal(context.Background(), vs, ors, cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Equal(t, KindConfiguration, ErrorKind(err))
		})
	}

	cfg := testConfig(1)
	cfg.Unit = "leagues"
	_, err := Anneal(context.Background(), vs, ors, cfg)
	assert.ErrorIs(t, err, geo.ErrInvalidUnit)

	_, err = Anneal(context.Background(), nil, ors, testConfig(1))
	assert.ErrorIs(t, err, ErrEmptyInput)

	cfg = Config{InitialTemperature: 5, FinalTemperature: 1, CoolingRate: 0.9, MaxIterations: 1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, geo.Kilometers, cfg.Unit)
}

func TestAnnealCanceled(t *testing.T) {
	vs, ors := smallInstance()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Anneal(ctx, vs, ors, testConfig(1))
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, res.Stats.StopReason)
	assert.Zero(t, res.Stats.IterationsCompleted)
	assert.Zero(t, res.Stats.AcceptanceRate)
	require.NoError(t, res.Solution.CheckConservation(len(ors)))
}

func TestAnnealTimeBudget(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(1)
	cfg.FinalTemperature = 1e-300
	cfg.CoolingRate = 0.999999
	cfg.MaxIterations = math.MaxInt32
	cfg.TimeBudget = 20 * time.Millisecond
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.Equal(t, StopTimeBudget, res.Stats.StopReason)
}

func TestAnnealVerboseTraceAndProgress(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(4)
	cfg.MaxIterations = 100
	cfg.Verbose = true
	cfg.ProgressEvery = 10
	var seen []model.Progress
	cfg.Progress = func(p model.Progress) { seen = append(seen, p) }
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	require.Len(t, res.Stats.Trace, 100)
	assert.Equal(t, 1, res.Stats.Trace[0].Iteration)
	assert.Equal(t, cfg.InitialTemperature, res.Stats.Trace[0].Temperature)
	// ten periodic reports plus the final one
	require.Len(t, seen, 11)
	assert.Equal(t, 100, seen[10].Iteration)
	assert.Equal(t, res.BestCost, seen[10].BestCost)
}

func TestAnnealHistoryOnlyWhenVerbose(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(8)
	cfg.MaxIterations = 5000
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Stats.BestCostHistory)
	assert.Nil(t, res.Stats.Trace)
}

func TestAnnealTraceIsBounded(t *testing.T) {
	vs, ors := smallInstance()
	cfg := testConfig(8)
	cfg.MaxIterations = 5 * MaxTraceRecords
	cfg.CoolingRate = 0.99999
	cfg.Verbose = true
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	require.Equal(t, cfg.MaxIterations, res.Stats.IterationsCompleted)
	assert.Len(t, res.Stats.Trace, MaxTraceRecords)
	assert.Len(t, res.Stats.BestCostHistory, MaxTraceRecords)
	assert.Equal(t, 1, res.Stats.Trace[0].Iteration)
	assert.Equal(t, 6, res.Stats.Trace[1].Iteration)
	for i := 1; i < len(res.Stats.BestCostHistory); i++ {
		require.LessOrEqual(t, res.Stats.BestCostHistory[i], res.Stats.BestCostHistory[i-1])
	}
}

func TestPolishNeverWorsens(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	vs := []model.Vehicle{{ID: "V1", Location: geo.Point{Lat: 40, Lon: -74}}}
	ors := make([]model.Order, 9)
	for i := range ors {
		ors[i] = model.Order{ID: string(rune('a' + i)), Pickup: geo.Point{Lat: 40 + rng.Float64(), Lon: -74 + rng.Float64()}, Dropoff: geo.Point{Lat: 40 + rng.Float64(), Lon: -74 + rng.Float64()}}
	}
	table, err := newCostTable(vs, ors, geo.Kilometers)
	require.NoError(t, err)
	s := RandomSolution(vs, len(ors), rng)
	p := polish(table, s)
	require.NoError(t, p.CheckConservation(len(ors)))
	assert.LessOrEqual(t, table.total(p), table.total(s))

	cfg := testConfig(2)
	cfg.MaxIterations = 10
	cfg.Polish = true
	res, err := Anneal(context.Background(), vs, ors, cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Stats.PolishGain, 0.0)
}

func TestCostTableMatchesTotalCost(t *testing.T) {
	vs, ors := smallInstance()
	rng := rand.New(rand.NewSource(6))
	for _, unit := range geo.Units() {
		table, err := newCostTable(vs, ors, unit)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			s := RandomSolution(vs, len(ors), rng)
			want, err := TotalCost(s, vs, ors, unit)
			require.NoError(t, err)
			assert.Equal(t, want, table.total(s))
			table.links = nil
			assert.Equal(t, want, table.total(s), "on-demand links")
			table, _ = newCostTable(vs, ors, unit)
		}
	}
}
