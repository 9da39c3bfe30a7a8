package opt_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/geo"
	"vrp/internal/opt"
)

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]opt.Algorithm{
		"":                     opt.AlgorithmSimulatedAnnealing,
		"SA":                   opt.AlgorithmSimulatedAnnealing,
		" simulated_annealing": opt.AlgorithmSimulatedAnnealing,
		"greedy":               opt.AlgorithmGreedy,
		"Nearest_Neighbor":     opt.AlgorithmGreedy,
	} {
		got, err := opt.ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := opt.ParseAlgorithm("tabu")
	assert.ErrorIs(t, err, opt.ErrConfiguration)
}

func TestOptimizeGreedyAndAnnealing(t *testing.T) {
	vs, ors := randomInstance(rand.New(rand.NewSource(77)), 3, 12)

	g, err := opt.Optimize(context.Background(), opt.Request{Vehicles: vs, Orders: ors, Algorithm: opt.AlgorithmGreedy, Anneal: opt.Config{Unit: geo.Miles}})
	require.NoError(t, err)
	assert.Nil(t, g.Stats)
	assert.Equal(t, geo.Miles, g.Unit)
	assert.Len(t, g.Routes, 3)
	assert.Len(t, orderIDs(g.Routes), 12)
	sum := 0.0
	for _, c := range g.RouteCosts {
		sum += c
	}
	assert.InDelta(t, g.TotalDistance, sum, 1e-9)

	cfg := opt.DefaultConfig()
	cfg.Seed = 5
	cfg.MaxIterations = 3000
	cfg.Unit = geo.Miles
	sa, err := opt.Optimize(context.Background(), opt.Request{Vehicles: vs, Orders: ors, Algorithm: opt.AlgorithmSimulatedAnnealing, Anneal: cfg, WarmStart: true})
	require.NoError(t, err)
	require.NotNil(t, sa.Stats)
	assert.Empty(t, sa.Unassigned)
	assert.InDelta(t, g.TotalDistance, sa.Stats.InitialCost, 1e-9)
	assert.LessOrEqual(t, sa.TotalDistance, g.TotalDistance+1e-9)
	assert.InDelta(t, sa.Stats.FinalCost, sa.TotalDistance, 1e-9)

	last := opt.LastMetrics()
	require.Contains(t, last, "simulated_annealing/miles")
	assert.Equal(t, 12, last["simulated_annealing/miles"].Orders)
	assert.Nil(t, last["simulated_annealing/miles"].Stats.BestCostHistory)
	require.Contains(t, last, "greedy/miles")
}

func TestOptimizeRejectsUnknownUnit(t *testing.T) {
	vs, ors := randomInstance(rand.New(rand.NewSource(1)), 1, 1)
	_, err := opt.Optimize(context.Background(), opt.Request{Vehicles: vs, Orders: ors, Algorithm: opt.AlgorithmGreedy, Anneal: opt.Config{Unit: "furlongs"}})
	assert.ErrorIs(t, err, geo.ErrInvalidUnit)
	assert.Equal(t, opt.KindInvalidUnit, opt.ErrorKind(err))
}
