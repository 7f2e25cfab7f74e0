package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridCombosCartesianProduct(t *testing.T) {
	g := Grid{
		VolumeFloor: []float64{0.8, 0.9},
		ChopCeiling: []float64{55, 60, 65},
	}
	combos := g.Combos(DefaultParams())
	assert.Len(t, combos, 6)
}

func TestGridCombosDropInvalidCombinations(t *testing.T) {
	g := Grid{
		RSIMin: []float64{40, 70},
		RSIMax: []float64{62},
	}
	combos := g.Combos(DefaultParams())
	require.Len(t, combos, 1, "rsi_min 70 with rsi_max 62 is inverted and dropped")
	assert.Equal(t, 40.0, combos[0].RSIMin)
}

func TestGridCombosEmptyAxesKeepBase(t *testing.T) {
	combos := Grid{}.Combos(DefaultParams())
	require.Len(t, combos, 1)
	assert.Equal(t, DefaultParams(), combos[0])
}

func TestRunGridRefusesOversizedGrid(t *testing.T) {
	cfg := DefaultSearchConfig()
	cfg.MaxCombos = 2
	g := Grid{VolumeFloor: []float64{0.8, 0.9, 1.0}}
	_, err := RunGrid(context.Background(), searchFixtureBars(), DefaultParams(), g, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed cap")
}

func searchFixtureBars() []EnrichedBar {
	bars := make([]EnrichedBar, 30)
	for i := range bars {
		bars[i] = fillerBar(int64(i) * 300_000)
	}
	return bars
}

func TestRunGridRanksAndPrunes(t *testing.T) {
	// Every trial on an all-neutral series produces zero trades, so all
	// of them are pruned but the run itself still completes and sorts.
	base := testParams()
	cfg := DefaultSearchConfig()
	cfg.Workers = 4
	cfg.MinTrades = 1

	g := Grid{ChopCeiling: []float64{55, 60, 65}}
	results, err := RunGrid(context.Background(), searchFixtureBars(), base, g, cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Pruned)
		assert.Equal(t, 0, r.Stats.Trades)
		assert.True(t, r.Stats.FinalCapital.Equal(cfg.InitialCapital))
	}
}

func TestRunGridSortsByFinalCapital(t *testing.T) {
	results := []TrialResult{
		{Stats: ComputeStats([]TradeRecord{{Return: 0.01, Profitable: true}}, DefaultSearchConfig().InitialCapital)},
		{Stats: ComputeStats([]TradeRecord{{Return: 0.05, Profitable: true}}, DefaultSearchConfig().InitialCapital)},
		{Pruned: true, Stats: ComputeStats([]TradeRecord{{Return: 0.50, Profitable: true}}, DefaultSearchConfig().InitialCapital)},
	}
	sortTrials(results)
	assert.True(t, results[0].Stats.FinalCapital.GreaterThan(results[1].Stats.FinalCapital))
	assert.True(t, results[2].Pruned, "pruned trials rank last even with the best capital")
}

func TestRunGridCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunGrid(ctx, searchFixtureBars(), testParams(), Grid{ChopCeiling: []float64{55, 60}}, DefaultSearchConfig())
	assert.Error(t, err)
}

func TestRunGuidedReturnsATrial(t *testing.T) {
	cfg := DefaultSearchConfig()
	cfg.MinTrades = 1
	best, err := RunGuided(context.Background(), searchFixtureBars(), testParams(), Grid{ChopCeiling: []float64{55, 60, 65}}, cfg)
	require.NoError(t, err)
	assert.NoError(t, best.Params.Validate())
}
