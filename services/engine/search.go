package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// TrialResult is one evaluated parameter set. Pruned trials produced
// fewer closes than the configured minimum and rank below everything
// else regardless of capital.
type TrialResult struct {
	Params ParameterSet
	Stats  Stats
	Pruned bool
}

// SearchConfig controls a search run, not the strategy itself.
type SearchConfig struct {
	InitialCapital decimal.Decimal
	MinTrades      int
	MaxCombos      int
	Workers        int
}

// DefaultSearchConfig matches the sweep sizes used for the shipped presets.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		InitialCapital: decimal.NewFromInt(10_000),
		MinTrades:      8,
		MaxCombos:      20_000,
		Workers:        8,
	}
}

// Grid lists candidate values per searchable threshold. Empty axes keep
// the base value. The cartesian product is taken over non-empty axes.
type Grid struct {
	VolumeFloor  []float64
	ChopCeiling  []float64
	ATRFloor     []float64
	RSIMin       []float64
	RSIMax       []float64
	VolumeSpike  []float64
	StopATRMult  []float64
	TP1Mult      []float64
	TP2Mult      []float64
	TimeStopBars []int
}

// DefaultGrid is the standing sweep around the baseline preset.
func DefaultGrid() Grid {
	return Grid{
		VolumeFloor:  []float64{0.80, 0.90, 1.00},
		ChopCeiling:  []float64{55, 60, 65},
		ATRFloor:     []float64{0.0035, 0.0045, 0.0055},
		RSIMin:       []float64{38, 40, 42},
		RSIMax:       []float64{58, 62, 66},
		VolumeSpike:  []float64{1.25, 1.40, 1.55},
		StopATRMult:  []float64{1.8, 2.0, 2.2},
		TP1Mult:      []float64{1.6, 1.85, 2.0},
		TP2Mult:      []float64{3.0, 3.3, 3.6},
		TimeStopBars: []int{24, 28, 36},
	}
}

// Combos expands the grid into full parameter sets layered over base.
// Combinations that fail validation (inverted RSI band, inverted
// take-profit ladder) are dropped rather than reported as errors: they
// are an expected artifact of taking a cartesian product.
func (g Grid) Combos(base ParameterSet) []ParameterSet {
	out := []ParameterSet{base}

	expandF := func(in []ParameterSet, vals []float64, set func(*ParameterSet, float64)) []ParameterSet {
		if len(vals) == 0 {
			return in
		}
		next := make([]ParameterSet, 0, len(in)*len(vals))
		for _, p := range in {
			for _, v := range vals {
				q := p
				set(&q, v)
				next = append(next, q)
			}
		}
		return next
	}
	expandI := func(in []ParameterSet, vals []int, set func(*ParameterSet, int)) []ParameterSet {
		if len(vals) == 0 {
			return in
		}
		next := make([]ParameterSet, 0, len(in)*len(vals))
		for _, p := range in {
			for _, v := range vals {
				q := p
				set(&q, v)
				next = append(next, q)
			}
		}
		return next
	}

	out = expandF(out, g.VolumeFloor, func(p *ParameterSet, v float64) { p.VolumeFloor = v })
	out = expandF(out, g.ChopCeiling, func(p *ParameterSet, v float64) { p.ChopCeiling = v })
	out = expandF(out, g.ATRFloor, func(p *ParameterSet, v float64) { p.ATRFloor = v })
	out = expandF(out, g.RSIMin, func(p *ParameterSet, v float64) { p.RSIMin = v })
	out = expandF(out, g.RSIMax, func(p *ParameterSet, v float64) { p.RSIMax = v })
	out = expandF(out, g.VolumeSpike, func(p *ParameterSet, v float64) { p.VolumeSpike = v })
	out = expandF(out, g.StopATRMult, func(p *ParameterSet, v float64) { p.StopATRMult = v })
	out = expandF(out, g.TP1Mult, func(p *ParameterSet, v float64) { p.TP1Mult = v })
	out = expandF(out, g.TP2Mult, func(p *ParameterSet, v float64) { p.TP2Mult = v })
	out = expandI(out, g.TimeStopBars, func(p *ParameterSet, v int) { p.TimeStopBars = v })

	valid := out[:0]
	for _, p := range out {
		if p.Validate() == nil {
			valid = append(valid, p)
		}
	}
	return valid
}

// RunGrid evaluates every grid combination against a shared enriched
// series. The series is read-only and shared across workers; each trial
// carries its own parameter set, so trials are independent. Results are
// sorted by final capital descending, pruned trials last.
func RunGrid(ctx context.Context, bars []EnrichedBar, base ParameterSet, grid Grid, cfg SearchConfig) ([]TrialResult, error) {
	combos := grid.Combos(base)
	if len(combos) == 0 {
		return nil, fmt.Errorf("search: grid produced no valid combinations")
	}
	if cfg.MaxCombos > 0 && len(combos) > cfg.MaxCombos {
		return nil, fmt.Errorf("search: %d combinations exceed cap %d, shrink the grid", len(combos), cfg.MaxCombos)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]TrialResult, len(combos))
	jobs := make(chan int)
	var done atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = runTrial(bars, combos[idx], cfg)
				if n := done.Add(1); n%500 == 0 {
					log.Printf("search: %d/%d trials done", n, len(combos))
				}
			}
		}()
	}

	var err error
feed:
	for i := range combos {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	sortTrials(results)
	return results, nil
}

// RunGuided is a coordinate-descent alternative to the full sweep: it
// walks one grid axis at a time, keeps the best value found, and repeats
// until a full pass yields no improvement. Far fewer simulations than
// the cartesian product, at the cost of possibly settling on a local
// optimum.
func RunGuided(ctx context.Context, bars []EnrichedBar, base ParameterSet, grid Grid, cfg SearchConfig) (TrialResult, error) {
	best := runTrial(bars, base, cfg)

	axes := []Grid{
		{VolumeFloor: grid.VolumeFloor},
		{ChopCeiling: grid.ChopCeiling},
		{ATRFloor: grid.ATRFloor},
		{RSIMin: grid.RSIMin},
		{RSIMax: grid.RSIMax},
		{VolumeSpike: grid.VolumeSpike},
		{StopATRMult: grid.StopATRMult},
		{TP1Mult: grid.TP1Mult},
		{TP2Mult: grid.TP2Mult},
		{TimeStopBars: grid.TimeStopBars},
	}

	const maxPasses = 4
	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for _, axis := range axes {
			for _, cand := range axis.Combos(best.Params) {
				if err := ctx.Err(); err != nil {
					return TrialResult{}, err
				}
				if cand == best.Params {
					continue
				}
				r := runTrial(bars, cand, cfg)
				if betterTrial(r, best) {
					best = r
					improved = true
				}
			}
		}
		if !improved {
			break
		}
		log.Printf("search: guided pass %d, final capital %s", pass+1, best.Stats.FinalCapital.StringFixed(2))
	}
	return best, nil
}

func runTrial(bars []EnrichedBar, p ParameterSet, cfg SearchConfig) TrialResult {
	sim, err := NewSimulator(bars, p)
	if err != nil {
		return TrialResult{Params: p, Pruned: true}
	}
	res, err := sim.Run()
	if err != nil {
		return TrialResult{Params: p, Pruned: true}
	}
	return TrialResult{
		Params: p,
		Stats:  ComputeStats(res.Trades, cfg.InitialCapital),
		Pruned: len(res.Trades) < cfg.MinTrades,
	}
}

func betterTrial(a, b TrialResult) bool {
	if a.Pruned != b.Pruned {
		return !a.Pruned
	}
	return a.Stats.FinalCapital.GreaterThan(b.Stats.FinalCapital)
}

func sortTrials(results []TrialResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return betterTrial(results[i], results[j])
	})
}
