package engine

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRange overrides just the price path of a fixture bar, leaving its
// indicator fields (and therefore its funnel verdict) alone.
func setRange(b EnrichedBar, open, high, low, close float64) EnrichedBar {
	b.Open, b.High, b.Low, b.Close = open, high, low, close
	return b
}

func runSim(t *testing.T, bars []EnrichedBar, p ParameterSet) *SimResult {
	t.Helper()
	sim, err := NewSimulator(bars, p)
	require.NoError(t, err)
	res, err := sim.Run()
	require.NoError(t, err)
	return res
}

func TestSimulatorRejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.StopATRMult = -1
	_, err := NewSimulator([]EnrichedBar{buyBar(0)}, p)
	assert.Error(t, err)
}

func TestSimulatorPartialThenFinalTakeProfit(t *testing.T) {
	// Entry next open at 100; stop 98, TP1 101, TP2 102. TP1 fills half
	// and moves the stop to entry; TP2 closes the rest.
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 100.2, 101.2, 100.0, 100.8),
		setRange(fillerBar(4), 101.5, 102.5, 101.0, 102.0),
		setRange(fillerBar(5), 102, 102.3, 101.8, 102),
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 2)
	first, second := res.Trades[0], res.Trades[1]

	assert.Equal(t, ExitTP1, first.ExitReason)
	assert.Equal(t, 0.5, first.Fraction)
	assert.Equal(t, 101.0, first.ExitPrice)
	// 0.5*1% minus fee on the closed half minus the full entry fee.
	assert.InDelta(t, 0.005-0.0005-0.001, first.Return, 1e-9)

	assert.Equal(t, ExitTP2, second.ExitReason)
	assert.Equal(t, 0.5, second.Fraction)
	assert.Equal(t, 102.0, second.ExitPrice)
	assert.InDelta(t, 0.01-0.0005, second.Return, 1e-9)

	assert.Equal(t, first.EntryTime, second.EntryTime, "one position, two close events")
}

func TestSimulatorStopLossAndCooldown(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1), // stop 98
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 99, 99.5, 97.5, 98.2),
		// Cooldown after a stop-out is 3 bars (bars 4-6): these BUY bars
		// must be ignored.
		setRange(buyBar(4), 100, 100.4, 99.5, 100),
		setRange(buyBar(5), 100, 100.4, 99.5, 100),
		setRange(buyBar(6), 100, 100.4, 99.5, 100),
		setRange(buyBar(7), 100, 100.4, 99.5, 100),
		setRange(fillerBar(8), 100, 100.4, 99.6, 100),
		setRange(fillerBar(9), 100, 100.5, 99.9, 100.2),
	}
	for i := range bars {
		bars[i].Timestamp = int64(i) * 300_000
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, ExitSL, res.Trades[0].ExitReason)
	assert.Equal(t, 98.0, res.Trades[0].ExitPrice)
	assert.InDelta(t, -0.02-0.002, res.Trades[0].Return, 1e-9)
	assert.False(t, res.Trades[0].Profitable)

	// Only the bar-7 signal survives the cooldown; it fills at bar 8.
	assert.Equal(t, bars[8].Timestamp, res.Trades[1].EntryTime)
	assert.Equal(t, ExitEOD, res.Trades[1].ExitReason)
	assert.Equal(t, bars[9].Close, res.Trades[1].ExitPrice)
}

func TestSimulatorTimeStopFillsNextOpen(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 100, 100.5, 99.5, 100),
		setRange(fillerBar(4), 100, 100.5, 99.5, 100),
		setRange(fillerBar(5), 100, 100.5, 99.5, 100),
		setRange(fillerBar(6), 100.3, 100.6, 99.8, 100.1),
	}
	for i := range bars {
		bars[i].Timestamp = int64(i) * 300_000
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ExitTime, tr.ExitReason)
	assert.Equal(t, 100.3, tr.ExitPrice, "time stop fills at the next bar's open")
	assert.Equal(t, bars[6].Timestamp, tr.ExitTime)
	assert.Equal(t, 1.0, tr.Fraction)
}

func TestSimulatorGapThroughTP2IsSingleFullExit(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		// Gaps over both targets: one full close at the open, not a
		// partial plus a final.
		setRange(fillerBar(3), 103, 103.5, 102.8, 103.2),
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ExitTP2, tr.ExitReason)
	assert.Equal(t, 103.0, tr.ExitPrice, "gap fills at the open, better than the level")
	assert.Equal(t, 1.0, tr.Fraction)
	assert.InDelta(t, 0.03-0.002, tr.Return, 1e-9, "full position pays both fees in one event")
}

func TestSimulatorOpposingSignalReverses(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(sellBar(3), 100, 100.5, 99.9, 100),
		setRange(fillerBar(4), 99.8, 100.2, 99.5, 99.9),
	}
	for i := range bars {
		bars[i].Timestamp = int64(i) * 300_000
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ExitRev, tr.ExitReason)
	assert.Equal(t, 99.8, tr.ExitPrice)
	assert.Equal(t, bars[4].Timestamp, tr.ExitTime)
}

func TestSimulatorEntrySlippageIsAgainstTheTrade(t *testing.T) {
	p := testParams()
	p.SlippageRate = 0.001
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 100.3, 100.6, 99.9, 100.1),
	}
	res := runSim(t, bars, p)

	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 100.1, res.Trades[0].EntryPrice, 1e-9, "long entries pay up")
}

func TestSimulatorBreakevenStopAfterPartial(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 100.2, 101.2, 100.0, 100.8), // TP1, stop moves to 100
		setRange(fillerBar(4), 100.5, 100.9, 99.8, 100.1),  // dips to breakeven
	}
	res := runSim(t, bars, testParams())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, ExitTP1, res.Trades[0].ExitReason)
	second := res.Trades[1]
	assert.Equal(t, ExitSL, second.ExitReason)
	assert.Equal(t, 100.0, second.ExitPrice, "stop sits at the entry after the partial")
	assert.InDelta(t, -0.0005, second.Return, 1e-9, "breakeven exit only costs the fee on the closed half")
}

func TestSimulatorSignalCounts(t *testing.T) {
	bars := []EnrichedBar{
		setRange(fillerBar(0), 100, 100.5, 97, 100),
		buyBar(1),
		setRange(fillerBar(2), 100, 100.4, 99.9, 100),
		setRange(fillerBar(3), 100, 100.4, 99.9, 100),
	}
	res := runSim(t, bars, testParams())
	assert.Equal(t, 1, res.SignalCounts[SignalBuy])
	assert.Equal(t, 2, res.SignalCounts[SignalNeutral])
	assert.Equal(t, 0, res.SignalCounts[SignalSell])
}

func TestSimulatorDeterministicEndToEnd(t *testing.T) {
	candles := syntheticCandles(600)
	bars, err := Enrich(candles, DefaultEnrichConfig())
	require.NoError(t, err)

	p := testParams()
	p.WarmupBars = 250

	a := runSim(t, bars, p)
	b := runSim(t, bars, p)
	assert.True(t, reflect.DeepEqual(a.Trades, b.Trades))
	assert.Equal(t, a.SignalCounts, b.SignalCounts)
	assert.True(t, a.Stats.FinalCapital.Equal(b.Stats.FinalCapital))
}
