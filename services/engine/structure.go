package engine

import "math"

// Structure classifies the swing pattern around a bar.
type Structure string

const (
	StructureBullish Structure = "BULLISH"
	StructureBearish Structure = "BEARISH"
	StructureNeutral Structure = "NEUTRAL"
)

// StructureMode selects how the rolling extremes are windowed.
type StructureMode int

const (
	// StructureCentered reproduces the historical classifier: the rolling
	// extreme window is centered on the classified bar, so it reads bars
	// AFTER that index. This is a look-ahead when used on the live edge;
	// it is kept because changing it silently would change every historical
	// result. Use StructureBackward for live evaluation.
	StructureCentered StructureMode = iota
	StructureBackward
)

// structureSeries classifies higher-high/higher-low vs lower-high/lower-low
// patterns by comparing a rolling extreme against the same extreme lookback
// bars earlier, then forward-fills the last non-neutral classification
// across NEUTRAL gaps.
func structureSeries(candles []Candle, window, lookback int, mode StructureMode) []Structure {
	n := len(candles)
	rollHigh := make([]float64, n)
	rollLow := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		var from, to int
		if mode == StructureCentered {
			from, to = i-half, i+half
		} else {
			from, to = i-window+1, i
		}
		if from < 0 || to >= n {
			rollHigh[i], rollLow[i] = math.NaN(), math.NaN()
			continue
		}
		hi, lo := math.Inf(-1), math.Inf(1)
		for j := from; j <= to; j++ {
			hi = math.Max(hi, candles[j].High)
			lo = math.Min(lo, candles[j].Low)
		}
		rollHigh[i], rollLow[i] = hi, lo
	}

	out := make([]Structure, n)
	for i := 0; i < n; i++ {
		out[i] = StructureNeutral
		if i < lookback {
			continue
		}
		h, hPrev := rollHigh[i], rollHigh[i-lookback]
		l, lPrev := rollLow[i], rollLow[i-lookback]
		if math.IsNaN(h) || math.IsNaN(hPrev) || math.IsNaN(l) || math.IsNaN(lPrev) {
			continue
		}
		switch {
		case h > hPrev && l > lPrev:
			out[i] = StructureBullish
		case h < hPrev && l < lPrev:
			out[i] = StructureBearish
		}
	}

	// Forward-fill non-neutral classifications across gaps.
	last := StructureNeutral
	for i := range out {
		if out[i] == StructureNeutral {
			out[i] = last
		} else {
			last = out[i]
		}
	}
	return out
}
