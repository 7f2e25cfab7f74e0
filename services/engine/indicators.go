package engine

import (
	"fmt"
	"math"
)

// EnrichedBar is a Candle plus every derived field the signal engine and
// simulator read. Any field whose window reaches before the start of the
// series is NaN; downstream filters treat NaN as filter-fail.
type EnrichedBar struct {
	Candle

	EMA20         float64
	EMA50         float64
	EMA200        float64
	EMA200Slope   float64 // 1-bar delta
	EMA200Slope10 float64 // 10-bar delta

	RSI      float64
	RSIDelta float64

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	ATR      float64
	ATRPct   float64
	ATRMA    float64 // SMA20 of ATR
	ATRPctMA float64 // SMA20 of ATRPct

	Chop float64

	VolumeSMA20 float64
	VolumeRatio float64

	VWAP float64 // intraday, resets each UTC calendar day

	Structure Structure

	BBMid     float64
	BBUpper   float64
	BBLower   float64
	BBWidth   float64
	BBWidthMA float64
	BBSqueeze bool

	Support    float64 // rolling min low, shifted one bar back
	Resistance float64 // rolling max high, shifted one bar back

	EMA200H4      float64 // 4h EMA200 forward-filled onto base bars
	EMA200H4Slope float64
	SMA2001D      float64 // daily SMA200 forward-filled onto base bars
}

// EnrichConfig carries the indicator periods. Defaults match the live
// configuration; tests shrink the windows to keep fixtures small.
type EnrichConfig struct {
	RSIPeriod      int
	ATRPeriod      int
	ChopPeriod     int
	VolumePeriod   int
	BBPeriod       int
	BBWidthPeriod  int
	SRLookback     int
	StructWindow   int // centered extreme window, must be odd
	StructLookback int // bars between compared extremes
	StructureMode  StructureMode
}

// DefaultEnrichConfig returns the production periods.
func DefaultEnrichConfig() EnrichConfig {
	return EnrichConfig{
		RSIPeriod:      14,
		ATRPeriod:      14,
		ChopPeriod:     14,
		VolumePeriod:   20,
		BBPeriod:       20,
		BBWidthPeriod:  50,
		SRLookback:     10,
		StructWindow:   5,
		StructLookback: 10,
		StructureMode:  StructureCentered,
	}
}

const (
	h4Ms  = 4 * 60 * 60 * 1000
	dayMs = 24 * 60 * 60 * 1000
)

// Enrich computes the full derived series for an ordered candle sequence.
// Pure: same input always yields the same output, input is never mutated.
func Enrich(candles []Candle, cfg EnrichConfig) ([]EnrichedBar, error) {
	if err := ValidateCandles(candles); err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	if cfg.StructWindow%2 == 0 {
		return nil, fmt.Errorf("enrich: centered structure window must be odd, got %d", cfg.StructWindow)
	}
	n := len(candles)

	closes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
	}

	ema20 := emaSeries(closes, 20)
	ema50 := emaSeries(closes, 50)
	ema200 := emaSeries(closes, 200)

	rsi := rsiSeries(closes, cfg.RSIPeriod)

	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	macdSignal := emaSeries(macd, 9)

	tr := trueRangeSeries(candles)
	atr := smaSeries(tr, cfg.ATRPeriod)
	atrPct := make([]float64, n)
	for i := range atrPct {
		atrPct[i] = safeDiv(atr[i], closes[i])
	}
	atrMA := smaSeries(atr, 20)
	atrPctMA := smaSeries(atrPct, 20)

	chop := chopSeries(candles, tr, cfg.ChopPeriod)

	volumes := make([]float64, n)
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	volSMA := smaSeries(volumes, cfg.VolumePeriod)
	volRatio := make([]float64, n)
	for i := range volRatio {
		volRatio[i] = safeDiv(volumes[i], volSMA[i])
	}

	vwap := vwapSeries(candles)

	structure := structureSeries(candles, cfg.StructWindow, cfg.StructLookback, cfg.StructureMode)

	bbMid := smaSeries(closes, cfg.BBPeriod)
	bbStd := rollingStd(closes, cfg.BBPeriod)
	bbUpper := make([]float64, n)
	bbLower := make([]float64, n)
	bbWidth := make([]float64, n)
	for i := range bbMid {
		bbUpper[i] = bbMid[i] + 2*bbStd[i]
		bbLower[i] = bbMid[i] - 2*bbStd[i]
		bbWidth[i] = safeDiv(bbUpper[i]-bbLower[i], bbMid[i])
	}
	bbWidthMA := smaSeries(bbWidth, cfg.BBWidthPeriod)

	support, resistance := supportResistance(candles, cfg.SRLookback)

	ema200H4, ema200H4Slope := htfEMA(candles, h4Ms, 200)
	sma2001D := htfSMA(candles, dayMs, 200)

	bars := make([]EnrichedBar, n)
	for i := range bars {
		b := &bars[i]
		b.Candle = candles[i]
		b.EMA20 = ema20[i]
		b.EMA50 = ema50[i]
		b.EMA200 = ema200[i]
		b.EMA200Slope = lag(ema200, i, 1)
		b.EMA200Slope10 = lag(ema200, i, 10)
		b.RSI = rsi[i]
		b.RSIDelta = lag(rsi, i, 1)
		b.MACD = macd[i]
		b.MACDSignal = macdSignal[i]
		b.MACDHist = macd[i] - macdSignal[i]
		b.ATR = atr[i]
		b.ATRPct = atrPct[i]
		b.ATRMA = atrMA[i]
		b.ATRPctMA = atrPctMA[i]
		b.Chop = chop[i]
		b.VolumeSMA20 = volSMA[i]
		b.VolumeRatio = volRatio[i]
		b.VWAP = vwap[i]
		b.Structure = structure[i]
		b.BBMid = bbMid[i]
		b.BBUpper = bbUpper[i]
		b.BBLower = bbLower[i]
		b.BBWidth = bbWidth[i]
		b.BBWidthMA = bbWidthMA[i]
		b.BBSqueeze = !math.IsNaN(bbWidth[i]) && !math.IsNaN(bbWidthMA[i]) && bbWidth[i] < 0.7*bbWidthMA[i]
		b.Support = support[i]
		b.Resistance = resistance[i]
		b.EMA200H4 = ema200H4[i]
		b.EMA200H4Slope = ema200H4Slope[i]
		b.SMA2001D = sma2001D[i]
	}
	return bars, nil
}

// emaSeries computes a recursive EMA with alpha = 2/(period+1), seeded at
// the first value. Defined from index 0 onward.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// smaSeries computes a trailing simple moving average. NaN until a full
// window is available; NaN inputs poison their windows.
func smaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// rollingStd computes a trailing sample standard deviation (ddof=1).
func rollingStd(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < period-1 || period < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += values[j]
		}
		mean /= float64(period)
		varSum := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			varSum += d * d
		}
		out[i] = math.Sqrt(varSum / float64(period-1))
	}
	return out
}

// rsiSeries computes RSI from trailing-window means of gains and losses.
// When the window's average loss is exactly zero and gains are positive,
// RSI is 100 by definition; when both averages are zero the value is NaN
// (0/0), matching the reference behavior rather than clamping.
func rsiSeries(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	if n > 0 {
		gains[0], losses[0] = math.NaN(), math.NaN()
	}
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	avgGain := smaSeries(gains, period)
	avgLoss := smaSeries(losses, period)
	out := make([]float64, n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g > 0:
			out[i] = 100
		case l == 0:
			out[i] = math.NaN()
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// trueRangeSeries computes max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close, so only high-low applies.
func trueRangeSeries(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prev := candles[i-1].Close
		out[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return out
}

// chopSeries computes the Choppiness Index over a trailing window.
// NaN when the window's high-low range is zero (flat market).
func chopSeries(candles []Candle, tr []float64, period int) []float64 {
	out := make([]float64, len(candles))
	logP := math.Log10(float64(period))
	for i := range out {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		sumTR := 0.0
		hh, ll := math.Inf(-1), math.Inf(1)
		for j := i - period + 1; j <= i; j++ {
			sumTR += tr[j]
			hh = math.Max(hh, candles[j].High)
			ll = math.Min(ll, candles[j].Low)
		}
		rng := hh - ll
		if rng <= 0 || sumTR <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = 100 * math.Log10(sumTR/rng) / logP
	}
	return out
}

// vwapSeries computes cumulative typical-price VWAP, reset at each UTC
// calendar-day boundary. Never carried across days.
func vwapSeries(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	var cumPV, cumV float64
	var day int64 = -1
	for i, c := range candles {
		d := c.Timestamp / dayMs
		if d != day {
			day = d
			cumPV, cumV = 0, 0
		}
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumV += c.Volume
		out[i] = safeDiv(cumPV, cumV)
	}
	return out
}

// supportResistance returns rolling min(low)/max(high) over lookback bars,
// shifted by one bar so the current bar never sees itself.
func supportResistance(candles []Candle, lookback int) (support, resistance []float64) {
	n := len(candles)
	support = make([]float64, n)
	resistance = make([]float64, n)
	for i := 0; i < n; i++ {
		if i < lookback {
			support[i], resistance[i] = math.NaN(), math.NaN()
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := i - lookback; j < i; j++ {
			lo = math.Min(lo, candles[j].Low)
			hi = math.Max(hi, candles[j].High)
		}
		support[i], resistance[i] = lo, hi
	}
	return support, resistance
}

// lag returns series[i]-series[i-k], NaN when i-k underflows.
func lag(series []float64, i, k int) float64 {
	if i < k {
		return math.NaN()
	}
	return series[i] - series[i-k]
}

// safeDiv returns a/b with NaN instead of a division blow-up.
func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}
