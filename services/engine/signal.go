package engine

import "math"

// Signal is the engine's verdict for one bar.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)

// StrategySignal is the full decision for a bar: the verdict, a
// human-readable reason for NEUTRAL verdicts, the indicator context the
// decision was based on, and the price levels for actionable verdicts.
type StrategySignal struct {
	Signal      Signal
	Reason      string
	Context     map[string]float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
}

func neutral(reason string, ctx map[string]float64) StrategySignal {
	return StrategySignal{Signal: SignalNeutral, Reason: reason, Context: ctx}
}

// nanFails is the funnel's NaN policy: an undefined indicator cannot
// satisfy a filter, so the comparison fails and the bar stays NEUTRAL.
// Higher-timeframe checks are the one exception (see trendDirection).
func nanFails(v float64, pass bool) bool {
	return !math.IsNaN(v) && pass
}

// GenerateSignal evaluates the layered filter funnel on bars[last].
// Layers run in a fixed order and the first failing check decides the
// reason, so two runs over the same series always report identically.
//
// Layer 1 rejects regimes not worth trading (thin volume, chop, dead or
// panicked volatility). Layer 2 establishes trend direction and demands
// higher-timeframe agreement. Layer 3 checks momentum quality. Layer 4
// requires a concrete price/volume trigger. Only a bar surviving all four
// becomes BUY or SELL.
func GenerateSignal(bars []EnrichedBar, last int, p ParameterSet) StrategySignal {
	if last < p.WarmupBars || last >= len(bars) {
		return neutral("insufficient history", map[string]float64{})
	}
	b := bars[last]
	ctx := map[string]float64{
		"close":        b.Close,
		"ema50":        b.EMA50,
		"ema200":       b.EMA200,
		"rsi":          b.RSI,
		"macd_hist":    b.MACDHist,
		"atr":          b.ATR,
		"atr_pct":      b.ATRPct,
		"chop":         b.Chop,
		"volume_ratio": b.VolumeRatio,
	}

	// Layer 1: macro gates.
	if !nanFails(b.VolumeRatio, b.VolumeRatio >= p.VolumeFloor) {
		return neutral("volume below floor", ctx)
	}
	if !nanFails(b.Chop, b.Chop <= p.ChopCeiling) {
		return neutral("choppy market", ctx)
	}
	if !nanFails(b.ATRPct, b.ATRPct >= p.ATRFloor) {
		return neutral("volatility compressed", ctx)
	}
	if math.IsNaN(b.ATRMA) || b.ATR > p.ATRExtremeMult*b.ATRMA {
		return neutral("volatility extreme", ctx)
	}
	ctx["layer_macro"] = 1

	// Layer 2: trend direction plus higher-timeframe agreement.
	dir, reason := trendDirection(b, p)
	if dir == 0 {
		return neutral(reason, ctx)
	}
	ctx["layer_trend"] = 1
	ctx["direction"] = float64(dir)

	// Layer 3: momentum quality. RSI inside the band or MACD histogram
	// already pointing the trade's way.
	rsiOK := nanFails(b.RSI, b.RSI >= p.RSIMin && b.RSI <= p.RSIMax)
	macdOK := nanFails(b.MACDHist, float64(dir)*b.MACDHist > 0)
	if !rsiOK && !macdOK {
		return neutral("momentum not aligned", ctx)
	}
	ctx["layer_momentum"] = 1

	// Layer 4: price/volume trigger.
	if !nanFails(b.EMA50, float64(dir)*(b.Close-b.EMA50) > 0) {
		return neutral("price not past fast average", ctx)
	}
	if b.VolumeRatio < p.VolumeSpike {
		return neutral("no volume spike", ctx)
	}
	ctx["layer_trigger"] = 1

	stop := stopLevel(bars, last, dir, p)
	sig := StrategySignal{
		Context:     ctx,
		StopLoss:    stop,
		TakeProfit1: b.Close + float64(dir)*p.TP1Mult*b.ATR,
		TakeProfit2: b.Close + float64(dir)*p.TP2Mult*b.ATR,
	}
	if dir > 0 {
		sig.Signal = SignalBuy
	} else {
		sig.Signal = SignalSell
	}
	return sig
}

// trendDirection returns +1 (long), -1 (short), or 0 with a reason.
// Higher-timeframe values that are still NaN (not enough 4h/1d history)
// pass rather than fail: a filter that cannot be computed yet must not
// veto an otherwise valid base-timeframe trend.
func trendDirection(b EnrichedBar, p ParameterSet) (int, string) {
	if math.IsNaN(b.EMA200) || math.IsNaN(b.EMA200Slope) {
		return 0, "no clear trend"
	}
	var dir int
	switch {
	case b.Close > b.EMA200 && b.EMA200Slope > 0:
		dir = 1
	case b.Close < b.EMA200 && b.EMA200Slope < 0:
		dir = -1
	default:
		return 0, "no clear trend"
	}

	if !math.IsNaN(b.EMA200H4) {
		if dir > 0 && b.Close < b.EMA200H4 {
			return 0, "against 4h trend"
		}
		if dir < 0 && b.Close > b.EMA200H4 {
			return 0, "against 4h trend"
		}
	}
	if !math.IsNaN(b.SMA2001D) {
		if dir > 0 && b.Close < b.SMA2001D {
			return 0, "against daily trend"
		}
		if dir < 0 && b.Close > b.SMA2001D {
			return 0, "against daily trend"
		}
	}

	if p.RequireStructure {
		if dir > 0 && b.Structure != StructureBullish {
			return 0, "structure not aligned"
		}
		if dir < 0 && b.Structure != StructureBearish {
			return 0, "structure not aligned"
		}
	}
	return dir, ""
}

// stopLevel places the stop at the tighter of the recent swing extreme
// and the ATR-based distance, so risk per trade is bounded by both.
func stopLevel(bars []EnrichedBar, last, dir int, p ParameterSet) float64 {
	b := bars[last]
	atrStop := b.Close - float64(dir)*p.StopATRMult*b.ATR

	from := last - p.SwingLookback
	if from < 0 {
		from = 0
	}
	swing := math.Inf(dir)
	for i := from; i < last; i++ {
		if dir > 0 {
			swing = math.Min(swing, bars[i].Low)
		} else {
			swing = math.Max(swing, bars[i].High)
		}
	}
	if math.IsInf(swing, 0) {
		return atrStop
	}
	if dir > 0 {
		return math.Max(swing, atrStop)
	}
	return math.Min(swing, atrStop)
}
