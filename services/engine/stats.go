package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Stats summarizes a trade list. Capital figures use decimal arithmetic
// so compounding over long trade lists does not drift; ratios are plain
// float64 since they only feed reporting and ranking.
type Stats struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	AvgReturn    float64
	MedianReturn float64
	BestReturn   float64
	WorstReturn  float64

	InitialCapital decimal.Decimal
	FinalCapital   decimal.Decimal
	PeakCapital    decimal.Decimal
	MaxDrawdown    float64 // fraction of peak, 0..1
	TotalReturn    float64 // (final-initial)/initial
}

// ComputeStats compounds each close event's net return into an equity
// curve, in trade order, and derives the summary figures from it.
func ComputeStats(trades []TradeRecord, initialCapital decimal.Decimal) Stats {
	st := Stats{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		PeakCapital:    initialCapital,
	}
	if len(trades) == 0 {
		return st
	}

	one := decimal.NewFromInt(1)
	returns := make([]float64, 0, len(trades))
	sum := 0.0
	for _, t := range trades {
		st.Trades++
		if t.Profitable {
			st.Wins++
		} else {
			st.Losses++
		}
		returns = append(returns, t.Return)
		sum += t.Return

		st.FinalCapital = st.FinalCapital.Mul(one.Add(decimal.NewFromFloat(t.Return)))
		if st.FinalCapital.GreaterThan(st.PeakCapital) {
			st.PeakCapital = st.FinalCapital
		}
		if st.PeakCapital.IsPositive() {
			dd, _ := st.PeakCapital.Sub(st.FinalCapital).Div(st.PeakCapital).Float64()
			if dd > st.MaxDrawdown {
				st.MaxDrawdown = dd
			}
		}
	}

	st.WinRate = float64(st.Wins) / float64(st.Trades)
	st.AvgReturn = sum / float64(st.Trades)

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	st.BestReturn = sorted[len(sorted)-1]
	st.WorstReturn = sorted[0]
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		st.MedianReturn = sorted[mid]
	} else {
		st.MedianReturn = (sorted[mid-1] + sorted[mid]) / 2
	}

	if initialCapital.IsPositive() {
		st.TotalReturn, _ = st.FinalCapital.Sub(initialCapital).Div(initialCapital).Float64()
	}
	return st
}
