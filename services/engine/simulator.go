package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the direction of an open position.
type Side int

const (
	SideLong  Side = 1
	SideShort Side = -1
)

func (s Side) String() string {
	if s == SideLong {
		return "LONG"
	}
	return "SHORT"
}

// Position is the simulator's open-trade state. Fraction is the share of
// the original position still open (1.0 until the first partial exit).
type Position struct {
	Side       Side
	EntryPrice float64
	EntryTime  int64
	EntryBar   int
	Stop       float64
	TP1        float64
	TP2        float64

	PartialFilled bool
	BarsHeld      int
	Fraction      float64
	FeeCharged    bool
}

// TradeRecord is one close event. A position that scales out produces two
// records sharing an entry; Fraction says how much of the position each
// record closed. Return is net of fees, on a full-position basis.
type TradeRecord struct {
	EntryTime  int64
	ExitTime   int64
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Fraction   float64
	Return     float64
	ExitReason string
	Profitable bool
}

// SimResult bundles everything one deterministic run produces.
type SimResult struct {
	Trades       []TradeRecord
	SignalCounts map[Signal]int
	Stats        Stats
}

// Simulator replays the signal engine over an enriched series and
// executes its decisions with next-bar-open fills. The run is a pure
// function of (bars, params): no clock, no randomness, no shared state.
type Simulator struct {
	bars []EnrichedBar
	p    ParameterSet
}

// NewSimulator validates the parameter set up front so a bad config fails
// before any bars are consumed.
func NewSimulator(bars []EnrichedBar, p ParameterSet) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("simulator: no bars")
	}
	return &Simulator{bars: bars, p: p}, nil
}

// Exit reasons recorded on trades.
const (
	ExitTP1  = "TP1"
	ExitTP2  = "TP2"
	ExitSL   = "SL"
	ExitTime = "TIME"
	ExitRev  = "REV"
	ExitEOD  = "EOD"
)

// Run replays the series once. Per bar, in order: fill any pending exit
// at the open, fill any pending entry at the open, walk the intrabar
// exit ladder (TP2, then TP1, then stop, then time stop), then evaluate
// the signal at the close. A signal never fills on its own bar; exits
// are never evaluated on the entry bar. Market-order fills (entries and
// TIME/REV/EOD exits) pay slippage against the trade; level fills
// execute at the level, or at the open when the bar gaps past it.
func (s *Simulator) Run() (*SimResult, error) {
	p := s.p
	trades := make([]TradeRecord, 0, 64)
	counts := map[Signal]int{SignalBuy: 0, SignalSell: 0, SignalNeutral: 0}

	var pos *Position
	var pendingEntry *StrategySignal
	pendingExit := ""
	cooldownUntil := -1

	flatten := func(reason string, bar int) {
		if reason == ExitSL {
			cooldownUntil = bar + p.CooldownBarsSL
		} else {
			cooldownUntil = bar + p.CooldownBars
		}
		pos = nil
		pendingExit = ""
	}

	for i := p.WarmupBars; i < len(s.bars); i++ {
		b := s.bars[i]

		if pos != nil && pendingExit != "" {
			price := b.Open * (1 - float64(pos.Side)*p.SlippageRate)
			trades = append(trades, s.closeAt(pos, price, b.Timestamp, pos.Fraction, pendingExit))
			flatten(pendingExit, i)
		}
		if pos == nil && pendingEntry != nil {
			side := SideLong
			if pendingEntry.Signal == SignalSell {
				side = SideShort
			}
			entry := b.Open * (1 + float64(side)*p.SlippageRate)
			pos = &Position{
				Side:       side,
				EntryPrice: entry,
				EntryTime:  b.Timestamp,
				EntryBar:   i,
				Stop:       pendingEntry.StopLoss,
				TP1:        pendingEntry.TakeProfit1,
				TP2:        pendingEntry.TakeProfit2,
				Fraction:   1.0,
			}
			pendingEntry = nil
		}

		if pos != nil && i > pos.EntryBar {
			pos.BarsHeld++
			switch {
			case touched(b, pos.TP2, pos.Side, true):
				trades = append(trades, s.closeAt(pos, fillAt(b, pos.TP2, pos.Side, true), b.Timestamp, pos.Fraction, ExitTP2))
				flatten(ExitTP2, i)
			case !pos.PartialFilled && touched(b, pos.TP1, pos.Side, true):
				trades = append(trades, s.closeAt(pos, fillAt(b, pos.TP1, pos.Side, true), b.Timestamp, 0.5, ExitTP1))
				pos.Fraction -= 0.5
				pos.PartialFilled = true
				pos.Stop = pos.EntryPrice
			case touched(b, pos.Stop, pos.Side, false):
				trades = append(trades, s.closeAt(pos, fillAt(b, pos.Stop, pos.Side, false), b.Timestamp, pos.Fraction, ExitSL))
				flatten(ExitSL, i)
			case pos.BarsHeld >= p.TimeStopBars:
				pendingExit = ExitTime
			}
		}

		sig := GenerateSignal(s.bars, i, p)
		counts[sig.Signal]++
		switch {
		case pos == nil && pendingEntry == nil:
			if sig.Signal != SignalNeutral && i > cooldownUntil && i < len(s.bars)-1 {
				cp := sig
				pendingEntry = &cp
			}
		case pos != nil && pendingExit == "":
			if (sig.Signal == SignalBuy && pos.Side == SideShort) ||
				(sig.Signal == SignalSell && pos.Side == SideLong) {
				pendingExit = ExitRev
			}
		}
	}

	if pos != nil {
		last := s.bars[len(s.bars)-1]
		price := last.Close * (1 - float64(pos.Side)*p.SlippageRate)
		trades = append(trades, s.closeAt(pos, price, last.Timestamp, pos.Fraction, ExitEOD))
		pos = nil
	}

	return &SimResult{
		Trades:       trades,
		SignalCounts: counts,
		Stats:        ComputeStats(trades, decimal.NewFromInt(10_000)),
	}, nil
}

// touched reports whether the bar's range reached the level. favorable
// selects the take-profit side of the range, otherwise the stop side.
func touched(b EnrichedBar, level float64, side Side, favorable bool) bool {
	if (side == SideLong) == favorable {
		return b.High >= level
	}
	return b.Low <= level
}

// fillAt returns the execution price for a level hit inside the bar. A
// bar that gaps past the level fills at its open: better than the level
// for take-profits, worse for stops.
func fillAt(b EnrichedBar, level float64, side Side, favorable bool) float64 {
	if (side == SideLong) == favorable {
		if b.Open >= level {
			return b.Open
		}
	} else if b.Open <= level {
		return b.Open
	}
	return level
}

// closeAt books a close event for frac of the position. The fee model
// charges the taker rate on the closed fraction plus, once per position,
// the full entry fee on the first close event. A position closed in two
// halves therefore pays exactly two full fees in total.
func (s *Simulator) closeAt(pos *Position, price float64, ts int64, frac float64, reason string) TradeRecord {
	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(price)
	dir := decimal.NewFromInt(int64(pos.Side))
	fr := decimal.NewFromFloat(frac)
	fee := decimal.NewFromFloat(s.p.FeeRate)

	ret := exit.Sub(entry).Div(entry).Mul(dir).Mul(fr)
	ret = ret.Sub(fee.Mul(fr))
	if !pos.FeeCharged {
		ret = ret.Sub(fee)
		pos.FeeCharged = true
	}
	r, _ := ret.Float64()

	return TradeRecord{
		EntryTime:  pos.EntryTime,
		ExitTime:   ts,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Fraction:   frac,
		Return:     r,
		ExitReason: reason,
		Profitable: r > 0,
	}
}
