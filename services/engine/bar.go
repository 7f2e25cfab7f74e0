package engine

import (
	"fmt"
	"sort"
	"time"
)

// Candle is a single OHLCV bar. Timestamp is the bar open time in
// milliseconds UTC. A series is always sorted ascending with unique
// timestamps; NormalizeCandles enforces that before anything downstream
// touches the data.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the bar open time.
func (c Candle) Time() time.Time { return time.UnixMilli(c.Timestamp).UTC() }

// NormalizeCandles sorts by timestamp and deduplicates identical
// timestamps, keeping the last occurrence (re-downloads overwrite).
func NormalizeCandles(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	uniq := out[:0]
	var lastTs int64 = -1
	for _, c := range out {
		if c.Timestamp == lastTs {
			uniq[len(uniq)-1] = c
			continue
		}
		uniq = append(uniq, c)
		lastTs = c.Timestamp
	}
	return uniq
}

// DetectCadence returns the most common delta between consecutive bars in
// milliseconds, or fallback when the series is too short to tell.
func DetectCadence(candles []Candle, fallback int64) int64 {
	if len(candles) < 2 {
		return fallback
	}
	limit := len(candles)
	if limit > 2000 {
		limit = 2000
	}
	deltaCount := make(map[int64]int)
	for i := 1; i < limit; i++ {
		d := candles[i].Timestamp - candles[i-1].Timestamp
		if d > 0 {
			deltaCount[d]++
		}
	}
	best, bestCount := fallback, -1
	for d, c := range deltaCount {
		if c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// ValidateCandles rejects series the engines cannot reason about:
// non-monotonic timestamps or non-positive prices. Gaps are tolerated
// (normal for real market data) and only counted.
func ValidateCandles(candles []Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("no candles")
	}
	var badOrder, badPrice int
	for i, c := range candles {
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			badOrder++
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			badPrice++
		}
	}
	if badOrder > 0 {
		return fmt.Errorf("%d candles out of order", badOrder)
	}
	if badPrice > 0 {
		return fmt.Errorf("%d candles with non-positive prices", badPrice)
	}
	return nil
}

// CountGaps reports how many consecutive-bar deltas exceed the cadence.
func CountGaps(candles []Candle, cadenceMs int64) int {
	gaps := 0
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp-candles[i-1].Timestamp > cadenceMs {
			gaps++
		}
	}
	return gaps
}
