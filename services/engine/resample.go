package engine

import "math"

// Higher-timeframe filters. Base-timeframe closes are bucketed into fixed
// UTC-aligned windows; the indicator runs on the bucket closes and each
// base bar is assigned the value of the last bucket that completed at or
// before its own open (right-edge alignment: an in-progress bucket is
// never visible). Bars preceding the first defined higher-timeframe value
// are NaN.

type htfBucket struct {
	endTs int64
	close float64
}

// resampleCloses collapses candles into bucketMs-wide windows keyed by
// floor(ts/bucketMs), taking the last close of each window.
func resampleCloses(candles []Candle, bucketMs int64) []htfBucket {
	var buckets []htfBucket
	var curStart int64 = math.MinInt64
	for _, c := range candles {
		start := c.Timestamp - mod(c.Timestamp, bucketMs)
		if start != curStart {
			curStart = start
			buckets = append(buckets, htfBucket{endTs: start + bucketMs})
		}
		buckets[len(buckets)-1].close = c.Close
	}
	return buckets
}

// ffillOnto maps one value per bucket back onto the base-timeframe index.
// A bucket becomes visible once its end is at or before the bar's open.
func ffillOnto(candles []Candle, buckets []htfBucket, values []float64) []float64 {
	out := make([]float64, len(candles))
	j := -1
	for i, c := range candles {
		for j+1 < len(buckets) && buckets[j+1].endTs <= c.Timestamp {
			j++
		}
		if j < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[j]
	}
	return out
}

// htfEMA computes EMA(period) on resampled closes and forward-fills the
// value and its 1-bucket slope onto the base series.
func htfEMA(candles []Candle, bucketMs int64, period int) (vals, slopes []float64) {
	buckets := resampleCloses(candles, bucketMs)
	closes := make([]float64, len(buckets))
	for i, b := range buckets {
		closes[i] = b.close
	}
	ema := emaSeries(closes, period)
	slope := make([]float64, len(ema))
	for i := range slope {
		slope[i] = lag(ema, i, 1)
	}
	return ffillOnto(candles, buckets, ema), ffillOnto(candles, buckets, slope)
}

// htfSMA computes SMA(period) on resampled closes and forward-fills it
// onto the base series. NaN until period complete buckets exist.
func htfSMA(candles []Candle, bucketMs int64, period int) []float64 {
	buckets := resampleCloses(candles, bucketMs)
	closes := make([]float64, len(buckets))
	for i, b := range buckets {
		closes[i] = b.close
	}
	return ffillOnto(candles, buckets, smaSeries(closes, period))
}

// ResampleCandles downsamples a series into bucketMs-wide OHLCV bars:
// first open, max high, min low, last close, summed volume. The output
// bar's timestamp is the bucket start. Gaps in the input simply produce
// fewer output bars, never synthetic ones.
func ResampleCandles(candles []Candle, bucketMs int64) []Candle {
	var out []Candle
	var curStart int64 = math.MinInt64
	for _, c := range candles {
		start := c.Timestamp - mod(c.Timestamp, bucketMs)
		if start != curStart {
			curStart = start
			out = append(out, Candle{
				Timestamp: start,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			})
			continue
		}
		last := &out[len(out)-1]
		last.High = math.Max(last.High, c.High)
		last.Low = math.Min(last.Low, c.Low)
		last.Close = c.Close
		last.Volume += c.Volume
	}
	return out
}

// mod is a floor modulus that stays correct for pre-epoch timestamps.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
