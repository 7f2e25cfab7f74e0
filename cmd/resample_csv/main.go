package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"cryptobot/services/engine"
)

// resample_csv downsamples an OHLCV CSV to a coarser cadence, e.g. the
// 1m exchange dumps into the 5m series the backtester runs on.
func main() {
	in := flag.String("in", "", "Input CSV (timestamp,open,high,low,close,volume)")
	out := flag.String("out", "", "Output CSV path")
	dst := flag.String("dst", "5m", "Target cadence (e.g. 5m, 15m, 60m)")
	flag.Parse()

	if *in == "" || *out == "" {
		log.Fatal("-in and -out are required")
	}
	dstMs, err := parseCadence(*dst)
	if err != nil {
		log.Fatalf("parse -dst: %v", err)
	}

	candles, err := engine.LoadCSV(*in)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	srcMs := engine.DetectCadence(candles, 60_000)
	if dstMs%srcMs != 0 {
		log.Fatalf("target cadence %dms is not a multiple of source cadence %dms", dstMs, srcMs)
	}

	resampled := engine.ResampleCandles(candles, dstMs)
	if err := writeCSV(*out, resampled); err != nil {
		log.Fatalf("write: %v", err)
	}
	log.Printf("resampled %d bars (%dms) into %d bars (%dms) -> %s",
		len(candles), srcMs, len(resampled), dstMs, *out)
}

func parseCadence(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "in")
	s = strings.TrimSuffix(s, "m")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unsupported cadence %q, want minutes like 5m", s)
	}
	return int64(n) * 60_000, nil
}

func writeCSV(path string, candles []engine.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range candles {
		rec := []string{
			strconv.FormatInt(c.Timestamp, 10),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
