package main

import (
	"flag"
	"log"
	"math"
	"time"

	"github.com/joho/godotenv"

	"cryptobot/services/engine"
)

// analyze is a data-quality and signal-inspection tool: it enriches a CSV
// series, reports cadence/gap health, and prints the funnel verdict for
// the most recent bars so threshold changes can be eyeballed quickly.
func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "", "Path to local OHLCV CSV (required)")
	preset := flag.String("preset", "baseline", "Parameter preset name")
	tail := flag.Int("tail", 20, "Bars to inspect from the end")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("-csv is required")
	}
	params, ok := engine.Preset(*preset)
	if !ok {
		log.Fatalf("unknown preset %q, have %v", *preset, engine.PresetNames())
	}

	candles, err := engine.LoadCSV(*csvPath)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	cadence := engine.DetectCadence(candles, 5*60*1000)
	gaps := engine.CountGaps(candles, cadence)
	first := time.UnixMilli(candles[0].Timestamp).UTC()
	last := time.UnixMilli(candles[len(candles)-1].Timestamp).UTC()
	log.Printf("%d candles, %s to %s, cadence %dms, %d gaps",
		len(candles), first.Format("2006-01-02 15:04"), last.Format("2006-01-02 15:04"), cadence, gaps)

	bars, err := engine.Enrich(candles, engine.DefaultEnrichConfig())
	if err != nil {
		log.Fatalf("enrich: %v", err)
	}

	undef := 0
	for _, b := range bars {
		if math.IsNaN(b.ATR) || math.IsNaN(b.RSI) {
			undef++
		}
	}
	log.Printf("%d bars with undefined core indicators (warm-up region)", undef)

	from := len(bars) - *tail
	if from < 0 {
		from = 0
	}
	for i := from; i < len(bars); i++ {
		b := bars[i]
		sig := engine.GenerateSignal(bars, i, params)
		ts := time.UnixMilli(b.Timestamp).UTC().Format("2006-01-02 15:04")
		switch sig.Signal {
		case engine.SignalNeutral:
			log.Printf("%s close=%.4f rsi=%.1f chop=%.1f volr=%.2f struct=%s -> NEUTRAL (%s)",
				ts, b.Close, b.RSI, b.Chop, b.VolumeRatio, b.Structure, sig.Reason)
		default:
			log.Printf("%s close=%.4f rsi=%.1f chop=%.1f volr=%.2f struct=%s -> %s stop=%.4f tp1=%.4f tp2=%.4f",
				ts, b.Close, b.RSI, b.Chop, b.VolumeRatio, b.Structure,
				sig.Signal, sig.StopLoss, sig.TakeProfit1, sig.TakeProfit2)
		}
	}
}
