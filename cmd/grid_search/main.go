package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"cryptobot/services/clickhouse"
	"cryptobot/services/engine"
)

func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "", "Path to local OHLCV CSV; if set, skip ClickHouse")
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "5m", "Candle interval")
	from := flag.String("from", "2021-01-01 00:00:00", "Start UTC (YYYY-MM-DD HH:MM:SS)")
	to := flag.String("to", "2024-01-01 00:00:00", "End UTC (YYYY-MM-DD HH:MM:SS)")
	preset := flag.String("preset", "baseline", "Base parameter preset")
	workers := flag.Int("workers", 8, "Concurrent trials")
	minTrades := flag.Int("min-trades", 8, "Prune trials with fewer close events")
	maxCombos := flag.Int("max-combos", 20000, "Refuse grids larger than this")
	top := flag.Int("top", 10, "Results to print")
	guided := flag.Bool("guided", false, "Coordinate descent instead of full sweep")
	flag.Parse()

	base, ok := engine.Preset(*preset)
	if !ok {
		log.Fatalf("unknown preset %q, have %v", *preset, engine.PresetNames())
	}

	candles, err := loadCandles(*csvPath, *symbol, *interval, *from, *to)
	if err != nil {
		log.Fatalf("load candles: %v", err)
	}
	bars, err := engine.Enrich(candles, engine.DefaultEnrichConfig())
	if err != nil {
		log.Fatalf("enrich: %v", err)
	}
	log.Printf("enriched %d bars once, shared across all trials", len(bars))

	cfg := engine.DefaultSearchConfig()
	cfg.Workers = *workers
	cfg.MinTrades = *minTrades
	cfg.MaxCombos = *maxCombos

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	grid := engine.DefaultGrid()
	start := time.Now()

	if *guided {
		best, err := engine.RunGuided(ctx, bars, base, grid, cfg)
		if err != nil {
			log.Fatalf("guided search: %v", err)
		}
		log.Printf("guided search done in %s", time.Since(start))
		printTrial(0, best)
		return
	}

	results, err := engine.RunGrid(ctx, bars, base, grid, cfg)
	if err != nil {
		log.Fatalf("grid search: %v", err)
	}
	log.Printf("%d trials done in %s", len(results), time.Since(start))
	for i := 0; i < *top && i < len(results); i++ {
		printTrial(i, results[i])
	}
}

func printTrial(rank int, t engine.TrialResult) {
	mark := ""
	if t.Pruned {
		mark = " [pruned]"
	}
	log.Printf("#%d%s %s final=%s trades=%d winrate=%.1f%% maxdd=%.2f%%",
		rank+1, mark, t.Params.Fingerprint(), t.Stats.FinalCapital.StringFixed(2),
		t.Stats.Trades, t.Stats.WinRate*100, t.Stats.MaxDrawdown*100)
}

func loadCandles(csvPath, symbol, interval, from, to string) ([]engine.Candle, error) {
	if csvPath != "" {
		return engine.LoadCSV(csvPath)
	}
	fromT, err := time.ParseInLocation("2006-01-02 15:04:05", from, time.UTC)
	if err != nil {
		return nil, err
	}
	toT, err := time.ParseInLocation("2006-01-02 15:04:05", to, time.UTC)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	src, err := clickhouse.Open(ctx, clickhouse.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Candles(ctx, symbol, interval, fromT.UnixMilli(), toT.UnixMilli())
}
