package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"cryptobot/services/clickhouse"
	"cryptobot/services/engine"
	"cryptobot/services/state"
	"cryptobot/services/telemetry"
)

func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "", "Path to local OHLCV CSV; if set, skip ClickHouse")
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "5m", "Candle interval")
	from := flag.String("from", "2021-01-01 00:00:00", "Start UTC (YYYY-MM-DD HH:MM:SS)")
	to := flag.String("to", "2024-01-01 00:00:00", "End UTC (YYYY-MM-DD HH:MM:SS)")
	preset := flag.String("preset", "baseline", "Parameter preset name")
	outCSV := flag.String("out", "", "Trades CSV output path (optional)")
	statePath := flag.String("state", "signal_state.json", "Alert state file")
	alert := flag.Bool("alert", false, "Send the latest signal to Discord")
	flag.Parse()

	params, ok := engine.Preset(*preset)
	if !ok {
		log.Fatalf("unknown preset %q, have %v", *preset, engine.PresetNames())
	}

	candles, err := loadCandles(*csvPath, *symbol, *interval, *from, *to)
	if err != nil {
		log.Fatalf("load candles: %v", err)
	}
	cadence := engine.DetectCadence(candles, 5*60*1000)
	log.Printf("loaded %d candles, cadence %dms, %d gaps",
		len(candles), cadence, engine.CountGaps(candles, cadence))

	bars, err := engine.Enrich(candles, engine.DefaultEnrichConfig())
	if err != nil {
		log.Fatalf("enrich: %v", err)
	}

	sim, err := engine.NewSimulator(bars, params)
	if err != nil {
		log.Fatalf("simulator: %v", err)
	}
	start := time.Now()
	res, err := sim.Run()
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Printf("simulated %d bars in %s (params %s)", len(bars), time.Since(start), params.Fingerprint())

	st := res.Stats
	log.Printf("signals: BUY=%d SELL=%d NEUTRAL=%d",
		res.SignalCounts[engine.SignalBuy], res.SignalCounts[engine.SignalSell], res.SignalCounts[engine.SignalNeutral])
	log.Printf("trades=%d wins=%d losses=%d winrate=%.1f%%", st.Trades, st.Wins, st.Losses, st.WinRate*100)
	log.Printf("avg=%.4f%% median=%.4f%% best=%.4f%% worst=%.4f%%",
		st.AvgReturn*100, st.MedianReturn*100, st.BestReturn*100, st.WorstReturn*100)
	log.Printf("capital %s -> %s (peak %s, max drawdown %.2f%%)",
		st.InitialCapital.StringFixed(2), st.FinalCapital.StringFixed(2),
		st.PeakCapital.StringFixed(2), st.MaxDrawdown*100)

	if *outCSV != "" {
		if err := engine.ExportTradesCSV(*outCSV, res.Trades); err != nil {
			log.Fatalf("export: %v", err)
		}
		log.Printf("wrote %d trade rows to %s", len(res.Trades), *outCSV)
	}

	if *alert {
		sendLatest(bars, params, *symbol, *statePath)
	}
}

// sendLatest evaluates the final bar and pushes it to Discord unless the
// same signal for the same bar has already been sent.
func sendLatest(bars []engine.EnrichedBar, params engine.ParameterSet, symbol, statePath string) {
	sig := engine.GenerateSignal(bars, len(bars)-1, params)
	last := bars[len(bars)-1]

	store, err := state.Load(statePath)
	if err != nil {
		log.Printf("alert state: %v", err)
		return
	}
	if !store.ShouldSend(symbol, sig.Signal, last.Timestamp) {
		log.Printf("alert for %s already sent, skipping", symbol)
		return
	}
	notifier := telemetry.NewDiscordNotifier(os.Getenv("DISCORD_WEBHOOK_URL"))
	if err := notifier.SendSignal(symbol, sig, last.Close); err != nil {
		log.Printf("discord: %v", err)
		return
	}
	if err := store.Update(symbol, sig.Signal, last.Timestamp, params.Fingerprint()); err != nil {
		log.Printf("alert state: %v", err)
	}
}

func loadCandles(csvPath, symbol, interval, from, to string) ([]engine.Candle, error) {
	if csvPath != "" {
		return engine.LoadCSV(csvPath)
	}
	fromMs, err := parseUTC(from)
	if err != nil {
		return nil, err
	}
	toMs, err := parseUTC(to)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	src, err := clickhouse.Open(ctx, clickhouse.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Candles(ctx, symbol, interval, fromMs, toMs)
}

func parseUTC(s string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
