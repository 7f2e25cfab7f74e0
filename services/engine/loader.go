package engine

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCSV reads a timestamp,open,high,low,close,volume file into a
// normalized candle series. Exports from spreadsheet tools arrive as
// UTF-16 with a BOM often enough that the loader sniffs for one and
// decodes transparently. Rows that fail to parse are skipped and
// counted, not fatal; a header row is recognized and skipped.
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var reader io.Reader = br
	if b, _ := br.Peek(2); len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("load csv: %w", err)
		}
		reader = transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	candles := make([]Candle, 0, 1_000)
	skipped := 0
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil || len(rec) < 6 {
			skipped++
			continue
		}
		tsStr := strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff")
		if line == 1 && (strings.EqualFold(tsStr, "timestamp") || strings.EqualFold(tsStr, "timestamp_ms")) {
			continue
		}
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		vals := make([]float64, 5)
		ok := true
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			skipped++
			continue
		}
		candles = append(candles, Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("load csv: no parsable rows in %s (%d skipped)", path, skipped)
	}

	candles = NormalizeCandles(candles)
	if err := ValidateCandles(candles); err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	return candles, nil
}

// ExportTradesCSV writes close events in the shape the analysis notebooks
// expect.
func ExportTradesCSV(path string, trades []TradeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export trades: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"entry_time_ms", "exit_time_ms", "side", "entry_price", "exit_price",
		"fraction", "return", "exit_reason", "profitable",
	}); err != nil {
		return fmt.Errorf("export trades: %w", err)
	}
	for _, t := range trades {
		rec := []string{
			strconv.FormatInt(t.EntryTime, 10),
			strconv.FormatInt(t.ExitTime, 10),
			t.Side.String(),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Fraction, 'f', -1, 64),
			strconv.FormatFloat(t.Return, 'f', -1, 64),
			t.ExitReason,
			strconv.FormatBool(t.Profitable),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("export trades: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
