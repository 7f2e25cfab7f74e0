package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtureCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSVSkipsHeaderAndBadRows(t *testing.T) {
	path := writeFixtureCSV(t, `timestamp,open,high,low,close,volume
1000,100,101,99,100.5,10
not-a-number,1,2,3,4,5
2000,100.5,102,100,101,12
3000,101,101,101
`)
	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1000), candles[0].Timestamp)
	assert.Equal(t, 101.0, candles[1].Close)
}

func TestLoadCSVNormalizesOrderAndDuplicates(t *testing.T) {
	path := writeFixtureCSV(t, `3000,103,104,102,103,10
1000,100,101,99,100,10
3000,203,204,202,203,10
2000,101,102,100,101,10
`)
	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, int64(1000), candles[0].Timestamp)
	assert.Equal(t, int64(3000), candles[2].Timestamp)
	assert.Equal(t, 203.0, candles[2].Close, "last duplicate wins")
}

func TestLoadCSVQuotedFields(t *testing.T) {
	path := writeFixtureCSV(t, `"1000","100","101","99","100.5","10"
"2000","100.5","102","100","101","12"
`)
	candles, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, candles, 2)
}

func TestLoadCSVEmptyFileErrors(t *testing.T) {
	path := writeFixtureCSV(t, "timestamp,open,high,low,close,volume\n")
	_, err := LoadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parsable rows")
}

func TestLoadCSVMissingFileErrors(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestExportTradesCSVRoundTrip(t *testing.T) {
	trades := []TradeRecord{
		{EntryTime: 1000, ExitTime: 2000, Side: SideLong, EntryPrice: 100, ExitPrice: 101, Fraction: 0.5, Return: 0.0035, ExitReason: ExitTP1, Profitable: true},
		{EntryTime: 1000, ExitTime: 3000, Side: SideLong, EntryPrice: 100, ExitPrice: 102, Fraction: 0.5, Return: 0.0095, ExitReason: ExitTP2, Profitable: true},
	}
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, ExportTradesCSV(path, trades))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "entry_time_ms")
	assert.Contains(t, content, "TP1")
	assert.Contains(t, content, "LONG")
}
