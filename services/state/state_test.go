package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptobot/services/engine"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.True(t, s.ShouldSend("BTCUSDT", engine.SignalBuy, 1000))
}

func TestNeutralNeverAlerts(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.False(t, s.ShouldSend("BTCUSDT", engine.SignalNeutral, 1000))
}

func TestUpdateDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.Update("BTCUSDT", engine.SignalBuy, 1000, "abc"))
	assert.False(t, s.ShouldSend("BTCUSDT", engine.SignalBuy, 1000), "same signal on the same bar")
	assert.True(t, s.ShouldSend("BTCUSDT", engine.SignalBuy, 2000), "same signal on a newer bar")
	assert.True(t, s.ShouldSend("BTCUSDT", engine.SignalSell, 1000), "flipped signal")
	assert.True(t, s.ShouldSend("ETHUSDT", engine.SignalBuy, 1000), "other symbols are independent")
}

func TestStatePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Update("BTCUSDT", engine.SignalSell, 5000, "fp"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.ShouldSend("BTCUSDT", engine.SignalSell, 5000))
	assert.True(t, reloaded.ShouldSend("BTCUSDT", engine.SignalBuy, 5000))
}
