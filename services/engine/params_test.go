package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsAllPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p, ok := Preset(name)
		require.True(t, ok)
		assert.NoError(t, p.Validate(), "preset %s", name)
	}
}

func TestValidateRejectsInvertedRSIBand(t *testing.T) {
	p := DefaultParams()
	p.RSIMin, p.RSIMax = 62, 40
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsi_max")
}

func TestValidateRejectsInvertedTakeProfitLadder(t *testing.T) {
	p := DefaultParams()
	p.TP1Mult, p.TP2Mult = 3.0, 2.0
	assert.Error(t, p.Validate())
}

func TestValidateRejectsNonPositiveStop(t *testing.T) {
	p := DefaultParams()
	p.StopATRMult = 0
	assert.Error(t, p.Validate())
}

func TestValidateRejectsNegativeFees(t *testing.T) {
	p := DefaultParams()
	p.FeeRate = -0.001
	assert.Error(t, p.Validate())
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.ChopCeiling += 1
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestPresetUnknownName(t *testing.T) {
	_, ok := Preset("does-not-exist")
	assert.False(t, ok)
}
