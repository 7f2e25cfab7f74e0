package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ParameterSet fully determines signal-engine and simulator behavior.
// It is passed explicitly into every call and never read from ambient
// state, so concurrent trials with different thresholds cannot interfere.
// Treat instances as immutable once a run starts.
type ParameterSet struct {
	WarmupBars int `json:"warmup_bars"`

	// Layer 1: macro no-trade gates
	VolumeFloor    float64 `json:"volume_floor"`
	ChopCeiling    float64 `json:"chop_ceiling"`
	ATRFloor       float64 `json:"atr_floor"`        // minimum ATR as fraction of price
	ATRExtremeMult float64 `json:"atr_extreme_mult"` // reject when ATR > mult * ATR moving average

	// Layer 2: trend
	RequireStructure bool `json:"require_structure"`

	// Layer 3: momentum
	RSIMin float64 `json:"rsi_min"`
	RSIMax float64 `json:"rsi_max"`

	// Layer 4: price/volume trigger
	VolumeSpike float64 `json:"volume_spike"`

	// Stops and targets
	StopATRMult   float64 `json:"stop_atr_mult"`
	TP1Mult       float64 `json:"tp1_mult"`
	TP2Mult       float64 `json:"tp2_mult"`
	SwingLookback int     `json:"swing_lookback"`

	// Trade lifecycle
	TimeStopBars   int     `json:"time_stop_bars"`
	CooldownBars   int     `json:"cooldown_bars"`
	CooldownBarsSL int     `json:"cooldown_bars_sl"`
	FeeRate        float64 `json:"fee_rate"`
	SlippageRate   float64 `json:"slippage_rate"`
}

// Validate rejects internally inconsistent threshold sets before any
// simulation runs. A set that passes here cannot produce an inverted
// stop/target ladder mid-run.
func (p ParameterSet) Validate() error {
	if p.WarmupBars < 1 {
		return fmt.Errorf("params: warmup_bars must be positive, got %d", p.WarmupBars)
	}
	if p.RSIMax <= p.RSIMin {
		return fmt.Errorf("params: rsi_max (%.1f) must exceed rsi_min (%.1f)", p.RSIMax, p.RSIMin)
	}
	if p.RSIMin < 0 || p.RSIMax > 100 {
		return fmt.Errorf("params: rsi band [%.1f, %.1f] outside [0, 100]", p.RSIMin, p.RSIMax)
	}
	if p.StopATRMult <= 0 {
		return fmt.Errorf("params: stop_atr_mult must be positive, got %g", p.StopATRMult)
	}
	if p.TP1Mult <= 0 || p.TP2Mult <= p.TP1Mult {
		return fmt.Errorf("params: take-profit ladder invalid (tp1=%g, tp2=%g)", p.TP1Mult, p.TP2Mult)
	}
	if p.SwingLookback < 1 {
		return fmt.Errorf("params: swing_lookback must be positive, got %d", p.SwingLookback)
	}
	if p.TimeStopBars < 1 {
		return fmt.Errorf("params: time_stop_bars must be positive, got %d", p.TimeStopBars)
	}
	if p.CooldownBars < 0 || p.CooldownBarsSL < 0 {
		return fmt.Errorf("params: cooldowns must be non-negative")
	}
	if p.FeeRate < 0 || p.SlippageRate < 0 {
		return fmt.Errorf("params: fee/slippage rates must be non-negative")
	}
	return nil
}

// Fingerprint returns a stable hash of the threshold values, used to tag
// exports and search results so a run can be reproduced exactly.
func (p ParameterSet) Fingerprint() string {
	b, _ := json.Marshal(p)
	return fmt.Sprintf("%x", sha256.Sum256(b))[:16]
}

// DefaultParams is the baseline preset.
func DefaultParams() ParameterSet { return presets["baseline"] }

// Preset looks up a named, versioned parameter preset. The strategy has
// gone through several threshold generations; they live here as data so a
// single funnel implementation serves all of them.
func Preset(name string) (ParameterSet, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists the available presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	return names
}

var presets = map[string]ParameterSet{
	// First tuned generation: permissive gates, wide targets.
	"v1-loose": {
		WarmupBars:       220,
		VolumeFloor:      0.70,
		ChopCeiling:      70,
		ATRFloor:         0.0035,
		ATRExtremeMult:   3.5,
		RequireStructure: false,
		RSIMin:           36,
		RSIMax:           64,
		VolumeSpike:      1.25,
		StopATRMult:      1.8,
		TP1Mult:          1.6,
		TP2Mult:          3.0,
		SwingLookback:    4,
		TimeStopBars:     36,
		CooldownBars:     10,
		CooldownBarsSL:   16,
		FeeRate:          0.0004,
		SlippageRate:     0.0005,
	},
	// Current default, from the last grid sweep.
	"baseline": {
		WarmupBars:       220,
		VolumeFloor:      0.90,
		ChopCeiling:      60,
		ATRFloor:         0.0045,
		ATRExtremeMult:   3.0,
		RequireStructure: true,
		RSIMin:           40,
		RSIMax:           62,
		VolumeSpike:      1.40,
		StopATRMult:      2.0,
		TP1Mult:          1.85,
		TP2Mult:          3.3,
		SwingLookback:    4,
		TimeStopBars:     28,
		CooldownBars:     14,
		CooldownBarsSL:   20,
		FeeRate:          0.0004,
		SlippageRate:     0.0005,
	},
	// Stricter gates for ranging regimes.
	"v3-tight": {
		WarmupBars:       220,
		VolumeFloor:      0.95,
		ChopCeiling:      55,
		ATRFloor:         0.0055,
		ATRExtremeMult:   2.5,
		RequireStructure: true,
		RSIMin:           42,
		RSIMax:           58,
		VolumeSpike:      1.55,
		StopATRMult:      2.2,
		TP1Mult:          2.0,
		TP2Mult:          3.6,
		SwingLookback:    4,
		TimeStopBars:     24,
		CooldownBars:     16,
		CooldownBarsSL:   24,
		FeeRate:          0.0004,
		SlippageRate:     0.0005,
	},
}
