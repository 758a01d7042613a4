// Package econ provides rate math and the macroeconomic cycle. The cycle is
// a smooth simplex-noise curve sampled along the step axis: deterministic
// for a given seed, so it is part of the fixed draw-order contract rather
// than a consumer of the shared generator.
package econ

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/cbdcsim/internal/config"
)

// Cycle produces the per-step economic-conditions multiplier applied to
// consumer income.
type Cycle struct {
	cfg   config.MacroConfig
	noise opensimplex.Noise
}

// NewCycle builds the macro cycle from its own seed stream.
func NewCycle(seed int64, cfg config.MacroConfig) *Cycle {
	return &Cycle{
		cfg:   cfg,
		noise: opensimplex.NewNormalized(seed + 1),
	}
}

// Conditions returns the economic-conditions level in [0, 1] for a step;
// 0.5 is neutral. Disabled cycles pin it at neutral.
func (c *Cycle) Conditions(step int) float64 {
	if !c.cfg.Enabled {
		return 0.5
	}
	// Eval2 along a fixed axis gives a smooth 1-D curve.
	return c.noise.Eval2(float64(step)*c.cfg.Frequency, 0)
}

// IncomeMultiplier maps conditions into a bounded modulation around 1.0:
// a full boom raises income by Amplitude, a full bust lowers it by the same.
func (c *Cycle) IncomeMultiplier(step int) float64 {
	return 1 + (c.Conditions(step)-0.5)*2*c.cfg.Amplitude
}

// RateAdvantage is the CBDC yield advantage over a bank's deposit rate.
// Positive values pull interest-sensitive consumers toward CBDC.
func RateAdvantage(cbdcRate, depositRate float64) float64 {
	return cbdcRate - depositRate
}

// Herfindahl computes the Herfindahl–Hirschman concentration of a deposit
// distribution, normalized to [0, 1] where 0 is the even split across n
// banks and 1 is full concentration in one bank.
func Herfindahl(deposits []float64) float64 {
	total := 0.0
	for _, d := range deposits {
		total += d
	}
	if total <= 0 || len(deposits) < 2 {
		return 0
	}
	hhi := 0.0
	for _, d := range deposits {
		share := d / total
		hhi += share * share
	}
	minHHI := 1 / float64(len(deposits))
	return (hhi - minHHI) / (1 - minHHI)
}
