// Package config provides simulation configuration: programmatic defaults,
// YAML file loading, and range validation. Every calibration constant the
// engine consumes lives here so that two runs with the same Config and seed
// are bit-for-bit reproducible.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError reports an invalid or out-of-range initialization parameter.
// It is fatal: the engine refuses to construct a world from a bad Config.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s = %v: %s", e.Field, e.Value, e.Reason)
}

// Dist describes a clipped normal distribution used to draw a behavioral
// trait once per agent at creation time.
type Dist struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// ConsumerConfig calibrates the consumer population and decision rules.
type ConsumerConfig struct {
	Count         int     `yaml:"count"`
	InitialWealth float64 `yaml:"initial_wealth"`

	// OtherShare is the fraction of initial wealth held outside the banking
	// system (neither deposits nor CBDC). The remainder starts on deposit.
	OtherShare float64 `yaml:"other_share"`

	RiskAversion          Dist `yaml:"risk_aversion"`
	BankLoyalty           Dist `yaml:"bank_loyalty"`
	InterestSensitivity   Dist `yaml:"interest_sensitivity"`
	ConveniencePreference Dist `yaml:"convenience_preference"`
	SocialWeight          Dist `yaml:"social_weight"`

	// Per-step income and spending as fractions of initial wealth.
	IncomeRate   Dist `yaml:"income_rate"`
	SpendingRate Dist `yaml:"spending_rate"`

	// AdoptionBase is the baseline per-step adoption probability before the
	// rate, social, convenience, loyalty, and stress terms are applied.
	AdoptionBase float64 `yaml:"adoption_base"`

	// MomentumGrowth controls how fast the social-influence amplifier grows
	// per step after CBDC introduction (amplifier = 1 + min(1, g*steps)).
	MomentumGrowth float64 `yaml:"momentum_growth"`

	// RebalanceSpeed is the fraction of the gap to the target CBDC share
	// closed per step. Partial adjustment, never instantaneous.
	RebalanceSpeed float64 `yaml:"rebalance_speed"`

	// MaxCBDCShare caps the target CBDC fraction of liquid holdings.
	MaxCBDCShare float64 `yaml:"max_cbdc_share"`
}

// BankConfig calibrates the commercial banking sector.
type BankConfig struct {
	Count         int     `yaml:"count"`
	LargeFraction float64 `yaml:"large_fraction"`

	DepositRate     float64 `yaml:"deposit_rate"`
	LendingSpread   float64 `yaml:"lending_spread"`
	MinSpread       float64 `yaml:"min_spread"`
	MaxRateIncrease float64 `yaml:"max_rate_increase"`
	Aggressiveness  float64 `yaml:"aggressiveness"`

	LendingFraction   float64 `yaml:"lending_fraction"`
	ReserveRatioLarge float64 `yaml:"reserve_ratio_large"`
	ReserveRatioSmall float64 `yaml:"reserve_ratio_small"`

	VulnerabilityLarge float64 `yaml:"vulnerability_large"`
	VulnerabilitySmall float64 `yaml:"vulnerability_small"`
	StickinessLarge    float64 `yaml:"stickiness_large"`
	StickinessSmall    float64 `yaml:"stickiness_small"`

	// RunOutflowThreshold is the single-step deposit outflow fraction above
	// which a bank's digital-run flag is raised.
	RunOutflowThreshold float64 `yaml:"run_outflow_threshold"`
}

// CentralBankConfig calibrates CBDC issuance and monitoring.
type CentralBankConfig struct {
	CBDCRate      float64 `yaml:"cbdc_rate"`
	CBDCRateFloor float64 `yaml:"cbdc_rate_floor"`
	CBDCRateCap   float64 `yaml:"cbdc_rate_cap"`

	// IntroductionStep is the step at which CBDC becomes available. A value
	// beyond the run length means CBDC is never introduced for that run.
	IntroductionStep int `yaml:"introduction_step"`

	// WeakStressThreshold classifies a bank as weak; InterventionFraction is
	// the weak-bank share above which the intervention flag is raised.
	WeakStressThreshold  float64 `yaml:"weak_stress_threshold"`
	InterventionFraction float64 `yaml:"intervention_fraction"`
}

// NetworkConfig calibrates the one-shot random graph and its per-step
// weight mutation.
type NetworkConfig struct {
	EdgeProbability float64 `yaml:"edge_probability"`

	// WeakenThreshold is the adoption rate above which (strictly) interbank
	// edge weights start decaying; WeakenRate scales the per-step reduction.
	WeakenThreshold float64 `yaml:"weaken_threshold"`
	WeakenRate      float64 `yaml:"weaken_rate"`
	MinEdgeWeight   float64 `yaml:"min_edge_weight"`
}

// MerchantConfig calibrates the merchant population.
type MerchantConfig struct {
	Count int `yaml:"count"`
}

// MacroConfig calibrates the smooth deterministic economic cycle that
// modulates consumer income around its configured mean.
type MacroConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Amplitude float64 `yaml:"amplitude"` // fraction of income mean, e.g. 0.2
	Frequency float64 `yaml:"frequency"` // noise-space step per sim step
}

// Config is the complete calibration for one simulation run.
type Config struct {
	Seed int64 `yaml:"seed"`

	Consumers   ConsumerConfig    `yaml:"consumers"`
	Banks       BankConfig        `yaml:"banks"`
	CentralBank CentralBankConfig `yaml:"central_bank"`
	Network     NetworkConfig     `yaml:"network"`
	Merchants   MerchantConfig    `yaml:"merchants"`
	Macro       MacroConfig       `yaml:"macro"`
}

// Default returns the baseline calibration. Large banks are less vulnerable
// and stickier than small banks; this differential drives the centrality
// divergence the simulation exists to measure.
func Default() Config {
	return Config{
		Seed: 42,
		Consumers: ConsumerConfig{
			Count:                 200,
			InitialWealth:         5000,
			OtherShare:            0.2,
			RiskAversion:          Dist{Mean: 0.5, Std: 0.2, Min: 0.1, Max: 0.9},
			BankLoyalty:           Dist{Mean: 0.7, Std: 0.2, Min: 0.1, Max: 0.95},
			InterestSensitivity:   Dist{Mean: 0.5, Std: 0.2, Min: 0.1, Max: 0.9},
			ConveniencePreference: Dist{Mean: 0.5, Std: 0.2, Min: 0.1, Max: 0.9},
			SocialWeight:          Dist{Mean: 0.3, Std: 0.1, Min: 0.0, Max: 0.6},
			IncomeRate:            Dist{Mean: 0.015, Std: 0.005, Min: 0.01, Max: 0.03},
			SpendingRate:          Dist{Mean: 0.02, Std: 0.005, Min: 0.01, Max: 0.05},
			AdoptionBase:          0.03,
			MomentumGrowth:        0.02,
			RebalanceSpeed:        0.1,
			MaxCBDCShare:          0.8,
		},
		Banks: BankConfig{
			Count:               8,
			LargeFraction:       0.25,
			DepositRate:         0.02,
			LendingSpread:       0.03,
			MinSpread:           0.01,
			MaxRateIncrease:     0.015,
			Aggressiveness:      0.5,
			LendingFraction:     0.8,
			ReserveRatioLarge:   0.15,
			ReserveRatioSmall:   0.12,
			VulnerabilityLarge:  0.4,
			VulnerabilitySmall:  0.8,
			StickinessLarge:     0.7,
			StickinessSmall:     0.3,
			RunOutflowThreshold: 0.1,
		},
		CentralBank: CentralBankConfig{
			CBDCRate:             0.01,
			CBDCRateFloor:        0.005,
			CBDCRateCap:          0.03,
			IntroductionStep:     30,
			WeakStressThreshold:  0.7,
			InterventionFraction: 0.3,
		},
		Network: NetworkConfig{
			EdgeProbability: 0.1,
			WeakenThreshold: 0.2,
			WeakenRate:      0.15,
			MinEdgeWeight:   0.05,
		},
		Merchants: MerchantConfig{
			Count: 15,
		},
		Macro: MacroConfig{
			Enabled:   true,
			Amplitude: 0.2,
			Frequency: 0.02,
		},
	}
}

// Load reads a YAML config file on top of the defaults. A missing path
// returns the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks every probability, ratio, and population parameter against
// its valid range. The first violation is returned as a *ConfigError.
func (c Config) Validate() error {
	if c.Consumers.Count < 0 {
		return &ConfigError{Field: "consumers.count", Value: c.Consumers.Count, Reason: "must be non-negative"}
	}
	if c.Banks.Count <= 0 {
		return &ConfigError{Field: "banks.count", Value: c.Banks.Count, Reason: "must be positive"}
	}
	if c.Merchants.Count < 0 {
		return &ConfigError{Field: "merchants.count", Value: c.Merchants.Count, Reason: "must be non-negative"}
	}
	if c.Consumers.InitialWealth <= 0 {
		return &ConfigError{Field: "consumers.initial_wealth", Value: c.Consumers.InitialWealth, Reason: "must be positive"}
	}
	if err := unitRange("consumers.other_share", c.Consumers.OtherShare); err != nil {
		return err
	}
	if c.Consumers.OtherShare >= 1 {
		return &ConfigError{Field: "consumers.other_share", Value: c.Consumers.OtherShare, Reason: "must leave a positive deposit share"}
	}
	for _, d := range []struct {
		field string
		dist  Dist
	}{
		{"consumers.risk_aversion", c.Consumers.RiskAversion},
		{"consumers.bank_loyalty", c.Consumers.BankLoyalty},
		{"consumers.interest_sensitivity", c.Consumers.InterestSensitivity},
		{"consumers.convenience_preference", c.Consumers.ConveniencePreference},
		{"consumers.social_weight", c.Consumers.SocialWeight},
		{"consumers.income_rate", c.Consumers.IncomeRate},
		{"consumers.spending_rate", c.Consumers.SpendingRate},
	} {
		if d.dist.Std < 0 {
			return &ConfigError{Field: d.field + ".std", Value: d.dist.Std, Reason: "must be non-negative"}
		}
		if d.dist.Min > d.dist.Max {
			return &ConfigError{Field: d.field, Value: fmt.Sprintf("min=%v max=%v", d.dist.Min, d.dist.Max), Reason: "min exceeds max"}
		}
	}
	if err := unitRange("consumers.adoption_base", c.Consumers.AdoptionBase); err != nil {
		return err
	}
	if err := unitRange("consumers.rebalance_speed", c.Consumers.RebalanceSpeed); err != nil {
		return err
	}
	if err := unitRange("consumers.max_cbdc_share", c.Consumers.MaxCBDCShare); err != nil {
		return err
	}
	if c.Consumers.MomentumGrowth < 0 {
		return &ConfigError{Field: "consumers.momentum_growth", Value: c.Consumers.MomentumGrowth, Reason: "must be non-negative"}
	}

	if err := unitRange("banks.large_fraction", c.Banks.LargeFraction); err != nil {
		return err
	}
	if err := unitRange("banks.lending_fraction", c.Banks.LendingFraction); err != nil {
		return err
	}
	for _, r := range []struct {
		field string
		v     float64
	}{
		{"banks.reserve_ratio_large", c.Banks.ReserveRatioLarge},
		{"banks.reserve_ratio_small", c.Banks.ReserveRatioSmall},
	} {
		if r.v < 0 || r.v >= 1 {
			return &ConfigError{Field: r.field, Value: r.v, Reason: "must be in [0, 1)"}
		}
	}
	for _, r := range []struct {
		field string
		v     float64
	}{
		{"banks.vulnerability_large", c.Banks.VulnerabilityLarge},
		{"banks.vulnerability_small", c.Banks.VulnerabilitySmall},
		{"banks.stickiness_large", c.Banks.StickinessLarge},
		{"banks.stickiness_small", c.Banks.StickinessSmall},
		{"banks.aggressiveness", c.Banks.Aggressiveness},
		{"banks.run_outflow_threshold", c.Banks.RunOutflowThreshold},
	} {
		if err := unitRange(r.field, r.v); err != nil {
			return err
		}
	}
	if c.Banks.DepositRate < 0 {
		return &ConfigError{Field: "banks.deposit_rate", Value: c.Banks.DepositRate, Reason: "must be non-negative"}
	}
	if c.Banks.MinSpread < 0 {
		return &ConfigError{Field: "banks.min_spread", Value: c.Banks.MinSpread, Reason: "must be non-negative"}
	}
	if c.Banks.LendingSpread < c.Banks.MinSpread {
		return &ConfigError{Field: "banks.lending_spread", Value: c.Banks.LendingSpread, Reason: "must be at least min_spread"}
	}
	if c.Banks.MaxRateIncrease < 0 {
		return &ConfigError{Field: "banks.max_rate_increase", Value: c.Banks.MaxRateIncrease, Reason: "must be non-negative"}
	}

	if c.CentralBank.IntroductionStep < 0 {
		return &ConfigError{Field: "central_bank.introduction_step", Value: c.CentralBank.IntroductionStep, Reason: "must be non-negative"}
	}
	if c.CentralBank.CBDCRateFloor < 0 || c.CentralBank.CBDCRateCap < c.CentralBank.CBDCRateFloor {
		return &ConfigError{Field: "central_bank.cbdc_rate_cap", Value: c.CentralBank.CBDCRateCap, Reason: "floor/cap must satisfy 0 <= floor <= cap"}
	}
	if c.CentralBank.CBDCRate < c.CentralBank.CBDCRateFloor || c.CentralBank.CBDCRate > c.CentralBank.CBDCRateCap {
		return &ConfigError{Field: "central_bank.cbdc_rate", Value: c.CentralBank.CBDCRate, Reason: "must be within [floor, cap]"}
	}
	if err := unitRange("central_bank.weak_stress_threshold", c.CentralBank.WeakStressThreshold); err != nil {
		return err
	}
	if err := unitRange("central_bank.intervention_fraction", c.CentralBank.InterventionFraction); err != nil {
		return err
	}

	if err := unitRange("network.edge_probability", c.Network.EdgeProbability); err != nil {
		return err
	}
	if err := unitRange("network.weaken_threshold", c.Network.WeakenThreshold); err != nil {
		return err
	}
	if err := unitRange("network.weaken_rate", c.Network.WeakenRate); err != nil {
		return err
	}
	if err := unitRange("network.min_edge_weight", c.Network.MinEdgeWeight); err != nil {
		return err
	}

	if c.Macro.Amplitude < 0 || c.Macro.Amplitude > 1 {
		return &ConfigError{Field: "macro.amplitude", Value: c.Macro.Amplitude, Reason: "must be in [0, 1]"}
	}
	if c.Macro.Frequency < 0 {
		return &ConfigError{Field: "macro.frequency", Value: c.Macro.Frequency, Reason: "must be non-negative"}
	}
	return nil
}

func unitRange(field string, v float64) error {
	if v < 0 || v > 1 {
		return &ConfigError{Field: field, Value: v, Reason: "must be in [0, 1]"}
	}
	return nil
}
