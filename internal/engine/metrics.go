// Metrics aggregation — derives step-level summary statistics from committed
// state. Purely derived, no independent state; snapshots are immutable once
// emitted.
package engine

import (
	"github.com/talgya/cbdcsim/internal/agents"
)

// Snapshot is the immutable per-step metrics record handed to collectors.
type Snapshot struct {
	Step           int  `json:"step"`
	CBDCIntroduced bool `json:"cbdc_introduced"`

	AdoptionRate    float64 `json:"adoption_rate"`
	Adopters        int     `json:"adopters"`
	CBDCOutstanding float64 `json:"cbdc_outstanding"`
	TotalDeposits   float64 `json:"total_deposits"`
	TotalLoans      float64 `json:"total_loans"`

	CBDCRate       float64 `json:"cbdc_rate"`
	AvgDepositRate float64 `json:"avg_deposit_rate"`

	LargeBankCentrality   float64 `json:"large_bank_centrality"`
	SmallBankCentrality   float64 `json:"small_bank_centrality"`
	CentralBankCentrality float64 `json:"central_bank_centrality"`

	NetworkDensity     float64 `json:"network_density"`
	AvgInterbankWeight float64 `json:"avg_interbank_weight"`

	AvgLiquidityStress float64 `json:"avg_liquidity_stress"`
	WeakBankFraction   float64 `json:"weak_bank_fraction"`
	BankingHealth      float64 `json:"banking_health"`
	SystemicRisk       float64 `json:"systemic_risk"`
	Intervention       bool    `json:"intervention"`
	DigitalRuns        int     `json:"digital_runs"`

	MerchantAcceptanceRate float64 `json:"merchant_acceptance_rate"`
	CBDCPaymentShare       float64 `json:"cbdc_payment_share"`

	EconomicConditions float64 `json:"economic_conditions"`
}

// Sink receives each committed snapshot. External collectors (exporters,
// chart feeds, storage) implement this; the engine never blocks on it
// semantically — Collect is called once per step after commit.
type Sink interface {
	Collect(Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Snapshot)

// Collect implements Sink.
func (f SinkFunc) Collect(s Snapshot) { f(s) }

// snapshot derives the metrics record from fully committed state.
func (s *Simulation) snapshot() Snapshot {
	snap := Snapshot{
		Step:            s.step,
		CBDCIntroduced:  s.CentralBank.Introduced,
		AdoptionRate:    s.agg.AdoptionRate,
		Adopters:        s.CentralBank.AdopterCount,
		CBDCOutstanding: s.CentralBank.Outstanding,
		TotalDeposits:   s.agg.TotalDeposits,
		TotalLoans:      s.agg.TotalLoans,

		CBDCRate: s.CentralBank.CBDCRate,

		CentralBankCentrality: s.CentralBank.Centrality,

		NetworkDensity:     s.Topology.Density(),
		AvgInterbankWeight: s.Topology.AvgInterbankWeight(),

		AvgLiquidityStress: s.agg.AvgStress,
		WeakBankFraction:   s.agg.WeakFraction,
		BankingHealth:      s.CentralBank.Health,
		SystemicRisk:       s.CentralBank.SystemicRisk,
		Intervention:       s.CentralBank.Intervention,

		EconomicConditions: s.cycle.Conditions(s.step),
	}

	var largeSum, smallSum float64
	var largeN, smallN int
	var rateSum float64
	for _, b := range s.Banks {
		rateSum += b.DepositRate
		if b.DigitalRun {
			snap.DigitalRuns++
		}
		if b.Size == agents.SizeLarge {
			largeSum += b.Centrality.Composite()
			largeN++
		} else {
			smallSum += b.Centrality.Composite()
			smallN++
		}
	}
	if len(s.Banks) > 0 {
		snap.AvgDepositRate = rateSum / float64(len(s.Banks))
	}
	if largeN > 0 {
		snap.LargeBankCentrality = largeSum / float64(largeN)
	}
	if smallN > 0 {
		snap.SmallBankCentrality = smallSum / float64(smallN)
	}

	accepting := 0
	var totalVol, cbdcVol float64
	for _, m := range s.Merchants {
		if m.AcceptsCBDC {
			accepting++
		}
		totalVol += m.TotalVolume
		cbdcVol += m.CBDCVolume
	}
	if len(s.Merchants) > 0 {
		snap.MerchantAcceptanceRate = float64(accepting) / float64(len(s.Merchants))
	}
	if totalVol > 0 {
		snap.CBDCPaymentShare = cbdcVol / totalVol
	}
	return snap
}
