// Commercial bank update phase — outflow bookkeeping, digital-run detection,
// competitive deposit rates, customer attrition, and centrality decay. Banks
// run after the monitor and before consumers, in a per-step shuffled order.
package engine

import (
	"log/slog"

	"github.com/talgya/cbdcsim/internal/agents"
	"github.com/talgya/cbdcsim/internal/num"
)

// centralityDecay weights the per-measure decay under CBDC adoption.
// Betweenness decays fastest: direct CBDC settlement bypasses the
// intermediation role first. Closeness decays slowest since relationship
// proximity outlives transaction flow.
var centralityDecay = []struct {
	factor float64
	rate   float64
	cap    float64
}{
	{0.8, 0.04, 0.08},  // degree
	{1.2, 0.05, 0.10},  // betweenness
	{0.6, 0.03, 0.06},  // closeness
	{0.9, 0.035, 0.07}, // eigenvector
}

// updateBank advances one bank a step against the previous committed state.
func (s *Simulation) updateBank(b *agents.CommercialBank) {
	s.trackOutflows(b)
	s.setCompetitiveRate(b)
	if s.CentralBank.Introduced {
		s.applyAttrition(b)
		s.decayCentrality(b)
	}
	s.scoreStress(b)
}

// trackOutflows measures the single-step deposit outflow velocity and raises
// the digital-run flag when it clears the configured threshold. The flag is
// per-step: a bank is "in a run" only while the drain continues.
func (s *Simulation) trackOutflows(b *agents.CommercialBank) {
	velocity := 0.0
	if b.PrevDeposits > 0 {
		velocity = (b.PrevDeposits - b.Deposits) / b.PrevDeposits
		if velocity < 0 {
			velocity = 0
		}
	}
	b.CBDCOutflows = velocity

	wasRunning := b.DigitalRun
	b.DigitalRun = velocity > s.Config.Banks.RunOutflowThreshold
	if b.DigitalRun && !wasRunning {
		slog.Warn("digital run",
			"bank", b.ID,
			"size", b.Size.String(),
			"step", s.step,
			"outflow", velocity,
		)
	}
	b.PrevDeposits = b.Deposits
}

// setCompetitiveRate repositions the deposit rate against the CBDC yield.
// The response is a level, not a cumulative increment: base rate plus a
// capped premium driven by adoption pressure and the rate disadvantage. A
// bank never raises past the point where its lending spread would fall below
// the configured minimum.
func (s *Simulation) setCompetitiveRate(b *agents.CommercialBank) {
	bc := s.Config.Banks
	if !s.CentralBank.Introduced {
		return
	}

	disadvantage := s.CentralBank.CBDCRate - bc.DepositRate
	if disadvantage < 0 {
		disadvantage = 0
	}
	premium := s.agg.AdoptionRate*bc.Aggressiveness*bc.MaxRateIncrease*2 + 0.8*disadvantage
	if premium > bc.MaxRateIncrease {
		premium = bc.MaxRateIncrease
	}

	target := bc.DepositRate + premium
	if b.LendingRate-target < bc.MinSpread {
		target = b.LendingRate - bc.MinSpread
	}
	if target > b.DepositRate {
		b.DepositRate = target
	}
}

// applyAttrition runs the per-customer retention lottery. Adopter customers
// leave with probability scaled by the bank's vulnerability and damped by
// its stickiness; a departing customer converts the full deposit balance to
// CBDC but keeps the relationship edge.
func (s *Simulation) applyAttrition(b *agents.CommercialBank) {
	p := (1 - b.Stickiness) * s.agg.AdoptionRate * b.Vulnerability
	if p > 0 {
		for _, ci := range b.Customers {
			c := s.Consumers[ci]
			if !c.Retained || !c.Adopter {
				continue
			}
			if s.rng.Float64() >= p {
				continue
			}
			c.Retained = false
			c.CBDC += c.Deposits
			c.Deposits = 0
		}
	}

	retained := 0
	for _, ci := range b.Customers {
		if s.Consumers[ci].Retained {
			retained++
		}
	}
	if len(b.Customers) > 0 {
		b.RetentionRate = float64(retained) / float64(len(b.Customers))
	}
}

// decayCentrality erodes the four measures under adoption pressure. The
// decay base is adoption × vulnerability × (1 + customer loss rate), so the
// size differential flows entirely through the calibrated vulnerability;
// each measure then applies its own impact factor up to its per-step cap.
func (s *Simulation) decayCentrality(b *agents.CommercialBank) {
	adoption := s.agg.AdoptionRate
	if adoption <= 0 {
		return
	}
	base := adoption * b.Vulnerability * (1 + (1 - b.RetentionRate))

	measures := [4]*float64{
		&b.Centrality.Degree,
		&b.Centrality.Betweenness,
		&b.Centrality.Closeness,
		&b.Centrality.Eigenvector,
	}
	for i, m := range measures {
		d := centralityDecay[i]
		loss := base * d.rate * d.factor
		if loss > d.cap {
			loss = d.cap
		}
		*m = num.Unit(*m * (1 - loss))
	}
}

// scoreStress composes the liquidity stress reading from adoption pressure,
// the current outflow velocity, deposit erosion against the initial base,
// and customer loss. Small banks feel amplified stress at the same adoption
// level.
func (s *Simulation) scoreStress(b *agents.CommercialBank) {
	erosion := 0.0
	if b.InitialDeposits > 0 {
		erosion = 1 - b.Deposits/b.InitialDeposits
		if erosion < 0 {
			erosion = 0
		}
	}

	stress := s.agg.AdoptionRate*b.Vulnerability +
		0.5*b.CBDCOutflows +
		0.3*erosion +
		0.2*(1-b.RetentionRate)
	if b.Size == agents.SizeSmall {
		stress *= 1 + s.agg.AdoptionRate*0.8
	}
	b.Stress = num.Unit(stress)
}
