// Consumer update phase — income, spending, the adoption lottery, and
// portfolio rebalancing. Consumers run after banks so they react to the
// same-step stress and rate posture, in a per-step shuffled order.
package engine

import (
	"github.com/talgya/cbdcsim/internal/agents"
	"github.com/talgya/cbdcsim/internal/econ"
	"github.com/talgya/cbdcsim/internal/num"
)

// updateConsumer advances one household a step.
func (s *Simulation) updateConsumer(c *agents.Consumer) {
	s.earnIncome(c)
	s.spend(c)
	if s.CentralBank.Introduced {
		if !c.Adopter {
			s.tryAdopt(c)
		}
		if c.Adopter {
			s.rebalance(c)
		}
	}
}

// earnIncome credits the step's income. The rate is a fresh clipped-normal
// draw centered on the consumer's trait, then modulated by the macro cycle.
// Retained customers receive income on deposit; departed ones directly in
// CBDC.
func (s *Simulation) earnIncome(c *agents.Consumer) {
	cc := s.Config.Consumers
	rate := num.Clamp(
		c.Traits.IncomeRate+s.rng.NormFloat64()*cc.IncomeRate.Std,
		cc.IncomeRate.Min, cc.IncomeRate.Max,
	)
	income := c.InitialWealth * rate * s.cycle.IncomeMultiplier(s.step)

	c.Wealth += income
	if c.Retained {
		c.Deposits += income
	} else {
		c.CBDC += income
	}
}

// spend debits the step's consumption, drawn the same way as income and
// bounded by the liquid balance, and routes it to a uniformly chosen
// merchant. Payment comes out of deposits and CBDC proportionally; the CBDC
// portion counts toward merchant volume only where it is accepted.
func (s *Simulation) spend(c *agents.Consumer) {
	cc := s.Config.Consumers
	rate := num.Clamp(
		c.Traits.SpendingRate+s.rng.NormFloat64()*cc.SpendingRate.Std,
		cc.SpendingRate.Min, cc.SpendingRate.Max,
	)
	amount := c.InitialWealth * rate
	liquid := c.Liquid()
	if amount > liquid {
		amount = liquid
	}
	if amount <= 0 {
		return
	}

	cbdcShare := 0.0
	if liquid > 0 {
		cbdcShare = c.CBDC / liquid
	}
	c.Deposits -= amount * (1 - cbdcShare)
	c.CBDC -= amount * cbdcShare
	c.Wealth -= amount

	if len(s.Merchants) == 0 {
		return
	}
	m := s.Merchants[s.rng.Intn(len(s.Merchants))]
	m.TotalVolume += amount
	if m.AcceptsCBDC {
		m.CBDCVolume += amount * cbdcShare
	}
}

// tryAdopt runs the per-step adoption lottery. The probability is additive
// around the configured base: the rate advantage over the consumer's own
// bank, social exposure amplified by post-introduction momentum, convenience
// preference, loyalty and risk drag, and flight from a stressed primary
// bank. Adoption never reverts; a fresh adopter converts an initial slice of
// deposits immediately, loyalty shrinking the slice.
func (s *Simulation) tryAdopt(c *agents.Consumer) {
	cc := s.Config.Consumers
	cb := s.CentralBank
	bank := s.Banks[c.BankID]
	tr := c.Traits

	sinceIntro := s.step - cb.IntroductionStep
	momentum := 1 + min(1, cc.MomentumGrowth*float64(sinceIntro))
	advantage := econ.RateAdvantage(cb.CBDCRate, bank.DepositRate)

	p := num.Unit(cc.AdoptionBase +
		tr.InterestSensitivity*advantage*10 +
		tr.SocialWeight*s.agg.AdoptionRate*momentum +
		tr.ConveniencePreference*0.1 -
		tr.BankLoyalty*0.08 -
		tr.RiskAversion*0.05 +
		bank.Stress*0.1)
	if s.rng.Float64() >= p {
		return
	}

	c.Adopter = true
	c.AdoptionStep = s.step

	initial := (0.2 + (1-tr.BankLoyalty)*0.3) * c.Deposits
	c.Deposits -= initial
	c.CBDC += initial
}

// rebalance moves the portfolio a partial step toward its target CBDC share
// of liquid holdings. The target grows with the rate advantage, convenience,
// and peer usage, shrinks with risk aversion and loyalty, and is capped by
// config. Departed customers never move funds back onto deposit.
func (s *Simulation) rebalance(c *agents.Consumer) {
	cc := s.Config.Consumers
	bank := s.Banks[c.BankID]
	tr := c.Traits

	advantage := econ.RateAdvantage(s.CentralBank.CBDCRate, bank.DepositRate)
	target := 0.3 +
		tr.InterestSensitivity*advantage*5 +
		tr.ConveniencePreference*0.2 -
		tr.RiskAversion*0.15 -
		tr.BankLoyalty*0.2 +
		tr.SocialWeight*s.agg.PeerUsage*0.3
	target = num.Clamp(target, 0, cc.MaxCBDCShare)

	liquid := c.Liquid()
	if liquid <= 0 {
		return
	}
	shift := cc.RebalanceSpeed * (target*liquid - c.CBDC)
	switch {
	case shift > 0:
		if shift > c.Deposits {
			shift = c.Deposits
		}
		c.Deposits -= shift
		c.CBDC += shift
	case shift < 0 && c.Retained:
		back := -shift
		if back > c.CBDC {
			back = c.CBDC
		}
		c.CBDC -= back
		c.Deposits += back
	}
}
