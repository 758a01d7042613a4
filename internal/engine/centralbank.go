// Central bank monitor phase — introduction, policy feedback, financial
// stability scoring, and the issuer's own centrality growth. Runs first each
// step and reads only the previous step's committed aggregates.
package engine

import (
	"log/slog"

	"github.com/talgya/cbdcsim/internal/econ"
	"github.com/talgya/cbdcsim/internal/num"
)

// monitorPhase advances the central bank one step. CBDC becomes available at
// the configured step and the flag never reverts; before introduction the
// issuer only tracks banking health.
func (s *Simulation) monitorPhase() {
	cb := s.CentralBank
	cfg := s.Config.CentralBank

	if !cb.Introduced && s.step >= cfg.IntroductionStep {
		cb.Introduced = true
		cb.IntroductionStep = s.step
		slog.Info("cbdc introduced", "step", s.step, "rate", cb.CBDCRate)
	}

	s.scoreStability()
	if cb.Introduced {
		s.adjustPolicyRate()
		s.growCentrality()
	}
}

// scoreStability recomputes banking health, systemic risk, and the
// intervention flag from the committed aggregates.
func (s *Simulation) scoreStability() {
	cb := s.CentralBank
	cfg := s.Config.CentralBank

	// Health blends average liquidity stress with the system-wide deposit
	// outflow velocity; a fast drain hurts even while stress is still low.
	outflowHealth := 1 - num.Unit(s.agg.OutflowVelocity*10)
	cb.Health = num.Unit(0.6*(1-s.agg.AvgStress) + 0.4*outflowHealth)

	// Risk combines adoption pace, banking weakness, and deposit
	// concentration. Adoption saturates at 50%: past that the disruption
	// pressure on the sector is already maximal.
	rapid := num.Unit(2 * s.agg.AdoptionRate)
	hhi := econ.Herfindahl(s.bankDeposits())
	cb.SystemicRisk = num.Unit(0.4*rapid + 0.4*(1-cb.Health) + 0.2*hhi)

	wasIntervening := cb.Intervention
	cb.Intervention = s.agg.WeakFraction > cfg.InterventionFraction
	if cb.Intervention && !wasIntervening {
		slog.Warn("stability intervention",
			"step", s.step,
			"weak_fraction", s.agg.WeakFraction,
			"systemic_risk", cb.SystemicRisk,
		)
	}
}

// adjustPolicyRate applies the stability feedback rule: high systemic risk
// eases the CBDC rate down toward the floor to slow disintermediation, while
// low risk with sluggish adoption nudges it up toward the cap.
func (s *Simulation) adjustPolicyRate() {
	cb := s.CentralBank
	cfg := s.Config.CentralBank

	switch {
	case cb.SystemicRisk > 0.7:
		cb.CBDCRate *= 0.98
	case cb.SystemicRisk < 0.3 && s.agg.AdoptionRate < 0.2:
		cb.CBDCRate *= 1.01
	}
	cb.CBDCRate = num.Clamp(cb.CBDCRate, cfg.CBDCRateFloor, cfg.CBDCRateCap)
}

// growCentrality raises the issuer's network position with adoption and the
// CBDC share of liquid money, with a monopoly bonus once adoption clears 30%.
func (s *Simulation) growCentrality() {
	cb := s.CentralBank

	liquid := s.agg.TotalDeposits + s.agg.TotalCBDC
	cbdcShare := 0.0
	if liquid > 0 {
		cbdcShare = s.agg.TotalCBDC / liquid
	}

	c := 0.5 + 0.3*s.agg.AdoptionRate + 0.15*cbdcShare
	if s.agg.AdoptionRate > 0.3 {
		c += 0.1
	}
	cb.Centrality = num.Unit(c)
}

// bankDeposits collects the deposit base per bank for concentration math.
func (s *Simulation) bankDeposits() []float64 {
	out := make([]float64, len(s.Banks))
	for i, b := range s.Banks {
		out[i] = b.Deposits
	}
	return out
}
