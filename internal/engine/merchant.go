// Merchant acceptance — the one-way decision to take CBDC payments. Volume
// accrual happens during consumer spending; this phase only flips acceptance.
package engine

// updateMerchants runs the per-step acceptance lottery for merchants that do
// not yet take CBDC. The probability scales with the merchant's technology
// adoption and the consumer adoption level: CBDC's low processing cost only
// pays off once customers actually carry it. Acceptance never reverts.
func (s *Simulation) updateMerchants() {
	if !s.CentralBank.Introduced {
		return
	}
	for _, m := range s.Merchants {
		if m.AcceptsCBDC {
			continue
		}
		p := m.TechAdoption * (0.3 + 0.7*s.agg.AdoptionRate)
		if s.rng.Float64() < p {
			m.AcceptsCBDC = true
			m.AcceptanceStep = s.step
		}
	}
}
