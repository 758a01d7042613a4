package agents

import (
	"math/rand"
	"testing"

	"github.com/talgya/cbdcsim/internal/config"
)

func TestSpawnConsumersTraitBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Consumers.Count = 500
	s := NewSpawner(rand.New(rand.NewSource(1)))
	banks := s.SpawnBanks(cfg)
	consumers := s.SpawnConsumers(cfg, banks)

	if len(consumers) != 500 {
		t.Fatalf("spawned %d consumers, want 500", len(consumers))
	}
	for _, c := range consumers {
		tr := c.Traits
		checks := []struct {
			name   string
			v      float64
			lo, hi float64
		}{
			{"risk_aversion", tr.RiskAversion, 0.1, 0.9},
			{"bank_loyalty", tr.BankLoyalty, 0.1, 0.95},
			{"interest_sensitivity", tr.InterestSensitivity, 0.1, 0.9},
			{"convenience", tr.ConveniencePreference, 0.1, 0.9},
			{"social_weight", tr.SocialWeight, 0.0, 0.6},
			{"income_rate", tr.IncomeRate, 0.01, 0.03},
			{"spending_rate", tr.SpendingRate, 0.01, 0.05},
		}
		for _, ch := range checks {
			if ch.v < ch.lo || ch.v > ch.hi {
				t.Fatalf("consumer %d %s = %v outside [%v, %v]", c.ID, ch.name, ch.v, ch.lo, ch.hi)
			}
		}
		if c.Adopter || c.AdoptionStep != -1 {
			t.Fatalf("consumer %d created as adopter", c.ID)
		}
		if c.CBDC != 0 {
			t.Fatalf("consumer %d created with CBDC holdings", c.ID)
		}
		if got := c.Deposits + c.CBDC + c.Other; got != c.Wealth {
			t.Fatalf("consumer %d holdings %v != wealth %v", c.ID, got, c.Wealth)
		}
		if c.BankID < 0 || c.BankID >= len(banks) {
			t.Fatalf("consumer %d assigned to invalid bank %d", c.ID, c.BankID)
		}
	}
}

func TestSpawnBanksSizeClasses(t *testing.T) {
	cfg := config.Default() // 8 banks, 25% large
	s := NewSpawner(rand.New(rand.NewSource(1)))
	banks := s.SpawnBanks(cfg)

	large := 0
	for _, b := range banks {
		if b.Size == SizeLarge {
			large++
			if b.Vulnerability != 0.4 || b.Stickiness != 0.7 {
				t.Errorf("large bank %d calibration = (%v, %v), want (0.4, 0.7)", b.ID, b.Vulnerability, b.Stickiness)
			}
		} else {
			if b.Vulnerability != 0.8 || b.Stickiness != 0.3 {
				t.Errorf("small bank %d calibration = (%v, %v), want (0.8, 0.3)", b.ID, b.Vulnerability, b.Stickiness)
			}
		}
		for name, v := range map[string]float64{
			"degree":      b.Centrality.Degree,
			"betweenness": b.Centrality.Betweenness,
			"closeness":   b.Centrality.Closeness,
			"eigenvector": b.Centrality.Eigenvector,
		} {
			if v < 0 || v > 1 {
				t.Errorf("bank %d %s centrality %v outside [0, 1]", b.ID, name, v)
			}
		}
		if b.Spread() != cfg.Banks.LendingSpread {
			t.Errorf("bank %d spread = %v, want %v", b.ID, b.Spread(), cfg.Banks.LendingSpread)
		}
	}
	if large != 2 {
		t.Errorf("large bank count = %d, want 2", large)
	}

	// Large banks start structurally more central than small banks.
	var largeAvg, smallAvg float64
	for _, b := range banks {
		if b.Size == SizeLarge {
			largeAvg += b.Centrality.Composite() / 2
		} else {
			smallAvg += b.Centrality.Composite() / 6
		}
	}
	if largeAvg <= smallAvg {
		t.Errorf("initial large centrality %v not above small %v", largeAvg, smallAvg)
	}
}

func TestSpawnDeterminism(t *testing.T) {
	cfg := config.Default()
	a := NewSpawner(rand.New(rand.NewSource(99)))
	b := NewSpawner(rand.New(rand.NewSource(99)))

	ca := a.SpawnConsumers(cfg, a.SpawnBanks(cfg))
	cb := b.SpawnConsumers(cfg, b.SpawnBanks(cfg))

	for i := range ca {
		if ca[i].Traits != cb[i].Traits || ca[i].BankID != cb[i].BankID {
			t.Fatalf("consumer %d differs across identically-seeded spawns", i)
		}
	}
}

func TestSpawnMerchants(t *testing.T) {
	cfg := config.Default()
	s := NewSpawner(rand.New(rand.NewSource(5)))
	merchants := s.SpawnMerchants(cfg)

	if len(merchants) != cfg.Merchants.Count {
		t.Fatalf("spawned %d merchants, want %d", len(merchants), cfg.Merchants.Count)
	}
	seen := map[BusinessType]bool{}
	sizes := map[MerchantSize]bool{}
	for _, m := range merchants {
		seen[m.Business] = true
		sizes[m.Size] = true
		if m.AcceptsCBDC || m.AcceptanceStep != -1 {
			t.Errorf("merchant %d created accepting CBDC", m.ID)
		}
		if m.TechAdoption < 0 || m.TechAdoption > 1 {
			t.Errorf("merchant %d tech adoption %v outside [0, 1]", m.ID, m.TechAdoption)
		}
		if m.Costs.CBDC >= m.Costs.Card {
			t.Errorf("merchant %d CBDC cost %v not below card cost %v", m.ID, m.Costs.CBDC, m.Costs.Card)
		}
	}
	if len(seen) != NumBusinessTypes {
		t.Errorf("business type coverage = %d, want %d", len(seen), NumBusinessTypes)
	}
	if len(sizes) != NumMerchantSizes {
		t.Errorf("size class coverage = %d, want %d", len(sizes), NumMerchantSizes)
	}

	// Technology adoption orders by size class on average.
	avg := map[MerchantSize]float64{}
	count := map[MerchantSize]int{}
	for _, m := range merchants {
		avg[m.Size] += m.TechAdoption
		count[m.Size]++
	}
	for size := range avg {
		avg[size] /= float64(count[size])
	}
	if !(avg[MerchantSmall] < avg[MerchantMedium] && avg[MerchantMedium] < avg[MerchantLarge]) {
		t.Errorf("tech adoption not ordered by size: %v", avg)
	}
}
