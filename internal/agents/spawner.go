// Agent spawning — creates the initial populations with trait bundles,
// bank assignments, and size-class calibration. All draws come from the
// single simulation generator so creation is part of the fixed draw-order
// contract.
package agents

import (
	"math/rand"

	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/num"
)

// Spawner creates agents from a shared seeded generator.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner wraps the simulation's generator for population construction.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng}
}

// draw samples a clipped normal trait.
func (s *Spawner) draw(d config.Dist) float64 {
	return num.Clamp(d.Mean+s.rng.NormFloat64()*d.Std, d.Min, d.Max)
}

// SpawnBanks creates the commercial banking sector. The first
// round(count × largeFraction) banks are large; the rest are small. Initial
// centralities are clipped normals calibrated by size class, with large
// banks starting high across all four measures.
func (s *Spawner) SpawnBanks(cfg config.Config) []*CommercialBank {
	bc := cfg.Banks
	largeCount := int(float64(bc.Count)*bc.LargeFraction + 0.5)
	totalWealth := cfg.Consumers.InitialWealth * float64(cfg.Consumers.Count)

	banks := make([]*CommercialBank, 0, bc.Count)
	for i := 0; i < bc.Count; i++ {
		size := SizeSmall
		reserve := bc.ReserveRatioSmall
		vuln := bc.VulnerabilitySmall
		stick := bc.StickinessSmall
		if i < largeCount {
			size = SizeLarge
			reserve = bc.ReserveRatioLarge
			vuln = bc.VulnerabilityLarge
			stick = bc.StickinessLarge
		}

		banks = append(banks, &CommercialBank{
			ID:            i,
			Size:          size,
			Capital:       totalWealth * 0.1,
			ReserveRatio:  reserve,
			DepositRate:   bc.DepositRate,
			LendingRate:   bc.DepositRate + bc.LendingSpread,
			Centrality:    s.initialCentrality(size),
			Vulnerability: vuln,
			Stickiness:    stick,
			RetentionRate: 1.0,
		})
	}
	return banks
}

// initialCentrality draws the four measures for a new bank. Large banks are
// key intermediaries (betweenness highest); small banks sit at the network
// periphery.
func (s *Spawner) initialCentrality(size SizeClass) Centrality {
	if size == SizeLarge {
		return Centrality{
			Degree:      num.Unit(0.85 + s.rng.NormFloat64()*0.05),
			Betweenness: num.Unit(0.90 + s.rng.NormFloat64()*0.03),
			Closeness:   num.Unit(0.80 + s.rng.NormFloat64()*0.04),
			Eigenvector: num.Unit(0.88 + s.rng.NormFloat64()*0.04),
		}
	}
	return Centrality{
		Degree:      num.Unit(0.35 + s.rng.NormFloat64()*0.08),
		Betweenness: num.Unit(0.25 + s.rng.NormFloat64()*0.05),
		Closeness:   num.Unit(0.45 + s.rng.NormFloat64()*0.06),
		Eigenvector: num.Unit(0.30 + s.rng.NormFloat64()*0.05),
	}
}

// SpawnConsumers creates the consumer population and assigns each a primary
// bank uniformly at random. All wealth starts split between deposits and the
// non-banking "other" bucket; CBDC holdings start at zero.
func (s *Spawner) SpawnConsumers(cfg config.Config, banks []*CommercialBank) []*Consumer {
	cc := cfg.Consumers
	consumers := make([]*Consumer, 0, cc.Count)

	for i := 0; i < cc.Count; i++ {
		traits := Traits{
			RiskAversion:          s.draw(cc.RiskAversion),
			BankLoyalty:           s.draw(cc.BankLoyalty),
			InterestSensitivity:   s.draw(cc.InterestSensitivity),
			ConveniencePreference: s.draw(cc.ConveniencePreference),
			SocialWeight:          s.draw(cc.SocialWeight),
			IncomeRate:            s.draw(cc.IncomeRate),
			SpendingRate:          s.draw(cc.SpendingRate),
		}

		bankID := s.rng.Intn(len(banks))
		other := cc.InitialWealth * cc.OtherShare
		c := &Consumer{
			ID:            i,
			InitialWealth: cc.InitialWealth,
			Wealth:        cc.InitialWealth,
			Deposits:      cc.InitialWealth - other,
			Other:         other,
			Traits:        traits,
			AdoptionStep:  -1,
			BankID:        bankID,
			Retained:      true,
		}
		consumers = append(consumers, c)
		banks[bankID].Customers = append(banks[bankID].Customers, i)
	}
	return consumers
}

// SpawnCentralBank creates the singleton issuer in its pre-introduction
// state: zero supply, zero outstanding, centrality at its base value.
func (s *Spawner) SpawnCentralBank(cfg config.Config) *CentralBank {
	return &CentralBank{
		CBDCRate:         cfg.CentralBank.CBDCRate,
		IntroductionStep: -1,
		Centrality:       0.5,
		Health:           1.0,
	}
}

// merchantTechBase maps the size class to its technology-adoption center:
// small 0.2, medium 0.5, large 0.8.
var merchantTechBase = [NumMerchantSizes]float64{0.2, 0.5, 0.8}

// SpawnMerchants creates the merchant population, cycling through size
// classes and business types. Technology adoption is drawn around the size
// class center; business type shapes the payment-cost profile (online
// merchants cannot take cash and get the best CBDC processing rates).
func (s *Spawner) SpawnMerchants(cfg config.Config) []*Merchant {
	merchants := make([]*Merchant, 0, cfg.Merchants.Count)
	for i := 0; i < cfg.Merchants.Count; i++ {
		size := MerchantSize(i % NumMerchantSizes)
		business := BusinessType(i % NumBusinessTypes)

		costs := PaymentCosts{Cash: 0.005, Card: 0.025, Transfer: 0.015, CBDC: 0.002}
		switch business {
		case BusinessOnline:
			costs.Cash = 1 // effectively unusable online
			costs.CBDC *= 0.5
		case BusinessGrocery:
			costs.Cash *= 0.7
		case BusinessRestaurant:
			costs.Cash *= 0.8
		}

		merchants = append(merchants, &Merchant{
			ID:             i,
			Size:           size,
			Business:       business,
			TechAdoption:   num.Unit(merchantTechBase[size] + s.rng.NormFloat64()*0.05),
			Costs:          costs,
			AcceptanceStep: -1,
		})
	}
	return merchants
}
