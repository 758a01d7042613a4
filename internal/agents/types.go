// Package agents provides the agent data model: consumers, commercial banks,
// the central bank, and merchants. Agents are created once at initialization
// with fixed identity and stored in contiguous slices indexed by ID; only
// mutable fields change across steps and no agent is ever destroyed (a bank
// "exit" is zeroed deposits and centrality, not removal).
package agents

// SizeClass partitions commercial banks into the two calibration classes.
type SizeClass uint8

const (
	SizeLarge SizeClass = iota
	SizeSmall
)

// String returns the human-readable size class name.
func (s SizeClass) String() string {
	if s == SizeLarge {
		return "large"
	}
	return "small"
}

// Traits is the immutable behavioral bundle drawn once per consumer at
// creation. All entries are bounded reals; they are never re-sampled.
type Traits struct {
	RiskAversion          float64 `json:"risk_aversion"`
	BankLoyalty           float64 `json:"bank_loyalty"`
	InterestSensitivity   float64 `json:"interest_sensitivity"`
	ConveniencePreference float64 `json:"convenience_preference"`
	SocialWeight          float64 `json:"social_weight"`

	// Per-step income and spending, as fractions of initial wealth.
	IncomeRate   float64 `json:"income_rate"`
	SpendingRate float64 `json:"spending_rate"`
}

// Consumer holds one household's portfolio and adoption state. Holdings are
// stored as absolute amounts; Deposits + CBDC + Other always equals Wealth,
// so the allocation shares sum to 1 by construction.
type Consumer struct {
	ID            int     `json:"id"`
	InitialWealth float64 `json:"initial_wealth"`
	Wealth        float64 `json:"wealth"`

	Deposits float64 `json:"deposits"`
	CBDC     float64 `json:"cbdc"`
	Other    float64 `json:"other"`

	Traits Traits `json:"traits"`

	// Adopter never reverts once set. AdoptionStep is -1 until then.
	Adopter      bool `json:"adopter"`
	AdoptionStep int  `json:"adoption_step"`

	// BankID references the primary bank by index; the relation is
	// non-owning. Retained reports whether the bank still counts this
	// customer's deposits (attrition zeroes the contribution but keeps
	// the relationship edge).
	BankID   int  `json:"bank_id"`
	Retained bool `json:"retained"`
}

// Liquid returns the spendable balance (deposits plus CBDC).
func (c *Consumer) Liquid() float64 {
	return c.Deposits + c.CBDC
}

// Shares returns the deposit, CBDC, and other allocation fractions of wealth.
func (c *Consumer) Shares() (deposit, cbdc, other float64) {
	if c.Wealth <= 0 {
		return 0, 0, 0
	}
	return c.Deposits / c.Wealth, c.CBDC / c.Wealth, c.Other / c.Wealth
}

// Centrality holds the four bounded structural-importance measures. Each
// decays under its own rule; betweenness decays fastest (CBDC bypasses
// intermediation) and closeness slowest.
type Centrality struct {
	Degree      float64 `json:"degree"`
	Betweenness float64 `json:"betweenness"`
	Closeness   float64 `json:"closeness"`
	Eigenvector float64 `json:"eigenvector"`
}

// Composite returns the mean of the four measures.
func (c Centrality) Composite() float64 {
	return (c.Degree + c.Betweenness + c.Closeness + c.Eigenvector) / 4
}

// CommercialBank holds one bank's bookkeeping and competitive posture.
type CommercialBank struct {
	ID   int       `json:"id"`
	Size SizeClass `json:"size"`

	Capital      float64 `json:"capital"`
	Deposits     float64 `json:"deposits"`
	PrevDeposits float64 `json:"prev_deposits"`
	// InitialDeposits is the deposit base at initialization, the reference
	// point for erosion and outflow-velocity measures.
	InitialDeposits float64 `json:"initial_deposits"`
	Loans           float64 `json:"loans"`
	ReserveRatio    float64 `json:"reserve_ratio"`

	DepositRate float64 `json:"deposit_rate"`
	LendingRate float64 `json:"lending_rate"`

	Centrality Centrality `json:"centrality"`

	// Vulnerability and Stickiness are fixed by size class at creation.
	Vulnerability float64 `json:"vulnerability"`
	Stickiness    float64 `json:"stickiness"`

	Stress     float64 `json:"stress"`      // liquidity stress in [0, 1]
	DigitalRun bool    `json:"digital_run"` // one-step outflow above threshold

	// Customers references consumers by index; a bank does not own its
	// customers. RetentionRate is the retained fraction of the customer set.
	Customers     []int   `json:"customers"`
	RetentionRate float64 `json:"retention_rate"`

	CBDCOutflows float64 `json:"cbdc_outflows"`
	MarketShare  float64 `json:"market_share"`
}

// Spread returns the lending-deposit rate spread.
func (b *CommercialBank) Spread() float64 {
	return b.LendingRate - b.DepositRate
}

// CentralBank is the singleton issuer and monitor. Supply accommodation is
// unconstrained: after every committed step Supply and Outstanding both equal
// the sum of consumer CBDC holdings.
type CentralBank struct {
	CBDCRate    float64 `json:"cbdc_rate"`
	Supply      float64 `json:"supply"`
	Outstanding float64 `json:"outstanding"`

	Introduced       bool `json:"introduced"`
	IntroductionStep int  `json:"introduction_step"` // -1 before introduction

	Centrality   float64 `json:"centrality"`
	SystemicRisk float64 `json:"systemic_risk"`
	Health       float64 `json:"health"`
	Intervention bool    `json:"intervention"`

	// AdopterCount is the demand aggregate consumers register with on
	// adoption.
	AdopterCount int `json:"adopter_count"`
}

// BusinessType enumerates merchant lines of business.
type BusinessType uint8

const (
	BusinessRetail BusinessType = iota
	BusinessRestaurant
	BusinessOnline
	BusinessUtility
	BusinessGrocery
)

// NumBusinessTypes is the count of merchant business types.
const NumBusinessTypes = 5

// String returns the business type name.
func (b BusinessType) String() string {
	switch b {
	case BusinessRetail:
		return "retail"
	case BusinessRestaurant:
		return "restaurant"
	case BusinessOnline:
		return "online"
	case BusinessUtility:
		return "utility"
	default:
		return "grocery"
	}
}

// MerchantSize buckets merchants into technology-adoption classes.
type MerchantSize uint8

const (
	MerchantSmall MerchantSize = iota
	MerchantMedium
	MerchantLarge
)

// NumMerchantSizes is the count of merchant size classes.
const NumMerchantSizes = 3

// String returns the merchant size name.
func (m MerchantSize) String() string {
	switch m {
	case MerchantSmall:
		return "small"
	case MerchantMedium:
		return "medium"
	default:
		return "large"
	}
}

// PaymentCosts holds per-instrument processing costs as transaction
// fractions. CBDC processing is the cheapest instrument, which is what
// drives merchant acceptance.
type PaymentCosts struct {
	Cash     float64 `json:"cash"`
	Card     float64 `json:"card"`
	Transfer float64 `json:"transfer"`
	CBDC     float64 `json:"cbdc"`
}

// Merchant accepts consumer payments and decides once whether to accept
// CBDC; like consumer adoption, acceptance never reverts.
type Merchant struct {
	ID       int          `json:"id"`
	Size     MerchantSize `json:"size"`
	Business BusinessType `json:"business"`

	// TechAdoption is set by size class: large merchants run modern payment
	// stacks and accept new instruments earliest.
	TechAdoption float64      `json:"tech_adoption"`
	Costs        PaymentCosts `json:"costs"`

	AcceptsCBDC    bool `json:"accepts_cbdc"`
	AcceptanceStep int  `json:"acceptance_step"` // -1 until acceptance

	// Volumes accumulate routed consumer spending.
	TotalVolume float64 `json:"total_volume"`
	CBDCVolume  float64 `json:"cbdc_volume"`
}

// CBDCShare returns the fraction of routed volume settled in CBDC.
func (m *Merchant) CBDCShare() float64 {
	if m.TotalVolume <= 0 {
		return 0
	}
	return m.CBDCVolume / m.TotalVolume
}
