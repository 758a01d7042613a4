package engine_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/talgya/cbdcsim/internal/agents"
	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/engine"
)

// testConfig returns a small world that still exercises every mechanism:
// both bank size classes, merchants, and an early CBDC introduction.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Consumers.Count = 60
	cfg.Banks.Count = 4
	cfg.Banks.LargeFraction = 0.5
	cfg.Merchants.Count = 6
	cfg.CentralBank.IntroductionStep = 5
	return cfg
}

func run(t *testing.T, cfg config.Config, steps int) []engine.Snapshot {
	t.Helper()
	stream, err := engine.Run(cfg, steps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snaps, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(snaps) != steps {
		t.Fatalf("got %d snapshots, want %d", len(snaps), steps)
	}
	return snaps
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Banks.Count = 0
	_, err := engine.New(cfg)
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("New with zero banks: got %v, want *config.ConfigError", err)
	}
	if cerr.Field != "banks.count" {
		t.Errorf("Field = %q, want banks.count", cerr.Field)
	}
}

// TestDeterminism requires that two runs with identical seed and config
// produce identical snapshot sequences. This is the reproducibility contract
// the whole engine is built around: one shared generator, fixed phase order,
// per-step seeded shuffles.
func TestDeterminism(t *testing.T) {
	a := run(t, testConfig(), 50)
	b := run(t, testConfig(), 50)
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Fatalf("step %d diverged:\n%+v\n%+v", i+1, a[i], b[i])
		}
	}

	other := testConfig()
	other.Seed = 7
	c := run(t, other, 50)
	if reflect.DeepEqual(a[len(a)-1], c[len(c)-1]) {
		t.Error("different seeds produced identical final snapshots")
	}
}

// TestCommittedInvariants steps the world directly and checks the accounting
// identities on the live state after every commit: CBDC outstanding equals
// the sum of consumer holdings, allocation shares sum to one, and each
// bank's book equals its retained customers' deposits.
func TestCommittedInvariants(t *testing.T) {
	sim, err := engine.New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 80; i++ {
		if _, err := sim.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}

		totalCBDC := 0.0
		for _, c := range sim.Consumers {
			totalCBDC += c.CBDC
			d, cs, o := c.Shares()
			if c.Wealth > 0 {
				if sum := d + cs + o; math.Abs(sum-1) > 1e-6 {
					t.Fatalf("step %d: consumer %d shares sum to %v", i+1, c.ID, sum)
				}
			}
			if c.Deposits < -1e-9 || c.CBDC < -1e-9 || c.Other < -1e-9 {
				t.Fatalf("step %d: consumer %d has negative holdings", i+1, c.ID)
			}
		}
		if got := sim.CentralBank.Outstanding; math.Abs(got-totalCBDC) > 1e-6*(1+totalCBDC) {
			t.Fatalf("step %d: outstanding %v, consumer holdings %v", i+1, got, totalCBDC)
		}

		for _, b := range sim.Banks {
			want := 0.0
			for _, ci := range b.Customers {
				if c := sim.Consumers[ci]; c.Retained {
					want += c.Deposits
				}
			}
			if math.Abs(b.Deposits-want) > 1e-6*(1+want) {
				t.Fatalf("step %d: bank %d deposits %v, retained customer sum %v", i+1, b.ID, b.Deposits, want)
			}
		}
	}
}

// TestAdoptionIsAbsorbing checks that the adopter count never decreases and
// that nobody adopts before introduction.
func TestAdoptionIsAbsorbing(t *testing.T) {
	cfg := testConfig()
	snaps := run(t, cfg, 60)

	prev := 0
	for _, snap := range snaps {
		if snap.Step < cfg.CentralBank.IntroductionStep && snap.Adopters != 0 {
			t.Fatalf("step %d: %d adopters before introduction", snap.Step, snap.Adopters)
		}
		if snap.Adopters < prev {
			t.Fatalf("step %d: adopters fell from %d to %d", snap.Step, prev, snap.Adopters)
		}
		prev = snap.Adopters
	}
	if prev == 0 {
		t.Error("no adoption after 60 steps with early introduction")
	}
}

// TestIntroductionBeyondRunLength runs a world whose introduction step is
// never reached: CBDC must stay entirely absent.
func TestIntroductionBeyondRunLength(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1000
	snaps := run(t, cfg, 50)

	final := snaps[len(snaps)-1]
	if final.CBDCIntroduced {
		t.Error("CBDC introduced despite out-of-range introduction step")
	}
	if final.CBDCOutstanding != 0 || final.Adopters != 0 {
		t.Errorf("outstanding = %v, adopters = %d, want zero", final.CBDCOutstanding, final.Adopters)
	}
	if final.MerchantAcceptanceRate != 0 {
		t.Errorf("merchants accepted CBDC without introduction: %v", final.MerchantAcceptanceRate)
	}
}

// TestSizeDifferential drives adoption hard and checks the structural claim:
// small banks lose centrality faster than large banks, and both decay from
// their starting level.
func TestSizeDifferential(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.3
	cfg.Consumers.MomentumGrowth = 0.05

	snaps := run(t, cfg, 60)
	first, final := snaps[0], snaps[len(snaps)-1]

	if final.AdoptionRate < 0.5 {
		t.Fatalf("adoption %v too low to exercise the differential", final.AdoptionRate)
	}
	if final.SmallBankCentrality >= final.LargeBankCentrality {
		t.Errorf("small centrality %v did not fall below large %v",
			final.SmallBankCentrality, final.LargeBankCentrality)
	}
	if final.LargeBankCentrality >= first.LargeBankCentrality {
		t.Errorf("large centrality did not decay: %v -> %v",
			first.LargeBankCentrality, final.LargeBankCentrality)
	}
	if final.CentralBankCentrality <= 0.5 {
		t.Errorf("central bank centrality %v did not grow under adoption", final.CentralBankCentrality)
	}
}

func TestZeroConsumers(t *testing.T) {
	cfg := testConfig()
	cfg.Consumers.Count = 0
	snaps := run(t, cfg, 40)

	final := snaps[len(snaps)-1]
	if final.AdoptionRate != 0 || final.CBDCOutstanding != 0 {
		t.Errorf("empty population produced adoption %v, outstanding %v",
			final.AdoptionRate, final.CBDCOutstanding)
	}
}

// TestPolicyRateStaysBounded verifies the feedback rule never pushes the
// CBDC rate outside its configured corridor.
func TestPolicyRateStaysBounded(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.3

	snaps := run(t, cfg, 100)
	for _, snap := range snaps {
		if snap.CBDCRate < cfg.CentralBank.CBDCRateFloor-1e-12 ||
			snap.CBDCRate > cfg.CentralBank.CBDCRateCap+1e-12 {
			t.Fatalf("step %d: rate %v outside [%v, %v]",
				snap.Step, snap.CBDCRate, cfg.CentralBank.CBDCRateFloor, cfg.CentralBank.CBDCRateCap)
		}
	}
}

// TestInterbankWeakening checks both sides of the adoption threshold on the
// committed interbank weights: no decay while adoption stays at or below the
// threshold, decay above it.
func TestInterbankWeakening(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1000
	snaps := run(t, cfg, 30)
	for _, snap := range snaps {
		if snap.AvgInterbankWeight != 1.0 {
			t.Fatalf("step %d: interbank weight %v moved without adoption", snap.Step, snap.AvgInterbankWeight)
		}
	}

	cfg = testConfig()
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.4
	cfg.Consumers.MomentumGrowth = 0.1
	snaps = run(t, cfg, 60)
	final := snaps[len(snaps)-1]
	if final.AdoptionRate <= cfg.Network.WeakenThreshold {
		t.Fatalf("adoption %v never cleared the weakening threshold", final.AdoptionRate)
	}
	if final.AvgInterbankWeight >= 1.0 {
		t.Error("interbank weights did not weaken above the adoption threshold")
	}
	if final.AvgInterbankWeight < cfg.Network.MinEdgeWeight {
		t.Errorf("interbank weight %v fell below the floor %v",
			final.AvgInterbankWeight, cfg.Network.MinEdgeWeight)
	}
}

// TestMerchantAcceptanceMonotone checks that merchant acceptance never
// reverts and eventually responds to adoption.
func TestMerchantAcceptanceMonotone(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1
	snaps := run(t, cfg, 60)

	prev := 0.0
	for _, snap := range snaps {
		if snap.MerchantAcceptanceRate < prev {
			t.Fatalf("step %d: acceptance fell from %v to %v", snap.Step, prev, snap.MerchantAcceptanceRate)
		}
		prev = snap.MerchantAcceptanceRate
	}
	if prev == 0 {
		t.Error("no merchant accepted CBDC after 60 post-introduction steps")
	}
}

// TestAttritionKeepsRelationshipEdges verifies the departure semantics: a
// lost customer stays on the bank's customer list with a zeroed deposit
// contribution, holding the balance in CBDC instead.
func TestAttritionKeepsRelationshipEdges(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.4
	cfg.Consumers.MomentumGrowth = 0.1

	sim, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	customerTotal := 0
	for _, b := range sim.Banks {
		customerTotal += len(b.Customers)
	}

	for i := 0; i < 80; i++ {
		if _, err := sim.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}

	after := 0
	departed := 0
	for _, b := range sim.Banks {
		after += len(b.Customers)
	}
	if after != customerTotal {
		t.Errorf("customer edges changed: %d -> %d", customerTotal, after)
	}
	for _, c := range sim.Consumers {
		if !c.Retained {
			departed++
			if c.Deposits != 0 {
				t.Errorf("departed consumer %d still holds %v on deposit", c.ID, c.Deposits)
			}
		}
	}
	if departed == 0 {
		t.Error("no attrition under sustained high adoption")
	}
}

func TestSinkReceivesEverySnapshot(t *testing.T) {
	sim, err := engine.New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []engine.Snapshot
	sim.SetSink(engine.SinkFunc(func(s engine.Snapshot) {
		got = append(got, s)
	}))

	for i := 0; i < 10; i++ {
		snap, err := sim.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if !reflect.DeepEqual(got[len(got)-1], snap) {
			t.Fatalf("step %d: sink saw a different snapshot than Step returned", i+1)
		}
	}
	if len(got) != 10 {
		t.Fatalf("sink collected %d snapshots, want 10", len(got))
	}
}

// TestBankBookkeepingStaysFunded checks the reserve floor on the committed
// loan book for both size classes across a long stressed run.
func TestBankBookkeepingStaysFunded(t *testing.T) {
	cfg := testConfig()
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.3

	sim, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 100; i++ {
		if _, err := sim.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		for _, b := range sim.Banks {
			if maxLoans := b.Deposits * (1 - b.ReserveRatio); b.Loans > maxLoans+1e-9 {
				t.Fatalf("step %d: %s bank %d lends %v past reserve cap %v",
					i+1, b.Size, b.ID, b.Loans, maxLoans)
			}
		}
	}
}

// TestLargeBanksRetainBetter compares realized retention across size
// classes: stickier, less vulnerable large banks must keep a higher fraction
// of their customers through a high-adoption run. The run is short enough
// that small banks have not yet lost everyone, so the gap is visible.
func TestLargeBanksRetainBetter(t *testing.T) {
	cfg := testConfig()
	cfg.Consumers.Count = 200
	cfg.CentralBank.IntroductionStep = 1
	cfg.Consumers.AdoptionBase = 0.4
	cfg.Consumers.MomentumGrowth = 0.1

	sim, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := sim.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}

	var large, small float64
	var largeN, smallN int
	for _, b := range sim.Banks {
		if b.Size == agents.SizeLarge {
			large += b.RetentionRate
			largeN++
		} else {
			small += b.RetentionRate
			smallN++
		}
	}
	if largeN == 0 || smallN == 0 {
		t.Fatal("config must produce both size classes")
	}
	if large/float64(largeN) <= small/float64(smallN) {
		t.Errorf("large banks retained %v, small %v; want large higher",
			large/float64(largeN), small/float64(smallN))
	}
}
