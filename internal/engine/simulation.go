// Package engine provides the per-step multi-agent update loop: the coupled
// decision rules for consumers, commercial banks, and the central bank, the
// scheduler that orders them, and the aggregation of system-wide metrics.
//
// Each step runs a fixed phase sequence:
//
//	Monitor → BankUpdate → ConsumerUpdate → TopologyCommit → MetricsEmit
//
// Within BankUpdate and ConsumerUpdate, agents of one type run in a per-step
// seeded shuffle; across phases the ordering is fixed so consumers always
// react to the same-step bank stress. Global aggregates are written exactly
// once per step at commit and are read-only everywhere else, which keeps the
// loop deterministic for a given seed and config.
package engine

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/cbdcsim/internal/agents"
	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/econ"
	"github.com/talgya/cbdcsim/internal/network"
)

// shareTolerance is the floating tolerance for the allocation-share
// invariant check.
const shareTolerance = 1e-6

// aggregates are the system-wide quantities committed once per step. During
// Monitor, BankUpdate, and ConsumerUpdate these hold the previous step's
// committed values.
type aggregates struct {
	AdoptionRate    float64
	PeerUsage       float64 // CBDC fraction of adopters' liquid wealth
	TotalDeposits   float64
	TotalCBDC       float64
	TotalLoans      float64
	AvgStress       float64
	WeakFraction    float64
	OutflowVelocity float64 // relative system deposit outflow last step
}

// Simulation is the world state: all agents, the interaction topology, the
// shared generator, and the committed aggregates.
type Simulation struct {
	Config config.Config

	CentralBank *agents.CentralBank
	Banks       []*agents.CommercialBank
	Consumers   []*agents.Consumer
	Merchants   []*agents.Merchant
	Topology    *network.Topology

	rng   *rand.Rand
	cycle *econ.Cycle
	step  int
	agg   aggregates
	sink  Sink

	// reusable shuffle buffers
	bankOrder     []int
	consumerOrder []int
}

// New validates the config and constructs the initial world state. All
// agents are created here with fixed identity; the graph is generated once
// and only its weights mutate afterwards.
func New(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	spawner := agents.NewSpawner(rng)

	banks := spawner.SpawnBanks(cfg)
	consumers := spawner.SpawnConsumers(cfg, banks)
	central := spawner.SpawnCentralBank(cfg)
	merchants := spawner.SpawnMerchants(cfg)
	topology := network.Generate(rng, len(banks), len(consumers), len(merchants), cfg.Network)

	s := &Simulation{
		Config:        cfg,
		CentralBank:   central,
		Banks:         banks,
		Consumers:     consumers,
		Merchants:     merchants,
		Topology:      topology,
		rng:           rng,
		cycle:         econ.NewCycle(cfg.Seed, cfg.Macro),
		bankOrder:     make([]int, len(banks)),
		consumerOrder: make([]int, len(consumers)),
	}

	// Seed bank bookkeeping from the initial customer assignment so the
	// deposit invariant holds before the first step.
	for _, b := range banks {
		b.Deposits = s.customerDeposits(b)
		b.InitialDeposits = b.Deposits
		b.PrevDeposits = b.Deposits
		b.Loans = cfg.Banks.LendingFraction * b.Deposits * (1 - b.ReserveRatio)
	}
	s.commitAggregates()

	slog.Info("world initialized",
		"seed", cfg.Seed,
		"consumers", len(consumers),
		"banks", len(banks),
		"merchants", len(merchants),
		"edges", len(topology.Edges),
		"density", topology.Density(),
	)
	return s, nil
}

// CurrentStep returns the number of fully committed steps.
func (s *Simulation) CurrentStep() int {
	return s.step
}

// SetSink registers the metrics collector invoked after every commit.
func (s *Simulation) SetSink(sink Sink) {
	s.sink = sink
}

// LastSnapshot derives a snapshot of the current committed state without
// advancing time.
func (s *Simulation) LastSnapshot() Snapshot {
	return s.snapshot()
}

// Step advances the world exactly one time unit and returns the committed
// metrics snapshot. On an invariant violation the error is returned and the
// run must be aborted; the engine never exposes a partially-updated step as
// committed.
func (s *Simulation) Step() (Snapshot, error) {
	s.step++

	// Monitor: the central bank observes the previous committed state,
	// flips introduction, adjusts policy, and scores system health.
	s.monitorPhase()

	// BankUpdate: bookkeeping, competitive posture, attrition, and
	// centrality decay, in a per-step randomized order.
	s.shuffle(s.bankOrder)
	for _, i := range s.bankOrder {
		s.updateBank(s.Banks[i])
	}

	// ConsumerUpdate: income, spending, adoption, rebalancing. Consumers
	// observe the same-step bank stress written above.
	s.shuffle(s.consumerOrder)
	for _, i := range s.consumerOrder {
		s.updateConsumer(s.Consumers[i])
	}
	s.updateMerchants()

	// TopologyCommit: weight mutation, aggregate recomputation, supply
	// accommodation, and invariant verification.
	if err := s.commit(); err != nil {
		return Snapshot{}, err
	}

	// MetricsEmit.
	snap := s.snapshot()
	if s.sink != nil {
		s.sink.Collect(snap)
	}
	return snap, nil
}

// shuffle fills buf with a fresh permutation of its index range using the
// shared generator. Same-type agents are visited in this order to avoid
// systematic bias from registration order.
func (s *Simulation) shuffle(buf []int) {
	for i := range buf {
		buf[i] = i
	}
	s.rng.Shuffle(len(buf), func(i, j int) {
		buf[i], buf[j] = buf[j], buf[i]
	})
}

// customerDeposits sums deposit holdings over the bank's retained customers.
// Lost customers keep their relationship edge but contribute zero.
func (s *Simulation) customerDeposits(b *agents.CommercialBank) float64 {
	sum := 0.0
	for _, ci := range b.Customers {
		c := s.Consumers[ci]
		if c.Retained {
			sum += c.Deposits
		}
	}
	return sum
}

// commit merges the step's mutations into committed state: refreshes bank
// bookkeeping against post-consumer holdings, accommodates CBDC supply,
// mutates interbank weights, recomputes the aggregates, and verifies the
// engine invariants.
func (s *Simulation) commit() error {
	// Bank bookkeeping must reflect this step's final consumer holdings so
	// the deposit invariant holds on the committed state.
	for _, b := range s.Banks {
		b.Deposits = s.customerDeposits(b)
		b.Loans = s.Config.Banks.LendingFraction * b.Deposits * (1 - b.ReserveRatio)
	}

	totalCBDC := 0.0
	for _, c := range s.Consumers {
		totalCBDC += c.CBDC
	}

	// Unconstrained accommodation: supply always equals outstanding, which
	// always equals the sum of consumer holdings.
	if s.CentralBank.Introduced {
		s.CentralBank.Outstanding = totalCBDC
		s.CentralBank.Supply = totalCBDC
	}

	prevDeposits := s.agg.TotalDeposits
	s.commitAggregates()

	if prevDeposits > 0 {
		outflow := (prevDeposits - s.agg.TotalDeposits) / prevDeposits
		if outflow < 0 {
			outflow = 0
		}
		s.agg.OutflowVelocity = outflow
	} else {
		s.agg.OutflowVelocity = 0
	}

	// Interbank weights decay only above the adoption threshold (strict).
	s.Topology.WeakenInterbank(s.agg.AdoptionRate, s.Config.Network)

	return s.checkInvariants(totalCBDC)
}

// commitAggregates rewrites the shared aggregates from current agent state.
// This is the single write point per step; every phase reads them.
func (s *Simulation) commitAggregates() {
	agg := aggregates{OutflowVelocity: s.agg.OutflowVelocity}

	adopters := 0
	var adopterLiquid, adopterCBDC float64
	for _, c := range s.Consumers {
		agg.TotalCBDC += c.CBDC
		if c.Adopter {
			adopters++
			adopterLiquid += c.Liquid()
			adopterCBDC += c.CBDC
		}
	}
	if n := len(s.Consumers); n > 0 {
		agg.AdoptionRate = float64(adopters) / float64(n)
	}
	if adopterLiquid > 0 {
		agg.PeerUsage = adopterCBDC / adopterLiquid
	}

	weak := 0
	for _, b := range s.Banks {
		agg.TotalDeposits += b.Deposits
		agg.TotalLoans += b.Loans
		agg.AvgStress += b.Stress
		if b.Stress > s.Config.CentralBank.WeakStressThreshold {
			weak++
		}
	}
	if n := len(s.Banks); n > 0 {
		agg.AvgStress /= float64(n)
		agg.WeakFraction = float64(weak) / float64(n)
	}

	s.CentralBank.AdopterCount = adopters
	s.agg = agg
}

// checkInvariants verifies the committed state. A failure here is an engine
// bug, not a recoverable condition.
func (s *Simulation) checkInvariants(totalCBDC float64) error {
	cb := s.CentralBank
	if math.Abs(cb.Outstanding-totalCBDC) > shareTolerance*(1+totalCBDC) {
		return &InvariantViolation{
			Step: s.step, Field: "central_bank.outstanding", Value: cb.Outstanding,
			Detail: "must equal the sum of consumer CBDC holdings",
		}
	}
	if cb.Centrality < 0 || cb.Centrality > 1 || math.IsNaN(cb.Centrality) {
		return &InvariantViolation{
			Step: s.step, Field: "central_bank.centrality", Value: cb.Centrality,
			Detail: "must stay within [0, 1]",
		}
	}
	if cb.SystemicRisk < 0 || cb.SystemicRisk > 1 || math.IsNaN(cb.SystemicRisk) {
		return &InvariantViolation{
			Step: s.step, Field: "central_bank.systemic_risk", Value: cb.SystemicRisk,
			Detail: "must stay within [0, 1]",
		}
	}

	for _, c := range s.Consumers {
		if c.Wealth <= 0 {
			continue
		}
		d, cs, o := c.Shares()
		if sum := d + cs + o; math.Abs(sum-1) > shareTolerance {
			return &InvariantViolation{
				Step: s.step, Field: "consumer.shares", Value: sum,
				Detail: "allocation shares must sum to 1",
			}
		}
		if c.Deposits < -shareTolerance || c.CBDC < -shareTolerance || c.Other < -shareTolerance {
			return &InvariantViolation{
				Step: s.step, Field: "consumer.holdings", Value: c.ID,
				Detail: "holdings must be non-negative",
			}
		}
	}

	for _, b := range s.Banks {
		for field, v := range map[string]float64{
			"degree":      b.Centrality.Degree,
			"betweenness": b.Centrality.Betweenness,
			"closeness":   b.Centrality.Closeness,
			"eigenvector": b.Centrality.Eigenvector,
			"stress":      b.Stress,
		} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				return &InvariantViolation{
					Step: s.step, Field: "bank." + field, Value: v,
					Detail: "must stay within [0, 1]",
				}
			}
		}
		if got := s.customerDeposits(b); math.Abs(b.Deposits-got) > shareTolerance*(1+got) {
			return &InvariantViolation{
				Step: s.step, Field: "bank.deposits", Value: b.Deposits,
				Detail: "must equal the sum of retained customers' deposits",
			}
		}
		if maxLoans := b.Deposits * (1 - b.ReserveRatio); b.Loans > maxLoans+shareTolerance {
			return &InvariantViolation{
				Step: s.step, Field: "bank.loans", Value: b.Loans,
				Detail: "must respect the minimum reserve floor",
			}
		}
	}
	return nil
}
