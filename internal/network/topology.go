// Package network provides the shared agent interaction graph. Generation
// runs exactly once at initialization (seeded Erdős–Rényi construction);
// afterwards only edge weights and derived per-agent state mutate — edge
// existence is never recomputed during a run.
package network

import (
	"math/rand"

	"github.com/talgya/cbdcsim/internal/config"
)

// NodeKind tags a graph node with its agent type.
type NodeKind uint8

const (
	NodeCentralBank NodeKind = iota
	NodeBank
	NodeConsumer
	NodeMerchant
)

// Node is one agent's position in the interaction graph. Ref indexes into
// the owning agent slice for its kind.
type Node struct {
	ID   int      `json:"id"`
	Kind NodeKind `json:"kind"`
	Ref  int      `json:"ref"`
}

// Edge is an undirected weighted relationship between two nodes. Weight
// represents relationship strength in [0, 1]; weakened edges are never
// removed.
type Edge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Weight float64 `json:"weight"`
}

// Topology is the fixed node set plus the mutable edge weights.
type Topology struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// interbank indexes the edges whose endpoints are both commercial
	// banks; these are the only edges mutated per step.
	interbank []int
	degrees   []int
}

// Generate builds the interaction graph over the central bank, all banks,
// all consumers, and all merchants. Node 0 is the central bank, followed by
// banks, consumers, then merchants. Each unordered node pair receives an
// edge of weight 1.0 with the configured probability.
func Generate(rng *rand.Rand, banks, consumers, merchants int, cfg config.NetworkConfig) *Topology {
	n := 1 + banks + consumers + merchants
	nodes := make([]Node, 0, n)
	nodes = append(nodes, Node{ID: 0, Kind: NodeCentralBank})
	for i := 0; i < banks; i++ {
		nodes = append(nodes, Node{ID: len(nodes), Kind: NodeBank, Ref: i})
	}
	for i := 0; i < consumers; i++ {
		nodes = append(nodes, Node{ID: len(nodes), Kind: NodeConsumer, Ref: i})
	}
	for i := 0; i < merchants; i++ {
		nodes = append(nodes, Node{ID: len(nodes), Kind: NodeMerchant, Ref: i})
	}

	t := &Topology{Nodes: nodes, degrees: make([]int, n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() >= cfg.EdgeProbability {
				continue
			}
			t.Edges = append(t.Edges, Edge{A: i, B: j, Weight: 1.0})
			t.degrees[i]++
			t.degrees[j]++
			if nodes[i].Kind == NodeBank && nodes[j].Kind == NodeBank {
				t.interbank = append(t.interbank, len(t.Edges)-1)
			}
		}
	}
	return t
}

// Density returns actual edges over the maximum possible for the node set.
func (t *Topology) Density() float64 {
	n := len(t.Nodes)
	if n < 2 {
		return 0
	}
	maxEdges := float64(n*(n-1)) / 2
	return float64(len(t.Edges)) / maxEdges
}

// Degree returns a node's edge count, fixed at generation.
func (t *Topology) Degree(node int) int {
	return t.degrees[node]
}

// InterbankEdgeCount returns how many edges join two commercial banks.
func (t *Topology) InterbankEdgeCount() int {
	return len(t.interbank)
}

// AvgInterbankWeight returns the mean weight over interbank edges, or 1.0
// when no interbank edge exists.
func (t *Topology) AvgInterbankWeight() float64 {
	if len(t.interbank) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, idx := range t.interbank {
		sum += t.Edges[idx].Weight
	}
	return sum / float64(len(t.interbank))
}

// WeakenInterbank reduces interbank edge weights once adoption strictly
// exceeds the configured threshold: CBDC settlement substitutes for
// interbank flows. Weights floor at MinEdgeWeight; edges are weakened, not
// removed. Returns the number of edges touched.
func (t *Topology) WeakenInterbank(adoptionRate float64, cfg config.NetworkConfig) int {
	if adoptionRate <= cfg.WeakenThreshold {
		return 0
	}
	reduction := (adoptionRate - cfg.WeakenThreshold) * cfg.WeakenRate
	touched := 0
	for _, idx := range t.interbank {
		e := &t.Edges[idx]
		if e.Weight <= cfg.MinEdgeWeight {
			continue
		}
		e.Weight -= reduction
		if e.Weight < cfg.MinEdgeWeight {
			e.Weight = cfg.MinEdgeWeight
		}
		touched++
	}
	return touched
}
