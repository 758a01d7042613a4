// Package api provides the HTTP API for observing a live simulation.
// All endpoints are GET and read-only; stepping is driven by the owner
// through Advance, never over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/talgya/cbdcsim/internal/engine"
	"github.com/talgya/cbdcsim/internal/persistence"
)

// Server serves simulation state over HTTP.
type Server struct {
	Sim  *engine.Simulation
	DB   *persistence.DB // optional; enables /api/v1/runs
	Port int

	mu      sync.RWMutex
	history []engine.Snapshot
}

// Advance steps the simulation once under the server lock and records the
// snapshot in the metrics history.
func (s *Server) Advance() (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.Sim.Step()
	if err != nil {
		return engine.Snapshot{}, err
	}
	s.history = append(s.history, snap)
	return snap, nil
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/banks", s.handleBanks)
	mux.HandleFunc("/api/v1/consumers", s.handleConsumers)
	mux.HandleFunc("/api/v1/merchants", s.handleMerchants)
	mux.HandleFunc("/api/v1/network", s.handleNetwork)
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.Sim.LastSnapshot()
	status := map[string]any{
		"step":            s.Sim.CurrentStep(),
		"cbdc_introduced": snap.CBDCIntroduced,
		"adoption_rate":   snap.AdoptionRate,
		"adopters":        snap.Adopters,
		"cbdc_rate":       snap.CBDCRate,
		"outstanding":     snap.CBDCOutstanding,
		"total_deposits":  snap.TotalDeposits,
		"systemic_risk":   snap.SystemicRisk,
		"banking_health":  snap.BankingHealth,
		"intervention":    snap.Intervention,
		"digital_runs":    snap.DigitalRuns,
		"consumers":       len(s.Sim.Consumers),
		"banks":           len(s.Sim.Banks),
		"merchants":       len(s.Sim.Merchants),
	}
	writeJSON(w, status)
}

func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	type bankSummary struct {
		ID          int     `json:"id"`
		Size        string  `json:"size"`
		Deposits    float64 `json:"deposits"`
		Loans       float64 `json:"loans"`
		DepositRate float64 `json:"deposit_rate"`
		Centrality  float64 `json:"centrality"`
		Stress      float64 `json:"stress"`
		Retention   float64 `json:"retention"`
		DigitalRun  bool    `json:"digital_run"`
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bankSummary, 0, len(s.Sim.Banks))
	for _, b := range s.Sim.Banks {
		result = append(result, bankSummary{
			ID:          b.ID,
			Size:        b.Size.String(),
			Deposits:    b.Deposits,
			Loans:       b.Loans,
			DepositRate: b.DepositRate,
			Centrality:  b.Centrality.Composite(),
			Stress:      b.Stress,
			Retention:   b.RetentionRate,
			DigitalRun:  b.DigitalRun,
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleConsumers(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wealth, deposits, cbdc float64
	adopters, departed := 0, 0
	for _, c := range s.Sim.Consumers {
		wealth += c.Wealth
		deposits += c.Deposits
		cbdc += c.CBDC
		if c.Adopter {
			adopters++
		}
		if !c.Retained {
			departed++
		}
	}

	writeJSON(w, map[string]any{
		"count":          len(s.Sim.Consumers),
		"adopters":       adopters,
		"departed":       departed,
		"total_wealth":   wealth,
		"total_deposits": deposits,
		"total_cbdc":     cbdc,
	})
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	type merchantSummary struct {
		ID           int     `json:"id"`
		Size         string  `json:"size"`
		Business     string  `json:"business"`
		AcceptsCBDC  bool    `json:"accepts_cbdc"`
		TechAdoption float64 `json:"tech_adoption"`
		TotalVolume  float64 `json:"total_volume"`
		CBDCShare    float64 `json:"cbdc_share"`
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]merchantSummary, 0, len(s.Sim.Merchants))
	for _, m := range s.Sim.Merchants {
		result = append(result, merchantSummary{
			ID:           m.ID,
			Size:         m.Size.String(),
			Business:     m.Business.String(),
			AcceptsCBDC:  m.AcceptsCBDC,
			TechAdoption: m.TechAdoption,
			TotalVolume:  m.TotalVolume,
			CBDCShare:    m.CBDCShare(),
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.Sim.Topology
	writeJSON(w, map[string]any{
		"nodes":                len(t.Nodes),
		"edges":                len(t.Edges),
		"density":              t.Density(),
		"interbank_edges":      t.InterbankEdgeCount(),
		"avg_interbank_weight": t.AvgInterbankWeight(),
	})
}

// handleMetrics returns the recorded snapshot history. Use ?from=N to skip
// steps already seen.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	from := 0
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]engine.Snapshot, 0, len(s.history))
	for _, snap := range s.history {
		if snap.Step >= from {
			result = append(result, snap)
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run storage not configured", http.StatusNotFound)
		return
	}
	runs, err := s.DB.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
