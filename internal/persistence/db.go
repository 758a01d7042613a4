// Package persistence provides SQLite-based run storage: the full config of
// every recorded run plus its per-step metrics series, queryable afterwards
// for replay and comparison.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/cbdcsim/internal/agents"
	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/engine"
)

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		adoption_rate REAL NOT NULL,
		cbdc_outstanding REAL NOT NULL,
		total_deposits REAL NOT NULL,
		cbdc_rate REAL NOT NULL,
		large_bank_centrality REAL NOT NULL,
		small_bank_centrality REAL NOT NULL,
		systemic_risk REAL NOT NULL,
		payload_json TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS final_banks (
		run_id TEXT NOT NULL,
		bank_id INTEGER NOT NULL,
		size TEXT NOT NULL,
		deposits REAL NOT NULL,
		retention_rate REAL NOT NULL,
		stress REAL NOT NULL,
		centrality REAL NOT NULL,
		PRIMARY KEY (run_id, bank_id)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is one stored run's identity row.
type RunRecord struct {
	ID        string `db:"id"`
	Seed      int64  `db:"seed"`
	Steps     int    `db:"steps"`
	CreatedAt string `db:"created_at"`
}

// CreateRun registers a new run and returns its generated ID.
func (db *DB) CreateRun(cfg config.Config, steps int) (string, error) {
	id := uuid.NewString()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, seed, steps, created_at, config_json) VALUES (?, ?, ?, ?, ?)",
		id, cfg.Seed, steps, time.Now().UTC().Format(time.RFC3339), string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveSnapshots appends a run's metrics series in one transaction.
func (db *DB) SaveSnapshots(runID string, snaps []engine.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO snapshots
		(run_id, step, adoption_rate, cbdc_outstanding, total_deposits, cbdc_rate,
		 large_bank_centrality, small_bank_centrality, systemic_risk, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snaps {
		payload, _ := json.Marshal(s)
		_, err := stmt.Exec(
			runID, s.Step, s.AdoptionRate, s.CBDCOutstanding, s.TotalDeposits,
			s.CBDCRate, s.LargeBankCentrality, s.SmallBankCentrality,
			s.SystemicRisk, string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot step %d: %w", s.Step, err)
		}
	}

	return tx.Commit()
}

// SaveFinalBanks records each bank's end-of-run position.
func (db *DB) SaveFinalBanks(runID string, banks []*agents.CommercialBank) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range banks {
		_, err := tx.Exec(`INSERT INTO final_banks
			(run_id, bank_id, size, deposits, retention_rate, stress, centrality)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, b.ID, b.Size.String(), b.Deposits, b.RetentionRate,
			b.Stress, b.Centrality.Composite(),
		)
		if err != nil {
			return fmt.Errorf("insert bank %d: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// SaveRun stores a completed run in full: identity, metrics series, and
// final bank positions.
func (db *DB) SaveRun(cfg config.Config, snaps []engine.Snapshot, banks []*agents.CommercialBank) (string, error) {
	slog.Info("saving run", "steps", len(snaps), "banks", len(banks))

	id, err := db.CreateRun(cfg, len(snaps))
	if err != nil {
		return "", err
	}
	if err := db.SaveSnapshots(id, snaps); err != nil {
		return "", fmt.Errorf("save snapshots: %w", err)
	}
	if err := db.SaveFinalBanks(id, banks); err != nil {
		return "", fmt.Errorf("save banks: %w", err)
	}

	slog.Info("run saved", "run_id", id)
	return id, nil
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns() ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs,
		"SELECT id, seed, steps, created_at FROM runs ORDER BY created_at DESC")
	return runs, err
}

// LoadConfig restores the exact config a run was recorded with.
func (db *DB) LoadConfig(runID string) (config.Config, error) {
	var cfgJSON string
	if err := db.conn.Get(&cfgJSON,
		"SELECT config_json FROM runs WHERE id = ?", runID); err != nil {
		return config.Config{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return config.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// LoadSnapshots restores a run's full metrics series in step order.
func (db *DB) LoadSnapshots(runID string) ([]engine.Snapshot, error) {
	var payloads []string
	err := db.conn.Select(&payloads,
		"SELECT payload_json FROM snapshots WHERE run_id = ? ORDER BY step", runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots %s: %w", runID, err)
	}

	snaps := make([]engine.Snapshot, 0, len(payloads))
	for _, p := range payloads {
		var s engine.Snapshot
		if err := json.Unmarshal([]byte(p), &s); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
