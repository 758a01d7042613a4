package persistence_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/talgya/cbdcsim/internal/config"
	"github.com/talgya/cbdcsim/internal/engine"
	"github.com/talgya/cbdcsim/internal/persistence"
)

func openTestDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRunRoundTrip records a small run and restores both the config and the
// full metrics series byte-for-byte.
func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)

	cfg := config.Default()
	cfg.Consumers.Count = 30
	cfg.Banks.Count = 4
	cfg.CentralBank.IntroductionStep = 2

	stream, err := engine.Run(cfg, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snaps, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	id, err := db.SaveRun(cfg, snaps, stream.Simulation().Banks)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	gotCfg, err := db.LoadConfig(id)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(gotCfg, cfg) {
		t.Errorf("config round trip mismatch:\n%+v\n%+v", gotCfg, cfg)
	}

	gotSnaps, err := db.LoadSnapshots(id)
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(gotSnaps) != len(snaps) {
		t.Fatalf("restored %d snapshots, want %d", len(gotSnaps), len(snaps))
	}
	for i := range snaps {
		if !reflect.DeepEqual(gotSnaps[i], snaps[i]) {
			t.Fatalf("snapshot %d mismatch:\n%+v\n%+v", i, gotSnaps[i], snaps[i])
		}
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	cfg := config.Default()
	cfg.Consumers.Count = 10
	cfg.Banks.Count = 2

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := db.CreateRun(cfg, 5)
		if err != nil {
			t.Fatalf("CreateRun %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	runs, err := db.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("listed %d runs, want 3", len(runs))
	}
	seen := map[string]bool{}
	for _, r := range runs {
		if r.Seed != cfg.Seed || r.Steps != 5 {
			t.Errorf("run %s stored seed=%d steps=%d", r.ID, r.Seed, r.Steps)
		}
		seen[r.ID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("run %s missing from listing", id)
		}
	}
}

func TestLoadMissingRun(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadConfig("no-such-run"); err == nil {
		t.Error("loading a missing run succeeded")
	}
}
