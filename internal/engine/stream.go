// Run streams — lazy step-by-step execution of a fixed-length run. Steps
// execute only when pulled, and a stream is never restartable: once drained
// or failed it stays that way.
package engine

import (
	"errors"

	"github.com/talgya/cbdcsim/internal/config"
)

// ErrDone reports a fully drained stream.
var ErrDone = errors.New("engine: run complete")

// Stream pulls snapshots from a live simulation one step at a time.
type Stream struct {
	sim     *Simulation
	steps   int
	done    int
	failed  error
	drained bool
}

// Run constructs a world from cfg and returns a lazy stream over the given
// number of steps. No step executes until Next is called.
func Run(cfg config.Config, steps int) (*Stream, error) {
	if steps < 0 {
		return nil, &config.ConfigError{Field: "steps", Value: steps, Reason: "must be non-negative"}
	}
	sim, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Stream{sim: sim, steps: steps}, nil
}

// Next executes one step and returns its snapshot. After the configured
// length it returns ErrDone; after a failed step it keeps returning that
// step's error.
func (st *Stream) Next() (Snapshot, error) {
	if st.failed != nil {
		return Snapshot{}, st.failed
	}
	if st.drained || st.done >= st.steps {
		st.drained = true
		return Snapshot{}, ErrDone
	}
	snap, err := st.sim.Step()
	if err != nil {
		st.failed = err
		return Snapshot{}, err
	}
	st.done++
	return snap, nil
}

// Collect drains the remaining steps eagerly, returning every snapshot
// produced before completion or the first error.
func (st *Stream) Collect() ([]Snapshot, error) {
	var out []Snapshot
	for {
		snap, err := st.Next()
		if errors.Is(err, ErrDone) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, snap)
	}
}

// Simulation exposes the underlying world for inspection between pulls.
func (st *Stream) Simulation() *Simulation {
	return st.sim
}
