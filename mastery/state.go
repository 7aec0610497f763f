package mastery

import (
	"github.com/nathoo/btarena/types"
)

// StateVersion is the checkpoint format version.
const StateVersion = 1

// State is the explicit loop state of a curriculum run. It is everything
// needed to resume a run exactly where it stopped.
type State struct {
	Version   int    `json:"version"`
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"` // iterations completed

	Source     string  `json:"source"`      // current tree
	BestSource string  `json:"best_source"` // best-scoring tree so far
	BestScore  float64 `json:"best_score"`
	Generation int     `json:"generation"`

	SinceImprovement int `json:"since_improvement"`
	Stagnation       int `json:"stagnation"`

	Pool    []string                `json:"pool"` // active archetypes
	Records []types.MasteryRecord   `json:"records"`
	History []types.IterationRecord `json:"history"`

	Seed        int64 `json:"seed"`
	RNGPosition int64 `json:"rng_position"`
}

// Result is what a finished (or interrupted) run reports.
type Result struct {
	RunID      string
	Records    []types.MasteryRecord
	History    []types.IterationRecord
	Source     string // tree in use when the run stopped
	BestSource string
	State      State // checkpointable
}

// AllMastered reports whether every archetype was retired.
func (r *Result) AllMastered() bool {
	for _, rec := range r.Records {
		if !rec.Mastered {
			return false
		}
	}
	return len(r.Records) > 0
}

func (st *State) record(archetype string) *types.MasteryRecord {
	for i := range st.Records {
		if st.Records[i].Archetype == archetype {
			return &st.Records[i]
		}
	}
	st.Records = append(st.Records, types.MasteryRecord{Archetype: archetype})
	return &st.Records[len(st.Records)-1]
}

func (st *State) retire(archetype string) {
	pool := st.Pool[:0]
	for _, id := range st.Pool {
		if id != archetype {
			pool = append(pool, id)
		}
	}
	st.Pool = pool
}

func (st *State) clone() State {
	c := *st
	c.Pool = append([]string(nil), st.Pool...)
	c.Records = append([]types.MasteryRecord(nil), st.Records...)
	c.History = append([]types.IterationRecord(nil), st.History...)
	return c
}
