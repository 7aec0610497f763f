// Package save implements JSON checkpoints of a curriculum run.
package save

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/btarena/mastery"
	"github.com/nathoo/btarena/types"
)

// Checkpoint is the JSON-serializable checkpoint format.
type Checkpoint struct {
	Game  string        `json:"game,omitempty"`
	State mastery.State `json:"state"`
}

// Save serializes a run's loop state to indented JSON bytes.
func Save(st mastery.State) ([]byte, error) {
	return SaveGame("", st)
}

// SaveGame is Save with the content title recorded alongside the state.
func SaveGame(game string, st mastery.State) ([]byte, error) {
	if st.Version == 0 {
		st.Version = mastery.StateVersion
	}
	return json.MarshalIndent(Checkpoint{Game: game, State: st}, "", "  ")
}

// Load deserializes checkpoint bytes.
func Load(data []byte) (mastery.State, error) {
	cp, err := LoadCheckpoint(data)
	if err != nil {
		return mastery.State{}, err
	}
	return cp.State, nil
}

// LoadCheckpoint deserializes checkpoint bytes, keeping the game title.
func LoadCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	st := &cp.State
	if st.Version != mastery.StateVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", st.Version)
	}
	// Collections are never nil after load.
	if st.Pool == nil {
		st.Pool = []string{}
	}
	if st.Records == nil {
		st.Records = []types.MasteryRecord{}
	}
	if st.History == nil {
		st.History = []types.IterationRecord{}
	}
	return &cp, nil
}
