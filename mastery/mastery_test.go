package mastery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/btarena/agent"
	"github.com/nathoo/btarena/engine/parser"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

const attackTree = `root :
    selector :
        task : Attack()
`

const strikeTree = `root :
    selector :
        sequence :
            condition : HasTP(30)
            task : PowerStrike()
        task : Attack()
`

func onlyMove(id types.ActionID, dmg int) (map[types.ActionID]types.ActionSpec, []types.PhaseDef) {
	moves := map[types.ActionID]types.ActionSpec{
		id: {ID: id, Element: types.Neutral, Damage: types.DamageRange{Min: dmg, Max: dmg}},
	}
	return moves, []types.PhaseDef{{Moves: []types.WeightedMove{{Move: id, Weight: 1}}}}
}

// testDefs has one enemy the attack tree always beats, one it never beats,
// and one it beats about 60% of the time.
func testDefs() *state.Defs {
	actions := map[types.ActionID]types.ActionSpec{}
	for _, id := range types.PlayerActions {
		actions[id] = types.ActionSpec{ID: id, Element: types.Neutral}
	}
	actions[types.Attack] = types.ActionSpec{ID: types.Attack, Element: types.Neutral, Damage: types.DamageRange{Min: 13, Max: 17}}
	actions[types.PowerStrike] = types.ActionSpec{ID: types.PowerStrike, Element: types.Neutral,
		Cost: types.Cost{Resource: types.TP, Amount: 30}, Damage: types.DamageRange{Min: 42, Max: 48}}

	idle, idlePhases := onlyMove("Idle", 0)
	crush, crushPhases := onlyMove("Crush", 200)
	bite, bitePhases := onlyMove("Bite", 55)

	return &state.Defs{
		Game:    types.GameDef{Title: "test", TurnLimit: 35},
		Player:  types.PlayerDef{HP: 100, MP: 100, MaxMP: 100, TP: 0, MaxTP: 100},
		Actions: actions,
		Archetypes: map[string]types.ArchetypeDef{
			"Dummy": {ID: "Dummy", Name: "Dummy", HP: 10, Element: types.Neutral, Moves: idle, Phases: idlePhases},
			"Wall":  {ID: "Wall", Name: "Wall", HP: 100000, Element: types.Neutral, Moves: crush, Phases: crushPhases},
			"Coin":  {ID: "Coin", Name: "Coin", HP: 30, Element: types.Neutral, Moves: bite, Phases: bitePhases},
		},
	}
}

func quietLogger() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig(iterations int) Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = iterations
	cfg.Seed = 42
	return cfg
}

func record(t *testing.T, res *Result, archetype string) types.MasteryRecord {
	t.Helper()
	for _, r := range res.Records {
		if r.Archetype == archetype {
			return r
		}
	}
	t.Fatalf("no record for %s", archetype)
	return types.MasteryRecord{}
}

func TestRun_MastersBeatableEnemy(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(10), quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Dummy"})
	require.NoError(t, err)

	require.Len(t, res.History, 1, "the pool empties after the first iteration")
	h := res.History[0]
	assert.Equal(t, types.PlayerVictory, h.Victor)
	assert.Equal(t, 5, h.ValidationWins)
	assert.True(t, h.Mastered)
	assert.Equal(t, 1.0, h.Score)

	rec := record(t, res, "Dummy")
	assert.True(t, rec.Mastered)
	assert.Equal(t, 5, rec.Wins)
	assert.Equal(t, 6, rec.Battles)
	assert.True(t, res.AllMastered())
	assert.Empty(t, res.State.Pool)
}

func TestRun_UnbeatableNeverMastered(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(4), quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Wall"})
	require.NoError(t, err)

	require.Len(t, res.History, 4)
	for _, h := range res.History {
		assert.Equal(t, types.EnemyVictory, h.Victor)
		assert.Zero(t, h.ValidationRuns, "losses run no validation battles")
		assert.False(t, h.Mastered)
	}
	rec := record(t, res, "Wall")
	assert.False(t, rec.Mastered)
	assert.Zero(t, rec.Wins)
	assert.Equal(t, 4, rec.Attempts)
	assert.False(t, res.AllMastered())
}

// Mastered iff the triggering battle and all validation battles were won.
func TestRun_MasteryLaw(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		cfg := testConfig(25)
		cfg.Seed = seed
		s := New(testDefs(), nil, nil, cfg, quietLogger())

		res, err := s.Run(context.Background(), attackTree, []string{"Coin"})
		require.NoError(t, err)

		for i, h := range res.History {
			want := h.Victor == types.PlayerVictory && h.ValidationWins == cfg.ValidationBattles
			assert.Equal(t, want, h.Mastered, "seed %d iteration %d", seed, h.Iteration)
			if h.Victor != types.PlayerVictory {
				assert.Zero(t, h.ValidationRuns)
			}
			if h.Mastered {
				assert.Equal(t, len(res.History)-1, i, "a mastered archetype leaves the pool")
			}
		}

		rec := record(t, res, "Coin")
		if rec.Mastered {
			assert.Equal(t, cfg.ValidationBattles, rec.Wins)
		} else {
			assert.Zero(t, rec.Wins, "a failed window discards the streak")
			assert.Len(t, res.History, cfg.MaxIterations)
		}
	}
}

func TestRun_InitialTreeMustParse(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(5), quietLogger())

	res, err := s.Run(context.Background(), "root\n    task : Attack()\n", nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, parser.ErrInvalidTree)
}

func TestRun_UnknownArchetype(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(5), quietLogger())
	_, err := s.Run(context.Background(), attackTree, []string{"Nobody"})
	assert.ErrorContains(t, err, "unknown archetype")
}

func TestRun_EmptyPoolMeansAll(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(1), quietLogger())
	res, err := s.Run(context.Background(), attackTree, nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
}

func TestRun_BadCandidateKeepsTree(t *testing.T) {
	// Missing colon after root.
	bad := "root\n    selector :\n        task : Defend()\n"
	mock := agent.NewMock(bad)
	s := New(testDefs(), mock, mock, testConfig(3), quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Wall"})
	require.NoError(t, err, "a bad candidate never halts the curriculum")

	require.Len(t, res.History, 3)
	first := res.History[0]
	assert.Contains(t, first.RejectedError, "line 1")
	assert.Equal(t, 1, first.Stagnation)
	assert.Zero(t, first.Generation)
	assert.Equal(t, attackTree, res.Source)
	assert.Equal(t, 1, res.History[2].Stagnation, "stagnation stays visible")
	assert.Equal(t, 2, mock.Critiques(), "no critique after the final iteration")
}

func TestRun_AcceptsCandidate(t *testing.T) {
	mock := agent.NewMock(strikeTree)
	s := New(testDefs(), mock, mock, testConfig(2), quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Wall"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.History[0].Generation)
	assert.Zero(t, res.History[0].Stagnation)
	assert.Empty(t, res.History[0].RejectedError)
	assert.Equal(t, strikeTree, res.Source)
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestRun_GeneratorErrorCountsAsStagnation(t *testing.T) {
	s := New(testDefs(), nil, failingGenerator{}, testConfig(3), quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Wall"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.History[1].Stagnation)
	assert.Contains(t, res.History[1].RejectedError, "model unavailable")
	assert.Equal(t, attackTree, res.Source)
}

func TestRun_RollbackToBest(t *testing.T) {
	mock := agent.NewMock(strikeTree)
	cfg := testConfig(4)
	cfg.RollbackAfter = 2
	s := New(testDefs(), mock, mock, cfg, quietLogger())

	res, err := s.Run(context.Background(), attackTree, []string{"Wall"})
	require.NoError(t, err)

	// Every battle is lost, so the first tree stays best and the accepted
	// candidate is reverted after two iterations without improvement.
	require.Len(t, res.History, 4)
	assert.False(t, res.History[1].RolledBack)
	assert.True(t, res.History[2].RolledBack)
	assert.Equal(t, attackTree, res.Source)
	assert.Equal(t, attackTree, res.BestSource)
}

func TestRun_DeterministicAcrossParallelism(t *testing.T) {
	run := func(parallel int) []types.IterationRecord {
		cfg := testConfig(12)
		cfg.Parallel = parallel
		s := New(testDefs(), nil, nil, cfg, quietLogger())
		res, err := s.Run(context.Background(), attackTree, []string{"Coin", "Wall"})
		require.NoError(t, err)
		return res.History
	}
	assert.Equal(t, run(1), run(4))
}

func TestResume_MatchesUninterruptedRun(t *testing.T) {
	pool := []string{"Coin", "Wall"}
	// A long validation window keeps Coin in the pool.
	cfg := func(iterations int) Config {
		c := testConfig(iterations)
		c.ValidationBattles = 20
		return c
	}

	full, err := New(testDefs(), nil, nil, cfg(8), quietLogger()).
		Run(context.Background(), attackTree, pool)
	require.NoError(t, err)

	partial, err := New(testDefs(), nil, nil, cfg(3), quietLogger()).
		Run(context.Background(), attackTree, pool)
	require.NoError(t, err)
	require.Len(t, partial.History, 3)

	resumed, err := New(testDefs(), nil, nil, cfg(8), quietLogger()).
		Resume(context.Background(), partial.State)
	require.NoError(t, err)

	assert.Equal(t, partial.RunID, resumed.RunID)
	assert.Equal(t, full.History, resumed.History)
	assert.Equal(t, full.Records, resumed.Records)
}

func TestResume_RejectsBadState(t *testing.T) {
	s := New(testDefs(), nil, nil, testConfig(3), quietLogger())

	_, err := s.Resume(context.Background(), State{Version: 99, Source: attackTree})
	assert.ErrorContains(t, err, "version")

	_, err = s.Resume(context.Background(), State{Version: StateVersion, Source: "nonsense"})
	assert.Error(t, err)

	_, err = s.Resume(context.Background(), State{Version: StateVersion, Source: attackTree, Pool: []string{"Ghost"}})
	assert.ErrorContains(t, err, "Ghost")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(testDefs(), nil, nil, testConfig(5), quietLogger())
	res, err := s.Run(ctx, attackTree, []string{"Wall"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.History)
	assert.Equal(t, []string{"Wall"}, res.State.Pool)
}

type memRecorder struct {
	mu         sync.Mutex
	battles    int
	validation int
	iterations []types.IterationRecord
}

func (m *memRecorder) RecordBattle(_ context.Context, _ string, _ int, _ types.BattleOutcome, validation bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battles++
	if validation {
		m.validation++
	}
	return nil
}

func (m *memRecorder) RecordIteration(_ context.Context, _ string, rec types.IterationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iterations = append(m.iterations, rec)
	return nil
}

func TestRun_Recorder(t *testing.T) {
	rec := &memRecorder{}
	s := New(testDefs(), nil, nil, testConfig(5), quietLogger(), WithRecorder(rec))

	res, err := s.Run(context.Background(), attackTree, []string{"Dummy"})
	require.NoError(t, err)

	assert.Equal(t, 6, rec.battles)
	assert.Equal(t, 5, rec.validation)
	assert.Equal(t, res.History, rec.iterations)
}
