// Package mastery runs the Enemy Mastery curriculum: repeated battles of one
// behaviour tree against a pool of enemy archetypes, retiring each archetype
// once the tree beats it in a clean window of validation battles.
package mastery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/btarena/agent"
	"github.com/nathoo/btarena/engine"
	"github.com/nathoo/btarena/engine/behavior"
	"github.com/nathoo/btarena/engine/parser"
	"github.com/nathoo/btarena/engine/registry"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// Critic reads a battle log and the tree that produced it and returns feedback.
type Critic interface {
	Critique(ctx context.Context, log, src string) (string, error)
}

// Generator proposes a new tree source from the current one and feedback.
type Generator interface {
	Generate(ctx context.Context, src, feedback string) (string, error)
}

// Recorder receives every battle and iteration of a run.
type Recorder interface {
	RecordBattle(ctx context.Context, runID string, iteration int, outcome types.BattleOutcome, validation bool) error
	RecordIteration(ctx context.Context, runID string, rec types.IterationRecord) error
}

// Config bounds a curriculum run.
type Config struct {
	MaxIterations     int
	ValidationBattles int // battles that must all be won after a win
	RollbackAfter     int // iterations without improvement before reverting to the best tree
	Parallel          int // concurrent validation battles
	Seed              int64
}

// DefaultConfig returns the standard curriculum settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     50,
		ValidationBattles: 5,
		RollbackAfter:     5,
		Parallel:          4,
		Seed:              1,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder sends battles and iterations to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.rec = r }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler runs curricula against a fixed set of definitions.
type Scheduler struct {
	defs   *state.Defs
	reg    *registry.Registry
	critic Critic
	gen    Generator
	cfg    Config
	rec    Recorder
	log    *slog.Logger
}

// New creates a Scheduler. critic and gen may be nil, in which case the tree
// never changes during a run.
func New(defs *state.Defs, critic Critic, gen Generator, cfg Config, opts ...Option) *Scheduler {
	if cfg.ValidationBattles <= 0 {
		cfg.ValidationBattles = 5
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	s := &Scheduler{
		defs:   defs,
		reg:    registry.New(defs),
		critic: critic,
		gen:    gen,
		cfg:    cfg,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts a curriculum with src against pool. An empty pool means every
// archetype. A src that does not parse is returned as an error before any
// battle runs. When ctx is cancelled the partial result is returned together
// with the context error.
func (s *Scheduler) Run(ctx context.Context, src string, pool []string) (*Result, error) {
	if _, err := parser.Parse(src, s.reg); err != nil {
		return nil, fmt.Errorf("initial tree: %w", err)
	}
	if len(pool) == 0 {
		pool = s.defs.ArchetypeIDs()
	}
	st := State{
		Version:    StateVersion,
		RunID:      uuid.NewString(),
		Source:     src,
		BestSource: src,
		BestScore:  -1,
		Seed:       s.cfg.Seed,
	}
	for _, id := range pool {
		if _, ok := s.defs.Archetypes[id]; !ok {
			return nil, fmt.Errorf("unknown archetype %q", id)
		}
		if slices.Contains(st.Pool, id) {
			continue
		}
		st.Pool = append(st.Pool, id)
		st.record(id)
	}
	return s.loop(ctx, st)
}

// Resume continues a run from a checkpoint.
func (s *Scheduler) Resume(ctx context.Context, st State) (*Result, error) {
	if st.Version != StateVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", st.Version)
	}
	if _, err := parser.Parse(st.Source, s.reg); err != nil {
		return nil, fmt.Errorf("checkpoint tree: %w", err)
	}
	for _, id := range st.Pool {
		if _, ok := s.defs.Archetypes[id]; !ok {
			return nil, fmt.Errorf("checkpoint names unknown archetype %q", id)
		}
	}
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	return s.loop(ctx, st.clone())
}

func (s *Scheduler) loop(ctx context.Context, st State) (*Result, error) {
	rng := engine.RestoreRNG(st.Seed, st.RNGPosition)
	tree, err := parser.Parse(st.Source, s.reg)
	if err != nil {
		return nil, err
	}

	for len(st.Pool) > 0 && st.Iteration < s.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return s.result(st), err
		}
		// An interrupted iteration is discarded so the result resumes cleanly.
		before := st.clone()
		tree, err = s.iterate(ctx, &st, tree, rng)
		if err != nil {
			return s.result(before), err
		}
	}
	return s.result(st), nil
}

// iterate runs one curriculum iteration and returns the tree for the next.
func (s *Scheduler) iterate(ctx context.Context, st *State, tree *types.Node, rng *engine.RNG) (*types.Node, error) {
	st.Iteration++
	n := st.Iteration
	archetype := st.Pool[rng.Intn(len(st.Pool))]
	seed := rng.Int63()
	log := s.log.With("run", st.RunID, "iteration", n, "archetype", archetype)
	log.Info("iteration start", "generation", st.Generation)

	rec := st.record(archetype)
	rec.Attempts++
	rec.Battles++

	trigger, err := s.battle(tree, archetype, seed)
	if err != nil {
		return tree, err
	}
	if err := s.recordBattle(ctx, st.RunID, n, trigger, false); err != nil {
		return tree, err
	}

	ir := types.IterationRecord{
		Iteration: n,
		Archetype: archetype,
		Victor:    trigger.Victor,
		Turns:     trigger.Turns,
	}
	wins, fought := 0, 1

	if trigger.Victor == types.PlayerVictory {
		wins++
		vw, err := s.validate(ctx, st, tree, archetype, rng)
		if err != nil {
			return tree, err
		}
		ir.ValidationWins = vw
		ir.ValidationRuns = s.cfg.ValidationBattles
		wins += vw
		fought += s.cfg.ValidationBattles

		rec = st.record(archetype)
		if vw == s.cfg.ValidationBattles {
			rec.Mastered = true
			ir.Mastered = true
			st.retire(archetype)
			log.Info("archetype mastered", "battles", rec.Battles)
		} else {
			rec.Wins = 0
		}
	} else {
		rec.Wins = 0
	}

	ir.Score = float64(wins) / float64(fought)
	if ir.Score > st.BestScore {
		st.BestScore = ir.Score
		st.BestSource = st.Source
		st.SinceImprovement = 0
	} else {
		st.SinceImprovement++
	}

	if s.cfg.RollbackAfter > 0 && st.SinceImprovement >= s.cfg.RollbackAfter && st.Source != st.BestSource {
		best, err := parser.Parse(st.BestSource, s.reg)
		if err == nil {
			tree = best
			st.Source = st.BestSource
			ir.RolledBack = true
			log.Info("rolled back to best tree", "best_score", st.BestScore)
		}
		st.SinceImprovement = 0
	}

	if len(st.Pool) > 0 && n < s.cfg.MaxIterations {
		next, err := s.regenerate(ctx, st, trigger)
		switch {
		case err != nil && ctx.Err() != nil:
			return tree, ctx.Err()
		case err != nil:
			st.Stagnation++
			ir.RejectedError = err.Error()
			log.Warn("candidate rejected", "err", err, "stagnation", st.Stagnation)
		case next != nil:
			tree = next
			st.Generation++
			st.Stagnation = 0
		}
	}

	ir.Generation = st.Generation
	ir.Stagnation = st.Stagnation
	st.History = append(st.History, ir)
	st.RNGPosition = rng.Position()

	log.Info("iteration end",
		"victor", ir.Victor.String(),
		"turns", ir.Turns,
		"wins", ir.ValidationWins,
		"score", ir.Score,
	)
	if s.rec != nil {
		if err := s.rec.RecordIteration(ctx, st.RunID, ir); err != nil {
			return tree, fmt.Errorf("recording iteration %d: %w", n, err)
		}
	}
	return tree, nil
}

// validate runs the validation window and returns the number of wins.
// Seeds are drawn before fan-out so the outcome does not depend on
// goroutine scheduling.
func (s *Scheduler) validate(ctx context.Context, st *State, tree *types.Node, archetype string, rng *engine.RNG) (int, error) {
	seeds := make([]int64, s.cfg.ValidationBattles)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	outcomes := make([]types.BattleOutcome, len(seeds))

	var mu sync.Mutex
	rec := st.record(archetype)
	wins := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallel)
	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.battle(tree, archetype, seed)
			if err != nil {
				return err
			}
			outcomes[i] = out

			mu.Lock()
			defer mu.Unlock()
			rec.Battles++
			if out.Victor == types.PlayerVictory {
				wins++
				rec.Wins = wins
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for _, out := range outcomes {
		if err := s.recordBattle(ctx, st.RunID, st.Iteration, out, true); err != nil {
			return 0, err
		}
	}
	return wins, nil
}

// battle plays one battle with a fresh executor. Executors are not shared
// between goroutines.
func (s *Scheduler) battle(tree *types.Node, archetype string, seed int64) (types.BattleOutcome, error) {
	policy := behavior.NewPolicy(tree, s.reg)
	out, err := engine.RunBattle(s.defs, archetype, policy, seed)
	if err != nil {
		return out, fmt.Errorf("battle against %s: %w", archetype, err)
	}
	return out, nil
}

// regenerate asks the critic and generator for a new tree. It returns nil
// without error when there is nothing to ask.
func (s *Scheduler) regenerate(ctx context.Context, st *State, trigger types.BattleOutcome) (*types.Node, error) {
	if s.gen == nil {
		return nil, nil
	}
	var feedback string
	if s.critic != nil {
		fb, err := s.critic.Critique(ctx, agent.FormatLog(trigger), st.Source)
		if err != nil {
			return nil, fmt.Errorf("critic: %w", err)
		}
		feedback = fb
	}
	candidate, err := s.gen.Generate(ctx, st.Source, feedback)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	if candidate == st.Source {
		return nil, nil
	}
	tree, err := parser.Parse(candidate, s.reg)
	if err != nil {
		return nil, err
	}
	st.Source = candidate
	return tree, nil
}

func (s *Scheduler) recordBattle(ctx context.Context, runID string, iteration int, out types.BattleOutcome, validation bool) error {
	if s.rec == nil {
		return nil
	}
	if err := s.rec.RecordBattle(ctx, runID, iteration, out, validation); err != nil {
		return fmt.Errorf("recording battle: %w", err)
	}
	return nil
}

func (s *Scheduler) result(st State) *Result {
	snap := st.clone()
	return &Result{
		RunID:      st.RunID,
		Records:    st.Records,
		History:    st.History,
		Source:     st.Source,
		BestSource: st.BestSource,
		State:      snap,
	}
}
