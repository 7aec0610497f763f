package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nathoo/btarena/agent"
	"github.com/nathoo/btarena/config"
	"github.com/nathoo/btarena/engine"
	"github.com/nathoo/btarena/engine/behavior"
	"github.com/nathoo/btarena/engine/parser"
	"github.com/nathoo/btarena/engine/registry"
	"github.com/nathoo/btarena/engine/save"
	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/mastery"
	"github.com/nathoo/btarena/types"
)

// Line is one line of command output.
type Line struct {
	Text   string
	System bool // meta output, shown as [text] in plain mode
}

// Reply is the output of one command.
type Reply struct {
	Lines []Line
	Quit  bool
}

func (r *Reply) print(format string, args ...any) {
	r.Lines = append(r.Lines, Line{Text: fmt.Sprintf(format, args...)})
}

func (r *Reply) system(format string, args ...any) {
	r.Lines = append(r.Lines, Line{Text: fmt.Sprintf(format, args...), System: true})
}

func (r *Reply) text(block string) {
	for _, l := range strings.Split(strings.TrimRight(block, "\n"), "\n") {
		r.Lines = append(r.Lines, Line{Text: l})
	}
}

// Session holds the current tree and dispatches arena commands. It is shared
// by the plain CLI and the TUI.
//
// Commands run one at a time, but Summary may be called from another
// goroutine while a command runs.
type Session struct {
	Defs      *state.Defs
	Config    config.Config
	Critic    mastery.Critic
	Generator mastery.Generator
	Recorder  mastery.Recorder
	Logger    *slog.Logger

	reg     *registry.Registry
	battles int

	// mu guards the fields below. The command goroutine is their only
	// writer, so it reads them without locking.
	mu         sync.RWMutex
	trace      bool
	source     string
	tree       *types.Node
	checkpoint *mastery.State // resumed by the next curriculum command
	last       *mastery.Result
}

// NewSession creates a session that starts with the tree in src.
func NewSession(defs *state.Defs, cfg config.Config, src string) (*Session, error) {
	s := &Session{
		Defs:   defs,
		Config: cfg,
		Logger: slog.Default(),
		reg:    registry.New(defs),
	}
	if err := s.SetTree(src); err != nil {
		return nil, err
	}
	return s, nil
}

// SetTree parses src and makes it the current tree. On error the current
// tree is kept.
func (s *Session) SetTree(src string) error {
	tree, err := parser.Parse(src, s.reg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.source, s.tree = src, tree
	s.mu.Unlock()
	return nil
}

// SetTrace turns per-turn trace output on or off.
func (s *Session) SetTrace(on bool) {
	s.mu.Lock()
	s.trace = on
	s.mu.Unlock()
}

// Source returns the current tree text.
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Execute runs one command line.
func (s *Session) Execute(ctx context.Context, input string) Reply {
	var r Reply
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return r
	}
	if strings.HasPrefix(input, "/") {
		s.meta(&r, input)
		return r
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "battle", "b":
		s.cmdBattle(&r, args)
	case "tree", "t":
		r.text(parser.Format(s.tree))
	case "load":
		s.cmdLoadTree(&r, args)
	case "enemies", "e":
		s.cmdEnemies(&r)
	case "vocab", "v":
		s.cmdVocab(&r)
	case "curriculum", "c":
		s.cmdCurriculum(ctx, &r, args)
	default:
		r.print("Unknown command %q. Type /help for available commands.", fields[0])
	}
	return r
}

func (s *Session) meta(r *Reply, input string) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		r.system("Goodbye.")
		r.Quit = true
	case "/save":
		s.cmdSave(r, arg)
	case "/load":
		s.cmdLoad(r, arg)
	case "/help":
		s.cmdHelp(r)
	case "/state":
		s.cmdState(r)
	case "/trace":
		s.SetTrace(!s.trace)
		if s.trace {
			r.system("Trace output enabled.")
		} else {
			r.system("Trace output disabled.")
		}
	default:
		r.system("Unknown command: %s. Type /help for available commands.", cmd)
	}
}

func (s *Session) cmdBattle(r *Reply, args []string) {
	if len(args) == 0 {
		r.print("Battle whom? Type enemies for the list.")
		return
	}
	archetype, ok := s.findArchetype(args[0])
	if !ok {
		r.print("No enemy called %q. Type enemies for the list.", args[0])
		return
	}
	seed := s.Config.Seed + int64(s.battles)
	if len(args) > 1 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			r.print("Seed must be an integer, got %q.", args[1])
			return
		}
		seed = n
	}
	s.battles++

	policy := behavior.NewPolicy(s.tree, s.reg)
	var traces [][]behavior.Step
	decider := engine.DeciderFunc(func(cs *types.CombatState) (types.ActionID, error) {
		action, err := policy.Decide(cs)
		traces = append(traces, policy.Last().Trace)
		return action, err
	})
	out, err := engine.RunBattle(s.Defs, archetype, decider, seed)
	if err != nil {
		r.system("Battle failed: %v", err)
		return
	}

	r.text(agent.FormatLog(out))
	if s.trace {
		for i, steps := range traces {
			r.system("[trace] turn %d: %d node(s)", i+1, len(steps))
			for _, st := range steps {
				r.system("[trace]   %s", st)
			}
		}
	}
	r.system("Seed %d.", seed)
}

func (s *Session) findArchetype(name string) (string, bool) {
	for _, id := range s.Defs.ArchetypeIDs() {
		if strings.EqualFold(id, name) || strings.EqualFold(s.Defs.Archetypes[id].Name, name) {
			return id, true
		}
	}
	return "", false
}

func (s *Session) cmdLoadTree(r *Reply, args []string) {
	if len(args) == 0 {
		r.print("Load which file?")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		r.system("Load failed: %v", err)
		return
	}
	if err := s.SetTree(string(data)); err != nil {
		r.system("Tree rejected, keeping the current one: %v", err)
		return
	}
	r.system("Tree loaded from %s.", args[0])
}

func (s *Session) cmdEnemies(r *Reply) {
	for _, id := range s.Defs.ArchetypeIDs() {
		a := s.Defs.Archetypes[id]
		r.print("%-14s %4d HP  %-9s %d move(s), %d phase(s)", id, a.HP, a.Element, len(a.Moves), len(a.Phases))
	}
}

func (s *Session) cmdVocab(r *Reply) {
	r.print("Conditions:")
	for _, name := range s.reg.ConditionNames() {
		r.print("  %s", name)
	}
	r.print("Tasks:")
	for _, name := range s.reg.TaskNames() {
		r.print("  %s", name)
	}
	var moves []string
	for _, id := range s.Defs.ArchetypeIDs() {
		for mv := range s.Defs.Archetypes[id].Moves {
			if !slices.Contains(moves, string(mv)) {
				moves = append(moves, string(mv))
			}
		}
	}
	slices.Sort(moves)
	r.print("Enemy moves: %s", strings.Join(moves, ", "))
}

func (s *Session) cmdCurriculum(ctx context.Context, r *Reply, args []string) {
	mc := s.Config.MasteryConfig()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			r.print("Iterations must be a positive integer, got %q.", args[0])
			return
		}
		mc.MaxIterations = n
	}

	opts := []mastery.Option{mastery.WithLogger(s.Logger)}
	if s.Recorder != nil {
		opts = append(opts, mastery.WithRecorder(s.Recorder))
	}
	// A resumed run's iteration bound counts from the checkpoint.
	if s.checkpoint != nil {
		mc.MaxIterations += s.checkpoint.Iteration
	}
	sched := mastery.New(s.Defs, s.Critic, s.Generator, mc, opts...)

	var (
		res *mastery.Result
		err error
	)
	if s.checkpoint != nil {
		res, err = sched.Resume(ctx, *s.checkpoint)
	} else {
		res, err = sched.Run(ctx, s.source, nil)
	}
	if res == nil {
		r.system("Curriculum failed: %v", err)
		return
	}
	s.mu.Lock()
	s.checkpoint = nil
	s.last = res
	s.mu.Unlock()
	if serr := s.SetTree(res.Source); serr != nil {
		r.system("Final tree rejected: %v", serr)
	}

	for _, ir := range res.History {
		line := fmt.Sprintf("#%-3d %-14s %-13s %2d turns", ir.Iteration, ir.Archetype, ir.Victor, ir.Turns)
		if ir.ValidationRuns > 0 {
			line += fmt.Sprintf("  validation %d/%d", ir.ValidationWins, ir.ValidationRuns)
		}
		if ir.Mastered {
			line += "  MASTERED"
		}
		if ir.RolledBack {
			line += "  (rolled back)"
		}
		r.print("%s", line)
	}
	for _, rec := range res.Records {
		status := "not mastered"
		if rec.Mastered {
			status = "mastered"
		}
		r.print("%-14s %s after %d battle(s)", rec.Archetype, status, rec.Battles)
	}
	if errors.Is(err, context.Canceled) {
		r.system("Curriculum interrupted after %d iteration(s). /save to keep it.", res.State.Iteration)
		return
	}
	if err != nil {
		r.system("Curriculum stopped: %v", err)
		return
	}
	if res.AllMastered() {
		r.system("All enemies mastered.")
	}
}

func (s *Session) checkpointPath(name string) string {
	if name == "" {
		name = "quicksave"
	}
	return filepath.Join(s.Config.CheckpointDir, name+".json")
}

func (s *Session) cmdSave(r *Reply, name string) {
	if s.last == nil {
		r.system("Nothing to save. Run a curriculum first.")
		return
	}
	data, err := save.SaveGame(s.Defs.Game.Title, s.last.State)
	if err != nil {
		r.system("Save failed: %v", err)
		return
	}
	if err := os.MkdirAll(s.Config.CheckpointDir, 0o755); err != nil {
		r.system("Save failed: %v", err)
		return
	}
	if err := os.WriteFile(s.checkpointPath(name), data, 0o644); err != nil {
		r.system("Save failed: %v", err)
		return
	}
	if name == "" {
		name = "quicksave"
	}
	r.system("Checkpoint saved to %s.", name)
}

func (s *Session) cmdLoad(r *Reply, name string) {
	data, err := os.ReadFile(s.checkpointPath(name))
	if err != nil {
		r.system("Load failed: %v", err)
		return
	}
	st, err := save.Load(data)
	if err != nil {
		r.system("Load failed: %v", err)
		return
	}
	if err := s.SetTree(st.Source); err != nil {
		r.system("Load failed: %v", err)
		return
	}
	s.mu.Lock()
	s.checkpoint = &st
	s.mu.Unlock()
	if name == "" {
		name = "quicksave"
	}
	r.system("Checkpoint loaded from %s (iteration %d). Type curriculum to resume.", name, st.Iteration)
}

func (s *Session) cmdState(r *Reply) {
	r.system("Seed: %d", s.Config.Seed)
	r.system("Tree: %d line(s)", s.Summary().TreeLines)
	if s.checkpoint != nil {
		r.system("Checkpoint pending at iteration %d, pool %v", s.checkpoint.Iteration, s.checkpoint.Pool)
	}
	if s.last != nil {
		st := s.last.State
		r.system("Last run: %s", st.RunID)
		r.system("Iterations: %d, generation %d, stagnation %d", st.Iteration, st.Generation, st.Stagnation)
		r.system("Pool: %v", st.Pool)
		r.system("Best score: %.2f", st.BestScore)
	}
}

func (s *Session) cmdHelp(r *Reply) {
	help := []string{
		"Arena:",
		"  battle (b) <enemy> [seed]   Fight one battle with the current tree",
		"  tree (t)                    Show the current tree",
		"  load <file>                 Replace the tree from a .bt file",
		"  enemies (e)                 List the enemy archetypes",
		"  vocab (v)                   List conditions, tasks and enemy moves",
		"  curriculum (c) [iterations] Run the Enemy Mastery curriculum",
		"",
		"System:",
		"  /save [name]  Save the last curriculum run (default: quicksave)",
		"  /load [name]  Load a checkpoint to resume (default: quicksave)",
		"  /state        Show session state",
		"  /trace        Toggle tree evaluation traces",
		"  /help         Show this help",
		"  /quit         Exit",
	}
	for _, line := range help {
		r.print("%s", line)
	}
}

// Summary is a snapshot of the session for status displays.
type Summary struct {
	TreeLines int
	Trace     bool
	Pending   bool // a loaded checkpoint awaits resuming
	Iteration int  // of the last run
	Mastered  int
	Enemies   int
}

// Summary returns the current session snapshot. It is safe to call while a
// command is running.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{
		TreeLines: strings.Count(parser.Format(s.tree), "\n"),
		Trace:     s.trace,
		Pending:   s.checkpoint != nil,
		Enemies:   len(s.Defs.Archetypes),
	}
	if s.last != nil {
		sum.Iteration = s.last.State.Iteration
		for _, rec := range s.last.Records {
			if rec.Mastered {
				sum.Mastered++
			}
		}
	}
	return sum
}
