// Package store persists curriculum run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nathoo/btarena/mastery"
	"github.com/nathoo/btarena/store/migrations"
	"github.com/nathoo/btarena/types"
)

// Store provides SQLite-backed run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Battle is one stored battle.
type Battle struct {
	ID         int64
	RunID      string
	Iteration  int
	Validation bool
	Outcome    types.BattleOutcome
	CreatedAt  time.Time
}

// Open opens the store at path and applies migrations. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: validation battles are recorded from a single goroutine
	// and an in-memory database is per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func checkRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return nil
}

// RecordBattle stores one battle with its full turn log.
func (s *Store) RecordBattle(ctx context.Context, runID string, iteration int, outcome types.BattleOutcome, validation bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRunID(runID); err != nil {
		return err
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO battles (
	run_id,
	iteration,
	archetype,
	seed,
	victor,
	turns,
	validation,
	outcome_json,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		runID,
		iteration,
		outcome.Archetype,
		outcome.Seed,
		outcome.Victor.String(),
		outcome.Turns,
		validation,
		string(payload),
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record battle: %w", err)
	}
	return nil
}

// RecordIteration stores one iteration record. Recording the same iteration
// twice replaces it, so a resumed run can repeat an interrupted iteration.
func (s *Store) RecordIteration(ctx context.Context, runID string, rec types.IterationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRunID(runID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO iterations (
	run_id,
	iteration,
	archetype,
	victor,
	turns,
	validation_wins,
	validation_runs,
	mastered,
	score,
	generation,
	rejected_error,
	stagnation,
	rolled_back,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		runID,
		rec.Iteration,
		rec.Archetype,
		rec.Victor.String(),
		rec.Turns,
		rec.ValidationWins,
		rec.ValidationRuns,
		rec.Mastered,
		rec.Score,
		rec.Generation,
		rec.RejectedError,
		rec.Stagnation,
		rec.RolledBack,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record iteration: %w", err)
	}
	return nil
}

// ListBattles lists a run's battles in recording order.
func (s *Store) ListBattles(ctx context.Context, runID string) ([]Battle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
	id,
	run_id,
	iteration,
	validation,
	outcome_json,
	created_at
FROM battles
WHERE run_id = ?
ORDER BY id
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	var battles []Battle
	for rows.Next() {
		var (
			b         Battle
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&b.ID, &b.RunID, &b.Iteration, &b.Validation, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &b.Outcome); err != nil {
			return nil, fmt.Errorf("decode battle %d: %w", b.ID, err)
		}
		b.CreatedAt = time.UnixMilli(createdAt).UTC()
		battles = append(battles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battles: %w", err)
	}
	return battles, nil
}

// ListIterations lists a run's iterations in order.
func (s *Store) ListIterations(ctx context.Context, runID string) ([]types.IterationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
	iteration,
	archetype,
	victor,
	turns,
	validation_wins,
	validation_runs,
	mastered,
	score,
	generation,
	rejected_error,
	stagnation,
	rolled_back
FROM iterations
WHERE run_id = ?
ORDER BY iteration
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var recs []types.IterationRecord
	for rows.Next() {
		var (
			r      types.IterationRecord
			victor string
		)
		if err := rows.Scan(
			&r.Iteration,
			&r.Archetype,
			&victor,
			&r.Turns,
			&r.ValidationWins,
			&r.ValidationRuns,
			&r.Mastered,
			&r.Score,
			&r.Generation,
			&r.RejectedError,
			&r.Stagnation,
			&r.RolledBack,
		); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		r.Victor = parseOutcome(victor)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return recs, nil
}

// ListRuns returns the ids of every recorded run, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id FROM iterations
GROUP BY run_id
ORDER BY MAX(created_at) DESC, run_id
`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseOutcome(s string) types.Outcome {
	for _, o := range []types.Outcome{types.PlayerVictory, types.EnemyVictory, types.Draw} {
		if o.String() == s {
			return o
		}
	}
	return types.InProgress
}

var _ mastery.Recorder = (*Store)(nil)
