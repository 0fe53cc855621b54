// Package store keeps the history of finished conversion runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/cardconv/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_runs (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	variant     TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	stats       JSONB NOT NULL,
	records     JSONB NOT NULL,
	missing     JSONB NOT NULL,
	error       JSONB
);
CREATE INDEX IF NOT EXISTS conversion_runs_session_started_idx
	ON conversion_runs (session_id, started_at DESC);
CREATE INDEX IF NOT EXISTS conversion_runs_finished_idx
	ON conversion_runs (finished_at);
`

const runColumns = `id, session_id, file_name, state, variant, started_at, finished_at, stats, records, missing, error`

// PGStore is a core.RunStore backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ core.RunStore = (*PGStore)(nil)

// NewPGStore creates a PGStore. Call EnsureSchema before first use.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the runs table and indexes if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run.
func (s *PGStore) SaveRun(ctx context.Context, run core.RunRecord) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("save run: invalid id %q: %w", run.ID, err)
	}

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("save run: encode stats: %w", err)
	}
	records, err := json.Marshal(nonNil(run.Records))
	if err != nil {
		return fmt.Errorf("save run: encode records: %w", err)
	}
	missing, err := json.Marshal(nonNil(run.Missing))
	if err != nil {
		return fmt.Errorf("save run: encode missing: %w", err)
	}
	var runErr []byte
	if run.Error != nil {
		if runErr, err = json.Marshal(run.Error); err != nil {
			return fmt.Errorf("save run: encode error: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversion_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			variant = EXCLUDED.variant,
			finished_at = EXCLUDED.finished_at,
			stats = EXCLUDED.stats,
			records = EXCLUDED.records,
			missing = EXCLUDED.missing,
			error = EXCLUDED.error`,
		pgtype.UUID{Bytes: id, Valid: true},
		run.SessionID,
		run.FileName,
		string(run.State),
		pgtype.Text{String: run.Variant, Valid: run.Variant != ""},
		run.StartedAt,
		run.FinishedAt,
		stats,
		records,
		missing,
		runErr,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun returns a run by id, or core.ErrRunNotFound.
func (s *PGStore) GetRun(ctx context.Context, id string) (core.RunRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.RunRecord{}, core.ErrRunNotFound
	}

	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM conversion_runs WHERE id = $1`,
		pgtype.UUID{Bytes: parsed, Valid: true})
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.RunRecord{}, core.ErrRunNotFound
	}
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty sessionID lists all sessions.
func (s *PGStore) ListRuns(ctx context.Context, sessionID string, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+` FROM conversion_runs
		WHERE $1 = '' OR session_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// PurgeBefore deletes runs that finished before cutoff.
func (s *PGStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversion_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (core.RunRecord, error) {
	var (
		run                     core.RunRecord
		id                      pgtype.UUID
		state                   string
		variant                 pgtype.Text
		started, finished       pgtype.Timestamptz
		stats, records, missing []byte
		runErr                  []byte
	)
	if err := row.Scan(&id, &run.SessionID, &run.FileName, &state, &variant,
		&started, &finished, &stats, &records, &missing, &runErr); err != nil {
		return core.RunRecord{}, err
	}

	run.ID = uuid.UUID(id.Bytes).String()
	run.State = core.State(state)
	run.Variant = variant.String
	run.StartedAt = started.Time
	run.FinishedAt = finished.Time

	if err := json.Unmarshal(stats, &run.Stats); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode stats: %w", err)
	}
	if err := json.Unmarshal(records, &run.Records); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode records: %w", err)
	}
	if err := json.Unmarshal(missing, &run.Missing); err != nil {
		return core.RunRecord{}, fmt.Errorf("decode missing: %w", err)
	}
	if len(runErr) > 0 {
		run.Error = new(core.ErrorInfo)
		if err := json.Unmarshal(runErr, run.Error); err != nil {
			return core.RunRecord{}, fmt.Errorf("decode error: %w", err)
		}
	}
	return run, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
