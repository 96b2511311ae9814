package reporting

import (
	"context"
	"database/sql"
	"time"

	"callguard/pkg/utils"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS call_records (
  call_id            TEXT        PRIMARY KEY,
  session_id         TEXT        NOT NULL,
  caller_id          TEXT        NOT NULL,
  callee_id          TEXT        NOT NULL,
  outcome            TEXT        NOT NULL,
  reason             TEXT        NOT NULL DEFAULT '',
  ended_by           TEXT        NOT NULL DEFAULT '',
  duration_seconds   BIGINT      NOT NULL DEFAULT 0,
  remaining_at_start BIGINT      NOT NULL DEFAULT 0,
  total_used_after   BIGINT      NOT NULL DEFAULT 0,
  limit_exceeded     BOOLEAN     NOT NULL DEFAULT FALSE,
  created_at         TIMESTAMPTZ NOT NULL,
  started_at         TIMESTAMPTZ,
  ended_at           TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS call_records_caller_idx ON call_records (caller_id, ended_at)`,
	`CREATE INDEX IF NOT EXISTS call_records_callee_idx ON call_records (callee_id, ended_at)`,
}

// PostgresRepo stores call history. Rows are insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.EnsureSchema(ctx, r.db, Schema...)
}

func (r *PostgresRepo) AppendCall(ctx context.Context, rec CallRecord) error {
	const q = `
INSERT INTO call_records (
  call_id, session_id, caller_id, callee_id, outcome, reason, ended_by,
  duration_seconds, remaining_at_start, total_used_after, limit_exceeded,
  created_at, started_at, ended_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	var started sql.NullTime
	if !rec.StartedAt.IsZero() {
		started = sql.NullTime{Time: rec.StartedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.Key(),
		rec.SessionID,
		rec.CallerID,
		rec.CalleeID,
		string(rec.Outcome),
		rec.Reason,
		rec.EndedBy,
		rec.DurationSeconds,
		rec.RemainingAtStart,
		rec.TotalUsedAfter,
		rec.LimitExceeded,
		rec.CreatedAt,
		started,
		rec.EndedAt,
	)
	if utils.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *PostgresRepo) ListCalls(ctx context.Context, userID string, from, to time.Time) ([]CallRecord, error) {
	const q = `
SELECT call_id, session_id, caller_id, callee_id, outcome, reason, ended_by,
       duration_seconds, remaining_at_start, total_used_after, limit_exceeded,
       created_at, started_at, ended_at
FROM call_records
WHERE (caller_id = $1 OR callee_id = $1) AND ended_at >= $2 AND ended_at < $3
ORDER BY ended_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var c CallRecord
		var started sql.NullTime
		if err := rows.Scan(
			&c.CallID,
			&c.SessionID,
			&c.CallerID,
			&c.CalleeID,
			&c.Outcome,
			&c.Reason,
			&c.EndedBy,
			&c.DurationSeconds,
			&c.RemainingAtStart,
			&c.TotalUsedAfter,
			&c.LimitExceeded,
			&c.CreatedAt,
			&started,
			&c.EndedAt,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			c.StartedAt = started.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
