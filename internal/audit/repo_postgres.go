package audit

import (
	"context"
	"database/sql"

	"callguard/pkg/utils"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
  id            TEXT        PRIMARY KEY,
  type          TEXT        NOT NULL,
  actor_user_id TEXT        NOT NULL DEFAULT '',
  actor_role    TEXT        NOT NULL DEFAULT '',
  ip_address    TEXT        NOT NULL DEFAULT '',
  pair_key      TEXT        NOT NULL DEFAULT '',
  month_key     TEXT        NOT NULL DEFAULT '',
  session_id    TEXT        NOT NULL DEFAULT '',
  message       TEXT        NOT NULL DEFAULT '',
  metadata      JSONB,
  created_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_pair_idx ON audit_events (pair_key, created_at)`,
}

// PostgresRepo is the INSERT-only audit store.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.EnsureSchema(ctx, r.db, Schema...)
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, actor_role, ip_address, pair_key, month_key, session_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	var metadata any
	if e.Metadata != "" {
		metadata = e.Metadata
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.PairKey,
		e.MonthKey,
		e.SessionID,
		e.Message,
		metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	const q = `
SELECT id, type, actor_user_id, actor_role, ip_address, pair_key, month_key, session_id, message,
       COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR pair_key = $2)
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, string(f.Type), f.PairKey, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.ActorUserID, &e.ActorRole, &e.IPAddress, &e.PairKey,
			&e.MonthKey, &e.SessionID, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
