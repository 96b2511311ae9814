package quota

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callguard/pkg/utils"

	"github.com/google/uuid"
)

// Schema creates the ledger tables. quota_charges is append-only; quota_usage is
// the projection updated in the same transaction.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS quota_usage (
  pair_key           TEXT        NOT NULL,
  month_key          TEXT        NOT NULL,
  user_a             TEXT        NOT NULL,
  user_b             TEXT        NOT NULL,
  total_used_seconds BIGINT      NOT NULL DEFAULT 0 CHECK (total_used_seconds >= 0),
  updated_at         TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (pair_key, month_key)
)`,
	`CREATE INDEX IF NOT EXISTS quota_usage_user_a_idx ON quota_usage (user_a, month_key)`,
	`CREATE INDEX IF NOT EXISTS quota_usage_user_b_idx ON quota_usage (user_b, month_key)`,
	`CREATE TABLE IF NOT EXISTS quota_charges (
  id                TEXT        PRIMARY KEY,
  pair_key          TEXT        NOT NULL,
  month_key         TEXT        NOT NULL,
  idempotency_key   TEXT        NOT NULL,
  requested_seconds BIGINT      NOT NULL,
  applied_seconds   BIGINT      NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL,
  UNIQUE (pair_key, month_key, idempotency_key)
)`,
}

// PostgresStore is the durable ledger. Every charge locks the usage row
// (SELECT ... FOR UPDATE) so concurrent charges for one pair serialize.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return utils.EnsureSchema(ctx, s.db, Schema...)
}

func (s *PostgresStore) Get(ctx context.Context, p Pair, month string) (UsagePeriod, error) {
	var out UsagePeriod
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureUsageRow(ctx, tx, p, month, time.Now().UTC()); err != nil {
			return err
		}
		rec, err := getUsage(ctx, tx, p.Key(), month, false)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (s *PostgresStore) Add(ctx context.Context, c Charge) (UsagePeriod, int64, error) {
	var out UsagePeriod
	var applied int64

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureUsageRow(ctx, tx, c.Pair, c.MonthKey, c.At); err != nil {
			return err
		}
		rec, err := getUsage(ctx, tx, c.Pair.Key(), c.MonthKey, true)
		if err != nil {
			return err
		}

		// Idempotency: a charge already posted under this key returns the current record.
		if c.IdempotencyKey != "" {
			seen, err := chargeExists(ctx, tx, c.Pair.Key(), c.MonthKey, c.IdempotencyKey)
			if err != nil {
				return err
			}
			if seen {
				out = rec
				return nil
			}
		}

		add := cappedAddition(rec.TotalUsedSeconds, c.Seconds, c.LimitSeconds)
		key := c.IdempotencyKey
		if key == "" {
			key = "anon:" + uuid.NewString()
		}
		if err := insertCharge(ctx, tx, c, key, add); err != nil {
			return err
		}
		if add > 0 {
			rec.TotalUsedSeconds += add
			rec.UpdatedAt = c.At
			if err := updateUsage(ctx, tx, rec); err != nil {
				return err
			}
		}
		out = rec
		applied = add
		return nil
	})
	return out, applied, err
}

func (s *PostgresStore) Reset(ctx context.Context, p Pair, month string, at time.Time) (UsagePeriod, error) {
	var out UsagePeriod
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureUsageRow(ctx, tx, p, month, at); err != nil {
			return err
		}
		rec, err := getUsage(ctx, tx, p.Key(), month, true)
		if err != nil {
			return err
		}
		rec.TotalUsedSeconds = 0
		rec.UpdatedAt = at
		if err := updateUsage(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID, month string) ([]UsagePeriod, error) {
	const q = `
SELECT pair_key, month_key, user_a, user_b, total_used_seconds, updated_at
FROM quota_usage
WHERE month_key = $1 AND (user_a = $2 OR user_b = $2)
ORDER BY pair_key
`
	rows, err := s.db.QueryContext(ctx, q, month, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsagePeriod
	for rows.Next() {
		var r UsagePeriod
		if err := rows.Scan(&r.PairKey, &r.MonthKey, &r.UserA, &r.UserB, &r.TotalUsedSeconds, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ensureUsageRow(ctx context.Context, tx *sql.Tx, p Pair, month string, now time.Time) error {
	const q = `
INSERT INTO quota_usage (pair_key, month_key, user_a, user_b, total_used_seconds, updated_at)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (pair_key, month_key) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, p.Key(), month, p.A, p.B, now)
	return err
}

func getUsage(ctx context.Context, tx *sql.Tx, pairKey, month string, forUpdate bool) (UsagePeriod, error) {
	q := `
SELECT pair_key, month_key, user_a, user_b, total_used_seconds, updated_at
FROM quota_usage
WHERE pair_key = $1 AND month_key = $2
`
	if forUpdate {
		q += "FOR UPDATE\n"
	}
	var r UsagePeriod
	if err := tx.QueryRowContext(ctx, q, pairKey, month).Scan(
		&r.PairKey,
		&r.MonthKey,
		&r.UserA,
		&r.UserB,
		&r.TotalUsedSeconds,
		&r.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsagePeriod{}, errors.New("usage row missing after upsert")
		}
		return UsagePeriod{}, err
	}
	return r, nil
}

func chargeExists(ctx context.Context, tx *sql.Tx, pairKey, month, key string) (bool, error) {
	const q = `
SELECT 1 FROM quota_charges
WHERE pair_key = $1 AND month_key = $2 AND idempotency_key = $3
LIMIT 1
`
	var one int
	err := tx.QueryRowContext(ctx, q, pairKey, month, key).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func insertCharge(ctx context.Context, tx *sql.Tx, c Charge, key string, applied int64) error {
	const q = `
INSERT INTO quota_charges (
  id, pair_key, month_key, idempotency_key, requested_seconds, applied_seconds, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := tx.ExecContext(ctx, q,
		uuid.NewString(),
		c.Pair.Key(),
		c.MonthKey,
		key,
		c.Seconds,
		applied,
		c.At,
	)
	return err
}

func updateUsage(ctx context.Context, tx *sql.Tx, r UsagePeriod) error {
	const q = `
UPDATE quota_usage
SET total_used_seconds = $3, updated_at = $4
WHERE pair_key = $1 AND month_key = $2
`
	_, err := tx.ExecContext(ctx, q, r.PairKey, r.MonthKey, r.TotalUsedSeconds, r.UpdatedAt)
	return err
}
