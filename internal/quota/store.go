package quota

import (
	"context"
	"time"
)

// Store persists UsagePeriod records. Implementations must apply Add atomically:
// the capped addition, the idempotency check and the write happen as one unit.
type Store interface {
	// Get returns the record for pair+month, or a zero record if none exists.
	Get(ctx context.Context, p Pair, month string) (UsagePeriod, error)
	// Add applies a capped charge and returns the post-charge record and the applied seconds.
	Add(ctx context.Context, c Charge) (UsagePeriod, int64, error)
	// Reset zeroes the pair's usage for month.
	Reset(ctx context.Context, p Pair, month string, at time.Time) (UsagePeriod, error)
	// ListByUser returns every record for month that involves userID.
	ListByUser(ctx context.Context, userID, month string) ([]UsagePeriod, error)
}
