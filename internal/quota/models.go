package quota

import (
	"strings"
	"time"
)

// Pair is an unordered pair of user ids, normalized so A < B.
// A-calling-B and B-calling-A always resolve to the same Pair.
type Pair struct {
	A string `json:"user_a"`
	B string `json:"user_b"`
}

// NewPair normalizes two user ids. Empty ids and self-pairs are rejected.
func NewPair(userA, userB string) (Pair, error) {
	a := strings.TrimSpace(userA)
	b := strings.TrimSpace(userB)
	if a == "" || b == "" || a == b {
		return Pair{}, ErrInvalidArgument
	}
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}, nil
}

// Key is the storage key of the pair, "a:b".
func (p Pair) Key() string { return p.A + ":" + p.B }

// Other returns the member of the pair that is not userID.
func (p Pair) Other(userID string) string {
	if userID == p.A {
		return p.B
	}
	return p.A
}

// MonthKey formats t as YYYY-MM in loc.
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01")
}

// UsagePeriod is the ledger record for one pair in one calendar month.
//
// Invariants:
// - TotalUsedSeconds only grows within a month, except through an admin Reset.
// - LimitExceeded is true iff TotalUsedSeconds >= the configured limit.
// - A new month starts from zero; there is no carryover.
type UsagePeriod struct {
	PairKey          string    `json:"pair_key" db:"pair_key"`
	UserA            string    `json:"user_a" db:"user_a"`
	UserB            string    `json:"user_b" db:"user_b"`
	MonthKey         string    `json:"month_key" db:"month_key"`
	TotalUsedSeconds int64     `json:"total_used_seconds" db:"total_used_seconds"`
	LimitExceeded    bool      `json:"limit_exceeded" db:"-"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

func emptyPeriod(p Pair, month string) UsagePeriod {
	return UsagePeriod{PairKey: p.Key(), UserA: p.A, UserB: p.B, MonthKey: month}
}

// Remaining is the read model returned by GetRemaining.
type Remaining struct {
	TotalUsedSeconds int64  `json:"totalUsedSeconds"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	HasTimeRemaining bool   `json:"hasTimeRemaining"`
	LimitExceeded    bool   `json:"limitExceeded"`
	LimitSeconds     int64  `json:"limitSeconds"`
	MonthKey         string `json:"monthKey"`
}

// UsageRequest asks the ledger to charge seconds to a pair.
// IdempotencyKey is optional; a repeated key for the same pair and month is a no-op.
type UsageRequest struct {
	Seconds        int64  `json:"seconds"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Charge is what a Store receives for AddUsage.
type Charge struct {
	Pair           Pair
	MonthKey       string
	Seconds        int64
	LimitSeconds   int64
	IdempotencyKey string
	At             time.Time
}

// cappedAddition is the number of seconds a charge may actually add.
// Usage above the limit (possible after the limit is lowered) adds nothing.
func cappedAddition(used, seconds, limit int64) int64 {
	room := limit - used
	if room <= 0 || seconds <= 0 {
		return 0
	}
	if seconds > room {
		return room
	}
	return seconds
}
