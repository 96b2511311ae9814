package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Outcome is how a call session finished.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeRejected     Outcome = "rejected"
	OutcomeCanceled     Outcome = "canceled"
	OutcomeMissed       Outcome = "missed" // invite timed out unanswered
	OutcomeQuotaBlocked Outcome = "quota_blocked"
)

// CallRecord is the immutable history row written once per finalized call.
// A second write with the same key is ignored.
type CallRecord struct {
	CallID    string  `json:"call_id" db:"call_id"`
	SessionID string  `json:"session_id" db:"session_id"`
	CallerID  string  `json:"caller_id" db:"caller_id"`
	CalleeID  string  `json:"callee_id" db:"callee_id"`
	Outcome   Outcome `json:"outcome" db:"outcome"`
	Reason    string  `json:"reason,omitempty" db:"reason"`
	EndedBy   string  `json:"ended_by,omitempty" db:"ended_by"`

	// DurationSeconds is the duration committed to the ledger (before capping).
	DurationSeconds  int64 `json:"duration_seconds" db:"duration_seconds"`
	RemainingAtStart int64 `json:"remaining_at_start" db:"remaining_at_start"`
	TotalUsedAfter   int64 `json:"total_used_after" db:"total_used_after"`
	LimitExceeded    bool  `json:"limit_exceeded" db:"limit_exceeded"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`
}

// Key identifies the record: CallID when set, otherwise SessionID.
func (r CallRecord) Key() string {
	if r.CallID != "" {
		return r.CallID
	}
	return r.SessionID
}

// CallsSummaryRequest requests aggregated call metrics for one user.
type CallsSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type CallsSummary struct {
	UserID string `json:"user_id"`

	TotalCalls        int `json:"total_calls"`
	CompletedCalls    int `json:"completed_calls"`
	RejectedCalls     int `json:"rejected_calls"`
	CanceledCalls     int `json:"canceled_calls"`
	MissedCalls       int `json:"missed_calls"`
	QuotaBlockedCalls int `json:"quota_blocked_calls"`

	OutgoingCalls int `json:"outgoing_calls"`
	IncomingCalls int `json:"incoming_calls"`
	DistinctPeers int `json:"distinct_peers"`

	TotalDurationSeconds   int64 `json:"total_duration_seconds"`
	AverageDurationSeconds int64 `json:"average_duration_seconds"`
}
