package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	PairKey   string `json:"pair_key,omitempty" db:"pair_key"`
	MonthKey  string `json:"month_key,omitempty" db:"month_key"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeQuotaReset  EventType = "quota_reset"
	EventTypeAdminAction EventType = "admin_action"
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Type    EventType
	PairKey string
	Limit   int
}

func (f Filter) matches(e Event) bool {
	return (f.Type == "" || e.Type == f.Type) && (f.PairKey == "" || e.PairKey == f.PairKey)
}
