package calls

// Payloads carried in relay.Event.Data for lifecycle events.

type InvitePayload struct {
	CallerID         string `json:"callerId"`
	CalleeID         string `json:"calleeId"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	LimitSeconds     int64  `json:"limitSeconds"`
	CreatedAtMs      int64  `json:"createdAtMs"`
}

// StartedPayload lets both ends run a synchronized countdown.
type StartedPayload struct {
	CallerID         string `json:"callerId"`
	CalleeID         string `json:"calleeId"`
	AcceptedBy       string `json:"acceptedBy"`
	RemainingAtStart int64  `json:"remainingAtStart"`
	ServerStartAtMs  int64  `json:"serverStartAtMs"`
	ServerTimeMs     int64  `json:"serverTimeMs"`
	Clamped          bool   `json:"clamped,omitempty"`
}

type ClosedPayload struct {
	By     string `json:"by"`
	Reason Reason `json:"reason"`
}

type EndedPayload struct {
	EndedBy               string `json:"endedBy"`
	Reason                Reason `json:"reason"`
	DurationSeconds       int64  `json:"durationSeconds"`
	ServerMeasuredSeconds int64  `json:"serverMeasuredSeconds"`
	TotalUsedSeconds      int64  `json:"totalUsedSeconds"`
	RemainingSeconds      int64  `json:"remainingSeconds"`
	LimitExceeded         bool   `json:"limitExceeded"`
	Degraded              bool   `json:"degraded,omitempty"`
}

// Phase values for TimeExceededPayload.
const (
	PhaseAccept = "accept"
	PhaseInCall = "in_call"
	PhaseEnd    = "end"
)

type TimeExceededPayload struct {
	Phase            string `json:"phase"`
	TotalUsedSeconds int64  `json:"totalUsedSeconds"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	LimitSeconds     int64  `json:"limitSeconds"`
}
