package calls

import "time"

// State is the lifecycle state of a call session.
type State string

const (
	StateInvited  State = "invited"
	StateAccepted State = "accepted"
	StateActive   State = "active"
	StateRejected State = "rejected"
	StateCanceled State = "canceled"
	StateEnded    State = "ended"
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateInvited:  {StateAccepted, StateRejected, StateCanceled},
	StateAccepted: {StateActive},
	StateActive:   {StateEnded},
	StateRejected: {},
	StateCanceled: {},
	StateEnded:    {},
}

// CanTransitionTo checks if a transition from current state to next state is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, st := range validTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the session can no longer change.
func (s State) IsTerminal() bool {
	return s == StateRejected || s == StateCanceled || s == StateEnded
}

// Reason explains why a session reached a terminal state.
type Reason string

const (
	ReasonTimeLimitExceeded Reason = "time_limit_exceeded"
	ReasonDeclined          Reason = "declined"
	ReasonCanceledByCaller  Reason = "canceled"
	ReasonEndedBeforeAnswer Reason = "ended_before_answer"
	ReasonHangup            Reason = "hangup"
	ReasonInviteTimeout     Reason = "invite_timeout"
	ReasonAbandoned         Reason = "abandoned"
)

// Session is one attempted-or-active call. ID is supplied by the caller and
// addresses every lifecycle event of the call. CallID is minted by the server
// on invite; ledger charges, notifications and history are keyed on it so a
// session id reused after its finalized marker expires is a new call.
type Session struct {
	ID       string `json:"sessionId"`
	CallID   string `json:"callId"`
	CallerID string `json:"callerId"`
	CalleeID string `json:"calleeId"`
	State    State  `json:"state"`

	CreatedAt time.Time `json:"createdAt"`

	// Set on accept.
	ServerStartAt    time.Time `json:"serverStartAt,omitempty"`
	RemainingAtStart int64     `json:"remainingAtStart,omitempty"`

	// Set on reaching a terminal state.
	EndedAt   time.Time `json:"endedAt,omitempty"`
	EndedBy   string    `json:"endedBy,omitempty"`
	EndReason Reason    `json:"endReason,omitempty"`
}

func (s Session) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.CallerID || userID == s.CalleeID)
}

// Other returns the other participant, or "" if userID is not a participant.
func (s Session) Other(userID string) string {
	switch userID {
	case s.CallerID:
		return s.CalleeID
	case s.CalleeID:
		return s.CallerID
	}
	return ""
}

// Started reports whether the session recorded a server-side start time.
func (s Session) Started() bool { return !s.ServerStartAt.IsZero() }

// ServerStartAtMs is the accept timestamp in unix milliseconds, or 0.
func (s Session) ServerStartAtMs() int64 {
	if !s.Started() {
		return 0
	}
	return s.ServerStartAt.UnixMilli()
}

// ServerMeasuredSeconds is the whole seconds elapsed since accept, never negative.
func (s Session) ServerMeasuredSeconds(now time.Time) int64 {
	if !s.Started() {
		return 0
	}
	d := now.Sub(s.ServerStartAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
