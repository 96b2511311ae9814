package relay

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCallInvite   EventType = "call_invite"
	EventCallAccepted EventType = "call_accepted"
	EventCallStarted  EventType = "call_started"
	EventCallRejected EventType = "call_rejected"
	EventCallCanceled EventType = "call_canceled"
	EventCallEnded    EventType = "call_ended"
	EventTimeExceeded EventType = "time_exceeded"

	// Media negotiation. Payloads are relayed without inspection.
	EventOffer     EventType = "offer"
	EventAnswer    EventType = "answer"
	EventCandidate EventType = "candidate"

	EventPresenceUpdate EventType = "presence_update"
	EventAck            EventType = "ack"
	EventError          EventType = "error"
)

// Establishment reports whether the event sets a call up. Only these may use
// the degraded broadcast path.
func (t EventType) Establishment() bool {
	switch t {
	case EventCallInvite, EventCallAccepted, EventCallStarted:
		return true
	}
	return false
}

// Event is the envelope every connection receives. ID is unique per emitted
// event; receivers deduplicate on ID and may also filter by SessionID.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	SessionID    string    `json:"sessionId,omitempty"`
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	ServerTimeMs int64     `json:"serverTimeMs"`
	Data         any       `json:"data,omitempty"`
}

func NewEvent(typ EventType, sessionID string, data any) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         typ,
		SessionID:    sessionID,
		ServerTimeMs: time.Now().UnixMilli(),
		Data:         data,
	}
}
