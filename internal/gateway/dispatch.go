package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"callguard/internal/calls"
	"callguard/internal/quota"
	"callguard/internal/relay"

	"github.com/google/uuid"
)

// Inbound command types. Media negotiation reuses the relay event names.
const (
	cmdInvite = "invite"
	cmdAccept = "accept"
	cmdReject = "reject"
	cmdCancel = "cancel"
	cmdEnd    = "end"
)

// Error codes carried in error events.
const (
	codeInvalidMessage  = "invalid_message"
	codeUnknownType     = "unknown_type"
	codeInvalidArgument = "invalid_argument"
	codeNotFound        = "session_not_found"
	codeConflict        = "session_exists"
	codeInvalidState    = "invalid_state"
	codeForbidden       = "forbidden"
	codeTimeLimit       = "time_limit_exceeded"
	codeUnavailable     = "ledger_unavailable"
	codeInternal        = "internal"
)

type inbound struct {
	Type      string `json:"type"`
	Ref       string `json:"ref,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	To        string `json:"to,omitempty"`
	// ClientSeconds is the caller's own duration estimate for end; it never lowers the charge.
	ClientSeconds *int64          `json:"clientSeconds,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type ackPayload struct {
	Ref    string `json:"ref,omitempty"`
	Op     string `json:"op"`
	Result any    `json:"result,omitempty"`
}

type errorPayload struct {
	Ref     string `json:"ref,omitempty"`
	Op      string `json:"op,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type signalAck struct {
	Delivered bool `json:"delivered"`
}

func (h *Handler) dispatch(ctx context.Context, cl *client, m inbound) {
	var (
		result any
		err    error
	)

	switch m.Type {
	case cmdInvite:
		if m.SessionID == "" {
			m.SessionID = uuid.NewString()
		}
		result, err = h.calls.Invite(ctx, cl.userID, m.To, m.SessionID)
	case cmdAccept:
		result, err = h.calls.Accept(ctx, m.SessionID, cl.userID)
	case cmdReject:
		result, err = h.calls.Reject(ctx, m.SessionID, cl.userID)
	case cmdCancel:
		result, err = h.calls.Cancel(ctx, m.SessionID, cl.userID)
	case cmdEnd:
		result, err = h.calls.End(ctx, m.SessionID, cl.userID, m.ClientSeconds)
	case string(relay.EventOffer), string(relay.EventAnswer), string(relay.EventCandidate):
		var d relay.Delivery
		d, err = h.calls.Signal(ctx, m.SessionID, cl.userID, relay.EventType(m.Type), m.Data)
		if err == nil && m.Ref == "" {
			return
		}
		result = signalAck{Delivered: d.Delivered}
	default:
		cl.reply(errorEvent(m, codeUnknownType, "unknown message type"))
		return
	}

	if err != nil {
		cl.log.Info("command failed", "op", m.Type, "session_id", m.SessionID, "err", err)
		cl.reply(errorEvent(m, errorCode(err), err.Error()))
		return
	}
	cl.reply(relay.NewEvent(relay.EventAck, m.SessionID, ackPayload{Ref: m.Ref, Op: m.Type, Result: result}))
}

func errorEvent(m inbound, code, msg string) relay.Event {
	return relay.NewEvent(relay.EventError, m.SessionID, errorPayload{Ref: m.Ref, Op: m.Type, Code: code, Message: msg})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, calls.ErrInvalidArgument), errors.Is(err, quota.ErrInvalidArgument):
		return codeInvalidArgument
	case errors.Is(err, calls.ErrSessionNotFound):
		return codeNotFound
	case errors.Is(err, calls.ErrSessionExists):
		return codeConflict
	case errors.Is(err, calls.ErrInvalidTransition):
		return codeInvalidState
	case errors.Is(err, calls.ErrNotParticipant):
		return codeForbidden
	case errors.Is(err, calls.ErrQuotaExceeded):
		return codeTimeLimit
	case errors.Is(err, quota.ErrLedgerUnavailable):
		return codeUnavailable
	default:
		return codeInternal
	}
}
