package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callguard/internal/notify"
	"callguard/internal/presence"
	"callguard/internal/quota"
	"callguard/internal/relay"
	"callguard/internal/reporting"
	"callguard/pkg/logger"
	"callguard/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument   = errors.New("calls: invalid argument")
	ErrSessionNotFound   = errors.New("calls: session not found")
	ErrSessionExists     = errors.New("calls: session id already used")
	ErrInvalidTransition = errors.New("calls: invalid state transition")
	ErrNotParticipant    = errors.New("calls: action not allowed for this user")
	ErrQuotaExceeded     = errors.New("calls: quota exceeded")
)

// Ledger is the quota surface the controller needs. It never mutates usage directly.
type Ledger interface {
	GetRemaining(ctx context.Context, userA, userB string) (quota.Remaining, error)
	AddUsage(ctx context.Context, userA, userB string, req quota.UsageRequest) (quota.UsagePeriod, error)
	LimitSeconds() int64
}

type Relay interface {
	Deliver(ctx context.Context, ev relay.Event, target string, scope presence.Scope) relay.Delivery
	FanoutScopes(ctx context.Context, ev relay.Event, target string, scopes ...presence.Scope) relay.Delivery
}

type Notifier interface {
	Trigger(ctx context.Context, ev notify.Event) bool
}

type History interface {
	RecordCall(ctx context.Context, rec reporting.CallRecord) error
}

type Config struct {
	// GraceSeconds is how far below zero remainingAtStart may fall before accept is refused.
	GraceSeconds int64
	// MinStartSeconds is the floor applied to remainingAtStart inside the grace margin.
	MinStartSeconds int64
	InviteTimeout   time.Duration
	ActiveSlack     time.Duration
	ReapInterval    time.Duration
	FinalizedTTL    time.Duration
	// LedgerFailOpen lets calls proceed unmetered when the ledger is down.
	LedgerFailOpen bool
}

func (c Config) withDefaults() Config {
	out := c
	if out.GraceSeconds <= 0 {
		out.GraceSeconds = 30
	}
	if out.MinStartSeconds <= 0 {
		out.MinStartSeconds = 30
	}
	if out.InviteTimeout <= 0 {
		out.InviteTimeout = 60 * time.Second
	}
	if out.ActiveSlack <= 0 {
		out.ActiveSlack = 2 * time.Minute
	}
	if out.ReapInterval <= 0 {
		out.ReapInterval = 10 * time.Second
	}
	if out.FinalizedTTL <= 0 {
		out.FinalizedTTL = time.Hour
	}
	return out
}

type Deps struct {
	Ledger   Ledger
	Relay    Relay
	Notifier Notifier // optional
	History  History  // optional
}

var lifecycleScopes = []presence.Scope{presence.ScopeGeneral, presence.ScopeSignaling}

// Controller drives the call session state machine. Every operation on a
// session runs under that session's lock, so events for one session apply in
// the order they were accepted.
type Controller struct {
	table    *Table
	ledger   Ledger
	relay    Relay
	notifier Notifier
	history  History
	cfg      Config
	log      *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func NewController(table *Table, deps Deps, cfg Config, log *slog.Logger) *Controller {
	if table == nil {
		table = NewTable()
	}
	c := &Controller{
		table:    table,
		ledger:   deps.Ledger,
		relay:    deps.Relay,
		notifier: deps.Notifier,
		history:  deps.History,
		cfg:      cfg.withDefaults(),
		log:      logger.Component(log, "calls"),
		clock:    time.Now,
		timers:   make(map[string]*time.Timer),
	}
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.history == nil {
		c.history = noopHistory{}
	}
	return c
}

/* ===================== INVITE ===================== */

type InviteResult struct {
	Session         Session         `json:"session"`
	RecipientOnline bool            `json:"recipientOnline"`
	LimitExceeded   bool            `json:"limitExceeded"`
	Reason          Reason          `json:"reason,omitempty"`
	Quota           quota.Remaining `json:"quota"`
	Duplicate       bool            `json:"duplicate,omitempty"`
	Degraded        bool            `json:"degraded,omitempty"`
}

// Invite opens a session unless the pair has no time left this month.
// A quota rejection is a normal result (LimitExceeded), not an error.
func (c *Controller) Invite(ctx context.Context, callerID, calleeID, sessionID string) (InviteResult, error) {
	if callerID == "" || calleeID == "" || sessionID == "" || callerID == calleeID {
		return InviteResult{}, ErrInvalidArgument
	}

	unlock := c.table.Lock(sessionID)
	defer unlock()

	now := c.clock().UTC()
	if s, ok := c.table.Get(sessionID); ok {
		if s.CallerID == callerID && s.CalleeID == calleeID {
			return InviteResult{Session: s, Duplicate: true}, nil
		}
		return InviteResult{}, ErrSessionExists
	}
	if c.table.IsFinalized(sessionID, now) {
		return InviteResult{}, ErrSessionExists
	}

	var degraded bool
	rem, err := c.ledger.GetRemaining(ctx, callerID, calleeID)
	if err != nil {
		if !c.cfg.LedgerFailOpen {
			return InviteResult{}, fmt.Errorf("invite %s: %w", sessionID, err)
		}
		degraded = c.degrade("invite", sessionID, err)
		rem = quota.Remaining{HasTimeRemaining: true, LimitSeconds: c.ledger.LimitSeconds()}
	}

	if !rem.HasTimeRemaining {
		s := Session{
			ID:        sessionID,
			CallID:    uuid.NewString(),
			CallerID:  callerID,
			CalleeID:  calleeID,
			State:     StateRejected,
			CreatedAt: now,
			EndedAt:   now,
			EndReason: ReasonTimeLimitExceeded,
		}
		metrics.SessionTransitions.WithLabelValues(string(StateRejected), string(ReasonTimeLimitExceeded)).Inc()
		c.log.Info("invite rejected, pair out of time",
			"session_id", sessionID, "caller_id", callerID, "callee_id", calleeID,
			"total_used_seconds", rem.TotalUsedSeconds)
		c.record(ctx, s, reporting.OutcomeQuotaBlocked, 0, rem.TotalUsedSeconds, true)
		return InviteResult{Session: s, LimitExceeded: true, Reason: ReasonTimeLimitExceeded, Quota: rem}, nil
	}

	s := Session{
		ID:        sessionID,
		CallID:    uuid.NewString(),
		CallerID:  callerID,
		CalleeID:  calleeID,
		State:     StateInvited,
		CreatedAt: now,
	}
	c.table.Put(s)
	c.observe(StateInvited, "")

	ev := c.event(relay.EventCallInvite, s, callerID, now, c.invitePayload(s, rem))
	d := c.relay.Deliver(ctx, ev, calleeID, presence.ScopeGeneral)
	online := d.Delivered && !d.Degraded

	c.log.Info("invite sent", "session_id", sessionID, "caller_id", callerID, "callee_id", calleeID,
		"recipient_online", online, "path", d.Path)

	c.notify(ctx, notify.TypeInvitationSent, s, map[string]any{"recipientOnline": online})
	return InviteResult{Session: s, RecipientOnline: online, Quota: rem, Degraded: degraded}, nil
}

/* ===================== ACCEPT ===================== */

type AcceptResult struct {
	Session          Session `json:"session"`
	RemainingAtStart int64   `json:"remainingAtStart"`
	Clamped          bool    `json:"clamped,omitempty"`
	LimitExceeded    bool    `json:"limitExceeded,omitempty"`
	Degraded         bool    `json:"degraded,omitempty"`
}

// Accept moves an invited session to active and snapshots the remaining budget.
// Returns ErrQuotaExceeded (with the rejected session) when the pair is past the grace margin.
func (c *Controller) Accept(ctx context.Context, sessionID, accepterID string) (AcceptResult, error) {
	unlock := c.table.Lock(sessionID)
	defer unlock()

	s, err := c.live(sessionID, "accept")
	if err != nil {
		return AcceptResult{}, err
	}
	if accepterID != s.CalleeID {
		return AcceptResult{}, ErrNotParticipant
	}
	if !s.State.CanTransitionTo(StateAccepted) {
		return AcceptResult{}, ErrInvalidTransition
	}

	now := c.clock().UTC()
	var degraded bool
	var remainingAtStart, used, limit int64
	rem, err := c.ledger.GetRemaining(ctx, s.CallerID, s.CalleeID)
	if err != nil {
		if !c.cfg.LedgerFailOpen {
			return AcceptResult{}, fmt.Errorf("accept %s: %w", sessionID, err)
		}
		degraded = c.degrade("accept", sessionID, err)
		limit = c.ledger.LimitSeconds()
		remainingAtStart = limit
	} else {
		// Raw difference, not RemainingSeconds: it goes negative when usage sits above a lowered limit.
		used, limit = rem.TotalUsedSeconds, rem.LimitSeconds
		remainingAtStart = limit - used
	}

	if remainingAtStart < -c.cfg.GraceSeconds {
		s = c.finish(s, StateRejected, accepterID, ReasonTimeLimitExceeded, now)
		payload := TimeExceededPayload{Phase: PhaseAccept, TotalUsedSeconds: used, LimitSeconds: limit}
		c.fanoutBoth(ctx, relay.EventTimeExceeded, s, accepterID, now, payload)
		c.record(ctx, s, reporting.OutcomeQuotaBlocked, 0, used, true)
		c.log.Info("accept refused past grace margin", "session_id", sessionID, "remaining_at_start", remainingAtStart)
		return AcceptResult{Session: s, RemainingAtStart: remainingAtStart, LimitExceeded: true}, ErrQuotaExceeded
	}

	clamped := false
	if remainingAtStart <= 0 {
		remainingAtStart = c.cfg.MinStartSeconds
		clamped = true
	}

	s.State = StateAccepted
	c.observe(StateAccepted, "")
	s.State = StateActive
	s.ServerStartAt = now
	s.RemainingAtStart = remainingAtStart
	c.table.Put(s)
	c.observe(StateActive, "")

	payload := StartedPayload{
		CallerID:         s.CallerID,
		CalleeID:         s.CalleeID,
		AcceptedBy:       accepterID,
		RemainingAtStart: remainingAtStart,
		ServerStartAtMs:  s.ServerStartAtMs(),
		ServerTimeMs:     now.UnixMilli(),
		Clamped:          clamped,
	}
	c.fanoutBoth(ctx, relay.EventCallAccepted, s, accepterID, now, payload)
	c.fanoutBoth(ctx, relay.EventCallStarted, s, accepterID, now, payload)

	c.notify(ctx, notify.TypeCallStarted, s, map[string]any{
		"remainingAtStart": remainingAtStart,
		"serverStartAtMs":  s.ServerStartAtMs(),
	})
	c.armTimer(s)

	c.log.Info("call started", "session_id", sessionID, "remaining_at_start", remainingAtStart, "clamped", clamped)
	return AcceptResult{Session: s, RemainingAtStart: remainingAtStart, Clamped: clamped, Degraded: degraded}, nil
}

/* ===================== REJECT / CANCEL ===================== */

// Reject declines an invited session. Either participant may reject.
func (c *Controller) Reject(ctx context.Context, sessionID, byUserID string) (Session, error) {
	return c.closeInvite(ctx, sessionID, byUserID, StateRejected, ReasonDeclined, relay.EventCallRejected, reporting.OutcomeRejected)
}

// Cancel withdraws an invited session. Either participant may cancel.
func (c *Controller) Cancel(ctx context.Context, sessionID, byUserID string) (Session, error) {
	return c.closeInvite(ctx, sessionID, byUserID, StateCanceled, ReasonCanceledByCaller, relay.EventCallCanceled, reporting.OutcomeCanceled)
}

func (c *Controller) closeInvite(ctx context.Context, sessionID, by string, to State, reason Reason, evType relay.EventType, outcome reporting.Outcome) (Session, error) {
	unlock := c.table.Lock(sessionID)
	defer unlock()

	s, err := c.live(sessionID, string(evType))
	if err != nil {
		return Session{}, err
	}
	if !s.IsParticipant(by) {
		return Session{}, ErrNotParticipant
	}
	if !s.State.CanTransitionTo(to) {
		return Session{}, ErrInvalidTransition
	}

	now := c.clock().UTC()
	s = c.finish(s, to, by, reason, now)
	ev := c.event(evType, s, by, now, ClosedPayload{By: by, Reason: reason})
	c.relay.FanoutScopes(ctx, ev, s.Other(by), lifecycleScopes...)
	c.record(ctx, s, outcome, 0, 0, false)

	c.log.Info("invite closed", "session_id", sessionID, "state", to, "by", by)
	return s, nil
}

/* ===================== END ===================== */

type EndResult struct {
	Session               Session           `json:"session"`
	ClientReportedSeconds int64             `json:"clientReportedSeconds"`
	ServerMeasuredSeconds int64             `json:"serverMeasuredSeconds"`
	FinalSeconds          int64             `json:"finalSeconds"`
	Usage                 quota.UsagePeriod `json:"usage"`
	RemainingSeconds      int64             `json:"remainingSeconds"`
	Charged               bool              `json:"charged"`
	TimeExceeded          bool              `json:"timeExceeded"`
	Degraded              bool              `json:"degraded,omitempty"`
}

// End finishes a session. An active call is charged max(client, server-measured)
// seconds, capped by the ledger; an invited one is canceled without charge.
// clientSeconds may be nil.
func (c *Controller) End(ctx context.Context, sessionID, endedBy string, clientSeconds *int64) (EndResult, error) {
	unlock := c.table.Lock(sessionID)
	defer unlock()

	s, err := c.live(sessionID, "end")
	if err != nil {
		return EndResult{}, err
	}
	if !s.IsParticipant(endedBy) {
		return EndResult{}, ErrNotParticipant
	}

	now := c.clock().UTC()
	switch s.State {
	case StateInvited:
		s = c.finish(s, StateCanceled, endedBy, ReasonEndedBeforeAnswer, now)
		ev := c.event(relay.EventCallCanceled, s, endedBy, now, ClosedPayload{By: endedBy, Reason: ReasonEndedBeforeAnswer})
		c.relay.FanoutScopes(ctx, ev, s.Other(endedBy), lifecycleScopes...)
		c.record(ctx, s, reporting.OutcomeCanceled, 0, 0, false)
		return EndResult{Session: s}, nil
	case StateActive:
		return c.endActive(ctx, s, endedBy, clientSeconds, ReasonHangup, now)
	default:
		return EndResult{}, ErrInvalidTransition
	}
}

// endActive charges and finalizes an active session. Caller holds the session lock.
func (c *Controller) endActive(ctx context.Context, s Session, endedBy string, clientSeconds *int64, reason Reason, now time.Time) (EndResult, error) {
	var reported int64
	if clientSeconds != nil && *clientSeconds > 0 {
		reported = *clientSeconds
	}
	server := s.ServerMeasuredSeconds(now)
	final := max(reported, server)

	res := EndResult{ClientReportedSeconds: reported, ServerMeasuredSeconds: server, FinalSeconds: final}
	limit := c.ledger.LimitSeconds()

	usage, err := c.ledger.AddUsage(ctx, s.CallerID, s.CalleeID, quota.UsageRequest{
		Seconds:        final,
		IdempotencyKey: chargeKey(s.CallID),
	})
	if err != nil {
		if !c.cfg.LedgerFailOpen {
			return EndResult{Session: s}, fmt.Errorf("end %s: %w", s.ID, err)
		}
		res.Degraded = c.degrade("end", s.ID, err)
	} else {
		res.Charged = true
		res.Usage = usage
		res.RemainingSeconds = max(0, limit-usage.TotalUsedSeconds)
		res.TimeExceeded = usage.LimitExceeded
	}

	s = c.finish(s, StateEnded, endedBy, reason, now)
	res.Session = s

	c.fanoutBoth(ctx, relay.EventCallEnded, s, endedBy, now, EndedPayload{
		EndedBy:               endedBy,
		Reason:                reason,
		DurationSeconds:       final,
		ServerMeasuredSeconds: server,
		TotalUsedSeconds:      usage.TotalUsedSeconds,
		RemainingSeconds:      res.RemainingSeconds,
		LimitExceeded:         usage.LimitExceeded,
		Degraded:              res.Degraded,
	})
	if res.TimeExceeded {
		c.fanoutBoth(ctx, relay.EventTimeExceeded, s, endedBy, now, TimeExceededPayload{
			Phase:            PhaseEnd,
			TotalUsedSeconds: usage.TotalUsedSeconds,
			LimitSeconds:     limit,
		})
	}

	c.notify(ctx, notify.TypeCallEnded, s, map[string]any{
		"durationSeconds":  final,
		"totalUsedSeconds": usage.TotalUsedSeconds,
		"limitExceeded":    usage.LimitExceeded,
	})
	c.record(ctx, s, reporting.OutcomeCompleted, final, usage.TotalUsedSeconds, usage.LimitExceeded)

	c.log.Info("call ended",
		"session_id", s.ID,
		"ended_by", endedBy,
		"reason", reason,
		"client_seconds", reported,
		"server_seconds", server,
		"total_used_seconds", usage.TotalUsedSeconds,
		"limit_exceeded", usage.LimitExceeded,
	)
	return res, nil
}

func chargeKey(callID string) string { return "call:" + callID }

/* ===================== SIGNALING ===================== */

// Signal relays an opaque media negotiation payload to the other participant.
func (c *Controller) Signal(ctx context.Context, sessionID, fromUserID string, kind relay.EventType, payload json.RawMessage) (relay.Delivery, error) {
	switch kind {
	case relay.EventOffer, relay.EventAnswer, relay.EventCandidate:
	default:
		return relay.Delivery{}, ErrInvalidArgument
	}

	unlock := c.table.Lock(sessionID)
	defer unlock()

	s, err := c.live(sessionID, string(kind))
	if err != nil {
		return relay.Delivery{}, err
	}
	if !s.IsParticipant(fromUserID) {
		return relay.Delivery{}, ErrNotParticipant
	}

	ev := c.event(kind, s, fromUserID, c.clock().UTC(), payload)
	return c.relay.Deliver(ctx, ev, s.Other(fromUserID), presence.ScopeSignaling), nil
}

/* ===================== QUERIES ===================== */

// Session returns a live session by id.
func (c *Controller) Session(sessionID string) (Session, bool) { return c.table.Get(sessionID) }

// PendingInvites lists invitations still waiting for userID to answer.
func (c *Controller) PendingInvites(userID string) []Session { return c.table.PendingFor(userID) }

// RedeliverPending re-sends pending invitations to a user who just connected.
func (c *Controller) RedeliverPending(ctx context.Context, userID string) int {
	n := 0
	for _, s := range c.table.PendingFor(userID) {
		rem, err := c.ledger.GetRemaining(ctx, s.CallerID, s.CalleeID)
		if err != nil {
			rem = quota.Remaining{LimitSeconds: c.ledger.LimitSeconds()}
		}
		ev := c.event(relay.EventCallInvite, s, s.CallerID, c.clock().UTC(), c.invitePayload(s, rem))
		if d := c.relay.Deliver(ctx, ev, userID, presence.ScopeGeneral); d.Delivered {
			n++
		}
	}
	return n
}

// Close stops every pending quota timer.
func (c *Controller) Close() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

/* ===================== INTERNAL ===================== */

func (c *Controller) live(sessionID, op string) (Session, error) {
	s, ok := c.table.Get(sessionID)
	if !ok {
		c.log.Info("event for unknown session ignored",
			"session_id", sessionID,
			"op", op,
			"finalized", c.table.IsFinalized(sessionID, c.clock()),
		)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// finish moves s to a terminal state and drops it from the live table.
func (c *Controller) finish(s Session, to State, by string, reason Reason, now time.Time) Session {
	s.State = to
	s.EndedAt = now
	s.EndedBy = by
	s.EndReason = reason
	c.stopTimer(s.ID)
	c.table.Finalize(s.ID, now, c.cfg.FinalizedTTL)
	c.observe(to, reason)
	return s
}

func (c *Controller) event(typ relay.EventType, s Session, from string, now time.Time, data any) relay.Event {
	ev := relay.NewEvent(typ, s.ID, data)
	ev.From = from
	ev.ServerTimeMs = now.UnixMilli()
	return ev
}

func (c *Controller) fanoutBoth(ctx context.Context, typ relay.EventType, s Session, from string, now time.Time, data any) {
	ev := c.event(typ, s, from, now, data)
	for _, u := range []string{s.CallerID, s.CalleeID} {
		c.relay.FanoutScopes(ctx, ev, u, lifecycleScopes...)
	}
}

func (c *Controller) invitePayload(s Session, rem quota.Remaining) InvitePayload {
	return InvitePayload{
		CallerID:         s.CallerID,
		CalleeID:         s.CalleeID,
		RemainingSeconds: rem.RemainingSeconds,
		LimitSeconds:     rem.LimitSeconds,
		CreatedAtMs:      s.CreatedAt.UnixMilli(),
	}
}

func (c *Controller) notify(ctx context.Context, typ notify.Type, s Session, payload map[string]any) {
	c.notifier.Trigger(ctx, notify.Event{
		SessionID: s.ID,
		CallID:    s.CallID,
		CallerID:  s.CallerID,
		CalleeID:  s.CalleeID,
		Type:      typ,
		Payload:   payload,
	})
}

func (c *Controller) record(ctx context.Context, s Session, outcome reporting.Outcome, duration, usedAfter int64, exceeded bool) {
	rec := reporting.CallRecord{
		CallID:           s.CallID,
		SessionID:        s.ID,
		CallerID:         s.CallerID,
		CalleeID:         s.CalleeID,
		Outcome:          outcome,
		Reason:           string(s.EndReason),
		EndedBy:          s.EndedBy,
		DurationSeconds:  duration,
		RemainingAtStart: s.RemainingAtStart,
		TotalUsedAfter:   usedAfter,
		LimitExceeded:    exceeded,
		CreatedAt:        s.CreatedAt,
		StartedAt:        s.ServerStartAt,
		EndedAt:          s.EndedAt,
	}
	if err := c.history.RecordCall(ctx, rec); err != nil {
		c.log.Warn("call history write failed", "session_id", s.ID, "err", err)
	}
}

func (c *Controller) degrade(op, sessionID string, err error) bool {
	metrics.DegradedEvents.WithLabelValues("ledger_" + op).Inc()
	c.log.Warn("ledger unavailable, continuing unmetered", "op", op, "session_id", sessionID, "err", err)
	return true
}

func (c *Controller) observe(to State, reason Reason) {
	metrics.SessionTransitions.WithLabelValues(string(to), string(reason)).Inc()
	for st, n := range c.table.CountByState() {
		metrics.ActiveSessions.WithLabelValues(string(st)).Set(float64(n))
	}
}

/* ===================== QUOTA TIMER ===================== */

// armTimer emits time_exceeded to both parties once the snapshot budget elapses.
func (c *Controller) armTimer(s Session) {
	id, start := s.ID, s.ServerStartAt
	t := time.AfterFunc(time.Duration(s.RemainingAtStart)*time.Second, func() {
		c.onQuotaTimer(id, start)
	})

	c.timersMu.Lock()
	if old, ok := c.timers[id]; ok {
		old.Stop()
	}
	c.timers[id] = t
	c.timersMu.Unlock()
}

func (c *Controller) stopTimer(id string) {
	c.timersMu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	c.timersMu.Unlock()
}

func (c *Controller) onQuotaTimer(id string, start time.Time) {
	unlock := c.table.Lock(id)
	defer unlock()

	c.timersMu.Lock()
	delete(c.timers, id)
	c.timersMu.Unlock()

	s, ok := c.table.Get(id)
	if !ok || s.State != StateActive || !s.ServerStartAt.Equal(start) {
		return
	}
	now := c.clock().UTC()
	c.fanoutBoth(context.Background(), relay.EventTimeExceeded, s, SystemActor, now, TimeExceededPayload{
		Phase:        PhaseInCall,
		LimitSeconds: c.ledger.LimitSeconds(),
	})
	c.log.Info("call budget elapsed", "session_id", id, "remaining_at_start", s.RemainingAtStart)
}

type noopNotifier struct{}

func (noopNotifier) Trigger(context.Context, notify.Event) bool { return false }

type noopHistory struct{}

func (noopHistory) RecordCall(context.Context, reporting.CallRecord) error { return nil }
