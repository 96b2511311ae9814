package calls

import (
	"context"
	"time"

	"callguard/internal/relay"
	"callguard/internal/reporting"
)

// SystemActor is recorded as the actor of server-initiated transitions.
const SystemActor = "system"

type SweepResult struct {
	ExpiredInvites int
	AbandonedCalls int
	PurgedMarkers  int
}

// Sweep cancels invitations nobody answered within InviteTimeout and force-ends
// active calls that outlived their budget plus ActiveSlack without an end event.
func (c *Controller) Sweep(ctx context.Context, now time.Time) SweepResult {
	var res SweepResult
	for _, s := range c.table.Snapshot() {
		switch s.State {
		case StateInvited:
			if c.inviteExpired(s, now) && c.expireInvite(ctx, s.ID, now) {
				res.ExpiredInvites++
			}
		case StateActive:
			if c.callAbandoned(s, now) && c.reapActive(ctx, s.ID, now) {
				res.AbandonedCalls++
			}
		}
	}
	res.PurgedMarkers = c.table.PurgeFinalized(now)
	return res
}

// Run sweeps every ReapInterval until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.cfg.ReapInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res := c.Sweep(ctx, c.clock().UTC())
			if res.ExpiredInvites > 0 || res.AbandonedCalls > 0 {
				c.log.Info("reaper sweep",
					"expired_invites", res.ExpiredInvites,
					"abandoned_calls", res.AbandonedCalls,
					"purged_markers", res.PurgedMarkers,
				)
			}
		}
	}
}

func (c *Controller) inviteExpired(s Session, now time.Time) bool {
	return now.Sub(s.CreatedAt) >= c.cfg.InviteTimeout
}

func (c *Controller) callAbandoned(s Session, now time.Time) bool {
	deadline := s.ServerStartAt.Add(time.Duration(s.RemainingAtStart)*time.Second + c.cfg.ActiveSlack)
	return now.After(deadline)
}

func (c *Controller) expireInvite(ctx context.Context, id string, now time.Time) bool {
	unlock := c.table.Lock(id)
	defer unlock()

	s, ok := c.table.Get(id)
	if !ok || s.State != StateInvited || !c.inviteExpired(s, now) {
		return false
	}
	s = c.finish(s, StateCanceled, SystemActor, ReasonInviteTimeout, now)
	c.fanoutBoth(ctx, relay.EventCallCanceled, s, SystemActor, now, ClosedPayload{By: SystemActor, Reason: ReasonInviteTimeout})
	c.record(ctx, s, reporting.OutcomeMissed, 0, 0, false)
	return true
}

func (c *Controller) reapActive(ctx context.Context, id string, now time.Time) bool {
	unlock := c.table.Lock(id)
	defer unlock()

	s, ok := c.table.Get(id)
	if !ok || s.State != StateActive || !c.callAbandoned(s, now) {
		return false
	}
	if _, err := c.endActive(ctx, s, SystemActor, nil, ReasonAbandoned, now); err != nil {
		c.log.Warn("reaper could not end call", "session_id", id, "err", err)
		return false
	}
	return true
}
