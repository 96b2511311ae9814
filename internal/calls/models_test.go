package calls

import (
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateInvited, StateAccepted, true},
		{StateInvited, StateRejected, true},
		{StateInvited, StateCanceled, true},
		{StateInvited, StateActive, false},
		{StateInvited, StateEnded, false},
		{StateAccepted, StateActive, true},
		{StateActive, StateEnded, true},
		{StateActive, StateCanceled, false},
		{StateEnded, StateActive, false},
		{StateRejected, StateAccepted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateRejected, StateCanceled, StateEnded} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	for _, s := range []State{StateInvited, StateAccepted, StateActive} {
		if s.IsTerminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestSessionParticipants(t *testing.T) {
	s := Session{CallerID: "a", CalleeID: "b"}
	if !s.IsParticipant("a") || !s.IsParticipant("b") || s.IsParticipant("c") || s.IsParticipant("") {
		t.Fatalf("unexpected participant check")
	}
	if s.Other("a") != "b" || s.Other("b") != "a" || s.Other("c") != "" {
		t.Fatalf("unexpected Other")
	}
}

func TestServerMeasuredSeconds(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := Session{ServerStartAt: start}
	if got := s.ServerMeasuredSeconds(start.Add(45*time.Second + 900*time.Millisecond)); got != 45 {
		t.Fatalf("expected floor to 45, got %d", got)
	}
	if got := s.ServerMeasuredSeconds(start.Add(-time.Second)); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got := (Session{}).ServerMeasuredSeconds(start); got != 0 {
		t.Fatalf("expected 0 without start, got %d", got)
	}
}
