package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callguard/internal/audit"
	"callguard/internal/auth"
	"callguard/internal/calls"
	"callguard/internal/config"
	"callguard/internal/presence"
	"callguard/internal/quota"
	"callguard/internal/relay"
	"callguard/internal/reporting"
	"callguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// nopTransport accepts everything and reaches nobody.
type nopTransport struct{}

func (nopTransport) SendToConnection(string, relay.Event) error { return errors.New("offline") }
func (nopTransport) SendToGroup(presence.Scope, string, relay.Event) int {
	return 0
}
func (nopTransport) Broadcast(presence.Scope, relay.Event) int { return 0 }

type apiFixture struct {
	router *gin.Engine
	tokens *auth.Manager
	ledger *quota.Service
	audits *audit.MemoryRepo
}

func newFixture(t *testing.T, store quota.Store) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if store == nil {
		store = quota.NewMemoryStore()
	}
	ledger := quota.NewService(store, quota.Config{LimitSeconds: 300}, log)
	registry := presence.NewRegistry(log)
	history := reporting.NewService(reporting.NewMemoryRepo())
	ctl := calls.NewController(calls.NewTable(), calls.Deps{
		Ledger:  ledger,
		Relay:   relay.New(registry, nopTransport{}, relay.Options{}, log),
		History: history,
	}, calls.Config{}, log)
	t.Cleanup(ctl.Close)

	audits := audit.NewMemoryRepo()
	h := Handlers{
		Auth:      tokens,
		Quota:     ledger,
		Calls:     ctl,
		Presence:  registry,
		Reporting: history,
		Audit:     audit.NewService(audits),
		Location:  time.UTC,
		DevTokens: true,
	}
	r := gin.New()
	h.Register(r, auth.RequireAccessToken(tokens))
	return &apiFixture{router: r, tokens: tokens, ledger: ledger, audits: audits}
}

func (f *apiFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	pair, err := f.tokens.IssuePair(time.Now(), userID, role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.AccessToken
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestDevTokenThenMe(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/auth/token", "", gin.H{"user_id": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	pair := decode[auth.TokenPair](t, w)

	w = f.do(t, http.MethodGet, "/v1/me", pair.AccessToken, nil)
	me := decode[map[string]string](t, w)
	if me["user_id"] != "alice" || me["role"] != "member" {
		t.Fatalf("unexpected identity %+v", me)
	}

	if w := f.do(t, http.MethodGet, "/v1/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestCallFlowOverREST(t *testing.T) {
	f := newFixture(t, nil)
	alice, bob := f.token(t, "alice", "member"), f.token(t, "bob", "member")

	w := f.do(t, http.MethodPost, "/v1/calls/invite", alice, gin.H{"callee_id": "bob", "session_id": "s1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite: %d %s", w.Code, w.Body.String())
	}
	inv := decode[calls.InviteResult](t, w)
	if inv.RecipientOnline || inv.Session.State != calls.StateInvited {
		t.Fatalf("unexpected invite %+v", inv)
	}

	w = f.do(t, http.MethodGet, "/v1/calls/pending", bob, nil)
	pending := decode[struct {
		Invites []calls.Session `json:"invites"`
	}](t, w)
	if len(pending.Invites) != 1 {
		t.Fatalf("expected one pending invite, got %s", w.Body.String())
	}

	if w := f.do(t, http.MethodPost, "/v1/calls/s1/accept", alice, nil); w.Code != http.StatusForbidden {
		t.Fatalf("caller accept: expected 403, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/v1/calls/s1/accept", bob, nil)
	acc := decode[calls.AcceptResult](t, w)
	if w.Code != http.StatusOK || acc.RemainingAtStart != 300 {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/v1/calls/s1/end", alice, gin.H{"client_seconds": 60})
	end := decode[calls.EndResult](t, w)
	if w.Code != http.StatusOK || end.FinalSeconds != 60 || end.RemainingSeconds != 240 {
		t.Fatalf("end: %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, http.MethodPost, "/v1/calls/s1/end", bob, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second end: expected 404, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/v1/quota/alice", bob, nil)
	rem := decode[quota.Remaining](t, w)
	if rem.TotalUsedSeconds != 60 || rem.RemainingSeconds != 240 {
		t.Fatalf("unexpected remaining %+v", rem)
	}

	w = f.do(t, http.MethodGet, "/v1/calls/summary", alice, nil)
	sum := decode[reporting.CallsSummary](t, w)
	if sum.CompletedCalls != 1 || sum.TotalDurationSeconds != 60 {
		t.Fatalf("unexpected summary %s", w.Body.String())
	}
}

func TestInviteRejectedWhenQuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.ledger.AddUsage(context.Background(), "alice", "bob", quota.UsageRequest{Seconds: 300}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := f.do(t, http.MethodPost, "/v1/calls/invite", f.token(t, "alice", "member"), gin.H{"callee_id": "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	res := decode[calls.InviteResult](t, w)
	if !res.LimitExceeded || res.Reason != calls.ReasonTimeLimitExceeded {
		t.Fatalf("expected limitExceeded, got %s", w.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.token(t, "alice", "member")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"self call", http.MethodPost, "/v1/calls/invite", gin.H{"callee_id": "alice"}, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/v1/calls/nope/accept", nil, http.StatusNotFound},
		{"bad signal kind", http.MethodPost, "/v1/calls/nope/signal", gin.H{"type": "call_ended"}, http.StatusBadRequest},
		{"bad scope", http.MethodGet, "/v1/presence/online?scope=video", nil, http.StatusBadRequest},
		{"bad summary range", http.MethodGet, "/v1/calls/summary?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := f.do(t, tc.method, tc.path, alice, tc.body); w.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	_ = f.do(t, http.MethodPost, "/v1/calls/invite", alice, gin.H{"callee_id": "bob", "session_id": "s1"})
	if w := f.do(t, http.MethodPost, "/v1/calls/invite", f.token(t, "carol", "member"), gin.H{"callee_id": "bob", "session_id": "s1"}); w.Code != http.StatusConflict {
		t.Fatalf("reused id: expected 409, got %d", w.Code)
	}
}

func TestLedgerUnavailableIs503(t *testing.T) {
	f := newFixture(t, downStore{})
	w := f.do(t, http.MethodGet, "/v1/quota/bob", f.token(t, "alice", "member"), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAdminResetQuota(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, _ = f.ledger.AddUsage(ctx, "alice", "bob", quota.UsageRequest{Seconds: 120})

	body := gin.H{"user_a": "bob", "user_b": "alice", "reason": "support ticket"}
	if w := f.do(t, http.MethodPost, "/v1/admin/quota/reset", f.token(t, "alice", "member"), body); w.Code != http.StatusForbidden {
		t.Fatalf("member reset: expected 403, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/v1/admin/quota/reset", f.token(t, "sam", "support"), body); w.Code != http.StatusForbidden {
		t.Fatalf("support reset: expected 403, got %d", w.Code)
	}

	w := f.do(t, http.MethodPost, "/v1/admin/quota/reset", f.token(t, "root", "admin"), body)
	if w.Code != http.StatusOK {
		t.Fatalf("admin reset: %d %s", w.Code, w.Body.String())
	}
	rem, _ := f.ledger.GetRemaining(ctx, "alice", "bob")
	if rem.TotalUsedSeconds != 0 {
		t.Fatalf("expected usage zeroed, got %d", rem.TotalUsedSeconds)
	}

	events := f.audits.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != audit.EventTypeQuotaReset || ev.ActorUserID != "root" || ev.PairKey != "alice:bob" || ev.IPAddress == "" {
		t.Fatalf("unexpected audit event %+v", ev)
	}

	w = f.do(t, http.MethodGet, "/v1/admin/audit?pair_key=alice:bob", f.token(t, "sam", "support"), nil)
	listed := decode[struct {
		Events []audit.Event `json:"events"`
	}](t, w)
	if len(listed.Events) != 1 || listed.Events[0].ID != ev.ID {
		t.Fatalf("unexpected audit listing %s", w.Body.String())
	}
}

func TestSupportCanListUserPairs(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = f.ledger.AddUsage(context.Background(), "alice", "bob", quota.UsageRequest{Seconds: 10})

	if w := f.do(t, http.MethodGet, "/v1/admin/quota/users/alice", f.token(t, "bob", "member"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("member: expected 403, got %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/v1/admin/quota/users/alice", f.token(t, "sam", "support"), nil)
	out := decode[struct {
		Pairs []quota.UsagePeriod `json:"pairs"`
	}](t, w)
	if len(out.Pairs) != 1 || out.Pairs[0].TotalUsedSeconds != 10 {
		t.Fatalf("unexpected pairs %s", w.Body.String())
	}
}

type downStore struct{}

var errDown = errors.New("store down")

func (downStore) Get(context.Context, quota.Pair, string) (quota.UsagePeriod, error) {
	return quota.UsagePeriod{}, errDown
}
func (downStore) Add(context.Context, quota.Charge) (quota.UsagePeriod, int64, error) {
	return quota.UsagePeriod{}, 0, errDown
}
func (downStore) Reset(context.Context, quota.Pair, string, time.Time) (quota.UsagePeriod, error) {
	return quota.UsagePeriod{}, errDown
}
func (downStore) ListByUser(context.Context, string, string) ([]quota.UsagePeriod, error) {
	return nil, errDown
}
