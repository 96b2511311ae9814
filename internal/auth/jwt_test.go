package auth

import (
	"testing"
	"time"

	"callguard/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, "u", "member")
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(10*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyIdentity_UsesManagerClock(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})
	now := time.Unix(1700000000, 0).UTC()
	m.now = func() time.Time { return now }

	p, _ := m.IssuePair(now, "alice", "admin")
	id, err := m.VerifyIdentity(p.AccessToken)
	if err != nil {
		t.Fatalf("verify identity: %v", err)
	}
	if id.UserID != "alice" || id.Role != "admin" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestVerifyRejectsForeignIssuerAudienceAndSecret(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	base := config.AuthConfig{JWTSecret: "secret", JWTIssuer: "callguard", JWTAudience: "clients", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}
	verifier, _ := NewManager(base)

	cases := map[string]func(c *config.AuthConfig){
		"issuer":   func(c *config.AuthConfig) { c.JWTIssuer = "someone-else" },
		"audience": func(c *config.AuthConfig) { c.JWTAudience = "other" },
		"secret":   func(c *config.AuthConfig) { c.JWTSecret = "forged" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			issuer, _ := NewManager(cfg)
			p, err := issuer.IssuePair(now, "u", "member")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if _, err := verifier.Verify(p.AccessToken, TokenTypeAccess, now); err == nil {
				t.Fatalf("expected %s mismatch to be rejected", name)
			}
		})
	}
}

func TestVerifyToleratesSmallClockSkew(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, "u", "member")

	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(-10*time.Second)); err != nil {
		t.Fatalf("expected token issued slightly in the future to verify, got %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(80*time.Second)); err != nil {
		t.Fatalf("expected leeway past expiry to verify, got %v", err)
	}
}
