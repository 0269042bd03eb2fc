package auth

import (
	"errors"
	"testing"
	"time"
)

func TestWalletToken_RoundTrip(t *testing.T) {
	secret := []byte("wallet-secret")
	issuer, err := NewTokenIssuer(secret, "certificate-transfer", time.Minute)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueWalletToken("org-001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseWalletToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.OrganizationID != "org-001" || claims.Subject != "org-001" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Issuer != "certificate-transfer" {
		t.Fatalf("issuer mismatch: %s", claims.Issuer)
	}
}

func TestWalletToken_Rejects(t *testing.T) {
	secret := []byte("wallet-secret")
	issuer, err := NewTokenIssuer(secret, "", time.Minute)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueWalletToken("org-001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseWalletToken(token, []byte("other-secret")); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}

	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := issuer.IssueWalletToken("org-001")
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}
	if _, err := ParseWalletToken(expired, secret); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	if _, err := issuer.IssueWalletToken(""); !errors.Is(err, ErrEmptyOrganization) {
		t.Fatalf("expected ErrEmptyOrganization, got %v", err)
	}
	if _, err := NewTokenIssuer(nil, "", 0); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
