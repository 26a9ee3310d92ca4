package identity

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	secretA = "relay-test-secret-at-least-32-bytes-long"
	secretB = "another-relay-secret-at-least-32-bytes!!"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := New(secretA)
	tok, err := v.Issue("u-1", "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	name, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if name != "alice" {
		t.Fatalf("name = %q", name)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, err := New(secretA).Issue("u-1", "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := New(secretB).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingClaim(t *testing.T) {
	v := New(secretA)
	tok, err := v.Issue("u-1", "  ", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := v.Verify(tok); !errors.Is(err, ErrNoUsername) {
		t.Fatalf("err = %v, want ErrNoUsername", err)
	}
}

func TestDisabledVerifier(t *testing.T) {
	v := New("")
	if v.Enabled() {
		t.Fatal("empty secret should disable verification")
	}
	if _, err := v.Verify("anything"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestFromRequest(t *testing.T) {
	v := New(secretA)
	tok, err := v.Issue("u-2", "bob", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest("GET", "/ws?token="+tok, nil)
	if name, err := v.FromRequest(r); err != nil || name != "bob" {
		t.Fatalf("query: name=%q err=%v", name, err)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	if name, err := v.FromRequest(r); err != nil || name != "bob" {
		t.Fatalf("header: name=%q err=%v", name, err)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	if _, err := v.FromRequest(r); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("got %q", got)
	}
}
