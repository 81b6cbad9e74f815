package security

import (
	"errors"
	"testing"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
)

var secret = []byte("test-secret")

func TestGenerateVerify(t *testing.T) {
	tok, exp, err := Generate(DefaultOptions(secret), "user-1", []string{"chat"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	c, err := Verify(DefaultOptions(secret), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Subject != "user-1" {
		t.Fatalf("subject = %q", c.Subject)
	}
	if c.ExpiresAt.Unix() != exp.Unix() {
		t.Fatalf("exp = %v, want %v", c.ExpiresAt, exp)
	}
	if len(c.Scopes) != 1 || c.Scopes[0] != "chat" {
		t.Fatalf("scopes = %v", c.Scopes)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, _, err := Generate(DefaultOptions(secret), "user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("other")), tok); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("want unauthenticated, got %v", err)
	}
}

func TestInspectExpired(t *testing.T) {
	opts := DefaultOptions(secret)
	opts.TTL = time.Millisecond
	tok, _, err := Generate(opts, "user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	c, err := Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !c.Expired(time.Now().Add(time.Second)) {
		t.Fatalf("token should be expired a second later")
	}
	if _, err := Inspect("opaque-token"); err == nil {
		t.Fatalf("opaque token should not parse as jwt")
	}
}

func TestHashToken(t *testing.T) {
	a, b := HashToken("tok-a"), HashToken("tok-b")
	if a == b || a != HashToken("tok-a") {
		t.Fatalf("hash not stable or not distinct: %s %s", a, b)
	}
	if len(a) != len("sha256:")+64 || a[:7] != "sha256:" {
		t.Fatalf("hash = %s", a)
	}
}
