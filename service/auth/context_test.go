package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/security"
)

func TestEmptyTokenIsUnauthenticated(t *testing.T) {
	c := NewContext(nil)
	if c.IsAuthenticated() {
		t.Fatalf("empty context authenticated")
	}
	if err := c.Check(); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpaqueTokenAccepted(t *testing.T) {
	c := NewContext(nil)
	c.SetToken("opaque-session-cookie")
	if !c.IsAuthenticated() {
		t.Fatalf("opaque token rejected: %v", c.Check())
	}
	if c.Subject() != "" {
		t.Fatalf("opaque token has no subject")
	}
}

func TestJWTExpiry(t *testing.T) {
	secret := []byte("k")
	tok, exp, err := security.Generate(security.DefaultOptions(secret), "student-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	c := NewContext(nil)
	c.SetToken(tok)
	if !c.IsAuthenticated() {
		t.Fatalf("fresh token rejected: %v", c.Check())
	}
	if c.Subject() != "student-1" {
		t.Fatalf("subject = %q", c.Subject())
	}

	c.now = func() time.Time { return exp.Add(time.Minute) }
	err = c.Check()
	if !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("err = %v", err)
	}
	// expired is a kind of unauthenticated
	if !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("expired should match unauthenticated")
	}
}

func TestSecretVerifiesSignature(t *testing.T) {
	tok, _, err := security.Generate(security.DefaultOptions([]byte("right")), "u", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	c := NewContext([]byte("wrong"))
	c.SetToken(tok)
	if c.IsAuthenticated() {
		t.Fatalf("bad signature accepted")
	}

	ok := NewContext([]byte("right"))
	ok.SetToken(tok)
	if !ok.IsAuthenticated() {
		t.Fatalf("good signature rejected: %v", ok.Check())
	}
}

func TestOnChange(t *testing.T) {
	c := NewContext(nil)
	var got []bool
	cancel := c.OnChange(func(ok bool) { got = append(got, ok) })
	c.SetToken("t")
	c.ClearToken()
	cancel()
	c.SetToken("again")

	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("notifications = %v", got)
	}
}
