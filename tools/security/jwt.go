package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options controls signing and verification.
type Options struct {
	Secret []byte        // HMAC key; empty means claims are read without verification
	Alg    string        // HS256/HS384/HS512 (default HS256)
	TTL    time.Duration // lifetime of generated tokens (default 2h)
}

// Claims is the subset of the access token the chat client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp
	Scopes    []string
}

// Expired is false for tokens without an exp claim.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func Generate(opts Options, userID string, scopes []string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.WrapMsg(err, "sign token")
	}
	return signed, exp, nil
}

// Verify checks the signature and the time based claims.
func Verify(opts Options, token string) (*Claims, error) {
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, err
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errs.ErrTokenExpired.WrapMsg(err.Error())
		}
		return nil, errs.ErrUnauthenticated.WrapMsg(err.Error())
	}
	if !parsed.Valid {
		return nil, errs.ErrUnauthenticated.WrapMsg("invalid token")
	}
	return toClaims(parsed)
}

// Inspect reads the claims without checking the signature. The client never
// holds the server key, it only needs exp to know when to stop reconnecting.
func Inspect(token string) (*Claims, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("not a jwt", "err", err)
	}
	return toClaims(parsed)
}

func toClaims(t *jwtlib.Token) (*Claims, error) {
	mc, ok := t.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrArgs.WrapMsg("claims type mismatch")
	}
	out := &Claims{}
	out.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	switch s := mc["scope"].(type) {
	case []any:
		for _, v := range s {
			out.Scopes = append(out.Scopes, fmt.Sprint(v))
		}
	case string:
		out.Scopes = strings.Fields(s)
	}
	return out, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errs.ErrArgs.WrapMsg("unsupported alg (use HS256/HS384/HS512)", "alg", alg)
	}
}
