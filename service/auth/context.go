// Package auth holds the bearer credential the chat client connects with.
// Acquiring the token is someone else's job; this only stores and judges it.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/security"
)

// Listener is told the authentication status after every token change.
type Listener func(authenticated bool)

type Context struct {
	mu     sync.RWMutex
	token  string
	secret []byte
	now    func() time.Time

	lmu       sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// NewContext returns an empty context. With a secret the token signature is
// verified too; without one only the exp claim is inspected.
func NewContext(secret []byte) *Context {
	return &Context{
		secret:    secret,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// SetToken replaces the credential and notifies listeners.
func (c *Context) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.notify(c.IsAuthenticated())
}

func (c *Context) ClearToken() { c.SetToken("") }

func (c *Context) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) IsAuthenticated() bool { return c.Check() == nil }

// Check explains IsAuthenticated: nil, ErrUnauthenticated or ErrTokenExpired.
// A token that is not a JWT is opaque to the client and accepted as is.
func (c *Context) Check() error {
	token := c.BearerToken()
	if token == "" {
		return errs.ErrUnauthenticated.WrapMsg("no token")
	}
	if len(c.secret) > 0 {
		_, err := security.Verify(security.DefaultOptions(c.secret), token)
		return err
	}
	claims, err := security.Inspect(token)
	if err != nil {
		if errors.Is(err, errs.ErrArgs) {
			return nil
		}
		return err
	}
	if claims.Expired(c.now()) {
		return errs.ErrTokenExpired.WrapMsg("token expired", "exp", claims.ExpiresAt)
	}
	return nil
}

// Subject is the user the token was issued to, empty for opaque tokens.
func (c *Context) Subject() string {
	claims, err := security.Inspect(c.BearerToken())
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (c *Context) OnChange(fn Listener) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Context) notify(ok bool) {
	c.lmu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	for _, fn := range fns {
		fn(ok)
	}
}
