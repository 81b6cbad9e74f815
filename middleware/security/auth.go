package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/gin-gonic/gin"
)

// context key under which the presented token is stored
const CtxAuthKey = "authorization"

type Options struct {
	HeaderToken               string // default "X-Bridge-Token"
	EnableAuthorizationBearer bool   // also accept Authorization: Bearer <token>
	Token                     string // expected value; empty disables the check
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "X-Bridge-Token",
		EnableAuthorizationBearer: true,
	}
}

// Middleware admits requests that present opts.Token.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	want := []byte(opts.Token)
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > len("bearer ") &&
				strings.EqualFold(authz[:len("bearer ")], "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token != "" {
			c.Set(CtxAuthKey, token)
		}

		if len(want) == 0 {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}
