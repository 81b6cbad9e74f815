package middleware

import (
	"net/http"
	"strings"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/gin-gonic/gin"
)

// Origin rejects browser requests from pages outside allowed. Requests
// without an Origin header always pass, and an empty list allows everything.
// It never calls c.Next, so it can sit inside a MiddlewareManager.
func Origin(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(set) == 0 || origin == "" {
			return
		}
		if _, ok := set[strings.TrimRight(origin, "/")]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, errs.ErrArgs.WithDetail("origin not allowed"))
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
	}
}
