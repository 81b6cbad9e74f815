package middleware

import (
	midsec "github.com/TUK-curriculum/frontend-tuk-navi/middleware/security"
	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
	Auth   *midsec.Options // nil => midsec.DefaultOptions()
}

func (o RouteOpt) handlers(h gin.HandlerFunc) []gin.HandlerFunc {
	if !o.IsAuth {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{midsec.Middleware(o.Auth), h}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, opt.handlers(handler)...)
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, opt.handlers(handler)...)
}

func DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, opt.handlers(handler)...)
}
