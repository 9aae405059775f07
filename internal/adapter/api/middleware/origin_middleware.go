package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"faindi/pkg/errors"
	"faindi/pkg/response"
)

// OriginMiddleware keeps browser pages other than the configured UI origins
// away from the local API. Requests without an Origin header come from
// non-browser clients and pass.
type OriginMiddleware struct {
	origins []string
	allowed map[string]bool
}

func NewOriginMiddleware(allowedOrigins []string) *OriginMiddleware {
	m := &OriginMiddleware{allowed: make(map[string]bool, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(origin, "/")
		m.origins = append(m.origins, origin)
		m.allowed[origin] = true
	}
	return m
}

// CORS answers preflights for the allowed origins only. echo treats an
// empty list as "*", so no origins means no CORS headers at all.
func (m *OriginMiddleware) CORS() echo.MiddlewareFunc {
	if len(m.origins) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: m.origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	})
}

// Allowed reports whether a request carrying origin may use the API.
func (m *OriginMiddleware) Allowed(origin string) bool {
	return origin == "" || m.allowed[origin]
}

func (m *OriginMiddleware) RequireAllowedOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		origin := c.Request().Header.Get(echo.HeaderOrigin)
		if !m.Allowed(origin) {
			return response.Error(c, errors.Forbidden("Origin not allowed", nil))
		}
		return next(c)
	}
}
