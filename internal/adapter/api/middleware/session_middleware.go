package middleware

import (
	"github.com/labstack/echo/v4"

	"faindi/pkg/errors"
	"faindi/pkg/response"
)

// SessionSource reports the locally signed-in user.
type SessionSource interface {
	Authenticated() bool
	UserID() string
}

type SessionMiddleware struct {
	session SessionSource
}

func NewSessionMiddleware(session SessionSource) *SessionMiddleware {
	return &SessionMiddleware{session: session}
}

// RequireSession rejects requests while nobody is signed in and stores the
// user id under "uid" for handlers.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.session.Authenticated() {
			return response.Error(c, errors.Unauthorized("Sign in required", nil))
		}
		c.Set("uid", m.session.UserID())
		return next(c)
	}
}
