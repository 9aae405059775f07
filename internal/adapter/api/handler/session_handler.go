package handler

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/usecase"
	"faindi/pkg/response"
)

type SessionHandler struct {
	sessionUseCase *usecase.SessionUseCase
}

func NewSessionHandler(sessionUseCase *usecase.SessionUseCase) *SessionHandler {
	return &SessionHandler{
		sessionUseCase: sessionUseCase,
	}
}

type verifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type updateInfoRequest struct {
	Fullname string `json:"fullname" validate:"required"`
	Username string `json:"username" validate:"required"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	return response.Success(c, h.sessionUseCase.Snapshot())
}

func (h *SessionHandler) SignIn(c echo.Context) error {
	var req usecase.SignInInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessionUseCase.SignIn(c.Request().Context(), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, session)
}

// SignUp registers the account; the backend answers with a verification
// token, so the session stays unauthenticated until Verify succeeds.
func (h *SessionHandler) SignUp(c echo.Context) error {
	var req usecase.SignUpInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.sessionUseCase.SignUp(c.Request().Context(), req); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, h.sessionUseCase.Snapshot())
}

func (h *SessionHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessionUseCase.Verify(c.Request().Context(), usecase.VerifyInput{Code: req.Code})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, session)
}

func (h *SessionHandler) ResendVerify(c echo.Context) error {
	if err := h.sessionUseCase.ResendVerify(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Verification code sent",
	})
}

func (h *SessionHandler) CheckUsername(c echo.Context) error {
	available, err := h.sessionUseCase.CheckUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{
		"available": available,
	})
}

func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.sessionUseCase.Logout(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Signed out",
	})
}

func (h *SessionHandler) UpdateInfo(c echo.Context) error {
	var req updateInfoRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	h.sessionUseCase.UpdateInfo(usecase.InfoUpdate{
		Fullname: req.Fullname,
		Username: req.Username,
		Title:    req.Title,
		Bio:      req.Bio,
	})

	return response.Success(c, h.sessionUseCase.Snapshot())
}

func (h *SessionHandler) GetNotifications(c echo.Context) error {
	notifications, err := h.sessionUseCase.Notifications(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, notifications)
}
