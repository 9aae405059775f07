package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RealtimeStatus reports whether the backend realtime channel is up.
type RealtimeStatus interface {
	Connected() bool
}

// PushStatus reports how many UI subscribers are attached.
type PushStatus interface {
	Subscribers() int
}

type HealthHandler struct {
	realtime RealtimeStatus
	push     PushStatus
}

func NewHealthHandler(realtime RealtimeStatus, push PushStatus) *HealthHandler {
	return &HealthHandler{
		realtime: realtime,
		push:     push,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":           "Client is running",
		"time":             time.Now().Format(time.RFC3339),
		"realtime":         h.realtime.Connected(),
		"push_subscribers": h.push.Subscribers(),
	})
}
