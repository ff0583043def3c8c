package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/insightlab/analytics-engine/internal/api/dto"
	"github.com/insightlab/analytics-engine/internal/bus"
)

// EventHandler accepts platform events and hands them to the in-process bus.
type EventHandler struct {
	logger *slog.Logger
	bus    *bus.Bus
}

// NewEventHandler creates a new EventHandler instance.
func NewEventHandler(deps *Dependencies) *EventHandler {
	return &EventHandler{
		logger: deps.Logger,
		bus:    deps.Bus,
	}
}

// PublishEvent handles POST /api/v1/events. Publication is fire-and-forget
// from the caller's view: subscriber failures are logged and counted, never
// surfaced here.
func (h *EventHandler) PublishEvent(c *gin.Context) {
	var req dto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.bus.Publish(c.Request.Context(), req.Topic, req.TenantID, req.Payload)

	c.JSON(http.StatusAccepted, gin.H{
		"topic":     req.Topic,
		"tenant_id": req.TenantID,
	})
}
