package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/api/dto"
	"github.com/insightlab/analytics-engine/internal/domain"
)

// NotificationService is the sink surface the handlers drive. Satisfied by
// notify.Sink.
type NotificationService interface {
	List(ctx context.Context, tenantID, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, tenantID, id string) error
	MarkDismissed(ctx context.Context, tenantID, id string) error
}

// NotificationHandler serves the notification inbox endpoints.
type NotificationHandler struct {
	logger *slog.Logger
	sink   NotificationService
}

// NewNotificationHandler creates a new NotificationHandler instance.
func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger: deps.Logger,
		sink:   deps.Sink,
	}
}

// ListNotifications handles GET /api/v1/notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tenant_id is required",
		})
		return
	}

	userID := c.Query("user_id")
	limit := parseLimit(c.Query("limit"), 100)

	notifications, err := h.sink.List(c.Request.Context(), tenantID, userID, limit)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list notifications",
		})
		return
	}

	out := make([]dto.NotificationDTO, 0, len(notifications))
	for i := range notifications {
		out = append(out, notificationToDTO(&notifications[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": out,
	})
}

// MarkRead handles POST /api/v1/notifications/:notification_id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.transition(c, h.sink.MarkRead, "read")
}

// MarkDismissed handles POST /api/v1/notifications/:notification_id/dismiss.
func (h *NotificationHandler) MarkDismissed(c *gin.Context) {
	h.transition(c, h.sink.MarkDismissed, "dismissed")
}

func (h *NotificationHandler) transition(c *gin.Context, fn func(ctx context.Context, tenantID, id string) error, state string) {
	id := c.Param("notification_id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "notification_id must be a valid UUID",
		})
		return
	}

	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tenant_id is required",
		})
		return
	}

	err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotificationNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Notification not found",
			})
		case errors.Is(err, domain.ErrNotificationDismissed):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Notification is dismissed and cannot change state",
			})
		default:
			h.logger.Error("Failed to update notification state",
				slog.String("notification_id", id),
				slog.String("state", state),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update notification",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notification_id": id,
		"state":           state,
	})
}

func notificationToDTO(n *domain.Notification) dto.NotificationDTO {
	return dto.NotificationDTO{
		NotificationID: n.ID,
		TenantID:       n.TenantID,
		UserID:         n.UserID,
		Priority:       n.Priority,
		Title:          n.Title,
		Message:        n.Message,
		Data:           n.Data,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
		Read:           n.ReadAt != nil,
	}
}
