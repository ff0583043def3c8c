package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/insightlab/analytics-engine/internal/api/dto"
	"github.com/insightlab/analytics-engine/internal/bus"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/internal/storage"
	"github.com/insightlab/analytics-engine/shared/postgresql"
)

// HealthHandler reports process health plus queue depth for operators.
type HealthHandler struct {
	logger   *slog.Logger
	dbClient *postgresql.Client
	storage  *storage.Storage
	bus      *bus.Bus
	adapter  queue.Adapter
	appName  string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:   deps.Logger,
		dbClient: deps.DBClient,
		storage:  deps.Storage,
		bus:      deps.Bus,
		adapter:  deps.Adapter,
		appName:  deps.AppName,
	}
}

// Health handles GET /health. Degraded means the database did not answer;
// queue counts are best-effort and zero when unavailable.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:    "healthy",
		Service:   h.appName,
		QueueMode: string(h.adapter.Mode()),
		BusFaults: h.bus.Faults(),
	}
	status := http.StatusOK

	if err := h.dbClient.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Error("Database health check failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		pending, dead, err := h.storage.QueueDepth(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to read queue depth", slog.String("error", err.Error()))
		} else {
			resp.PendingJobs = pending
			resp.DeadLetterCount = dead
		}
	}

	c.JSON(status, resp)
}
