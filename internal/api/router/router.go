package router

import (
	"github.com/gin-gonic/gin"
	"github.com/insightlab/analytics-engine/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	notificationHandler := handler.NewNotificationHandler(deps)
	eventHandler := handler.NewEventHandler(deps)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/events - publish a platform event to the bus
		v1.POST("/events", eventHandler.PublishEvent)

		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - submit an analytics job
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs/dead-letter - inspect dead-lettered jobs
			jobs.GET("/dead-letter", jobHandler.ListDeadLetters)

			// GET /api/v1/jobs/:job_id - get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - cancel a queued job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		notifications := v1.Group("/notifications")
		{
			// GET /api/v1/notifications - list a tenant's inbox
			notifications.GET("", notificationHandler.ListNotifications)

			// POST /api/v1/notifications/:notification_id/read
			notifications.POST("/:notification_id/read", notificationHandler.MarkRead)

			// POST /api/v1/notifications/:notification_id/dismiss
			notifications.POST("/:notification_id/dismiss", notificationHandler.MarkDismissed)
		}
	}

	return r
}
