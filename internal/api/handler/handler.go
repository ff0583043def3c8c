package handler

import (
	"log/slog"

	"github.com/insightlab/analytics-engine/internal/bus"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/internal/storage"
	"github.com/insightlab/analytics-engine/shared/postgresql"
)

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Logger   *slog.Logger
	DBClient *postgresql.Client
	Storage  *storage.Storage
	Sink     NotificationService
	Bus      *bus.Bus
	Adapter  queue.Adapter
	AppName  string
}
