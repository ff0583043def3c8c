// Package storage implements the Postgres persistence layer for jobs,
// notifications, tenants, and the read-only metrics collaborator.
package storage

import (
	"log/slog"

	"github.com/insightlab/analytics-engine/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the analytics engine.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New creates a Storage instance over the shared PostgreSQL client.
func New(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}
