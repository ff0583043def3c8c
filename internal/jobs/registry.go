// Package jobs holds the job handler registry and the executor shared by the
// durable worker pool and the immediate (in-process) queue mode.
package jobs

import (
	"context"
	"fmt"

	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/notify"
)

// HandlerFunc processes one job and returns the notification drafts to
// persist. Handlers fetch tenant data from collaborators and call the pure
// analytics engine; they never touch the broker or the job store.
type HandlerFunc func(ctx context.Context, job *domain.Job) ([]notify.Draft, error)

// Registry maps job types to handlers. Adding a job type is a Register call;
// pool and executor code never branch on type.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a job type, replacing any previous binding.
func (r *Registry) Register(jobType string, handler HandlerFunc) {
	r.handlers[jobType] = handler
}

// Resolve returns the handler for a job type.
func (r *Registry) Resolve(jobType string) (HandlerFunc, error) {
	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJobType, jobType)
	}
	return handler, nil
}

// Types returns the registered job types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
