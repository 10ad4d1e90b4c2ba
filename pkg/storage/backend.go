package storage

import (
	"context"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/tasks"
)

// Backend is a storage adapter that holds both conversation history and
// task records.
type Backend interface {
	history.Store
	tasks.Store

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
