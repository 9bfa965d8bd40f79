package services

import (
	"context"
	"errors"

	"github.com/Widiaaayuu/todolistt/internal/models"
)

// DefaultCollection is the collection (or kind) tasks are kept in.
const DefaultCollection = "tasks"

// ErrNotFound is returned when a task document does not exist.
var ErrNotFound = errors.New("task not found")

// TaskStore is the document store holding the authoritative task collection.
type TaskStore interface {
	// ListAll returns every task. Order is whatever the store yields.
	ListAll(ctx context.Context) ([]models.Task, error)

	// Create inserts an incomplete task and returns it with the store-assigned ID.
	Create(ctx context.Context, text, deadline string) (models.Task, error)

	// Update writes the non-nil fields of a task.
	Update(ctx context.Context, id string, fields models.TaskFields) error

	// Delete removes a task.
	Delete(ctx context.Context, id string) error

	Close() error
}
