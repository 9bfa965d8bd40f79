package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"cloud.google.com/go/datastore"
	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// DatastoreService keeps tasks as entities of a single kind.
// Entity IDs are numeric and allocated by Datastore.
type DatastoreService struct {
	ds   *datastore.Client
	kind string
}

// NewDatastoreService creates a Datastore client. DATASTORE_EMULATOR_HOST is
// picked up by the client library.
func NewDatastoreService(ctx context.Context, log zerolog.Logger, projectID, kind string, opts ...option.ClientOption) (*DatastoreService, error) {
	if host := os.Getenv("DATASTORE_EMULATOR_HOST"); host != "" {
		log.Info().Str("host", host).Msg("using Datastore emulator")
	}

	ds, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	if kind == "" {
		kind = DefaultCollection
	}

	return &DatastoreService{ds: ds, kind: kind}, nil
}

// Close closes the underlying datastore client.
func (s *DatastoreService) Close() error {
	return s.ds.Close()
}

func (s *DatastoreService) key(id string) (*datastore.Key, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return datastore.IDKey(s.kind, n, nil), nil
}

func (s *DatastoreService) ListAll(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	keys, err := s.ds.GetAll(ctx, datastore.NewQuery(s.kind), &tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	for i, key := range keys {
		tasks[i].ID = strconv.FormatInt(key.ID, 10)
	}

	return tasks, nil
}

func (s *DatastoreService) Create(ctx context.Context, text, deadline string) (models.Task, error) {
	task := models.Task{Text: text, Deadline: deadline}

	key, err := s.ds.Put(ctx, datastore.IncompleteKey(s.kind, nil), &task)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	task.ID = strconv.FormatInt(key.ID, 10)

	return task, nil
}

// Update reads the entity, applies the fields and writes it back.
// Concurrent updates are last-write-wins.
func (s *DatastoreService) Update(ctx context.Context, id string, fields models.TaskFields) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}

	var task models.Task
	if err := s.ds.Get(ctx, key, &task); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return fmt.Errorf("failed to update task %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to load task %s: %w", id, err)
	}

	task = fields.Apply(task)
	if _, err := s.ds.Put(ctx, key, &task); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}

	return nil
}

func (s *DatastoreService) Delete(ctx context.Context, id string) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	if err := s.ds.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	return nil
}

var _ TaskStore = (*DatastoreService)(nil)
