package services

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreService struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreService(ctx context.Context, log zerolog.Logger, projectID, collection string, opts ...option.ClientOption) (*FirestoreService, error) {
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		log.Info().Str("host", host).Msg("using Firestore emulator")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}

	return &FirestoreService{
		client:     client,
		collection: collection,
	}, nil
}

func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreService) ListAll(ctx context.Context) ([]models.Task, error) {
	iter := fs.client.Collection(fs.collection).Documents(ctx)
	defer iter.Stop()

	var tasks []models.Task
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate tasks: %w", err)
		}

		var task models.Task
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %s: %w", doc.Ref.ID, err)
		}
		task.ID = doc.Ref.ID

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (fs *FirestoreService) Create(ctx context.Context, text, deadline string) (models.Task, error) {
	task := models.Task{
		Text:      text,
		Completed: false,
		Deadline:  deadline,
	}

	ref, _, err := fs.client.Collection(fs.collection).Add(ctx, task)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	task.ID = ref.ID

	return task, nil
}

func (fs *FirestoreService) Update(ctx context.Context, id string, fields models.TaskFields) error {
	updates := firestoreUpdates(fields)
	if len(updates) == 0 {
		return nil
	}

	_, err := fs.client.Collection(fs.collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("failed to update task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}

	return nil
}

func (fs *FirestoreService) Delete(ctx context.Context, id string) error {
	_, err := fs.client.Collection(fs.collection).Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	return nil
}

func firestoreUpdates(fields models.TaskFields) []firestore.Update {
	var updates []firestore.Update
	if fields.Text != nil {
		updates = append(updates, firestore.Update{Path: "text", Value: *fields.Text})
	}
	if fields.Deadline != nil {
		updates = append(updates, firestore.Update{Path: "deadline", Value: *fields.Deadline})
	}
	if fields.Completed != nil {
		updates = append(updates, firestore.Update{Path: "completed", Value: *fields.Completed})
	}
	return updates
}

var _ TaskStore = (*FirestoreService)(nil)
