package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process TaskStore. It backs local runs without a
// cloud project and doubles as the fake store in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]models.Task

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]models.Task)}
}

// Seed inserts a task as-is, keeping its ID.
func (m *MemoryStore) Seed(task models.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		m.order = append(m.order, task.ID)
	}
	m.tasks[task.ID] = task
}

// Get returns a stored task.
func (m *MemoryStore) Get(id string) (models.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Len returns the number of stored tasks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]models.Task, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]models.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, m.tasks[id])
	}
	return tasks, nil
}

func (m *MemoryStore) Create(ctx context.Context, text, deadline string) (models.Task, error) {
	if m.CreateErr != nil {
		return models.Task{}, m.CreateErr
	}
	task := models.Task{
		ID:       uuid.New().String(),
		Text:     text,
		Deadline: deadline,
	}
	m.Seed(task)
	return task, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fields models.TaskFields) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("failed to update task %s: %w", id, ErrNotFound)
	}
	m.tasks[id] = fields.Apply(task)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ TaskStore = (*MemoryStore)(nil)
