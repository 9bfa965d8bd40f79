package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkTaskStore runs the same create/list/update/delete sequence against any
// backend, starting from an empty collection.
func checkTaskStore(t *testing.T, store TaskStore) {
	t.Helper()
	ctx := context.Background()

	created, err := store.Create(ctx, "Buy milk", "2025-03-10T17:45")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Completed)

	tasks, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created, tasks[0])

	done := true
	text := "Buy oat milk"
	require.NoError(t, store.Update(ctx, created.ID, models.TaskFields{Text: &text, Completed: &done}))

	tasks, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy oat milk", tasks[0].Text)
	assert.True(t, tasks[0].Completed)
	assert.Equal(t, "2025-03-10T17:45", tasks[0].Deadline)

	err = store.Update(ctx, "12345678", models.TaskFields{Completed: &done})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, store.Delete(ctx, created.ID))
	tasks, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryStoreContract(t *testing.T) {
	checkTaskStore(t, NewMemoryStore())
}
