package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tasks/taskstest"
)

func newTestRepository(t *testing.T, path string) *Repository {
	t.Helper()

	db, err := Open(path)
	require.NoError(t, err)

	repo := NewRepository(db)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository(t *testing.T) {
	taskstest.RepositoryTest(t, func(t *testing.T) tasks.Repository {
		return newTestRepository(t, ":memory:")
	})
}

func TestRepositoryPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	repo := newTestRepository(t, path)
	task := taskstest.NewTask("Persisted", tasks.StatusInProgress, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))
	require.NoError(t, repo.Close())

	reopened := newTestRepository(t, path)
	found, err := reopened.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", found.Title)
	assert.Equal(t, tasks.StatusInProgress, found.Status)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
