package tasks_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tasks/taskstest"
)

func TestMemoryRepository(t *testing.T) {
	taskstest.RepositoryTest(t, func(t *testing.T) tasks.Repository {
		return tasks.NewMemoryRepository()
	})
}

func TestFileRepository(t *testing.T) {
	taskstest.RepositoryTest(t, func(t *testing.T) tasks.Repository {
		repo, err := tasks.NewFileRepository(filepath.Join(t.TempDir(), "tasks.json"))
		require.NoError(t, err)
		return repo
	})
}

func TestFileRepositoryReloadKeepsTenant(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.json")

	repo, err := tasks.NewFileRepository(path)
	require.NoError(t, err)

	task := taskstest.NewTask("Persisted", tasks.StatusInProgress, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))

	reopened, err := tasks.NewFileRepository(path)
	require.NoError(t, err)

	found, err := reopened.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", found.Title)
	assert.Equal(t, tasks.StatusInProgress, found.Status)

	_, err = reopened.FindByID(ctx, "globex", task.ID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestFileRepositoryEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	repo, err := tasks.NewFileRepository(path)
	require.NoError(t, err)

	items, total, err := repo.Find(context.Background(), "acme", tasks.Filter{}, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestFileRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := tasks.NewFileRepository(path)
	assert.Error(t, err)

	_, err = tasks.NewFileRepository("")
	assert.Error(t, err)
}

func TestRepositoryHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := tasks.NewMemoryRepository()
	task := taskstest.NewTask("Late", tasks.StatusPending, 0)
	assert.ErrorIs(t, repo.Create(ctx, "acme", &task), context.Canceled)
}
