// Package taskstest содержит общий набор тестов для реализаций
// tasks.Repository. Каждое хранилище прогоняет его у себя.
package taskstest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tenant"
)

// NewRepositoryFunc создаёт пустое хранилище для одного подтеста.
type NewRepositoryFunc func(t *testing.T) tasks.Repository

const (
	tenantA tenant.ID = "tenant-a"
	tenantB tenant.ID = "tenant-b"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// RepositoryTest прогоняет набор тестов над хранилищем.
func RepositoryTest(t *testing.T, newRepo NewRepositoryFunc) {
	t.Run("CreateAndFindByID", func(t *testing.T) { createAndFind(t, newRepo) })
	t.Run("MissingTenant", func(t *testing.T) { missingTenant(t, newRepo) })
	t.Run("TenantIsolation", func(t *testing.T) { tenantIsolation(t, newRepo) })
	t.Run("FindFilterAndPaging", func(t *testing.T) { findFilterAndPaging(t, newRepo) })
	t.Run("Update", func(t *testing.T) { update(t, newRepo) })
	t.Run("Delete", func(t *testing.T) { deleteTask(t, newRepo) })
}

// NewTask собирает задачу для тестов; offset сдвигает время создания.
func NewTask(title string, status tasks.Status, offset time.Duration) tasks.Task {
	ts := baseTime.Add(offset)
	return tasks.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: "description of " + title,
		Status:      status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// taskCmpOpts допускает потерю точности времени в базах данных.
var taskCmpOpts = []cmp.Option{
	cmpopts.EquateApproxTime(time.Millisecond),
}

func mustCreate(t *testing.T, repo tasks.Repository, tenantID tenant.ID, task tasks.Task) tasks.Task {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), tenantID, &task))
	return task
}

func createAndFind(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, tenantA, NewTask("Write docs", tasks.StatusPending, 0))
	assert.Equal(t, tenantA, created.TenantID)

	found, err := repo.FindByID(ctx, tenantA, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, found, taskCmpOpts...); diff != "" {
		t.Fatalf("unexpected task (-want +got):\n%s", diff)
	}

	_, err = repo.FindByID(ctx, tenantA, uuid.New())
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "got %v", err)
}

func missingTenant(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)

	task := NewTask("Orphan", tasks.StatusPending, 0)
	err := repo.Create(context.Background(), "", &task)
	require.Error(t, err)
	assert.Equal(t, ierrors.EMissingTenant, ierrors.ErrorCode(err))
}

func tenantIsolation(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)
	ctx := context.Background()

	own := mustCreate(t, repo, tenantA, NewTask("Tenant A task", tasks.StatusPending, 0))
	mustCreate(t, repo, tenantB, NewTask("Tenant B task", tasks.StatusPending, time.Minute))

	_, err := repo.FindByID(ctx, tenantB, own.ID)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "find: got %v", err)

	items, total, err := repo.Find(ctx, tenantB, tasks.Filter{}, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Tenant B task", items[0].Title)

	foreign := own
	foreign.Title = "Hijacked"
	err = repo.Update(ctx, tenantB, &foreign)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "update: got %v", err)

	err = repo.Delete(ctx, tenantB, own.ID)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "delete: got %v", err)

	found, err := repo.FindByID(ctx, tenantA, own.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tenant A task", found.Title)
}

func findFilterAndPaging(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)
	ctx := context.Background()

	for i, status := range []tasks.Status{tasks.StatusPending, tasks.StatusInProgress, tasks.StatusPending, tasks.StatusDone} {
		mustCreate(t, repo, tenantA, NewTask(fmt.Sprintf("Task %d", i), status, time.Duration(i)*time.Minute))
	}

	items, total, err := repo.Find(ctx, tenantA, tasks.Filter{}, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"Task 0", "Task 1", "Task 2", "Task 3"}, titles(items))

	pending := tasks.StatusPending
	items, total, err = repo.Find(ctx, tenantA, tasks.Filter{Status: &pending}, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"Task 0", "Task 2"}, titles(items))

	page := tasks.PageRequest{Page: 1, Size: 3, Sort: tasks.SortCreatedAt}
	items, total, err = repo.Find(ctx, tenantA, tasks.Filter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"Task 3"}, titles(items))

	page = tasks.PageRequest{Page: 0, Size: 2, Sort: tasks.SortCreatedAt, Desc: true}
	items, _, err = repo.Find(ctx, tenantA, tasks.Filter{}, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"Task 3", "Task 2"}, titles(items))

	page = tasks.PageRequest{Page: 5, Size: 10, Sort: tasks.SortTitle}
	items, total, err = repo.Find(ctx, tenantA, tasks.Filter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, items)
}

func update(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, tenantA, NewTask("Draft", tasks.StatusPending, 0))

	changed := created
	changed.Title = "Final"
	changed.Description = ""
	changed.Status = tasks.StatusInProgress
	changed.UpdatedAt = created.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, tenantA, &changed))

	found, err := repo.FindByID(ctx, tenantA, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(changed, found, taskCmpOpts...); diff != "" {
		t.Fatalf("unexpected task (-want +got):\n%s", diff)
	}
	assert.WithinDuration(t, created.CreatedAt, found.CreatedAt, time.Millisecond)

	missing := NewTask("Ghost", tasks.StatusPending, 0)
	err = repo.Update(ctx, tenantA, &missing)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "got %v", err)
}

func deleteTask(t *testing.T, newRepo NewRepositoryFunc) {
	repo := newRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, tenantA, NewTask("Disposable", tasks.StatusPending, 0))
	kept := mustCreate(t, repo, tenantA, NewTask("Kept", tasks.StatusPending, time.Minute))

	require.NoError(t, repo.Delete(ctx, tenantA, created.ID))

	_, err := repo.FindByID(ctx, tenantA, created.ID)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "got %v", err)

	err = repo.Delete(ctx, tenantA, created.ID)
	assert.True(t, errors.Is(err, tasks.ErrNotFound), "got %v", err)

	_, err = repo.FindByID(ctx, tenantA, kept.ID)
	assert.NoError(t, err)
}

func titles(items []tasks.Task) []string {
	out := make([]string, 0, len(items))
	for _, t := range items {
		out = append(out, t.Title)
	}
	return out
}
