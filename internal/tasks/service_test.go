package tasks_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tasks/taskstest"
	"tenant-task-manager/internal/tenant"
)

var start = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...tasks.Option) (*tasks.Service, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(start)
	opts = append([]tasks.Option{tasks.WithClock(clk)}, opts...)
	return tasks.NewService(tasks.NewMemoryRepository(), opts...), clk
}

func ctxFor(id tenant.ID) context.Context {
	return tenant.NewContext(context.Background(), id)
}

func ptr[T any](v T) *T {
	return &v
}

func TestServiceCreate(t *testing.T) {
	id := uuid.MustParse("7b8c4b8e-7a4a-4f57-9d1f-0f3c2f1e9a11")
	svc, _ := newTestService(t, tasks.WithIDGenerator(func() uuid.UUID { return id }))

	created, err := svc.Create(ctxFor("acme"), tasks.CreateTaskRequest{Title: "Task A", Description: "first"})
	require.NoError(t, err)

	assert.Equal(t, tasks.Task{
		ID:          id,
		Title:       "Task A",
		Description: "first",
		Status:      tasks.StatusPending,
		CreatedAt:   start,
		UpdatedAt:   start,
		TenantID:    "acme",
	}, created)

	got, err := svc.Get(ctxFor("acme"), id)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestServiceCreateRequiresTenant(t *testing.T) {
	repo := &taskstest.MockRepository{}
	svc := tasks.NewService(repo)

	_, err := svc.Create(context.Background(), tasks.CreateTaskRequest{Title: "Task A"})
	require.Error(t, err)
	assert.Equal(t, ierrors.EMissingTenant, ierrors.ErrorCode(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(ctxFor("acme"), uuid.New())
	require.Error(t, err)
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))
	assert.Equal(t, tasks.NotFoundMessage, ierrors.ErrorMessage(err))
}

func TestServiceTenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	owner, intruder := ctxFor("tenant-1"), ctxFor("tenant-2")

	created, err := svc.Create(owner, tasks.CreateTaskRequest{Title: "Secret plan"})
	require.NoError(t, err)

	page, err := svc.List(intruder, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Zero(t, page.TotalElements)

	page, err = svc.ListByStatus(intruder, tasks.StatusPending, tasks.DefaultPageRequest())
	require.NoError(t, err)
	assert.Empty(t, page.Content)

	_, err = svc.Get(intruder, created.ID)
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	_, err = svc.Update(intruder, created.ID, &tasks.UpdateTaskRequest{Title: ptr("Stolen")})
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	err = svc.Delete(intruder, created.ID)
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	got, err := svc.Get(owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Secret plan", got.Title)
}

func TestServiceUpdatePendingToDoneFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor("acme")

	created, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task A"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{
		Title:  ptr("Renamed"),
		Status: ptr(tasks.StatusDone),
	})
	require.Error(t, err)
	assert.Equal(t, ierrors.EInvalidTransition, ierrors.ErrorCode(err))
	assert.Equal(t, "Invalid status change: PENDING -> DONE", ierrors.ErrorMessage(err))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusPending, got.Status)
	assert.Equal(t, "Task A", got.Title)
}

func TestServiceUpdateInProgressToDone(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := ctxFor("acme")

	created, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task A"})
	require.NoError(t, err)

	clk.Add(time.Minute)
	_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusInProgress)})
	require.NoError(t, err)

	clk.Add(time.Minute)
	done, err := svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, done.Status)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, got.Status)
	assert.Equal(t, start, got.CreatedAt)
	assert.Equal(t, start.Add(2*time.Minute), got.UpdatedAt)
}

func TestServiceUpdatePartial(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := ctxFor("acme")

	created, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task A", Description: "keep me"})
	require.NoError(t, err)

	clk.Add(time.Hour)
	updated, err := svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Title: ptr("Task B")})
	require.NoError(t, err)

	assert.Equal(t, "Task B", updated.Title)
	assert.Equal(t, "keep me", updated.Description)
	assert.Equal(t, tasks.StatusPending, updated.Status)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, start.Add(time.Hour), updated.UpdatedAt)
	assert.Equal(t, tenant.ID("acme"), updated.TenantID)
}

func TestServiceUpdateInvalidInputSkipsRepository(t *testing.T) {
	repo := &taskstest.MockRepository{}
	svc := tasks.NewService(repo)
	ctx := ctxFor("acme")

	_, err := svc.Update(ctx, uuid.Nil, &tasks.UpdateTaskRequest{Title: ptr("Task A")})
	require.Error(t, err)
	assert.Equal(t, ierrors.EInvalid, ierrors.ErrorCode(err))
	assert.Equal(t, tasks.InvalidInputMessage, ierrors.ErrorMessage(err))

	_, err = svc.Update(ctx, uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, ierrors.EInvalid, ierrors.ErrorCode(err))

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceDeleteMissingSkipsRepositoryDelete(t *testing.T) {
	repo := &taskstest.MockRepository{}
	id := uuid.New()
	repo.On("FindByID", mock.Anything, tenant.ID("acme"), id).Return(tasks.Task{}, tasks.ErrNotFound)
	svc := tasks.NewService(repo)

	err := svc.Delete(ctxFor("acme"), id)
	require.Error(t, err)
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor("acme")

	created, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task A"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.Equal(t, ierrors.ENotFound, ierrors.ErrorCode(err))
}

func TestServiceListByStatus(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := ctxFor("acme")

	first, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task1"})
	require.NoError(t, err)
	clk.Add(time.Second)
	second, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task2"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusInProgress)})
	require.NoError(t, err)

	page, err := svc.ListByStatus(ctx, tasks.StatusPending, tasks.DefaultPageRequest())
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, first.ID, page.Content[0].ID)
	assert.Equal(t, tasks.StatusPending, page.Content[0].Status)

	page, err = svc.List(ctx, tasks.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, tasks.DefaultPageSize, page.Size)
	assert.Equal(t, first.ID, page.Content[0].ID)

	_, err = svc.ListByStatus(ctx, "LATER", tasks.DefaultPageRequest())
	assert.Equal(t, ierrors.EInvalid, ierrors.ErrorCode(err))
}

func TestServiceDoneTerminal(t *testing.T) {
	for _, terminal := range []bool{false, true} {
		svc, _ := newTestService(t, tasks.WithDoneTerminal(terminal))
		ctx := ctxFor("acme")

		created, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task A"})
		require.NoError(t, err)
		_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusInProgress)})
		require.NoError(t, err)
		_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusDone)})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Status: ptr(tasks.StatusPending)})
		if terminal {
			assert.Equal(t, ierrors.EInvalidTransition, ierrors.ErrorCode(err))
		} else {
			assert.NoError(t, err)
		}

		_, err = svc.Update(ctx, created.ID, &tasks.UpdateTaskRequest{Title: ptr("Still editable")})
		assert.NoError(t, err)
	}
}

func TestServiceStorageFailureIsInternal(t *testing.T) {
	repo := &taskstest.MockRepository{}
	repo.On("Find", mock.Anything, tenant.ID("acme"), tasks.Filter{}, tasks.DefaultPageRequest()).
		Return(nil, int64(0), errors.New("connection reset by peer"))
	svc := tasks.NewService(repo)

	_, err := svc.List(ctxFor("acme"), tasks.DefaultPageRequest())
	require.Error(t, err)
	assert.Equal(t, ierrors.EInternal, ierrors.ErrorCode(err))
	assert.Equal(t, ierrors.InternalMessage, ierrors.ErrorMessage(err))
	repo.AssertExpectations(t)
}

func TestServiceCanceledContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(ctxFor("acme"))
	cancel()

	_, err := svc.List(ctx, tasks.DefaultPageRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceListPageOverflow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ctxFor("acme")

	_, err := svc.Create(ctx, tasks.CreateTaskRequest{Title: "Task1"})
	require.NoError(t, err)

	_, err = svc.List(ctx, tasks.PageRequest{Page: math.MaxInt, Size: 20})
	assert.Equal(t, ierrors.EInvalid, ierrors.ErrorCode(err))

	page, err := svc.List(ctx, tasks.PageRequest{Page: math.MaxInt / tasks.MaxPageSize, Size: tasks.MaxPageSize})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.EqualValues(t, 1, page.TotalElements)
}
