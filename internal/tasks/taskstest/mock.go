package taskstest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tenant"
)

// MockRepository - tasks.Repository на testify/mock.
type MockRepository struct {
	mock.Mock
}

var _ tasks.Repository = (*MockRepository)(nil)

func (m *MockRepository) Create(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	args := m.Called(ctx, tenantID, t)
	if args.Error(0) == nil {
		t.TenantID = tenantID
	}
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Get(0).(tasks.Task), args.Error(1)
}

func (m *MockRepository) Find(ctx context.Context, tenantID tenant.ID, filter tasks.Filter, page tasks.PageRequest) ([]tasks.Task, int64, error) {
	args := m.Called(ctx, tenantID, filter, page)
	items, _ := args.Get(0).([]tasks.Task)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	args := m.Called(ctx, tenantID, t)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}
