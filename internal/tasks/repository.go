package tasks

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"tenant-task-manager/internal/tenant"
)

// ErrNotFound возвращается хранилищем, если задачи с таким id нет у арендатора.
var ErrNotFound = errors.New("task not found")

// Repository - хранилище задач.
//
// Арендатор передаётся явно в каждый вызов: реализация обязана фильтровать
// по нему каждую выборку и проставлять его при вставке. Задача чужого
// арендатора для реализации не существует (ErrNotFound).
type Repository interface {
	Create(ctx context.Context, tenantID tenant.ID, t *Task) error
	FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (Task, error)
	// Find возвращает страницу задач и общее число задач под фильтром.
	Find(ctx context.Context, tenantID tenant.ID, filter Filter, page PageRequest) ([]Task, int64, error)
	Update(ctx context.Context, tenantID tenant.ID, t *Task) error
	Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error
}
