package tasks

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/tenant"
)

// TaskService - операции над задачами текущего арендатора.
//
// Арендатор берётся из ctx (tenant.NewContext). Без него любая операция
// возвращает ошибку EMissingTenant.
type TaskService interface {
	List(ctx context.Context, page PageRequest) (Page, error)
	ListByStatus(ctx context.Context, status Status, page PageRequest) (Page, error)
	Get(ctx context.Context, id uuid.UUID) (Task, error)
	Create(ctx context.Context, req CreateTaskRequest) (Task, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// NotFoundMessage - сообщение клиенту, когда задачи нет.
const NotFoundMessage = "Task not found."

// InvalidInputMessage - сообщение при пустом id или пустом теле обновления.
const InvalidInputMessage = "Invalid input"

var _ TaskService = (*Service)(nil)

// Service - слой бизнес-логики: handler -> service -> repository.
type Service struct {
	repo  Repository
	clock clock.Clock
	newID func() uuid.UUID

	// doneTerminal запрещает выводить задачу из DONE.
	doneTerminal bool
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет часы (в тестах - clock.NewMock()).
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithDoneTerminal делает DONE конечным состоянием.
func WithDoneTerminal(terminal bool) Option {
	return func(s *Service) {
		s.doneTerminal = terminal
	}
}

// NewService создаёт сервис поверх хранилища.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		clock: clock.New(),
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List возвращает страницу задач арендатора.
func (s *Service) List(ctx context.Context, page PageRequest) (Page, error) {
	return s.find(ctx, "tasks.List", Filter{}, page)
}

// ListByStatus - то же, что List, но только задачи с данным статусом.
func (s *Service) ListByStatus(ctx context.Context, status Status, page PageRequest) (Page, error) {
	const op = "tasks.ListByStatus"
	if !status.Valid() {
		return Page{}, ierrors.Invalid(op, "Unknown status "+string(status))
	}
	return s.find(ctx, op, Filter{Status: &status}, page)
}

func (s *Service) find(ctx context.Context, op string, filter Filter, page PageRequest) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return Page{}, err
	}

	page, err = page.Normalize()
	if err != nil {
		return Page{}, err
	}

	items, total, err := s.repo.Find(ctx, tenantID, filter, page)
	if err != nil {
		return Page{}, s.storageError(op, err)
	}
	return NewPage(items, total, page), nil
}

// Get возвращает задачу по id. Задача другого арендатора неотличима от
// несуществующей.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	const op = "tasks.Get"
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return Task{}, err
	}

	t, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return Task{}, s.storageError(op, err)
	}
	return t, nil
}

// Create создаёт задачу в статусе PENDING от имени текущего арендатора.
// Форма запроса (длины полей) проверяется на границе, в handler.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest) (Task, error) {
	const op = "tasks.Create"
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return Task{}, err
	}

	now := s.clock.Now().UTC()
	created := Task{
		ID:          s.newID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		TenantID:    tenantID,
	}

	if err := s.repo.Create(ctx, tenantID, &created); err != nil {
		return Task{}, s.storageError(op, err)
	}
	return created, nil
}

// Update частично обновляет задачу. Новый статус проходит через правила
// переходов; при недопустимом переходе ничего не сохраняется.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (Task, error) {
	const op = "tasks.Update"
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	if id == uuid.Nil || req == nil {
		return Task{}, ierrors.Invalid(op, InvalidInputMessage)
	}

	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return Task{}, err
	}

	updated, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return Task{}, s.storageError(op, err)
	}

	if req.Title != nil {
		updated.Title = *req.Title
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Status != nil {
		if s.doneTerminal && updated.Status == StatusDone && *req.Status != StatusDone {
			return Task{}, transitionError(updated.Status, *req.Status)
		}
		if err := updated.SetStatus(*req.Status); err != nil {
			return Task{}, err
		}
	}
	updated.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, tenantID, &updated); err != nil {
		return Task{}, s.storageError(op, err)
	}
	return updated, nil
}

// Delete удаляет задачу. Сначала проверяем, что она есть у арендатора:
// до удаления в хранилище доходят только существующие задачи.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "tasks.Delete"
	if err := ctx.Err(); err != nil {
		return err
	}

	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return s.storageError(op, err)
	}

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return s.storageError(op, err)
	}
	return nil
}

// storageError переводит ошибку хранилища в доменную.
func (s *Service) storageError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ierrors.NotFound(op, NotFoundMessage)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var domainErr *ierrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return ierrors.Internal(op, err)
}
