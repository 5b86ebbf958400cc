package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-task-manager/internal/logger"
)

// LoggingService - TaskService, который пишет в лог каждый вызов.
type LoggingService struct {
	logger *zap.Logger
	svc    TaskService
}

var _ TaskService = (*LoggingService)(nil)

// NewLoggingService оборачивает svc логированием. Если в ctx запроса уже
// лежит логгер (request_id, tenant), пишем в него.
func NewLoggingService(log *zap.Logger, svc TaskService) *LoggingService {
	return &LoggingService{logger: log, svc: svc}
}

func (l *LoggingService) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, l.logger)
}

func (l *LoggingService) List(ctx context.Context, page PageRequest) (p Page, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log(ctx).Debug("failed to list tasks", zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("tasks list", zap.Int("count", len(p.Content)), dur)
	}(time.Now())
	return l.svc.List(ctx, page)
}

func (l *LoggingService) ListByStatus(ctx context.Context, status Status, page PageRequest) (p Page, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to list tasks with status %v", status)
			l.log(ctx).Debug(msg, zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("tasks list by status", zap.String("status", string(status)), zap.Int("count", len(p.Content)), dur)
	}(time.Now())
	return l.svc.ListByStatus(ctx, status, page)
}

func (l *LoggingService) Get(ctx context.Context, id uuid.UUID) (t Task, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to find task with ID %v", id)
			l.log(ctx).Debug(msg, zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("task find by ID", dur)
	}(time.Now())
	return l.svc.Get(ctx, id)
}

func (l *LoggingService) Create(ctx context.Context, req CreateTaskRequest) (t Task, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log(ctx).Debug("failed to create task", zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("task create", zap.Stringer("id", t.ID), dur)
	}(time.Now())
	return l.svc.Create(ctx, req)
}

func (l *LoggingService) Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (t Task, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to update task with ID %v", id)
			l.log(ctx).Debug(msg, zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("task update", zap.Stringer("id", id), zap.String("status", string(t.Status)), dur)
	}(time.Now())
	return l.svc.Update(ctx, id, req)
}

func (l *LoggingService) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to delete task with ID %v", id)
			l.log(ctx).Debug(msg, zap.Error(err), dur)
			return
		}
		l.log(ctx).Debug("task delete", zap.Stringer("id", id), dur)
	}(time.Now())
	return l.svc.Delete(ctx, id)
}
