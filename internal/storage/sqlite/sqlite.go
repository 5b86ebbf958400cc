// Package sqlite - tasks.Repository поверх gorm и SQLite.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tenant"
)

// taskEntity - строка таблицы tasks.
type taskEntity struct {
	ID          string    `gorm:"primaryKey;size:36"`
	TenantID    string    `gorm:"size:64;not null;index:idx_tasks_tenant_status,priority:1"`
	Title       string    `gorm:"size:50;not null"`
	Description string    `gorm:"size:250"`
	Status      string    `gorm:"size:16;not null;index:idx_tasks_tenant_status,priority:2"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName - имя таблицы для gorm.
func (taskEntity) TableName() string {
	return "tasks"
}

func toEntity(t tasks.Task) taskEntity {
	return taskEntity{
		ID:          t.ID.String(),
		TenantID:    t.TenantID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (e taskEntity) toTask() (tasks.Task, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("task %q: bad id: %w", e.ID, err)
	}
	return tasks.Task{
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		Status:      tasks.Status(e.Status),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
		TenantID:    tenant.ID(e.TenantID),
	}, nil
}

// Open открывает базу по пути path и создаёт схему.
// ":memory:" даёт базу в памяти на одно соединение.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	if path == ":memory:" {
		// У каждого соединения своя база в памяти.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&taskEntity{}); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return db, nil
}

// Repository - tasks.Repository на gorm.
type Repository struct {
	db *gorm.DB
}

var _ tasks.Repository = (*Repository)(nil)

// NewRepository создаёт репозиторий поверх открытой базы.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Close закрывает соединения с базой.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) Create(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	if !tenantID.Valid() {
		return tenant.ErrMissing
	}

	created := *t
	created.TenantID = tenantID
	e := toEntity(created)
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	t.TenantID = tenantID
	return nil
}

func (r *Repository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	var e taskEntity
	err := r.db.WithContext(ctx).
		First(&e, "id = ? AND tenant_id = ?", id.String(), tenantID.String()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tasks.Task{}, tasks.ErrNotFound
		}
		return tasks.Task{}, fmt.Errorf("failed to find task: %w", err)
	}
	return e.toTask()
}

var sortColumns = map[tasks.SortField]string{
	tasks.SortCreatedAt: "created_at",
	tasks.SortUpdatedAt: "updated_at",
	tasks.SortTitle:     "title",
}

func (r *Repository) Find(ctx context.Context, tenantID tenant.ID, filter tasks.Filter, page tasks.PageRequest) ([]tasks.Task, int64, error) {
	q := r.db.WithContext(ctx).Model(&taskEntity{}).Where("tenant_id = ?", tenantID.String())
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	column, ok := sortColumns[page.Sort]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}

	var entities []taskEntity
	err := q.Order(column + " " + dir).
		Order("id").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&entities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find tasks: %w", err)
	}

	out := make([]tasks.Task, 0, len(entities))
	for _, e := range entities {
		t, err := e.toTask()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}

func (r *Repository) Update(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	result := r.db.WithContext(ctx).
		Model(&taskEntity{}).
		Where("id = ? AND tenant_id = ?", t.ID.String(), tenantID.String()).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
			"updated_at":  t.UpdatedAt.UTC(),
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return tasks.ErrNotFound
	}

	updated, err := r.FindByID(ctx, tenantID, t.ID)
	if err != nil {
		return err
	}
	*t = updated
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id.String(), tenantID.String()).
		Delete(&taskEntity{})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return tasks.ErrNotFound
	}
	return nil
}
