// Package postgres - tasks.Repository поверх PostgreSQL (pgx + squirrel).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tenant"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          UUID PRIMARY KEY,
	tenant_id   VARCHAR(64)  NOT NULL,
	title       VARCHAR(50)  NOT NULL,
	description VARCHAR(250) NOT NULL DEFAULT '',
	status      VARCHAR(16)  NOT NULL,
	created_at  TIMESTAMPTZ  NOT NULL,
	updated_at  TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_tenant_status ON tasks (tenant_id, status);
`

var columns = []string{"id", "tenant_id", "title", "description", "status", "created_at", "updated_at"}

var sortColumns = map[tasks.SortField]string{
	tasks.SortCreatedAt: "created_at",
	tasks.SortUpdatedAt: "updated_at",
	tasks.SortTitle:     "title",
}

// Repository - tasks.Repository на pgxpool.
type Repository struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
}

var _ tasks.Repository = (*Repository)(nil)

// Open подключается к базе по dsn, проверяет соединение и создаёт схему.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	repo := NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository создаёт репозиторий поверх пула соединений.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate создаёт таблицу tasks, если её нет.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Create(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	if !tenantID.Valid() {
		return tenant.ErrMissing
	}

	query, args, err := r.psql.Insert("tasks").
		Columns(columns...).
		Values(t.ID, tenantID.String(), t.Title, t.Description, string(t.Status), t.CreatedAt.UTC(), t.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	t.TenantID = tenantID
	return nil
}

func (r *Repository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	query, args, err := r.psql.Select(columns...).
		From("tasks").
		Where(sq.Eq{"id": id, "tenant_id": tenantID.String()}).
		ToSql()
	if err != nil {
		return tasks.Task{}, err
	}

	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tasks.Task{}, tasks.ErrNotFound
		}
		return tasks.Task{}, fmt.Errorf("failed to find task: %w", err)
	}
	return t, nil
}

func (r *Repository) Find(ctx context.Context, tenantID tenant.ID, filter tasks.Filter, page tasks.PageRequest) ([]tasks.Task, int64, error) {
	where := sq.Eq{"tenant_id": tenantID.String()}
	if filter.Status != nil {
		where["status"] = string(*filter.Status)
	}

	countQuery, countArgs, err := r.psql.Select("COUNT(*)").From("tasks").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
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

	query, args, err := r.psql.Select(columns...).
		From("tasks").
		Where(where).
		OrderBy(column+" "+dir, "id").
		Offset(uint64(page.Offset())).
		Limit(uint64(page.Size)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find tasks: %w", err)
	}
	defer rows.Close()

	out := make([]tasks.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to find tasks: %w", err)
	}
	return out, total, nil
}

func (r *Repository) Update(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	query, args, err := r.psql.Update("tasks").
		SetMap(sq.Eq{
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
			"updated_at":  t.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": t.ID, "tenant_id": tenantID.String()}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return err
	}

	updated, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tasks.ErrNotFound
		}
		return fmt.Errorf("failed to update task: %w", err)
	}
	*t = updated
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error {
	query, args, err := r.psql.Delete("tasks").
		Where(sq.Eq{"id": id, "tenant_id": tenantID.String()}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (tasks.Task, error) {
	var (
		t                    tasks.Task
		tenantID, status     string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&t.ID, &tenantID, &t.Title, &t.Description, &status, &createdAt, &updatedAt); err != nil {
		return tasks.Task{}, err
	}
	t.TenantID = tenant.ID(tenantID)
	t.Status = tasks.Status(status)
	t.CreatedAt = createdAt.UTC()
	t.UpdatedAt = updatedAt.UTC()
	return t, nil
}
