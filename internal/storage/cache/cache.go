// Package cache - кеш задач в Redis поверх любого tasks.Repository.
//
// Кешируется только FindByID (cache-aside). Update и Delete сбрасывают ключ.
// Ошибки Redis не ломают запрос: пишем в лог и идём в хранилище.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tenant"
)

// DefaultTTL - время жизни записи по умолчанию.
const DefaultTTL = 5 * time.Minute

// DefaultPrefix - префикс ключей по умолчанию.
const DefaultPrefix = "tasks:"

// Repository - кеширующий tasks.Repository.
type Repository struct {
	next   tasks.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger

	sfGroup singleflight.Group // один запрос в хранилище на ключ
	epoch   atomic.Uint64      // растёт на каждой инвалидации
}

var _ tasks.Repository = (*Repository)(nil)

// Option настраивает Repository.
type Option func(*Repository)

// WithPrefix задаёт префикс ключей.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// WithTTL задаёт время жизни записи.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger задаёт логгер для ошибок Redis.
func WithLogger(log *zap.Logger) Option {
	return func(r *Repository) {
		r.log = log
	}
}

// New оборачивает next кешем в client.
func New(next tasks.Repository, client *redis.Client, opts ...Option) *Repository {
	r := &Repository{
		next:   next,
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// key разводит арендаторов: одна и та же задача у другого арендатора
// даёт другой ключ.
func (r *Repository) key(tenantID tenant.ID, id uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, tenantID, id)
}

// entry - значение в Redis. В отличие от tasks.Task хранит арендатора.
type entry struct {
	tasks.Task
	TenantID tenant.ID `json:"tenantId"`
}

func (r *Repository) Create(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	return r.next.Create(ctx, tenantID, t)
}

func (r *Repository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	key := r.key(tenantID, id)

	if t, ok := r.get(ctx, key); ok {
		return t, nil
	}

	// Выборку делят все ждущие ключа, поэтому она не зависит от отмены
	// ctx того, кто её начал. Каждый вызывающий ждёт только свой ctx.
	ch := r.sfGroup.DoChan(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), key, tenantID, id)
	})

	select {
	case <-ctx.Done():
		return tasks.Task{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return tasks.Task{}, res.Err
		}
		return res.Val.(tasks.Task), nil
	}
}

// fetch читает задачу из хранилища и кладёт её в кеш. Если за время чтения
// ключ сбросили, запись из кеша убирается: она могла устареть.
func (r *Repository) fetch(ctx context.Context, key string, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	epoch := r.epoch.Load()

	t, err := r.next.FindByID(ctx, tenantID, id)
	if err != nil {
		return tasks.Task{}, err
	}

	r.set(ctx, key, t)
	if r.epoch.Load() != epoch {
		r.del(ctx, key)
	}
	return t, nil
}

func (r *Repository) Find(ctx context.Context, tenantID tenant.ID, filter tasks.Filter, page tasks.PageRequest) ([]tasks.Task, int64, error) {
	return r.next.Find(ctx, tenantID, filter, page)
}

func (r *Repository) Update(ctx context.Context, tenantID tenant.ID, t *tasks.Task) error {
	if err := r.next.Update(ctx, tenantID, t); err != nil {
		return err
	}
	r.invalidate(ctx, r.key(tenantID, t.ID))
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error {
	if err := r.next.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	r.invalidate(ctx, r.key(tenantID, id))
	return nil
}

func (r *Repository) get(ctx context.Context, key string) (tasks.Task, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return tasks.Task{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.log.Warn("cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return tasks.Task{}, false
	}
	t := e.Task
	t.TenantID = e.TenantID
	return t, true
}

func (r *Repository) set(ctx context.Context, key string, t tasks.Task) {
	data, err := json.Marshal(entry{Task: t, TenantID: t.TenantID})
	if err != nil {
		r.log.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate сбрасывает ключ после записи в хранилище. Новые чтения не
// присоединяются к выборке, начатой до записи.
func (r *Repository) invalidate(ctx context.Context, key string) {
	r.epoch.Add(1)
	r.sfGroup.Forget(key)
	r.del(ctx, key)
}

func (r *Repository) del(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
