package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tenant-task-manager/internal/tasks"
	"tenant-task-manager/internal/tasks/taskstest"
	"tenant-task-manager/internal/tenant"
)

func testRedisAddr() string {
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// setupTestClient подключается к Redis; без него тест пропускается.
func setupTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr(), err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// cleanupKeys удаляет ключи по шаблону.
func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func testPrefix(t *testing.T) string {
	return fmt.Sprintf("tasks-test:%d:", time.Now().UnixNano())
}

func TestRepository(t *testing.T) {
	client := setupTestClient(t)

	taskstest.RepositoryTest(t, func(t *testing.T) tasks.Repository {
		prefix := testPrefix(t)
		t.Cleanup(func() { cleanupKeys(context.Background(), client, prefix+"*") })
		return New(tasks.NewMemoryRepository(), client, WithPrefix(prefix))
	})
}

func TestRepositoryServesFromCache(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	prefix := testPrefix(t)
	t.Cleanup(func() { cleanupKeys(ctx, client, prefix+"*") })

	backing := tasks.NewMemoryRepository()
	repo := New(backing, client, WithPrefix(prefix), WithTTL(time.Minute))

	task := taskstest.NewTask("Cached", tasks.StatusPending, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))

	_, err := repo.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, repo.key("acme", task.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// Удаляем мимо кеша: чтение всё ещё отдаёт запись из Redis.
	require.NoError(t, backing.Delete(ctx, "acme", task.ID))
	found, err := repo.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cached", found.Title)
	assert.Equal(t, task.TenantID, found.TenantID)

	// Другой арендатор не видит чужой кеш.
	_, err = repo.FindByID(ctx, "globex", task.ID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestRepositoryInvalidatesOnUpdate(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	prefix := testPrefix(t)
	t.Cleanup(func() { cleanupKeys(ctx, client, prefix+"*") })

	repo := New(tasks.NewMemoryRepository(), client, WithPrefix(prefix))

	task := taskstest.NewTask("Before", tasks.StatusPending, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))
	_, err := repo.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)

	task.Title = "After"
	require.NoError(t, repo.Update(ctx, "acme", &task))

	exists, err := client.Exists(ctx, repo.key("acme", task.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	found, err := repo.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", found.Title)
}

// unreachableClient - клиент к адресу, где Redis нет: каждое обращение
// к кешу сразу падает, и чтение идёт в хранилище.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// blockingRepository держит FindByID после чтения, пока не закрыт release
// или не отменён ctx вызова.
type blockingRepository struct {
	tasks.Repository
	entered chan struct{}
	release chan struct{}
}

func newBlockingRepository() *blockingRepository {
	return &blockingRepository{
		Repository: tasks.NewMemoryRepository(),
		entered:    make(chan struct{}, 8),
		release:    make(chan struct{}),
	}
}

func (r *blockingRepository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (tasks.Task, error) {
	t, err := r.Repository.FindByID(ctx, tenantID, id)
	r.entered <- struct{}{}
	select {
	case <-r.release:
		return t, err
	case <-ctx.Done():
		return tasks.Task{}, ctx.Err()
	}
}

func waitEntered(t *testing.T, r *blockingRepository) {
	t.Helper()
	select {
	case <-r.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("FindByID was not called")
	}
}

type findResult struct {
	task tasks.Task
	err  error
}

func findAsync(ctx context.Context, repo *Repository, tenantID tenant.ID, id uuid.UUID) <-chan findResult {
	out := make(chan findResult, 1)
	go func() {
		task, err := repo.FindByID(ctx, tenantID, id)
		out <- findResult{task: task, err: err}
	}()
	return out
}

func TestRepositorySharedFetchSurvivesCallerCancel(t *testing.T) {
	backing := newBlockingRepository()
	repo := New(backing, unreachableClient(t))

	task := taskstest.NewTask("Shared", tasks.StatusPending, 0)
	require.NoError(t, repo.Create(context.Background(), "acme", &task))

	firstCtx, cancel := context.WithCancel(context.Background())
	first := findAsync(firstCtx, repo, "acme", task.ID)
	waitEntered(t, backing)

	second := findAsync(context.Background(), repo, "acme", task.ID)
	// Второй вызов успевает присоединиться к общей выборке.
	time.Sleep(50 * time.Millisecond)

	cancel()
	res := <-first
	assert.ErrorIs(t, res.err, context.Canceled)

	close(backing.release)
	res = <-second
	require.NoError(t, res.err)
	assert.Equal(t, task.ID, res.task.ID)
	assert.Equal(t, "Shared", res.task.Title)
}

func TestRepositoryReadAfterUpdateDoesNotJoinOlderFetch(t *testing.T) {
	backing := newBlockingRepository()
	repo := New(backing, unreachableClient(t))
	ctx := context.Background()

	task := taskstest.NewTask("Before", tasks.StatusPending, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))

	before := findAsync(ctx, repo, "acme", task.ID)
	waitEntered(t, backing)

	updated := task
	updated.Title = "After"
	require.NoError(t, repo.Update(ctx, "acme", &updated))

	after := findAsync(ctx, repo, "acme", task.ID)
	waitEntered(t, backing)
	close(backing.release)

	res := <-before
	require.NoError(t, res.err)
	assert.Equal(t, "Before", res.task.Title)

	res = <-after
	require.NoError(t, res.err)
	assert.Equal(t, "After", res.task.Title)
}

func TestRepositoryDropsFillRacingUpdate(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	prefix := testPrefix(t)
	t.Cleanup(func() { cleanupKeys(ctx, client, prefix+"*") })

	backing := newBlockingRepository()
	repo := New(backing, client, WithPrefix(prefix))

	task := taskstest.NewTask("Before", tasks.StatusPending, 0)
	require.NoError(t, repo.Create(ctx, "acme", &task))

	stale := findAsync(ctx, repo, "acme", task.ID)
	waitEntered(t, backing)

	updated := task
	updated.Title = "After"
	require.NoError(t, repo.Update(ctx, "acme", &updated))

	close(backing.release)
	res := <-stale
	require.NoError(t, res.err)

	exists, err := client.Exists(ctx, repo.key("acme", task.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	found, err := repo.FindByID(ctx, "acme", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", found.Title)
}

func TestRepositoryWithoutRedis(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := unreachableClient(t)

	taskstest.RepositoryTest(t, func(t *testing.T) tasks.Repository {
		return New(tasks.NewMemoryRepository(), client, WithLogger(zap.New(core)))
	})
	assert.NotZero(t, logs.Len())
}
