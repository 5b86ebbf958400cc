package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tenant-task-manager/internal/tenant"
)

// FileRepository хранит задачи всех арендаторов в памяти и, если задан
// файл, сбрасывает их в JSON после каждого изменения.
//
// Хранилище потокобезопасно: чтение под RLock, изменения под Lock.
// Изменение сначала пишется на диск и только потом попадает в память.
type FileRepository struct {
	mu       sync.RWMutex
	filename string // пустое имя - только память
	tasks    []Task
}

var _ Repository = (*FileRepository)(nil)

// NewMemoryRepository создаёт хранилище без файла.
func NewMemoryRepository() *FileRepository {
	return &FileRepository{}
}

// NewFileRepository создаёт хранилище и загружает задачи из файла.
func NewFileRepository(filename string) (*FileRepository, error) {
	if filename == "" {
		return nil, fmt.Errorf("file repository: filename is required")
	}
	r := &FileRepository{filename: filename}
	loaded, err := r.load()
	if err != nil {
		return nil, err
	}
	r.tasks = loaded
	return r, nil
}

// storedTask - запись в файле; в отличие от Task, хранит арендатора.
type storedTask struct {
	Task
	TenantID tenant.ID `json:"tenantId"`
}

func (r *FileRepository) load() ([]Task, error) {
	data, err := os.ReadFile(r.filename)
	if err != nil {
		if os.IsNotExist(err) {
			// Файла нет - первый запуск.
			return []Task{}, nil
		}
		return nil, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []Task{}, nil
	}

	var records []storedTask
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.filename, err)
	}

	out := make([]Task, 0, len(records))
	for _, rec := range records {
		t := rec.Task
		t.TenantID = rec.TenantID
		out = append(out, t)
	}
	return out, nil
}

// save пишет candidate на диск. Вызывается под Lock.
func (r *FileRepository) save(candidate []Task) error {
	if r.filename == "" {
		return nil
	}

	records := make([]storedTask, 0, len(candidate))
	for _, t := range candidate {
		records = append(records, storedTask{Task: t, TenantID: t.TenantID})
	}

	data, err := json.MarshalIndent(records, "", "   ")
	if err != nil {
		return err
	}

	// 0644 - права доступа (rw-r--r--)
	return os.WriteFile(r.filename, data, 0644)
}

// Create добавляет задачу, проставляя арендатора.
func (r *FileRepository) Create(ctx context.Context, tenantID tenant.ID, t *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !tenantID.Valid() {
		return tenant.ErrMissing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := *t
	created.TenantID = tenantID

	candidate := make([]Task, 0, len(r.tasks)+1)
	candidate = append(candidate, r.tasks...)
	candidate = append(candidate, created)

	if err := r.save(candidate); err != nil {
		return err
	}

	r.tasks = candidate
	t.TenantID = tenantID
	return nil
}

// FindByID ищет задачу только среди задач арендатора.
func (r *FileRepository) FindByID(ctx context.Context, tenantID tenant.ID, id uuid.UUID) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(tenantID, id)
	if idx == -1 {
		return Task{}, ErrNotFound
	}
	return r.tasks[idx], nil
}

// Find фильтрует, сортирует и режет на страницы.
func (r *FileRepository) Find(ctx context.Context, tenantID tenant.ID, filter Filter, page PageRequest) ([]Task, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]Task, 0)
	for _, t := range r.tasks {
		if t.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		matched = append(matched, t)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if page.Desc {
			return lessBy(page.Sort, matched[j], matched[i])
		}
		return lessBy(page.Sort, matched[i], matched[j])
	})

	total := int64(len(matched))
	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []Task{}, total, nil
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func lessBy(field SortField, a, b Task) bool {
	switch field {
	case SortUpdatedAt:
		return a.UpdatedAt.Before(b.UpdatedAt)
	case SortTitle:
		return a.Title < b.Title
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

// Update перезаписывает задачу арендатора. TenantID, ID и CreatedAt не меняются.
func (r *FileRepository) Update(ctx context.Context, tenantID tenant.ID, t *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(tenantID, t.ID)
	if idx == -1 {
		return ErrNotFound
	}

	updated := r.tasks[idx]
	updated.Title = t.Title
	updated.Description = t.Description
	updated.Status = t.Status
	updated.UpdatedAt = t.UpdatedAt

	candidate := make([]Task, len(r.tasks))
	copy(candidate, r.tasks)
	candidate[idx] = updated

	if err := r.save(candidate); err != nil {
		return err
	}

	r.tasks = candidate
	*t = updated
	return nil
}

// Delete удаляет задачу арендатора.
func (r *FileRepository) Delete(ctx context.Context, tenantID tenant.ID, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(tenantID, id)
	if idx == -1 {
		return ErrNotFound
	}

	candidate := make([]Task, 0, len(r.tasks)-1)
	candidate = append(candidate, r.tasks[:idx]...)
	candidate = append(candidate, r.tasks[idx+1:]...)

	if err := r.save(candidate); err != nil {
		return err
	}

	r.tasks = candidate
	return nil
}

// indexOf вызывается под блокировкой.
func (r *FileRepository) indexOf(tenantID tenant.ID, id uuid.UUID) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id && r.tasks[i].TenantID == tenantID {
			return i
		}
	}
	return -1
}
