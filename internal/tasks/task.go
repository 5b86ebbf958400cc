package tasks

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/tenant"
)

// Status - состояние задачи.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Valid сообщает, что статус один из известных.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// CanTransition проверяет переход s -> to.
//
// В DONE можно попасть только из IN_PROGRESS. Остальные переходы, включая
// "тот же статус", разрешены.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	if to == StatusDone {
		return s == StatusInProgress
	}
	return true
}

// ParseStatus разбирает статус из query-параметра.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ierrors.Invalid("tasks.ParseStatus", fmt.Sprintf("Unknown status %q", raw))
	}
	return s, nil
}

// Task - модель задачи.
//
// TenantID в JSON не попадает: клиент его не видит и не может задать.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	TenantID    tenant.ID `json:"-"`
}

// SetStatus меняет статус, соблюдая правила переходов.
func (t *Task) SetStatus(to Status) error {
	if !to.Valid() {
		return ierrors.Invalid("tasks.SetStatus", fmt.Sprintf("Unknown status %q", to))
	}
	if !t.Status.CanTransition(to) {
		return transitionError(t.Status, to)
	}
	t.Status = to
	return nil
}

func transitionError(from, to Status) *ierrors.Error {
	return &ierrors.Error{
		Code: ierrors.EInvalidTransition,
		Op:   "tasks.SetStatus",
		Msg:  fmt.Sprintf("Invalid status change: %s -> %s", from, to),
	}
}

// CreateTaskRequest - контракт входящего JSON для создания задачи.
// Статус сюда не входит: новая задача всегда PENDING.
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=50"`
	Description string `json:"description" validate:"max=250"`
}

// UpdateTaskRequest - частичное обновление: nil-поле значит "не трогать".
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=3,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=250"`
	Status      *Status `json:"status,omitempty" validate:"omitempty,oneof=PENDING IN_PROGRESS DONE"`
}

// SortField - поле сортировки списка.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortTitle     SortField = "title"
)

// Размеры страниц.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest - параметры страницы. Page считается с нуля.
type PageRequest struct {
	Page int
	Size int
	Sort SortField
	Desc bool
}

// DefaultPageRequest - первая страница, по дате создания по возрастанию.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, Sort: SortCreatedAt}
}

// Normalize подставляет значения по умолчанию и проверяет границы.
func (p PageRequest) Normalize() (PageRequest, error) {
	const op = "tasks.PageRequest"
	if p.Page < 0 {
		return p, ierrors.Invalid(op, "page must be >= 0")
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.Size < 0 || p.Size > MaxPageSize {
		return p, ierrors.Invalid(op, fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}
	// Page*Size не должно переполнять int.
	if p.Page > math.MaxInt/p.Size {
		return p, ierrors.Invalid(op, "page is too large")
	}
	switch p.Sort {
	case "":
		p.Sort = SortCreatedAt
	case SortCreatedAt, SortUpdatedAt, SortTitle:
	default:
		return p, ierrors.Invalid(op, fmt.Sprintf("cannot sort by %q", p.Sort))
	}
	return p, nil
}

// Offset - сколько записей пропустить.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page - страница задач.
type Page struct {
	Content       []Task `json:"content"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
	Size          int    `json:"size"`
	Number        int    `json:"number"`
}

// NewPage собирает страницу из выборки и общего числа элементов.
func NewPage(content []Task, total int64, req PageRequest) Page {
	if content == nil {
		content = []Task{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Size:          req.Size,
		Number:        req.Page,
	}
}

// Filter - условия выборки внутри арендатора.
type Filter struct {
	Status *Status
}
