package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tenant-task-manager/internal/api"
	ierrors "tenant-task-manager/internal/errors"
	appMiddleware "tenant-task-manager/internal/middleware"
)

// Handler - HTTP-слой модуля задач.
//
// Здесь всё, что относится к HTTP: роуты, разбор JSON и query-параметров,
// проверка формы запроса, коды ответов. Бизнес-правила живут в TaskService:
// handler -> service -> repository.
type Handler struct {
	svc      TaskService
	errs     *api.ErrorHandler
	validate *Validator
}

// NewHandler создаёт Handler поверх сервиса.
func NewHandler(svc TaskService, errs *api.ErrorHandler) *Handler {
	if errs == nil {
		errs = api.NewErrorHandler(nil, nil)
	}
	return &Handler{svc: svc, errs: errs, validate: NewValidator()}
}

// Router собирает роутер /tasks. mw навешиваются только на маршруты задач
// (арендатор, авторизация, таймаут), /health и /metrics их не видят.
func (h *Handler) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Route("/tasks", func(r chi.Router) {
		// Content-Type один на весь tasks API.
		r.Use(appMiddleware.JSONHeaderMiddleware)
		r.Use(mw...)

		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Get("/{id}", h.getTask)
		r.Put("/{id}", h.updateTask)
		r.Delete("/{id}", h.deleteTask)
	})
	return r
}

// listTasks обрабатывает GET /tasks?status=&page=&size=&sort=field,asc|desc
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePageRequest(r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	var result Page
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.errs.HandleHTTPError(w, r, err)
			return
		}
		result, err = h.svc.ListByStatus(ctx, status, page)
		if err != nil {
			h.errs.HandleHTTPError(w, r, err)
			return
		}
	} else {
		result, err = h.svc.List(ctx, page)
		if err != nil {
			h.errs.HandleHTTPError(w, r, err)
			return
		}
	}

	api.Respond(w, http.StatusOK, result)
}

// createTask обрабатывает POST /tasks. Новая задача всегда PENDING.
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errs.HandleHTTPError(w, r, ierrors.Invalid("tasks.createTask", "Invalid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	created, err := h.svc.Create(ctx, req)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	api.Respond(w, http.StatusOK, created)
}

// getTask обрабатывает GET /tasks/{id}
func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	task, err := h.svc.Get(ctx, id)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	api.Respond(w, http.StatusOK, task)
}

// updateTask обрабатывает PUT /tasks/{id}. Пустое тело или null
// доходят до сервиса как nil и дают "Invalid input".
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	var req *UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.errs.HandleHTTPError(w, r, ierrors.Invalid("tasks.updateTask", "Invalid JSON"))
		return
	}
	if req != nil {
		if err := h.validate.Struct(req); err != nil {
			h.errs.HandleHTTPError(w, r, err)
			return
		}
	}

	updated, err := h.svc.Update(ctx, id, req)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	api.Respond(w, http.StatusOK, updated)
}

// deleteTask обрабатывает DELETE /tasks/{id}, тело ответа пустое.
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		h.errs.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseID разбирает {id}. Неразборчивый id - это 404, а не 400:
// такой задачи точно нет.
func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &ierrors.Error{
			Code: ierrors.ENotFound,
			Op:   "tasks.parseID",
			Msg:  NotFoundMessage,
			Err:  err,
		}
	}
	return id, nil
}

// parsePageRequest читает page, size и sort=field[,asc|desc].
// Границы проверяет PageRequest.Normalize в сервисе.
func parsePageRequest(r *http.Request) (PageRequest, error) {
	const op = "tasks.parsePageRequest"
	q := r.URL.Query()
	page := DefaultPageRequest()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, ierrors.Invalid(op, "page must be a number")
		}
		page.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, ierrors.Invalid(op, "size must be a number")
		}
		page.Size = n
	}
	if raw := q.Get("sort"); raw != "" {
		field, dir, _ := strings.Cut(raw, ",")
		page.Sort = SortField(strings.TrimSpace(field))
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			page.Desc = false
		case "desc":
			page.Desc = true
		default:
			return page, ierrors.Invalid(op, "sort direction must be asc or desc")
		}
	}
	return page, nil
}
