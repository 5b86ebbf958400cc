// Package api содержит общие для HTTP-слоя вещи: кодирование ответов и
// перевод доменных ошибок в структурированный ответ.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/logger"
)

// ErrorCodeHeader - заголовок с машиночитаемым кодом ошибки.
const ErrorCodeHeader = "X-Error-Code"

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// ErrorHandler переводит ошибки в HTTP-ответы.
type ErrorHandler struct {
	log   *zap.Logger
	clock clock.Clock
}

// NewErrorHandler создаёт ErrorHandler.
func NewErrorHandler(log *zap.Logger, clk clock.Clock) *ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ErrorHandler{log: log, clock: clk}
}

// HandleHTTPError пишет структурированную ошибку.
//
// Отмена запроса клиентом ничего не пишет: отвечать уже некому.
func (h *ErrorHandler) HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	log := logger.FromContextOr(r.Context(), h.log)

	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("request canceled", zap.String("path", r.URL.Path))
		return
	case errors.Is(err, context.DeadlineExceeded):
		err = &ierrors.Error{Code: ierrors.ETimeout, Msg: "Request timeout", Err: err}
	}

	code := ierrors.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("op", ierrors.ErrorOp(err)),
			zap.Error(err),
		)
	} else {
		log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}

	w.Header().Set(ErrorCodeHeader, code)
	Respond(w, status, ErrorResponse{
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   ierrors.ErrorMessage(err),
		Path:      r.URL.Path,
	})
}

var statusByCode = map[string]int{
	ierrors.EInternal:          http.StatusInternalServerError,
	ierrors.ENotFound:          http.StatusNotFound,
	ierrors.EInvalid:           http.StatusBadRequest,
	ierrors.EInvalidTransition: http.StatusBadRequest,
	ierrors.EMissingTenant:     http.StatusBadRequest,
	ierrors.EUnauthorized:      http.StatusUnauthorized,
	ierrors.ETimeout:           http.StatusRequestTimeout,
}
