// Package middleware содержит HTTP‑middleware: функции-обёртки над http.Handler,
// которые добавляют общий функционал (логирование, авторизация, арендатор,
// заголовки) вокруг основного обработчика без изменения его кода.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tenant-task-manager/internal/api"
	ierrors "tenant-task-manager/internal/errors"
	"tenant-task-manager/internal/logger"
)

// LoggingMiddleware измеряет время обработки запроса и пишет запись в лог
// после того, как основной обработчик завершил работу.
//
// Важно: логирование идёт "после" next.ServeHTTP, поэтому в took входит
// вся обработка запроса обработчиком и другими middleware внутри цепочки.
// tenantHeader - имя заголовка арендатора; его сырое значение попадает в лог.
//
// Логгер запроса (с request_id) кладётся в контекст, его достают
// logger.FromContextOr ниже по цепочке.
func LoggingMiddleware(log *zap.Logger, tenantHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqID := chiMiddleware.GetReqID(r.Context())
			reqLog := log
			if reqID != "" {
				reqLog = log.With(zap.String("request_id", reqID))
			}

			next.ServeHTTP(ww, r.WithContext(logger.NewContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLog.Info("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("tenant", r.Header.Get(tenantHeader)),
			)
		})
	}
}

// BasicAuth защищает маршруты HTTP Basic Auth с одним пользователем.
// Пароль хранится только как bcrypt-хеш. Пустой user отключает проверку.
//
// При неудаче выставляет WWW-Authenticate и отвечает 401 со структурированной
// ошибкой, next не вызывается.
func BasicAuth(user string, passwordHash []byte, errs *api.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if user == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(name), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword(passwordHash, []byte(pass)) != nil {
				// realm - "зона" аутентификации, отображается клиентам.
				w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
				errs.HandleHTTPError(w, r, &ierrors.Error{
					Code: ierrors.EUnauthorized,
					Op:   "middleware.BasicAuth",
					Msg:  "Unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JSONHeaderMiddleware проставляет заголовок Content-Type для JSON‑ответов.
//
// Важно: заголовки нужно выставлять ДО записи тела ответа (до w.Write / Encode).
func JSONHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}
