package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tenant-task-manager/internal/api"
	"tenant-task-manager/internal/logger"
	"tenant-task-manager/internal/tenant"
)

// DefaultTenantHeader - заголовок, из которого берётся арендатор.
const DefaultTenantHeader = "X-TenantID"

// DefaultTenant подставляется при PolicyDefault.
const DefaultTenant tenant.ID = "public"

// TenantPolicy - что делать с запросом без арендатора.
type TenantPolicy string

const (
	// PolicyReject отвечает 400 и не пускает запрос дальше.
	PolicyReject TenantPolicy = "reject"
	// PolicyDefault привязывает запрос к арендатору по умолчанию.
	PolicyDefault TenantPolicy = "default"
)

// ParseTenantPolicy разбирает политику из конфигурации.
func ParseTenantPolicy(raw string) (TenantPolicy, error) {
	switch p := TenantPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case PolicyReject, PolicyDefault:
		return p, nil
	}
	return "", fmt.Errorf("unknown tenant policy %q", raw)
}

// TenantConfig настраивает Tenant.
type TenantConfig struct {
	Header  string
	Policy  TenantPolicy
	Default tenant.ID
}

// Tenant читает арендатора из заголовка и кладёт его в контекст запроса.
//
// Привязка живёт только в производном контексте этого запроса, поэтому
// после выхода из обработчика (в том числе по панике) её не нужно снимать.
func Tenant(cfg TenantConfig, errs *api.ErrorHandler) func(http.Handler) http.Handler {
	if cfg.Header == "" {
		cfg.Header = DefaultTenantHeader
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	if !cfg.Default.Valid() {
		cfg.Default = DefaultTenant
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := tenant.ID(strings.TrimSpace(r.Header.Get(cfg.Header)))
			if !id.Valid() {
				if cfg.Policy != PolicyDefault {
					errs.HandleHTTPError(w, r, tenant.ErrMissing)
					return
				}
				id = cfg.Default
			}
			ctx := tenant.NewContext(r.Context(), id)
			if log := logger.FromContextOr(ctx, nil); log != nil {
				ctx = logger.NewContext(ctx, log.With(zap.String("tenant", id.String())))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
