// Package tenant хранит идентификатор арендатора (tenant), от имени которого
// выполняется запрос.
//
// Идентификатор живёт только в context.Context запроса: его нельзя
// "забыть сбросить", и он не перетекает в следующий запрос, потому что
// контекст умирает вместе с запросом.
package tenant

import (
	"context"
	"strings"

	ierrors "tenant-task-manager/internal/errors"
)

// ID - идентификатор арендатора.
type ID string

// String реализует fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Valid сообщает, что идентификатор не пустой.
func (id ID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

// MissingMessage - сообщение клиенту, когда арендатор не указан.
const MissingMessage = "Tenant ID header is missing from the request."

// ErrMissing возвращается, когда в контексте нет арендатора.
var ErrMissing = &ierrors.Error{
	Code: ierrors.EMissingTenant,
	Msg:  MissingMessage,
}

type contextKey struct{}

// NewContext привязывает арендатора к контексту. Предыдущее значение
// перекрывается.
func NewContext(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext возвращает привязанного арендатора. ok == false, если
// арендатор не привязан или пустой.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(contextKey{}).(ID)
	if !ok || !id.Valid() {
		return "", false
	}
	return id, true
}

// Require возвращает арендатора или ErrMissing.
func Require(ctx context.Context) (ID, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissing
	}
	return id, nil
}
