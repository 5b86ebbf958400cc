// Package errors описывает доменные ошибки сервиса.
//
// Каждая ошибка несёт машиночитаемый код (Code), который API-слой переводит
// в HTTP-статус, и человекочитаемое сообщение (Msg), которое уходит клиенту.
// Op и Err образуют логическую цепочку для логов и никогда не показываются
// клиенту.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Коды ошибок. Любая ошибка без кода считается EInternal.
const (
	EInternal          = "internal error"
	ENotFound          = "not found"
	EInvalid           = "invalid"
	EInvalidTransition = "invalid status transition"
	EMissingTenant     = "missing tenant"
	EUnauthorized      = "unauthorized"
	ETimeout           = "timeout"
)

// Error - доменная ошибка.
//
//	&Error{Code: ENotFound, Msg: "Task not found.", Op: "tasks.Get"}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error собирает сообщение из Msg и вложенной ошибки.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap позволяет errors.Is/As пройти к вложенной ошибке.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode возвращает код первой доменной ошибки в цепочке.
// Для nil - пустую строку, для чужих ошибок - EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return EInternal
	}

	if e.Code != "" {
		return e.Code
	}

	if e.Err != nil {
		return ErrorCode(e.Err)
	}

	return EInternal
}

// ErrorOp возвращает операцию, в которой возникла ошибка, если она известна.
func ErrorOp(err error) string {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return ""
	}

	if e.Op != "" {
		return e.Op
	}

	if e.Err != nil {
		return ErrorOp(e.Err)
	}

	return ""
}

// ErrorMessage возвращает сообщение для клиента.
// Внутренние подробности наружу не уходят.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return InternalMessage
	}

	if e.Code == EInternal {
		return InternalMessage
	}

	if e.Msg != "" {
		return e.Msg
	}

	if e.Err != nil {
		return ErrorMessage(e.Err)
	}

	return InternalMessage
}

// InternalMessage - единственное, что клиент видит при неожиданной ошибке.
const InternalMessage = "Internal error."

// NotFound строит ошибку ENotFound.
func NotFound(op, msg string) *Error {
	return &Error{Code: ENotFound, Op: op, Msg: msg}
}

// Invalid строит ошибку EInvalid.
func Invalid(op, msg string) *Error {
	return &Error{Code: EInvalid, Op: op, Msg: msg}
}

// Internal оборачивает неожиданную ошибку.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}
