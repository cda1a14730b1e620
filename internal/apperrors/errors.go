// Package apperrors описывает таксономию ошибок сервиса авторизации.
// Каждая ошибка несет стабильный машиночитаемый вид (Kind) и сообщение
// для пользователя; транспортный слой переводит вид в HTTP статус или gRPC код.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind стабильный идентификатор вида ошибки
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountSuspended   Kind = "account_suspended"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindIncorrectPassword  Kind = "incorrect_password"
	KindPasswordUnchanged  Kind = "password_unchanged"
	KindConfiguration      Kind = "configuration_error"
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Error ошибка приложения с видом и сообщением
type Error struct {
	Kind    Kind
	Message string
	Err     error // Исходная причина, наружу не отдается
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки только по виду, поэтому
// errors.Is(err, apperrors.ErrAccountSuspended) работает для любой обертки.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New создает ошибку заданного вида
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap создает ошибку заданного вида с исходной причиной
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Базовые ошибки таксономии
var (
	ErrInvalidCredentials = New(KindInvalidCredentials, "Invalid username or password")
	ErrAccountSuspended   = New(KindAccountSuspended, "Your account has been suspended. Contact admin.")
	ErrUnauthenticated    = New(KindUnauthenticated, "Authentication required")
	ErrForbidden          = New(KindForbidden, "Access forbidden. Insufficient permissions.")
	ErrIncorrectPassword  = New(KindIncorrectPassword, "Current password is incorrect")
	ErrPasswordUnchanged  = New(KindPasswordUnchanged, "New password must be different from current password")
	ErrNotFound           = New(KindNotFound, "Record not found")
	ErrConflict           = New(KindConflict, "Record already exists")
)

// KindOf возвращает вид ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf возвращает безопасное для клиента сообщение
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}

// HTTPStatus переводит вид ошибки в HTTP статус
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountSuspended, KindForbidden:
		return http.StatusForbidden
	case KindIncorrectPassword, KindPasswordUnchanged, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
