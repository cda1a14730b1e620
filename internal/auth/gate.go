// Package auth проверяет bearer токены и решает, допускается ли
// запрос с данной ролью к операции.
package auth

import (
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// Decision результат проверки доступа
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Err возвращает ошибку таксономии для отказа, nil для Allow
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return apperrors.ErrUnauthenticated
	default:
		return apperrors.ErrForbidden
	}
}

// Authorize решает, допускается ли владелец claims к операции.
// Без claims запрос не аутентифицирован; пустой allowed означает
// любую аутентифицированную роль. Чистая функция.
func Authorize(claims *jwt.Claims, allowed ...users.Role) Decision {
	if claims == nil {
		return DenyUnauthenticated
	}
	if len(allowed) == 0 {
		return Allow
	}
	for _, role := range allowed {
		if claims.Role == role {
			return Allow
		}
	}
	return DenyForbidden
}
