package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// ProfileLoader загружает текущее состояние учетной записи.
// Реализуется *users.Service.
type ProfileLoader interface {
	Profile(ctx context.Context, role users.Role, id string) (users.Principal, error)
}

// Verifier проверяет токен и, при включенной опции, текущий статус учетной записи
type Verifier struct {
	jwtManager *jwt.Manager
	profiles   ProfileLoader // nil: статус не перепроверяется
}

// NewVerifier создает проверяющего токены.
// profiles может быть nil, тогда токен доверяется до истечения срока.
func NewVerifier(jwtManager *jwt.Manager, profiles ProfileLoader) *Verifier {
	return &Verifier{jwtManager: jwtManager, profiles: profiles}
}

// BearerToken извлекает токен из значения заголовка Authorization
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Verify возвращает claims действительного токена
func (v *Verifier) Verify(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := v.jwtManager.ParseToken(token)
	if err != nil {
		metrics.RecordDenial(DenyUnauthenticated.String())
		return nil, err
	}

	if v.profiles == nil {
		return claims, nil
	}

	p, err := v.profiles.Profile(ctx, claims.Role, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Учетная запись удалена после выдачи токена
			metrics.RecordDenial(DenyUnauthenticated.String())
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, err
	}
	if p.AccountStatus() != users.StatusActive {
		metrics.RecordDenial("suspended")
		logging.Ctx(ctx).Info().
			Str("role", string(claims.Role)).
			Str("principal_id", claims.PrincipalID).
			Msg("token rejected: account suspended")
		return nil, apperrors.ErrAccountSuspended
	}
	return claims, nil
}
