package auth

import (
	"context"
	"net/http"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api/response"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// Ключи для хранения данных в контексте HTTP запроса
type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims сохраняет claims в контексте
func ContextWithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext извлекает claims проверенного токена
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*jwt.Claims)
	return claims, ok && claims != nil
}

// Middleware предоставляет middleware функции для аутентификации
type Middleware struct {
	verifier *Verifier
	resp     *response.Writer
}

// NewMiddleware создает новый middleware для аутентификации
func NewMiddleware(verifier *Verifier, resp *response.Writer) *Middleware {
	return &Middleware{verifier: verifier, resp: resp}
}

// Authenticate проверяет токен из заголовка Authorization: Bearer
// и добавляет claims в контекст запроса
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			metrics.RecordDenial(DenyUnauthenticated.String())
			m.resp.Error(w, r, apperrors.ErrUnauthenticated)
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.resp.Error(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole пропускает только перечисленные роли.
// Должен стоять после Authenticate.
func (m *Middleware) RequireRole(roles ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())

			decision := Authorize(claims, roles...)
			if decision != Allow {
				metrics.RecordDenial(decision.String())
				m.resp.Error(w, r, decision.Err())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
