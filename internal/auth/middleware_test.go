package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api/response"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

type env struct {
	jwt *jwt.Manager
	svc *users.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m, err := jwt.NewManager("middleware-secret", time.Hour, "test")
	require.NoError(t, err)

	svc := users.NewService(users.NewMemoryStore(), users.NewPasswordHasher(bcrypt.MinCost))
	_, err = svc.CreateStudent(context.Background(), users.CreateStudentInput{
		RegNo: "283/BSC/T/2018", FirstName: "Asha", LastName: "M", Password: "secret1",
	})
	require.NoError(t, err)
	return &env{jwt: m, svc: svc}
}

func (e *env) token(t *testing.T, id string, role users.Role) string {
	t.Helper()
	tok, _, err := e.jwt.GenerateToken(id, role, "")
	require.NoError(t, err)
	return tok
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var body response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func protected(m *Middleware, roles ...users.Role) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, found := ClaimsFromContext(r.Context())
		if !found {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(claims.PrincipalID))
	})
	return m.Authenticate(m.RequireRole(roles...)(ok))
}

func TestMiddleware_Authenticate(t *testing.T) {
	e := newEnv(t)
	m := NewMiddleware(NewVerifier(e.jwt, nil), response.NewWriter(false))
	h := protected(m)

	rec := serve(h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.KindUnauthenticated, decodeEnvelope(t, rec).Kind)

	rec = serve(h, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.False(t, body.Success)
	assert.Empty(t, body.Error, "no detail outside development mode")

	rec = serve(h, e.token(t, "283/BSC/T/2018", users.RoleStudent))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "283/BSC/T/2018", rec.Body.String())
}

func TestMiddleware_RequireRole(t *testing.T) {
	e := newEnv(t)
	m := NewMiddleware(NewVerifier(e.jwt, nil), response.NewWriter(false))
	student := e.token(t, "283/BSC/T/2018", users.RoleStudent)

	rec := serve(protected(m, users.RoleAdmin, users.RoleLecturer), student)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.KindForbidden, decodeEnvelope(t, rec).Kind)

	rec = serve(protected(m, users.RoleStudent), student)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RequireRoleWithoutAuthenticate(t *testing.T) {
	m := NewMiddleware(nil, response.NewWriter(false))
	h := m.RequireRole(users.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := serve(h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_StatusRecheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := NewMiddleware(NewVerifier(e.jwt, e.svc), response.NewWriter(true))
	token := e.token(t, "283/BSC/T/2018", users.RoleStudent)
	h := protected(m)

	assert.Equal(t, http.StatusOK, serve(h, token).Code)

	require.NoError(t, e.svc.Suspend(ctx, users.RoleStudent, "283/BSC/T/2018"))
	rec := serve(h, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.KindAccountSuspended, decodeEnvelope(t, rec).Kind)

	// Without recheck the snapshot in the token is trusted until expiry
	lax := protected(NewMiddleware(NewVerifier(e.jwt, nil), response.NewWriter(true)))
	assert.Equal(t, http.StatusOK, serve(lax, token).Code)

	// A token for an account that no longer exists
	ghost := e.token(t, "999/BSC/T/2018", users.RoleStudent)
	assert.Equal(t, http.StatusUnauthorized, serve(h, ghost).Code)
}
