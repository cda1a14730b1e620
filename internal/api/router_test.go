package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api/response"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/identity"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	svc    *users.Service
	tokens *jwt.Manager
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Kind    apperrors.Kind  `json:"kind"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	ctx := context.Background()

	store := users.NewMemoryStore()
	hasher := users.NewPasswordHasher(bcrypt.MinCost)
	svc := users.NewService(store, hasher)
	tokens, err := jwt.NewManager("api-test-secret", 24*time.Hour, "assignment-portal")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(ctx, users.CreateAdminInput{Name: "Root", Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	_, err = svc.CreateLecturer(ctx, users.CreateLecturerInput{FirstName: "Juma", LastName: "Ali", Email: "juma@example.com", Password: "lect-pass"})
	require.NoError(t, err)
	_, err = svc.CreateStudent(ctx, users.CreateStudentInput{RegNo: "283/BSC/T/2018", FirstName: "Asha", LastName: "Mrisho", Password: "secret1"})
	require.NoError(t, err)

	resp := response.NewWriter(false)
	resolver := identity.NewResolver(hasher, identity.FixedOrder(store)...)
	h := NewHandler(resolver, tokens, svc, resp)
	mw := auth.NewMiddleware(auth.NewVerifier(tokens, nil), resp)

	srv := httptest.NewServer(NewRouter(h, mw, cfg))
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, svc: svc, tokens: tokens}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(s.t, http.StatusOK, status, env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func TestLogin_StudentScenario(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "283/BSC/T/2018", Password: "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	var data struct {
		Token     string         `json:"token"`
		Role      string         `json:"role"`
		ExpiresAt int64          `json:"expires_at"`
		User      map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "student", data.Role)
	assert.Equal(t, "283/BSC/T/2018", data.User["reg_no"])
	assert.NotContains(t, data.User, "password")
	assert.NotContains(t, data.User, "password_hash")
	assert.InDelta(t, time.Now().Add(24*time.Hour).Unix(), data.ExpiresAt, 5)

	claims, err := s.tokens.ParseToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, "283/BSC/T/2018", claims.PrincipalID)
	assert.Equal(t, users.RoleStudent, claims.Role)
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	wrongStatus, wrong := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "admin@example.com", Password: "nope"})
	unknownStatus, unknown := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "ghost@example.com", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, wrong, unknown)
	assert.Equal(t, apperrors.KindInvalidCredentials, wrong.Kind)
	assert.Empty(t, wrong.Error)
}

func TestLogin_Validation(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindValidation, env.Kind)
	assert.Contains(t, env.Message, "password is required")

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogin_Suspended(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	require.NoError(t, s.svc.Suspend(context.Background(), users.RoleLecturer, "1"))

	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "juma@example.com", Password: "lect-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.KindAccountSuspended, env.Kind)
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(t, RouterConfig{LoginRequests: 2, LoginWindow: time.Minute})

	for i := 0; i < 2; i++ {
		status, _ := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "x@example.com", Password: "bad"})
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "x@example.com", Password: "bad"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, apperrors.KindRateLimited, env.Kind)
}

func TestMeAndChangePassword(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	token := s.login("juma@example.com", "lect-pass")

	status, env := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Role string         `json:"role"`
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "lecturer", me.Role)
	assert.Equal(t, "juma@example.com", me.User["email"])

	status, env = s.do(http.MethodPut, "/api/v1/auth/change-password", token, ChangePasswordRequest{
		OldPassword: "lect-pass", NewPassword: "lect-pass", ConfirmPassword: "lect-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindPasswordUnchanged, env.Kind)

	status, env = s.do(http.MethodPut, "/api/v1/auth/change-password", token, ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "new-pass", ConfirmPassword: "new-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindIncorrectPassword, env.Kind)

	status, env = s.do(http.MethodPut, "/api/v1/auth/change-password", token, ChangePasswordRequest{
		OldPassword: "lect-pass", NewPassword: "new-pass", ConfirmPassword: "other-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindValidation, env.Kind)

	status, _ = s.do(http.MethodPut, "/api/v1/auth/change-password", token, ChangePasswordRequest{
		OldPassword: "lect-pass", NewPassword: "new-pass", ConfirmPassword: "new-pass",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "juma@example.com", Password: "lect-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	s.login("juma@example.com", "new-pass")
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	student := s.login("283/BSC/T/2018", "secret1")
	lecturer := s.login("juma@example.com", "lect-pass")
	admin := s.login("admin@example.com", "admin-pass")

	status, env := s.do(http.MethodGet, "/api/v1/students", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.KindUnauthenticated, env.Kind)

	status, env = s.do(http.MethodGet, "/api/v1/students", student, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.KindForbidden, env.Kind)

	status, _ = s.do(http.MethodGet, "/api/v1/students", lecturer, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/v1/admin/lecturers", lecturer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodGet, "/api/v1/admin/lecturers?page=1&limit=5", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page users.Page[map[string]any]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)

	status, env = s.do(http.MethodGet, "/api/v1/dashboard/counts", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var counts users.Counts
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Equal(t, users.Counts{Admins: 1, Lecturers: 1, Students: 1}, counts)
}

func TestAdminProvisioningAndSuspension(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	admin := s.login("admin@example.com", "admin-pass")

	status, env := s.do(http.MethodPost, "/api/v1/admin/students", admin, users.CreateStudentInput{
		RegNo: "RU/BSC/2019/012", FirstName: "Baraka", LastName: "Kimaro", Password: "stud-pass",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodPost, "/api/v1/admin/students", admin, users.CreateStudentInput{
		RegNo: "RU/BSC/2019/012", FirstName: "Other", LastName: "Person", Password: "stud-pass",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperrors.KindConflict, env.Kind)

	status, env = s.do(http.MethodPost, "/api/v1/admin/students", admin, users.CreateStudentInput{
		RegNo: "2019-012", FirstName: "Bad", LastName: "Number", Password: "stud-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Message, "reg_no")

	status, _ = s.do(http.MethodPost, "/api/v1/admin/lecturers", admin, users.CreateLecturerInput{
		FirstName: "Neema", LastName: "Joseph", Email: "neema@example.com", Password: "lect-pass",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = s.do(http.MethodPost, "/api/v1/admin/admins", admin, users.CreateAdminInput{
		Name: "Second", Email: "second@example.com", Password: "admin-pass",
	})
	require.Equal(t, http.StatusCreated, status)

	suspend := AccountRequest{Role: users.RoleStudent, ID: "RU/BSC/2019/012"}
	status, _ = s.do(http.MethodPost, "/api/v1/admin/accounts/suspend", admin, suspend)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodPost, "/api/v1/admin/accounts/suspend", admin, suspend)
	require.Equal(t, http.StatusOK, status, "suspend is idempotent")

	status, env = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "RU/BSC/2019/012", Password: "stud-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.KindAccountSuspended, env.Kind)

	status, _ = s.do(http.MethodPost, "/api/v1/admin/accounts/unsuspend", admin, suspend)
	require.Equal(t, http.StatusOK, status)
	s.login("RU/BSC/2019/012", "stud-pass")

	status, env = s.do(http.MethodPost, "/api/v1/admin/accounts/suspend", admin, AccountRequest{Role: users.RoleAdmin, ID: "1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindValidation, env.Kind)

	status, env = s.do(http.MethodPost, "/api/v1/admin/accounts/suspend", admin, AccountRequest{Role: users.RoleLecturer, ID: "404"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.KindNotFound, env.Kind)
}

func TestHealthAndLogout(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	status, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = s.do(http.MethodPost, "/api/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = s.do(http.MethodGet, "/api/v1/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestBaseMiddleware_PanicIsLogged(t *testing.T) {
	r := chi.NewRouter()
	r.Use(baseMiddleware()...)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("handler failure")
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "500")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestPasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	admin := s.login("admin@example.com", "admin-pass")
	long := strings.Repeat("пароль", 7) // 42 символа, 84 байта

	status, env := s.do(http.MethodPost, "/api/v1/admin/lecturers", admin, users.CreateLecturerInput{
		FirstName: "Neema", LastName: "Joseph", Email: "neema@example.com", Password: long,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindValidation, env.Kind)
	assert.Contains(t, env.Message, "72 bytes")

	student := s.login("283/BSC/T/2018", "secret1")
	status, env = s.do(http.MethodPut, "/api/v1/auth/change-password", student, ChangePasswordRequest{
		OldPassword: "secret1", NewPassword: long, ConfirmPassword: long,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.KindValidation, env.Kind)
}
