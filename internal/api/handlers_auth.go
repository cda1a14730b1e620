// Package api предоставляет HTTP API сервиса учетных записей
package api

import (
	"net/http"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api/response"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/identity"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/validation"
)

// Handler обрабатывает HTTP запросы API
type Handler struct {
	resolver    *identity.Resolver
	jwtManager  *jwt.Manager
	userService *users.Service
	resp        *response.Writer
}

// NewHandler создает новый handler
func NewHandler(resolver *identity.Resolver, jwtManager *jwt.Manager, userService *users.Service, resp *response.Writer) *Handler {
	return &Handler{
		resolver:    resolver,
		jwtManager:  jwtManager,
		userService: userService,
		resp:        resp,
	}
}

// decodeAndValidate читает тело запроса и проверяет теги validate
func decodeAndValidate(r *http.Request, dst any) error {
	if err := response.Decode(r, dst); err != nil {
		return err
	}
	return validation.ValidateStruct(dst)
}

// LoginRequest данные входа: email или номер зачетки и пароль
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse данные успешного входа
type LoginResponse struct {
	Token     string          `json:"token"`
	Role      users.Role      `json:"role"`
	ExpiresAt int64           `json:"expires_at"`
	User      users.Principal `json:"user"`
}

// Login обрабатывает вход пользователя в систему
// POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	id, err := h.resolver.Resolve(r.Context(), req.Username, req.Password)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	token, claims, err := h.jwtManager.GenerateToken(id.ID, id.Role, id.Email)
	if err != nil {
		h.resp.Error(w, r, apperrors.Wrap(apperrors.KindInternal, "failed to issue token", err))
		return
	}

	h.resp.JSON(w, http.StatusOK, "Login successful", LoginResponse{
		Token:     token,
		Role:      id.Role,
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      id.Principal,
	})
}

// Logout ничего не хранит на сервере: клиент удаляет токен
// POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.resp.JSON(w, http.StatusOK, "Logged out successfully", nil)
}

// ProfileResponse текущая учетная запись
type ProfileResponse struct {
	Role users.Role      `json:"role"`
	User users.Principal `json:"user"`
}

// Me возвращает профиль владельца токена
// GET /api/v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.resp.Error(w, r, apperrors.ErrUnauthenticated)
		return
	}

	p, err := h.userService.Profile(r.Context(), claims.Role, claims.PrincipalID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	h.resp.JSON(w, http.StatusOK, "Profile retrieved", ProfileResponse{Role: claims.Role, User: p})
}

// ChangePasswordRequest данные смены пароля
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,bcryptlen"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ChangePassword меняет пароль владельца токена
// PUT /api/v1/auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.resp.Error(w, r, apperrors.ErrUnauthenticated)
		return
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	err := h.userService.ChangePassword(r.Context(), claims.Role, claims.PrincipalID, req.OldPassword, req.NewPassword)
	metrics.RecordPasswordChange(string(claims.Role), err)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("role", string(claims.Role)).
		Str("principal_id", claims.PrincipalID).
		Msg("password changed")
	h.resp.JSON(w, http.StatusOK, "Password changed successfully", nil)
}
