// Package jwt выпускает и проверяет bearer токены.
// Токен содержит снимок {id, role, email} на момент выдачи и
// проверяется без обращения к хранилищу.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// Claims структура для хранения данных в JWT токене
type Claims struct {
	PrincipalID string     `json:"id"`              // id администратора/преподавателя или номер зачетки
	Role        users.Role `json:"role"`            // admin, lecturer, student
	Email       string     `json:"email,omitempty"` // у студентов отсутствует
	jwt.RegisteredClaims
}

// Manager отвечает за создание и проверку JWT токенов
type Manager struct {
	secretKey     []byte
	tokenLifetime time.Duration
	issuer        string
	now           func() time.Time
	parser        *jwt.Parser
}

// Option настраивает Manager
type Option func(*Manager)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager создает новый менеджер JWT.
// Пустой секрет является ошибкой конфигурации.
func NewManager(secretKey string, lifetime time.Duration, issuer string, opts ...Option) (*Manager, error) {
	if secretKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "jwt secret is not configured")
	}
	if lifetime <= 0 {
		return nil, apperrors.New(apperrors.KindConfiguration, "jwt expiration must be positive")
	}

	m := &Manager{
		secretKey:     []byte(secretKey),
		tokenLifetime: lifetime,
		issuer:        issuer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	m.parser = jwt.NewParser(parserOpts...)

	return m, nil
}

// Lifetime возвращает время жизни токена
func (m *Manager) Lifetime() time.Duration {
	return m.tokenLifetime
}

// GenerateToken создает подписанный токен для учетной записи
func (m *Manager) GenerateToken(principalID string, role users.Role, email string) (string, *Claims, error) {
	if principalID == "" || !role.Valid() {
		return "", nil, fmt.Errorf("cannot issue token for %q with role %q", principalID, role)
	}

	now := m.now()
	claims := &Claims{
		PrincipalID: principalID,
		Role:        role,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	metrics.RecordTokenIssued(string(role))
	return tokenString, claims, nil
}

// ParseToken проверяет подпись, алгоритм и срок действия токена.
// Любая ошибка возвращается как ErrUnauthenticated, причина только логируется.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		metrics.RecordTokenVerification(false)
		l := logging.Logger()
		l.Debug().Err(err).Msg("token rejected")
		return nil, apperrors.ErrUnauthenticated
	}

	metrics.RecordTokenVerification(true)
	return claims, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}

	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга токена: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("токен недействителен")
	}

	if claims.PrincipalID == "" {
		return nil, fmt.Errorf("token has no principal id")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("token has unknown role %q", claims.Role)
	}

	return claims, nil
}
