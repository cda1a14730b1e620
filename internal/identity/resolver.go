// Package identity определяет, какой учетной записи принадлежит пара
// (идентификатор, пароль), перебирая коллекции в заданном порядке.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// Порядок перебора коллекций
const (
	OrderFixed = "fixed" // Admin -> Lecturer -> Student
	OrderShape = "shape" // email: Lecturer -> Admin, иначе только Student
)

// Finder ищет учетную запись по идентификатору входа.
// users.Collection удовлетворяет этому интерфейсу.
type Finder interface {
	FindByIdentifier(ctx context.Context, identifier string) (users.Principal, error)
}

// Probe одна коллекция в порядке перебора.
// Accepts == nil означает, что коллекция проверяется всегда.
type Probe struct {
	Finder  Finder
	Accepts func(identifier string) bool
}

func looksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

func notEmail(identifier string) bool {
	return !looksLikeEmail(identifier)
}

// FixedOrder returns probes in Admin, Lecturer, Student order
func FixedOrder(store users.Store) []Probe {
	return []Probe{
		{Finder: store.Admins()},
		{Finder: store.Lecturers()},
		{Finder: store.Students()},
	}
}

// ShapeDirectedOrder routes email-shaped identifiers to Lecturer then Admin
// and everything else straight to Student.
func ShapeDirectedOrder(store users.Store) []Probe {
	return []Probe{
		{Finder: store.Lecturers(), Accepts: looksLikeEmail},
		{Finder: store.Admins(), Accepts: looksLikeEmail},
		{Finder: store.Students(), Accepts: notEmail},
	}
}

// ProbesFor builds probes for a configured order name
func ProbesFor(order string, store users.Store) ([]Probe, error) {
	switch order {
	case OrderFixed, "":
		return FixedOrder(store), nil
	case OrderShape:
		return ShapeDirectedOrder(store), nil
	}
	return nil, apperrors.New(apperrors.KindConfiguration, fmt.Sprintf("unknown probe order %q", order))
}

// Identity результат успешного входа
type Identity struct {
	ID        string
	Role      users.Role
	Email     string
	Principal users.Principal
}

// Resolver проверяет учетные данные
type Resolver struct {
	probes []Probe
	hasher *users.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewResolver создает резолвер с заданным порядком перебора
func NewResolver(hasher *users.PasswordHasher, probes ...Probe) *Resolver {
	return &Resolver{probes: probes, hasher: hasher}
}

// Resolve возвращает личность владельца идентификатора.
// Идентификатор закрепляется за первой коллекцией, в которой найден:
// неверный пароль там не приводит к поиску в следующих коллекциях.
// Неизвестный идентификатор и неверный пароль дают одну и ту же ошибку.
func (r *Resolver) Resolve(ctx context.Context, identifier, password string) (*Identity, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	principal, err := r.lookup(ctx, identifier)
	if err != nil {
		metrics.RecordLogin(metrics.OutcomeError, "", time.Since(start))
		log.Error().Err(err).Msg("identity lookup failed")
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to resolve identity", err)
	}

	if principal == nil {
		// Выравниваем время ответа для несуществующих идентификаторов
		r.hasher.Verify(password, r.dummy())
		metrics.RecordLogin(metrics.OutcomeInvalidCredentials, "", time.Since(start))
		log.Info().Msg("login rejected: invalid credentials")
		return nil, apperrors.ErrInvalidCredentials
	}

	role := string(principal.Role())
	if !r.hasher.Verify(password, principal.PasswordHash()) {
		metrics.RecordLogin(metrics.OutcomeInvalidCredentials, role, time.Since(start))
		log.Info().Msg("login rejected: invalid credentials")
		return nil, apperrors.ErrInvalidCredentials
	}

	// Статус проверяется только после подтверждения пароля
	if principal.AccountStatus() != users.StatusActive {
		metrics.RecordLogin(metrics.OutcomeSuspended, role, time.Since(start))
		log.Warn().Str("role", role).Str("principal_id", principal.PrincipalID()).Msg("login rejected: account suspended")
		return nil, apperrors.ErrAccountSuspended
	}

	metrics.RecordLogin(metrics.OutcomeSuccess, role, time.Since(start))
	log.Info().Str("role", role).Str("principal_id", principal.PrincipalID()).Msg("login succeeded")

	return &Identity{
		ID:        principal.PrincipalID(),
		Role:      principal.Role(),
		Email:     principal.ContactEmail(),
		Principal: principal,
	}, nil
}

// lookup returns the first principal holding identifier, or nil
func (r *Resolver) lookup(ctx context.Context, identifier string) (users.Principal, error) {
	for _, p := range r.probes {
		if p.Accepts != nil && !p.Accepts(identifier) {
			continue
		}
		principal, err := p.Finder.FindByIdentifier(ctx, identifier)
		if err == nil {
			return principal, nil
		}
		if !errors.Is(err, users.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (r *Resolver) dummy() string {
	r.dummyOnce.Do(func() {
		r.dummyHash, _ = r.hasher.Hash("portal-dummy-password")
	})
	return r.dummyHash
}
