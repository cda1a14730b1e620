package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindByIdentifier(ctx context.Context, identifier string) (users.Principal, error) {
	args := m.Called(ctx, identifier)
	p, _ := args.Get(0).(users.Principal)
	return p, args.Error(1)
}

type fixture struct {
	store  *users.MemoryStore
	svc    *users.Service
	hasher *users.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := users.NewMemoryStore()
	hasher := users.NewPasswordHasher(bcrypt.MinCost)
	svc := users.NewService(store, hasher)

	_, err := svc.CreateAdmin(ctx, users.CreateAdminInput{Name: "Root", Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	_, err = svc.CreateLecturer(ctx, users.CreateLecturerInput{FirstName: "Juma", LastName: "Ali", Email: "juma@example.com", Password: "lect-pass"})
	require.NoError(t, err)
	_, err = svc.CreateStudent(ctx, users.CreateStudentInput{RegNo: "283/BSC/T/2018", FirstName: "Asha", LastName: "Mrisho", Password: "secret1"})
	require.NoError(t, err)

	return &fixture{store: store, svc: svc, hasher: hasher}
}

func TestResolve_EachRole(t *testing.T) {
	for _, order := range []string{OrderFixed, OrderShape} {
		t.Run(order, func(t *testing.T) {
			f := newFixture(t)
			probes, err := ProbesFor(order, f.store)
			require.NoError(t, err)
			r := NewResolver(f.hasher, probes...)

			cases := []struct {
				identifier, password string
				role                 users.Role
				id, email            string
			}{
				{"admin@example.com", "admin-pass", users.RoleAdmin, "1", "admin@example.com"},
				{"juma@example.com", "lect-pass", users.RoleLecturer, "1", "juma@example.com"},
				{"283/BSC/T/2018", "secret1", users.RoleStudent, "283/BSC/T/2018", ""},
			}
			for _, tc := range cases {
				id, err := r.Resolve(context.Background(), tc.identifier, tc.password)
				require.NoError(t, err, tc.identifier)
				assert.Equal(t, tc.role, id.Role)
				assert.Equal(t, tc.id, id.ID)
				assert.Equal(t, tc.email, id.Email)
				assert.NotNil(t, id.Principal)
			}
		})
	}
}

func TestResolve_UnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	r := NewResolver(f.hasher, FixedOrder(f.store)...)
	ctx := context.Background()

	_, errUnknown := r.Resolve(ctx, "ghost@example.com", "whatever")
	_, errWrong := r.Resolve(ctx, "admin@example.com", "wrong")
	_, errWrongStudent := r.Resolve(ctx, "283/BSC/T/2018", "wrong")

	for _, err := range []error{errUnknown, errWrong, errWrongStudent} {
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		assert.Equal(t, apperrors.ErrInvalidCredentials.Error(), err.Error())
		assert.Equal(t, 401, apperrors.HTTPStatus(apperrors.KindOf(err)))
	}
}

func TestResolve_SuspendedAfterPasswordCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Suspend(ctx, users.RoleStudent, "283/BSC/T/2018"))
	r := NewResolver(f.hasher, FixedOrder(f.store)...)

	_, err := r.Resolve(ctx, "283/BSC/T/2018", "secret1")
	assert.ErrorIs(t, err, apperrors.ErrAccountSuspended)

	_, err = r.Resolve(ctx, "283/BSC/T/2018", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "suspension must not leak without the password")
}

func TestResolve_IdentifierCommittedToFirstMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Same email in two collections with different passwords
	_, err := f.svc.CreateLecturer(ctx, users.CreateLecturerInput{FirstName: "Dual", LastName: "Role", Email: "admin@example.com", Password: "lecturer-pass"})
	require.NoError(t, err)

	fixed := NewResolver(f.hasher, FixedOrder(f.store)...)
	id, err := fixed.Resolve(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, id.Role)

	_, err = fixed.Resolve(ctx, "admin@example.com", "lecturer-pass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "no fall-through to the lecturer collection")

	shape := NewResolver(f.hasher, ShapeDirectedOrder(f.store)...)
	id, err = shape.Resolve(ctx, "admin@example.com", "lecturer-pass")
	require.NoError(t, err)
	assert.Equal(t, users.RoleLecturer, id.Role)
}

func TestResolve_ShapeOrderSkipsCollections(t *testing.T) {
	admins := &mockFinder{}
	lecturers := &mockFinder{}
	students := &mockFinder{}
	hasher := users.NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)

	students.On("FindByIdentifier", mock.Anything, "283/BSC/T/2018").
		Return(&users.Student{RegNo: "283/BSC/T/2018", Password: hash, Status: users.StatusActive}, nil)

	r := NewResolver(hasher,
		Probe{Finder: lecturers, Accepts: looksLikeEmail},
		Probe{Finder: admins, Accepts: looksLikeEmail},
		Probe{Finder: students, Accepts: notEmail},
	)
	id, err := r.Resolve(context.Background(), "283/BSC/T/2018", "secret1")
	require.NoError(t, err)
	assert.Equal(t, users.RoleStudent, id.Role)

	admins.AssertNotCalled(t, "FindByIdentifier", mock.Anything, mock.Anything)
	lecturers.AssertNotCalled(t, "FindByIdentifier", mock.Anything, mock.Anything)
	students.AssertExpectations(t)
}

func TestResolve_StorageFailurePropagates(t *testing.T) {
	admins := &mockFinder{}
	lecturers := &mockFinder{}
	boom := errors.New("connection refused")

	admins.On("FindByIdentifier", mock.Anything, "x@example.com").Return(nil, users.ErrNotFound)
	lecturers.On("FindByIdentifier", mock.Anything, "x@example.com").Return(nil, boom)

	r := NewResolver(users.NewPasswordHasher(bcrypt.MinCost), Probe{Finder: admins}, Probe{Finder: lecturers})
	_, err := r.Resolve(context.Background(), "x@example.com", "pw")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.ErrorIs(t, err, boom)
	admins.AssertExpectations(t)
	lecturers.AssertExpectations(t)
}

func TestProbesFor_UnknownOrder(t *testing.T) {
	_, err := ProbesFor("random", users.NewMemoryStore())
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
}
