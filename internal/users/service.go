package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
)

// Service manages the credential lifecycle of all three principal kinds:
// creation, password rotation and suspension.
type Service struct {
	store  Store
	hasher *PasswordHasher
}

// NewService creates a new user service
func NewService(store Store, hasher *PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// Store returns the underlying storage
func (s *Service) Store() Store {
	return s.store
}

// CreateAdminInput contains data needed to create an administrator
type CreateAdminInput struct {
	Name     string `json:"name" yaml:"name" validate:"required,max=100"`
	Email    string `json:"email" yaml:"email" validate:"required,email,max=255"`
	Password string `json:"password" yaml:"password" validate:"required,min=6,bcryptlen"`
	Image    string `json:"image,omitempty" yaml:"image" validate:"omitempty,max=255"`
}

// CreateLecturerInput contains data needed to create a lecturer
type CreateLecturerInput struct {
	FirstName string `json:"first_name" yaml:"first_name" validate:"required,alpha,max=50"`
	LastName  string `json:"last_name" yaml:"last_name" validate:"required,alpha,max=50"`
	Email     string `json:"email" yaml:"email" validate:"required,email,max=255"`
	Password  string `json:"password" yaml:"password" validate:"required,min=6,bcryptlen"`
	Image     string `json:"image,omitempty" yaml:"image" validate:"omitempty,max=255"`
}

// CreateStudentInput contains data needed to create a student
type CreateStudentInput struct {
	RegNo     string `json:"reg_no" yaml:"reg_no" validate:"required,regno"`
	FirstName string `json:"first_name" yaml:"first_name" validate:"required,alpha,max=50"`
	LastName  string `json:"last_name" yaml:"last_name" validate:"required,alpha,max=50"`
	Password  string `json:"password" yaml:"password" validate:"required,min=6,bcryptlen"`
	Image     string `json:"image,omitempty" yaml:"image" validate:"omitempty,max=255"`
}

// hashNew hashes a password for a new or rotated credential
func (s *Service) hashNew(password string) (string, error) {
	if password == "" {
		return "", apperrors.New(apperrors.KindValidation, "Password is required")
	}
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return "", err
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to hash password", err)
	}
	return hash, nil
}

func translateCreateError(err error, message string) error {
	if errors.Is(err, ErrAlreadyExists) {
		return apperrors.Wrap(apperrors.KindConflict, message, err)
	}
	return apperrors.Wrap(apperrors.KindInternal, "failed to create account", err)
}

// CreateAdmin creates an administrator
func (s *Service) CreateAdmin(ctx context.Context, input CreateAdminInput) (*Admin, error) {
	hash, err := s.hashNew(input.Password)
	if err != nil {
		return nil, err
	}

	admin := &Admin{
		Name:     input.Name,
		Email:    input.Email,
		Password: hash,
		Image:    input.Image,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, translateCreateError(err, "Email already exists")
	}

	admin.Password = ""
	return admin, nil
}

// CreateLecturer creates an active lecturer
func (s *Service) CreateLecturer(ctx context.Context, input CreateLecturerInput) (*Lecturer, error) {
	hash, err := s.hashNew(input.Password)
	if err != nil {
		return nil, err
	}

	lecturer := &Lecturer{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  hash,
		Image:     input.Image,
		Status:    StatusActive,
	}
	if err := s.store.CreateLecturer(ctx, lecturer); err != nil {
		return nil, translateCreateError(err, "Email already exists")
	}

	lecturer.Password = ""
	return lecturer, nil
}

// CreateStudent creates an active student
func (s *Service) CreateStudent(ctx context.Context, input CreateStudentInput) (*Student, error) {
	if !IsValidRegNo(input.RegNo) {
		return nil, apperrors.New(apperrors.KindValidation,
			"Invalid registration number format. Example: 283/BSC.SE/T/2018")
	}

	hash, err := s.hashNew(input.Password)
	if err != nil {
		return nil, err
	}

	student := &Student{
		RegNo:     input.RegNo,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  hash,
		Image:     input.Image,
		Status:    StatusActive,
	}
	if err := s.store.CreateStudent(ctx, student); err != nil {
		return nil, translateCreateError(err, "Registration number already exists")
	}

	student.Password = ""
	return student, nil
}

func (s *Service) collection(role Role) (Collection, error) {
	c, err := CollectionFor(s.store, role)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "Invalid user role", err)
	}
	return c, nil
}

func (s *Service) find(ctx context.Context, c Collection, id string) (Principal, error) {
	p, err := c.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, "User not found", err)
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load user", err)
	}
	return p, nil
}

// Profile returns the principal identified by role and id
func (s *Service) Profile(ctx context.Context, role Role, id string) (Principal, error) {
	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, c, id)
}

// ChangePassword rotates the password of any principal kind.
// The same sequence applies to every collection: verify the current
// password, reject an unchanged password, then swap the hash atomically.
func (s *Service) ChangePassword(ctx context.Context, role Role, id, currentPassword, newPassword string) error {
	c, err := s.collection(role)
	if err != nil {
		return err
	}

	p, err := s.find(ctx, c, id)
	if err != nil {
		return err
	}

	currentHash := p.PasswordHash()
	if !s.hasher.Verify(currentPassword, currentHash) {
		return apperrors.ErrIncorrectPassword
	}
	if s.hasher.Verify(newPassword, currentHash) {
		return apperrors.ErrPasswordUnchanged
	}

	newHash, err := s.hashNew(newPassword)
	if err != nil {
		return err
	}

	err = c.UpdatePasswordHash(ctx, id, currentHash, newHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleCredential):
		return apperrors.Wrap(apperrors.KindConflict, "Password was changed concurrently, try again", err)
	case errors.Is(err, ErrNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, "User not found", err)
	default:
		return apperrors.Wrap(apperrors.KindInternal, "failed to update password", err)
	}
}

// Suspend blocks logins for a lecturer or student. Suspending a
// suspended account succeeds.
func (s *Service) Suspend(ctx context.Context, role Role, id string) error {
	return s.setStatus(ctx, role, id, StatusSuspended)
}

// Unsuspend re-activates a lecturer or student
func (s *Service) Unsuspend(ctx context.Context, role Role, id string) error {
	return s.setStatus(ctx, role, id, StatusActive)
}

func (s *Service) setStatus(ctx context.Context, role Role, id string, status Status) error {
	c, err := s.collection(role)
	if err != nil {
		return err
	}

	err = c.UpdateStatus(ctx, id, status)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStatusNotSupported):
		return apperrors.Wrap(apperrors.KindValidation, "Administrator accounts cannot be suspended", err)
	case errors.Is(err, ErrNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, "User not found", err)
	default:
		return apperrors.Wrap(apperrors.KindInternal, fmt.Sprintf("failed to set %s status", role), err)
	}
}

// Page is one page of a listing with pagination metadata
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

func newPage[T any](items []T, total int, req PageRequest) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: (total + req.Limit - 1) / req.Limit,
	}
}

// ListLecturers returns a page of lecturers
func (s *Service) ListLecturers(ctx context.Context, req PageRequest) (*Page[*Lecturer], error) {
	req = req.Normalize()

	total, err := s.store.Count(ctx, RoleLecturer)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count lecturers", err)
	}
	items, err := s.store.ListLecturers(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list lecturers", err)
	}
	return newPage(items, total, req), nil
}

// ListStudents returns a page of students
func (s *Service) ListStudents(ctx context.Context, req PageRequest) (*Page[*Student], error) {
	req = req.Normalize()

	total, err := s.store.Count(ctx, RoleStudent)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count students", err)
	}
	items, err := s.store.ListStudents(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to list students", err)
	}
	return newPage(items, total, req), nil
}

// Counts holds dashboard totals
type Counts struct {
	Admins    int `json:"admin_count"`
	Lecturers int `json:"lecturer_count"`
	Students  int `json:"student_count"`
}

// Counts counts all three collections concurrently
func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	var counts Counts

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		n, err := s.store.Count(ctx, RoleAdmin)
		counts.Admins = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		n, err := s.store.Count(ctx, RoleLecturer)
		counts.Lecturers = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		n, err := s.store.Count(ctx, RoleStudent)
		counts.Students = n
		return err
	})

	if err := p.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count accounts", err)
	}
	return &counts, nil
}
