package users

import (
	"context"
	"errors"
)

// Storage errors. They never leave the service layer untranslated.
var (
	ErrNotFound           = errors.New("principal not found")
	ErrAlreadyExists      = errors.New("principal already exists")
	ErrStaleCredential    = errors.New("password hash changed concurrently")
	ErrStatusNotSupported = errors.New("principal has no status")
)

// Collection is the uniform view over one principal table.
type Collection interface {
	Role() Role
	// FindByIdentifier looks up by the login identifier (email or reg number).
	FindByIdentifier(ctx context.Context, identifier string) (Principal, error)
	// FindByID looks up by primary key as carried in token claims.
	FindByID(ctx context.Context, id string) (Principal, error)
	// UpdatePasswordHash replaces the hash only if it still equals currentHash.
	UpdatePasswordHash(ctx context.Context, id, currentHash, newHash string) error
	// UpdateStatus sets the status; setting the current value succeeds.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// PageRequest is a 1-based page of at most Limit rows
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to 1..100 (default 10)
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Offset returns the number of rows to skip
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Store is the storage boundary used by the service layer.
// Implemented by Repository (Postgres) and MemoryStore.
type Store interface {
	Admins() Collection
	Lecturers() Collection
	Students() Collection

	CreateAdmin(ctx context.Context, admin *Admin) error
	CreateLecturer(ctx context.Context, lecturer *Lecturer) error
	CreateStudent(ctx context.Context, student *Student) error

	ListLecturers(ctx context.Context, page PageRequest) ([]*Lecturer, error)
	ListStudents(ctx context.Context, page PageRequest) ([]*Student, error)
	Count(ctx context.Context, role Role) (int, error)
}

// CollectionFor returns the collection holding principals of the given role
func CollectionFor(s Store, role Role) (Collection, error) {
	switch role {
	case RoleAdmin:
		return s.Admins(), nil
	case RoleLecturer:
		return s.Lecturers(), nil
	case RoleStudent:
		return s.Students(), nil
	}
	return nil, ErrNotFound
}
