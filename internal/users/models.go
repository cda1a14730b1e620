package users

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Role represents principal role in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLecturer, RoleStudent:
		return true
	}
	return false
}

// ParseRole converts a role claim into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Status is the account status of lecturers and students.
// Values match the stored SMALLINT column.
type Status int

const (
	StatusSuspended Status = 0
	StatusActive    Status = 1
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "suspended"
}

// Principal is implemented by every variant that can authenticate.
// Admin, Lecturer and Student live in separate tables and share no key.
type Principal interface {
	PrincipalID() string
	Role() Role
	PasswordHash() string
	DisplayName() string
	ContactEmail() string
	AccountStatus() Status
}

// Admin represents an administrator. Admins are always active.
type Admin struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password_hash" json:"-"`
	Image     string    `db:"image" json:"image,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (a *Admin) PrincipalID() string   { return strconv.FormatInt(a.ID, 10) }
func (a *Admin) Role() Role            { return RoleAdmin }
func (a *Admin) PasswordHash() string  { return a.Password }
func (a *Admin) DisplayName() string   { return a.Name }
func (a *Admin) ContactEmail() string  { return a.Email }
func (a *Admin) AccountStatus() Status { return StatusActive }

// Lecturer represents a member of staff
type Lecturer struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password_hash" json:"-"`
	Image     string    `db:"image" json:"image,omitempty"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (l *Lecturer) PrincipalID() string   { return strconv.FormatInt(l.ID, 10) }
func (l *Lecturer) Role() Role            { return RoleLecturer }
func (l *Lecturer) PasswordHash() string  { return l.Password }
func (l *Lecturer) DisplayName() string   { return l.FirstName + " " + l.LastName }
func (l *Lecturer) ContactEmail() string  { return l.Email }
func (l *Lecturer) AccountStatus() Status { return l.Status }

// Student represents a student keyed by registration number
type Student struct {
	RegNo     string    `db:"reg_no" json:"reg_no"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Password  string    `db:"password_hash" json:"-"`
	Image     string    `db:"image" json:"image,omitempty"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s *Student) PrincipalID() string   { return s.RegNo }
func (s *Student) Role() Role            { return RoleStudent }
func (s *Student) PasswordHash() string  { return s.Password }
func (s *Student) DisplayName() string   { return s.FirstName + " " + s.LastName }
func (s *Student) ContactEmail() string  { return "" }
func (s *Student) AccountStatus() Status { return s.Status }

var regNoPattern = regexp.MustCompile(`^(\d{3,4}/[A-Z.]+/T/20\d{2}|RU/[A-Z.]+/20\d{2}/\d{3,4})$`)

// IsValidRegNo validates a registration number,
// e.g. "283/BSC.SE/T/2018" or "RU/BSC/2019/012".
func IsValidRegNo(regNo string) bool {
	return regNoPattern.MatchString(regNo)
}
