// Package users предоставляет доступ к хранению учетных записей
// администраторов, преподавателей и студентов.
// Три таблицы не имеют общего ключа, поэтому каждая представлена
// отдельной коллекцией с единым интерфейсом Collection.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// table описывает, как одна роль хранится в базе данных
type table struct {
	name        string
	role        Role
	keyColumn   string
	identColumn string
	columns     []string
	hasStatus   bool
	parseKey    func(id string) (any, bool)
	scan        func(row rowScanner) (Principal, error)
}

func parseIntKey(id string) (any, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, false
	}
	return n, true
}

func parseStringKey(id string) (any, bool) {
	return id, id != ""
}

var adminColumns = []string{"id", "name", "email", "password_hash", "image", "created_at"}

func scanAdmin(row rowScanner) (Principal, error) {
	a := &Admin{}
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Password, &a.Image, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

var lecturerColumns = []string{"id", "first_name", "last_name", "email", "password_hash", "image", "status", "created_at"}

func scanLecturer(row rowScanner) (Principal, error) {
	l := &Lecturer{}
	if err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Password, &l.Image, &l.Status, &l.CreatedAt); err != nil {
		return nil, err
	}
	return l, nil
}

var studentColumns = []string{"reg_no", "first_name", "last_name", "password_hash", "image", "status", "created_at"}

func scanStudent(row rowScanner) (Principal, error) {
	s := &Student{}
	if err := row.Scan(&s.RegNo, &s.FirstName, &s.LastName, &s.Password, &s.Image, &s.Status, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

var (
	adminTable = table{
		name: "admins", role: RoleAdmin, keyColumn: "id", identColumn: "email",
		columns: adminColumns, parseKey: parseIntKey, scan: scanAdmin,
	}
	lecturerTable = table{
		name: "lecturers", role: RoleLecturer, keyColumn: "id", identColumn: "email",
		columns: lecturerColumns, hasStatus: true, parseKey: parseIntKey, scan: scanLecturer,
	}
	studentTable = table{
		name: "students", role: RoleStudent, keyColumn: "reg_no", identColumn: "reg_no",
		columns: studentColumns, hasStatus: true, parseKey: parseStringKey, scan: scanStudent,
	}
)

// sqlCollection реализует Collection поверх одной таблицы
type sqlCollection struct {
	db *sql.DB
	sb sq.StatementBuilderType
	t  table
}

func (c *sqlCollection) Role() Role {
	return c.t.role
}

// FindByIdentifier получает учетную запись по email или номеру зачетки
func (c *sqlCollection) FindByIdentifier(ctx context.Context, identifier string) (Principal, error) {
	return c.findOne(ctx, c.t.identColumn, identifier)
}

// FindByID получает учетную запись по первичному ключу
func (c *sqlCollection) FindByID(ctx context.Context, id string) (Principal, error) {
	key, ok := c.t.parseKey(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c.findOne(ctx, c.t.keyColumn, key)
}

func (c *sqlCollection) findOne(ctx context.Context, column string, value any) (Principal, error) {
	query, args, err := c.sb.Select(c.t.columns...).
		From(c.t.name).
		Where(sq.Eq{column: value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", c.t.name, err)
	}

	p, err := c.t.scan(c.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s by %s: %w", c.t.role, column, err)
	}

	return p, nil
}

// UpdatePasswordHash заменяет хэш одним условным UPDATE,
// поэтому параллельная смена пароля не теряется молча.
func (c *sqlCollection) UpdatePasswordHash(ctx context.Context, id, currentHash, newHash string) error {
	key, ok := c.t.parseKey(id)
	if !ok {
		return ErrNotFound
	}

	query, args, err := c.sb.Update(c.t.name).
		Set("password_hash", newHash).
		Where(sq.Eq{c.t.keyColumn: key}).
		Where(sq.Eq{"password_hash": currentHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build %s update: %w", c.t.name, err)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s password: %w", c.t.role, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Ни одна строка не обновлена: либо записи нет, либо хэш уже заменен
	if _, err := c.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleCredential
}

// UpdateStatus блокирует или разблокирует учетную запись
func (c *sqlCollection) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !c.t.hasStatus {
		return ErrStatusNotSupported
	}
	key, ok := c.t.parseKey(id)
	if !ok {
		return ErrNotFound
	}

	query, args, err := c.sb.Update(c.t.name).
		Set("status", int(status)).
		Where(sq.Eq{c.t.keyColumn: key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build %s update: %w", c.t.name, err)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", c.t.role, err)
	}

	// Postgres считает совпавшие строки, даже если статус не изменился
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Repository предоставляет доступ к хранению учетных записей в Postgres
type Repository struct {
	db        *sql.DB
	sb        sq.StatementBuilderType
	admins    *sqlCollection
	lecturers *sqlCollection
	students  *sqlCollection
}

// NewRepository создает новый репозиторий учетных записей
func NewRepository(db *sql.DB) *Repository {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	return &Repository{
		db:        db,
		sb:        sb,
		admins:    &sqlCollection{db: db, sb: sb, t: adminTable},
		lecturers: &sqlCollection{db: db, sb: sb, t: lecturerTable},
		students:  &sqlCollection{db: db, sb: sb, t: studentTable},
	}
}

func (r *Repository) Admins() Collection    { return r.admins }
func (r *Repository) Lecturers() Collection { return r.lecturers }
func (r *Repository) Students() Collection  { return r.students }

// translateWriteError переводит нарушение уникальности в ErrAlreadyExists
func translateWriteError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s %s: %w", what, pqErr.Constraint, ErrAlreadyExists)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

// CreateAdmin создает администратора
func (r *Repository) CreateAdmin(ctx context.Context, admin *Admin) error {
	query, args, err := r.sb.Insert("admins").
		Columns("name", "email", "password_hash", "image").
		Values(admin.Name, admin.Email, admin.Password, admin.Image).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build admin insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&admin.ID, &admin.CreatedAt); err != nil {
		return translateWriteError(err, "admin")
	}
	return nil
}

// CreateLecturer создает преподавателя
func (r *Repository) CreateLecturer(ctx context.Context, lecturer *Lecturer) error {
	query, args, err := r.sb.Insert("lecturers").
		Columns("first_name", "last_name", "email", "password_hash", "image", "status").
		Values(lecturer.FirstName, lecturer.LastName, lecturer.Email, lecturer.Password, lecturer.Image, int(lecturer.Status)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lecturer insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&lecturer.ID, &lecturer.CreatedAt); err != nil {
		return translateWriteError(err, "lecturer")
	}
	return nil
}

// CreateStudent создает студента
func (r *Repository) CreateStudent(ctx context.Context, student *Student) error {
	query, args, err := r.sb.Insert("students").
		Columns("reg_no", "first_name", "last_name", "password_hash", "image", "status").
		Values(student.RegNo, student.FirstName, student.LastName, student.Password, student.Image, int(student.Status)).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build student insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&student.CreatedAt); err != nil {
		return translateWriteError(err, "student")
	}
	return nil
}

// ListLecturers получает страницу преподавателей, упорядоченных по имени
func (r *Repository) ListLecturers(ctx context.Context, page PageRequest) ([]*Lecturer, error) {
	page = page.Normalize()
	query, args, err := r.sb.Select(lecturerColumns...).
		From("lecturers").
		OrderBy("first_name ASC", "id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lecturer list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lecturers: %w", err)
	}
	defer rows.Close()

	var lecturers []*Lecturer
	for rows.Next() {
		p, err := scanLecturer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lecturer: %w", err)
		}
		lecturers = append(lecturers, p.(*Lecturer))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return lecturers, nil
}

// ListStudents получает страницу студентов, упорядоченных по имени
func (r *Repository) ListStudents(ctx context.Context, page PageRequest) ([]*Student, error) {
	page = page.Normalize()
	query, args, err := r.sb.Select(studentColumns...).
		From("students").
		OrderBy("first_name ASC", "reg_no ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build student list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		p, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, p.(*Student))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return students, nil
}

// Count возвращает количество учетных записей роли
func (r *Repository) Count(ctx context.Context, role Role) (int, error) {
	var name string
	switch role {
	case RoleAdmin:
		name = adminTable.name
	case RoleLecturer:
		name = lecturerTable.name
	case RoleStudent:
		name = studentTable.name
	default:
		return 0, fmt.Errorf("unknown role %q", role)
	}

	query, args, err := r.sb.Select("COUNT(*)").From(name).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", name, err)
	}
	return n, nil
}
