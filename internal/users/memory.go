package users

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory maps.
// Used with database.driver=memory for local runs and by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    map[Role]int64
	admins    map[string]*Admin    // by id
	lecturers map[string]*Lecturer // by id
	students  map[string]*Student  // by reg_no
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    map[Role]int64{RoleAdmin: 1, RoleLecturer: 1},
		admins:    make(map[string]*Admin),
		lecturers: make(map[string]*Lecturer),
		students:  make(map[string]*Student),
	}
}

func (m *MemoryStore) Admins() Collection    { return &memoryCollection{store: m, role: RoleAdmin} }
func (m *MemoryStore) Lecturers() Collection { return &memoryCollection{store: m, role: RoleLecturer} }
func (m *MemoryStore) Students() Collection  { return &memoryCollection{store: m, role: RoleStudent} }

// CreateAdmin stores a copy of admin and assigns its id
func (m *MemoryStore) CreateAdmin(_ context.Context, admin *Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.admins {
		if a.Email == admin.Email {
			return ErrAlreadyExists
		}
	}

	admin.ID = m.nextID[RoleAdmin]
	m.nextID[RoleAdmin]++
	admin.CreatedAt = time.Now().UTC()

	stored := *admin
	m.admins[admin.PrincipalID()] = &stored
	return nil
}

// CreateLecturer stores a copy of lecturer and assigns its id
func (m *MemoryStore) CreateLecturer(_ context.Context, lecturer *Lecturer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.lecturers {
		if l.Email == lecturer.Email {
			return ErrAlreadyExists
		}
	}

	lecturer.ID = m.nextID[RoleLecturer]
	m.nextID[RoleLecturer]++
	lecturer.CreatedAt = time.Now().UTC()

	stored := *lecturer
	m.lecturers[lecturer.PrincipalID()] = &stored
	return nil
}

// CreateStudent stores a copy of student
func (m *MemoryStore) CreateStudent(_ context.Context, student *Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.students[student.RegNo]; ok {
		return ErrAlreadyExists
	}

	student.CreatedAt = time.Now().UTC()
	stored := *student
	m.students[student.RegNo] = &stored
	return nil
}

// ListLecturers returns a page ordered by first name then id
func (m *MemoryStore) ListLecturers(_ context.Context, page PageRequest) ([]*Lecturer, error) {
	m.mu.RLock()
	all := make([]*Lecturer, 0, len(m.lecturers))
	for _, l := range m.lecturers {
		c := *l
		all = append(all, &c)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].FirstName != all[j].FirstName {
			return all[i].FirstName < all[j].FirstName
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, page), nil
}

// ListStudents returns a page ordered by first name then reg number
func (m *MemoryStore) ListStudents(_ context.Context, page PageRequest) ([]*Student, error) {
	m.mu.RLock()
	all := make([]*Student, 0, len(m.students))
	for _, s := range m.students {
		c := *s
		all = append(all, &c)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].FirstName != all[j].FirstName {
			return all[i].FirstName < all[j].FirstName
		}
		return all[i].RegNo < all[j].RegNo
	})
	return paginate(all, page), nil
}

func paginate[T any](all []T, page PageRequest) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// Count returns the number of principals with the given role
func (m *MemoryStore) Count(_ context.Context, role Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch role {
	case RoleAdmin:
		return len(m.admins), nil
	case RoleLecturer:
		return len(m.lecturers), nil
	case RoleStudent:
		return len(m.students), nil
	}
	return 0, ErrNotFound
}

// memoryCollection is a role-scoped view of a MemoryStore
type memoryCollection struct {
	store *MemoryStore
	role  Role
}

func (c *memoryCollection) Role() Role {
	return c.role
}

func (c *memoryCollection) FindByIdentifier(_ context.Context, identifier string) (Principal, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	switch c.role {
	case RoleAdmin:
		for _, a := range c.store.admins {
			if a.Email == identifier {
				cp := *a
				return &cp, nil
			}
		}
	case RoleLecturer:
		for _, l := range c.store.lecturers {
			if l.Email == identifier {
				cp := *l
				return &cp, nil
			}
		}
	case RoleStudent:
		if s, ok := c.store.students[identifier]; ok {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) FindByID(_ context.Context, id string) (Principal, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	p, ok := c.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// lookup returns a copy; the caller must hold the lock
func (c *memoryCollection) lookup(id string) (Principal, bool) {
	switch c.role {
	case RoleAdmin:
		if a, ok := c.store.admins[canonicalIntKey(id)]; ok {
			cp := *a
			return &cp, true
		}
	case RoleLecturer:
		if l, ok := c.store.lecturers[canonicalIntKey(id)]; ok {
			cp := *l
			return &cp, true
		}
	case RoleStudent:
		if s, ok := c.store.students[id]; ok {
			cp := *s
			return &cp, true
		}
	}
	return nil, false
}

func canonicalIntKey(id string) string {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func (c *memoryCollection) UpdatePasswordHash(_ context.Context, id, currentHash, newHash string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch c.role {
	case RoleAdmin:
		a, ok := c.store.admins[canonicalIntKey(id)]
		if !ok {
			return ErrNotFound
		}
		if a.Password != currentHash {
			return ErrStaleCredential
		}
		a.Password = newHash
	case RoleLecturer:
		l, ok := c.store.lecturers[canonicalIntKey(id)]
		if !ok {
			return ErrNotFound
		}
		if l.Password != currentHash {
			return ErrStaleCredential
		}
		l.Password = newHash
	case RoleStudent:
		s, ok := c.store.students[id]
		if !ok {
			return ErrNotFound
		}
		if s.Password != currentHash {
			return ErrStaleCredential
		}
		s.Password = newHash
	}
	return nil
}

func (c *memoryCollection) UpdateStatus(_ context.Context, id string, status Status) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	switch c.role {
	case RoleLecturer:
		l, ok := c.store.lecturers[canonicalIntKey(id)]
		if !ok {
			return ErrNotFound
		}
		l.Status = status
	case RoleStudent:
		s, ok := c.store.students[id]
		if !ok {
			return ErrNotFound
		}
		s.Status = status
	default:
		return ErrStatusNotSupported
	}
	return nil
}
