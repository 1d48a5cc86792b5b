package storage

import (
	"context"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func copyUser(u *model.User) *model.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (m *MemoryStore) userConflict(id, username, email string) bool {
	for _, other := range m.users {
		if other.ID == id {
			continue
		}
		if other.Username == username || other.Email == email {
			return true
		}
	}
	return false
}

// CreateUser inserts an account, rejecting duplicate usernames and emails.
func (m *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok || m.userConflict(u.ID, u.Username, u.Email) {
		return apperr.ErrUserExists
	}
	m.stamp(u.ID, &u.CreatedAt, &u.UpdatedAt)
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryStore) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == login || u.Email == login {
			return copyUser(u), nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (m *MemoryStore) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID != excludeID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID != excludeID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, id string, p model.UserPatch) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	if p.IsEmpty() {
		return copyUser(u), nil
	}
	next := copyUser(u)
	p.Apply(next)
	if m.userConflict(id, next.Username, next.Email) {
		return nil, apperr.ErrUserExists
	}
	next.UpdatedAt = time.Now().UTC()
	m.users[id] = next
	return copyUser(next), nil
}

// DeleteUser removes an account. Like the foreign key in PostgreSQL, it refuses
// while the account still owns applications.
func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperr.ErrUserNotFound
	}
	for _, a := range m.apps {
		if a.OwnerID == id {
			return apperr.ErrPermission.WithMessage("user still owns applications")
		}
	}
	delete(m.users, id)
	delete(m.order, id)
	for _, u := range m.users {
		if u.CreatedBy == id {
			u.CreatedBy = ""
		}
	}
	return nil
}

func (m *MemoryStore) listUsers(match func(*model.User) bool) []*model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.User
	for _, u := range m.users {
		if match(u) {
			out = append(out, copyUser(u))
		}
	}
	newestFirst(m, out, func(u *model.User) string { return u.ID },
		func(u *model.User) time.Time { return u.CreatedAt })
	return out
}

func (m *MemoryStore) ListUsers(context.Context) ([]*model.User, error) {
	return m.listUsers(func(*model.User) bool { return true }), nil
}

func (m *MemoryStore) ListUsersByCreator(_ context.Context, creatorID string) ([]*model.User, error) {
	return m.listUsers(func(u *model.User) bool { return u.CreatedBy == creatorID }), nil
}

func (m *MemoryStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrUserNotFound
	}
	t := at.UTC()
	u.LastLogin = &t
	return nil
}

func (m *MemoryStore) UserStats(context.Context) (model.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st model.UserStats
	for _, u := range m.users {
		st.Total++
		switch u.Role {
		case model.RoleSuperAdmin:
			st.SuperAdmins++
		case model.RoleAdmin:
			st.Admins++
		case model.RoleUser:
			st.Users++
		}
		if u.IsActive {
			st.Active++
		} else {
			st.Inactive++
		}
	}
	return st, nil
}
