package storage

import (
	"context"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func copyVersion(v *model.Version) *model.Version {
	c := *v
	return &c
}

// CreateVersion inserts a version; the application must exist and the
// (app, version, build) triple must be new.
func (m *MemoryStore) CreateVersion(_ context.Context, v *model.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[v.AppID]; !ok {
		return apperr.ErrNotFound
	}
	for _, other := range m.versions {
		if other.AppID == v.AppID && other.Version == v.Version && other.BuildNumber == v.BuildNumber {
			return apperr.ErrDuplicateVersion
		}
	}
	m.stamp(v.ID, &v.CreatedAt, &v.UpdatedAt)
	m.versions[v.ID] = copyVersion(v)
	return nil
}

func (m *MemoryStore) GetVersion(_ context.Context, id string) (*model.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, apperr.ErrVersionNotFound
	}
	return copyVersion(v), nil
}

func (m *MemoryStore) UpdateVersion(_ context.Context, id string, p model.VersionPatch) (*model.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, apperr.ErrVersionNotFound
	}
	if p.IsEmpty() {
		return copyVersion(v), nil
	}
	next := copyVersion(v)
	p.Apply(next)
	for _, other := range m.versions {
		if other.ID != id && other.AppID == next.AppID && other.Version == next.Version && other.BuildNumber == next.BuildNumber {
			return nil, apperr.ErrDuplicateVersion
		}
	}
	next.UpdatedAt = time.Now().UTC()
	m.versions[id] = next
	return copyVersion(next), nil
}

func (m *MemoryStore) DeleteVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return apperr.ErrVersionNotFound
	}
	delete(m.versions, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, appID string) ([]*model.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Version
	for _, v := range m.versions {
		if v.AppID == appID {
			out = append(out, copyVersion(v))
		}
	}
	newestFirst(m, out, func(v *model.Version) string { return v.ID },
		func(v *model.Version) time.Time { return v.CreatedAt })
	return out, nil
}

func (m *MemoryStore) VersionExists(_ context.Context, appID, version, buildNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions {
		if v.AppID == appID && v.Version == version && v.BuildNumber == buildNumber {
			return true, nil
		}
	}
	return false, nil
}
