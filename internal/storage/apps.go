package storage

import (
	"context"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func copyApp(a *model.Application) *model.Application {
	c := *a
	if a.UploadDate != nil {
		t := *a.UploadDate
		c.UploadDate = &t
	}
	return &c
}

// CreateApp inserts an application after checking its unique keys.
func (m *MemoryStore) CreateApp(_ context.Context, a *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.apps {
		if other.DownloadKey == a.DownloadKey {
			return apperr.ErrDuplicateDownloadKey
		}
		if other.AppKey == a.AppKey || other.ID == a.ID {
			return apperr.ErrValidation.WithMessage("application key already exists")
		}
	}
	m.stamp(a.ID, &a.CreatedAt, &a.UpdatedAt)
	m.apps[a.ID] = copyApp(a)
	return nil
}

func (m *MemoryStore) findApp(match func(*model.Application) bool) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.apps {
		if match(a) {
			return copyApp(a), nil
		}
	}
	return nil, apperr.ErrNotFound
}

// GetApp returns a copy of the application.
func (m *MemoryStore) GetApp(_ context.Context, id string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyApp(a), nil
}

func (m *MemoryStore) GetAppByAppKey(_ context.Context, appKey string) (*model.Application, error) {
	return m.findApp(func(a *model.Application) bool { return a.AppKey == appKey })
}

func (m *MemoryStore) GetAppByDownloadKey(_ context.Context, downloadKey string) (*model.Application, error) {
	return m.findApp(func(a *model.Application) bool { return a.DownloadKey == downloadKey })
}

func (m *MemoryStore) DownloadKeyExists(_ context.Context, downloadKey, excludeID string) (bool, error) {
	_, err := m.findApp(func(a *model.Application) bool { return a.DownloadKey == downloadKey && a.ID != excludeID })
	return err == nil, nil
}

func (m *MemoryStore) AppKeyExists(_ context.Context, appKey string) (bool, error) {
	_, err := m.findApp(func(a *model.Application) bool { return a.AppKey == appKey })
	return err == nil, nil
}

// UpdateApp applies patch; an empty patch leaves UpdatedAt alone.
func (m *MemoryStore) UpdateApp(_ context.Context, id string, p model.ApplicationPatch) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if p.IsEmpty() {
		return copyApp(a), nil
	}
	if p.DownloadKey != nil {
		for _, other := range m.apps {
			if other.ID != id && other.DownloadKey == *p.DownloadKey {
				return nil, apperr.ErrDuplicateDownloadKey
			}
		}
	}
	p.Apply(a)
	a.UpdatedAt = time.Now().UTC()
	return copyApp(a), nil
}

// DeleteApp removes the application and its versions.
func (m *MemoryStore) DeleteApp(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.apps, id)
	delete(m.order, id)
	for vid, v := range m.versions {
		if v.AppID == id {
			delete(m.versions, vid)
			delete(m.order, vid)
		}
	}
	return nil
}

func (m *MemoryStore) listApps(match func(*model.Application) bool) []*model.Application {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Application
	for _, a := range m.apps {
		if match(a) {
			out = append(out, copyApp(a))
		}
	}
	newestFirst(m, out, func(a *model.Application) string { return a.ID },
		func(a *model.Application) time.Time { return a.CreatedAt })
	return out
}

func (m *MemoryStore) ListApps(context.Context) ([]*model.Application, error) {
	return m.listApps(func(*model.Application) bool { return true }), nil
}

func (m *MemoryStore) ListAppsByOwner(_ context.Context, ownerID string) ([]*model.Application, error) {
	return m.listApps(func(a *model.Application) bool { return a.OwnerID == ownerID }), nil
}

func (m *MemoryStore) CountAppsByOwner(ctx context.Context, ownerID string) (int, error) {
	apps, _ := m.ListAppsByOwner(ctx, ownerID)
	return len(apps), nil
}
