package storage

import (
	"context"
	"sort"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
	"github.com/dharsanguruparan/AppCenter/internal/model"
)

func copyFile(f *model.StagedFile) *model.StagedFile {
	c := *f
	if f.ParsedInfo != nil {
		info := *f.ParsedInfo
		c.ParsedInfo = &info
	}
	return &c
}

// CreateFile inserts a staged file record.
func (m *MemoryStore) CreateFile(_ context.Context, f *model.StagedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(f.ID, &f.CreatedAt, &f.UpdatedAt)
	m.files[f.ID] = copyFile(f)
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, id string) (*model.StagedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, apperr.ErrFileNotFound
	}
	return copyFile(f), nil
}

// ConfirmFile marks id in flight, runs move without holding the store lock and
// then records the confirmation. Only the caller that claimed the id observes
// status temporary; the rest get ErrFileNotStaged.
func (m *MemoryStore) ConfirmFile(_ context.Context, id, finalPath string, move func(*model.StagedFile) error) (*model.StagedFile, error) {
	m.mu.Lock()
	f, ok := m.files[id]
	if _, busy := m.confirming[id]; !ok || busy || f.Status != model.FileTemporary {
		m.mu.Unlock()
		return nil, apperr.ErrFileNotStaged
	}
	m.confirming[id] = struct{}{}
	next := copyFile(f)
	m.mu.Unlock()

	next.FinalPath = finalPath
	err := move(copyFile(next))

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.confirming, id)
	if err != nil {
		return nil, err
	}
	next.Status = model.FileConfirmed
	next.UpdatedAt = time.Now().UTC()
	m.files[id] = next
	return copyFile(next), nil
}

func (m *MemoryStore) ListTemporaryBefore(_ context.Context, cutoff time.Time) ([]*model.StagedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.StagedFile
	for _, f := range m.files {
		if f.Status == model.FileTemporary && f.UploadDate.Before(cutoff) {
			out = append(out, copyFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.Before(out[j].UploadDate) })
	return out, nil
}

func (m *MemoryStore) ExpireFile(_ context.Context, id string) (*model.StagedFile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if _, busy := m.confirming[id]; !ok || busy || f.Status != model.FileTemporary {
		return nil, false, nil
	}
	f.Status = model.FileExpired
	f.UpdatedAt = time.Now().UTC()
	return copyFile(f), true, nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, id string) (*model.StagedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, apperr.ErrFileNotFound
	}
	if _, busy := m.confirming[id]; busy {
		return nil, apperr.ErrFileNotStaged
	}
	delete(m.files, id)
	delete(m.order, id)
	return f, nil
}
