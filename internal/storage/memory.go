// Package storage contains the in-memory persistence layer. It implements the
// same repository interfaces as the PostgreSQL store and backs the
// APPCENTER_STORE=memory mode and the service tests.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/repository"
)

// MemoryStore guards every table with a single RWMutex, which also makes
// cross-table rules (cascades, uniqueness) trivially consistent. File
// confirmations in progress are tracked in confirming.
type MemoryStore struct {
	mu         sync.RWMutex
	confirming map[string]struct{}
	seq        uint64
	order      map[string]uint64
	apps       map[string]*model.Application
	versions   map[string]*model.Version
	files      map[string]*model.StagedFile
	users      map[string]*model.User
}

var _ repository.Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		confirming: make(map[string]struct{}),
		order:      make(map[string]uint64),
		apps:       make(map[string]*model.Application),
		versions:   make(map[string]*model.Version),
		files:      make(map[string]*model.StagedFile),
		users:      make(map[string]*model.User),
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// stamp sets creation timestamps and records insertion order. Callers hold the
// write lock.
func (m *MemoryStore) stamp(id string, created, updated *time.Time) {
	now := time.Now().UTC()
	*created = now
	*updated = now
	m.seq++
	m.order[id] = m.seq
}

// newestFirst sorts by creation time, breaking ties by insertion order.
func newestFirst[T any](m *MemoryStore, items []*T, id func(*T) string, created func(*T) time.Time) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return m.order[id(items[i])] > m.order[id(items[j])]
	})
}
