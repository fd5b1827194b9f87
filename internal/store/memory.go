package store

import (
	"context"
	"sort"
	"sync"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
)

type memoryEntry struct {
	mu      sync.Mutex
	rec     domain.Record
	deleted bool
}

// MemoryStore is the in-process backend. A table-level RWMutex guards the
// maps; each record additionally carries its own lock so updates on one id
// serialize without blocking writes elsewhere. Reads hand out deep copies.
type MemoryStore struct {
	ids   *ident.Provider
	mu    sync.RWMutex
	kinds map[domain.Kind]map[string]*memoryEntry
}

func NewMemory(ids *ident.Provider) *MemoryStore {
	return &MemoryStore{
		ids:   ids,
		kinds: make(map[domain.Kind]map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, rec domain.Record) error {
	meta := rec.Meta()
	if meta.ID == "" || meta.Kind == "" {
		return domain.ValidationError("record is missing id or kind", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.kinds[meta.Kind]
	if table == nil {
		table = make(map[string]*memoryEntry)
		s.kinds[meta.Kind] = table
	}
	if _, exists := table[meta.ID]; exists {
		return domain.ConflictError("id " + meta.ID + " already exists for kind " + string(meta.Kind))
	}
	table[meta.ID] = &memoryEntry{rec: rec.Clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, kind domain.Kind, id string) (domain.Record, error) {
	entry := s.lookup(kind, id)
	if entry == nil {
		return nil, nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, nil
	}
	return entry.rec.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, kind domain.Kind) ([]domain.Record, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.kinds[kind]))
	for _, entry := range s.kinds[kind] {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	records := make([]domain.Record, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.deleted {
			records = append(records, entry.rec.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Meta(), records[j].Meta()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return records, nil
}

func (s *MemoryStore) Update(_ context.Context, kind domain.Kind, id, actor string, expected int64, mutate Mutator) (domain.Record, error) {
	entry := s.lookup(kind, id)
	if entry == nil {
		return nil, domain.NotFoundError(kind, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.NotFoundError(kind, id)
	}
	meta := entry.rec.Meta()
	if meta.AuthorAddress != actor {
		return nil, domain.AuthorizationError("only the author may modify " + id)
	}
	if expected != AnyVersion && meta.Version != expected {
		return nil, domain.ConflictError("version changed since read")
	}

	next := entry.rec.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	nextMeta := next.Meta()
	nextMeta.Version = meta.Version + 1
	nextMeta.UpdatedAt = s.ids.Now()
	entry.rec = next
	return next.Clone(), nil
}

func (s *MemoryStore) Mutate(_ context.Context, kind domain.Kind, id string, mutate Mutator) (domain.Record, error) {
	entry := s.lookup(kind, id)
	if entry == nil {
		return nil, domain.NotFoundError(kind, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.NotFoundError(kind, id)
	}
	next := entry.rec.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	entry.rec = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, kind domain.Kind, id, actor string) error {
	entry := s.lookup(kind, id)
	if entry == nil {
		return domain.NotFoundError(kind, id)
	}

	entry.mu.Lock()
	if entry.deleted {
		entry.mu.Unlock()
		return domain.NotFoundError(kind, id)
	}
	if entry.rec.Meta().AuthorAddress != actor {
		entry.mu.Unlock()
		return domain.AuthorizationError("only the author may delete " + id)
	}
	entry.deleted = true
	entry.mu.Unlock()

	s.mu.Lock()
	delete(s.kinds[kind], id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) lookup(kind domain.Kind, id string) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kinds[kind][id]
}
