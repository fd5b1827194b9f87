// Package support implements peer-support intake: volunteer registry,
// request handling, and the waiting -> active -> resolved session machine.
package support

import (
	"context"
	"sort"
	"sync"
	"time"

	"agora/core/internal/domain"
)

// SessionStore holds support sessions. State transitions are atomic: a
// transition observing any other current state fails with
// INVALID_TRANSITION, and Assign reserves a volunteer slot only while the
// volunteer is under its concurrency cap.
type SessionStore interface {
	Save(ctx context.Context, session domain.SupportSession) error
	Get(ctx context.Context, id string) (*domain.SupportSession, error)

	// Assign moves waiting -> active and binds the volunteer. Fails with
	// CONFLICT when the volunteer already holds maxActive sessions.
	Assign(ctx context.Context, id, volunteerAddress string, maxActive int) (*domain.SupportSession, error)

	// Resolve moves active -> resolved and releases the volunteer slot.
	Resolve(ctx context.Context, id string) (*domain.SupportSession, error)

	// Cancel moves waiting -> cancelled.
	Cancel(ctx context.Context, id string) (*domain.SupportSession, error)

	ActiveCount(ctx context.Context, volunteerAddress string) (int, error)
	ListWaiting(ctx context.Context) ([]domain.SupportSession, error)
}

// MemorySessions is the in-process session store.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]domain.SupportSession
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]domain.SupportSession)}
}

func (m *MemorySessions) Save(_ context.Context, session domain.SupportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return domain.ConflictError("session " + session.ID + " already exists")
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemorySessions) Get(_ context.Context, id string) (*domain.SupportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *MemorySessions) Assign(_ context.Context, id, volunteerAddress string, maxActive int) (*domain.SupportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.NotFoundError("support_session", id)
	}
	if session.Status != domain.SessionWaiting {
		return nil, domain.InvalidTransitionError(session.Status, domain.SessionActive)
	}
	if m.activeCountLocked(volunteerAddress) >= maxActive {
		return nil, domain.ConflictError("volunteer " + volunteerAddress + " is at capacity")
	}

	session.Status = domain.SessionActive
	session.VolunteerAddress = volunteerAddress
	session.UpdatedAt = time.Now()
	m.sessions[id] = session
	return &session, nil
}

func (m *MemorySessions) Resolve(_ context.Context, id string) (*domain.SupportSession, error) {
	return m.transition(id, domain.SessionActive, domain.SessionResolved)
}

func (m *MemorySessions) Cancel(_ context.Context, id string) (*domain.SupportSession, error) {
	return m.transition(id, domain.SessionWaiting, domain.SessionCancelled)
}

func (m *MemorySessions) transition(id string, from, to domain.SessionStatus) (*domain.SupportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.NotFoundError("support_session", id)
	}
	if session.Status != from {
		return nil, domain.InvalidTransitionError(session.Status, to)
	}
	session.Status = to
	session.UpdatedAt = time.Now()
	m.sessions[id] = session
	return &session, nil
}

func (m *MemorySessions) ActiveCount(_ context.Context, volunteerAddress string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked(volunteerAddress), nil
}

func (m *MemorySessions) activeCountLocked(volunteerAddress string) int {
	count := 0
	for _, session := range m.sessions {
		if session.Status == domain.SessionActive && session.VolunteerAddress == volunteerAddress {
			count++
		}
	}
	return count
}

func (m *MemorySessions) ListWaiting(_ context.Context) ([]domain.SupportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiting := make([]domain.SupportSession, 0)
	for _, session := range m.sessions {
		if session.Status == domain.SessionWaiting {
			waiting = append(waiting, session)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].ID < waiting[j].ID
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting, nil
}
