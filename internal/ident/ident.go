// Package ident issues entity ids and monotonic timestamps for every other
// component. A single Provider is constructed at wiring time and shared.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Provider struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func New() *Provider {
	return &Provider{now: time.Now}
}

// NewWithClock allows tests to pin the wall clock. Monotonicity is still
// enforced on top of whatever the clock returns.
func NewWithClock(now func() time.Time) *Provider {
	return &Provider{now: now}
}

// NewID returns a fresh id of the form prefix_<32 hex chars>. Ids are drawn
// from crypto/rand, so concurrent callers never collide and deleted ids are
// never handed out again.
func (p *Provider) NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// SessionID returns a UUID for support sessions, which keep an id space
// separate from record-store entities.
func (p *Provider) SessionID() string {
	return uuid.NewString()
}

// Now returns a strictly increasing timestamp. Two consecutive calls never
// return the same instant, which keeps created-at ordering stable for post
// sequences even on coarse clocks.
func (p *Provider) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.now()
	if !t.After(p.last) {
		t = p.last.Add(time.Nanosecond)
	}
	p.last = t
	return t
}
