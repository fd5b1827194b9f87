package ident

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewIDUsesPrefixAndIsUnique(t *testing.T) {
	p := New()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := p.NewID("doc")
		if !strings.HasPrefix(id, "doc_") {
			t.Fatalf("expected doc_ prefix, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewIDConcurrentCallersNeverCollide(t *testing.T) {
	p := New()
	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- p.NewID("doc")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q under concurrency", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct ids, got %d", workers, len(seen))
	}
}

func TestNowIsStrictlyMonotonic(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWithClock(func() time.Time { return frozen })

	prev := p.Now()
	for i := 0; i < 50; i++ {
		next := p.Now()
		if !next.After(prev) {
			t.Fatalf("expected %v > %v", next, prev)
		}
		prev = next
	}
}
