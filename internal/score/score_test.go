package score

import (
	"sync"
	"testing"
)

func TestZeroTotalBeforeAnyActivity(t *testing.T) {
	a := NewAggregator()
	s := a.UserScore("0xnobody")
	if s.Total != 0 {
		t.Fatalf("expected zero total, got %d", s.Total)
	}
	if len(s.Breakdown) != 0 {
		t.Fatalf("expected empty breakdown, got %v", s.Breakdown)
	}
}

func TestEveryScorableActionStrictlyIncreasesTotal(t *testing.T) {
	a := NewAggregator()
	actions := []Action{ActionDocumentCreate, ActionThreadCreate, ActionPostCreate, ActionSupportRequest}

	var prev int64
	for _, action := range actions {
		a.Record("0xabc", action)
		got := a.UserScore("0xabc")
		if got.Total <= prev {
			t.Fatalf("total did not increase after %s: %d -> %d", action, prev, got.Total)
		}
		if got.Breakdown[action] <= 0 {
			t.Fatalf("expected positive breakdown for %s, got %d", action, got.Breakdown[action])
		}
		prev = got.Total
	}
}

func TestUnknownActionsAreIgnored(t *testing.T) {
	a := NewAggregator()
	a.Record("0xabc", Action("login"))
	if got := a.UserScore("0xabc").Total; got != 0 {
		t.Fatalf("expected unscored action to contribute nothing, got %d", got)
	}
}

func TestConcurrentRecordsNeverLosePoints(t *testing.T) {
	a := NewAggregator()
	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record("0xabc", ActionPostCreate)
		}()
	}
	wg.Wait()

	want := int64(writers) * points[ActionPostCreate]
	if got := a.UserScore("0xabc").Total; got != want {
		t.Fatalf("expected %d points, got %d", want, got)
	}
}

func TestUserScoreReturnsCopy(t *testing.T) {
	a := NewAggregator()
	a.Record("0xabc", ActionDocumentCreate)

	s := a.UserScore("0xabc")
	s.Breakdown[ActionDocumentCreate] = 999

	if got := a.UserScore("0xabc").Breakdown[ActionDocumentCreate]; got != points[ActionDocumentCreate] {
		t.Fatalf("breakdown mutated through returned copy: %d", got)
	}
}
