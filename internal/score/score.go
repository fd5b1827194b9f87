// Package score derives per-user participation scores from document, forum,
// and support activity. Totals are updated synchronously with the triggering
// write and are queryable immediately after it commits.
package score

import "sync"

// Action is a scorable activity.
type Action string

const (
	ActionDocumentCreate Action = "document_create"
	ActionThreadCreate   Action = "thread_create"
	ActionPostCreate     Action = "post_create"
	ActionSupportRequest Action = "support_request"
)

// Points per action. Every scorable action is worth at least 1, so a user's
// total strictly increases with each one.
var points = map[Action]int64{
	ActionDocumentCreate: 10,
	ActionThreadCreate:   5,
	ActionPostCreate:     2,
	ActionSupportRequest: 1,
}

// Score is the aggregate for one address.
type Score struct {
	Total     int64            `json:"total"`
	Breakdown map[Action]int64 `json:"breakdown"`
}

type Aggregator struct {
	mu     sync.RWMutex
	scores map[string]*Score
}

func NewAggregator() *Aggregator {
	return &Aggregator{scores: make(map[string]*Score)}
}

// Record applies one scorable action for the address.
func (a *Aggregator) Record(address string, action Action) {
	value, ok := points[action]
	if !ok || address == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.scores[address]
	if s == nil {
		s = &Score{Breakdown: make(map[Action]int64)}
		a.scores[address] = s
	}
	s.Total += value
	s.Breakdown[action] += value
}

// UserScore returns the aggregate for the address; a user with no activity
// has a zero total and an empty breakdown.
func (a *Aggregator) UserScore(address string) Score {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.scores[address]
	if s == nil {
		return Score{Breakdown: map[Action]int64{}}
	}
	out := Score{Total: s.Total, Breakdown: make(map[Action]int64, len(s.Breakdown))}
	for action, value := range s.Breakdown {
		out.Breakdown[action] = value
	}
	return out
}
