package search

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

const defaultPageSize = 20

// Memory is the synchronous engine. Index and Remove complete before they
// return, so a Query issued after a committed write always observes it.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Index(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Memory) Query(filter Filter) (Response, error) {
	m.mu.RLock()
	matches := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if entryMatches(entry, filter) {
			matches = append(matches, entry)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	total := len(matches)
	offset := decodeCursor(filter.Cursor)
	if offset > total {
		offset = total
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	end := offset + pageSize
	if end > total {
		end = total
	}
	page := append([]Entry(nil), matches[offset:end]...)

	next := ""
	if end < total {
		next = strconv.Itoa(end)
	}
	return Response{Items: page, Total: total, NextCursor: next}, nil
}

func entryMatches(entry Entry, filter Filter) bool {
	if filter.Kind != "" && entry.Kind != filter.Kind {
		return false
	}
	if filter.Category != "" && entry.Category != filter.Category {
		return false
	}
	if len(filter.AuthorAddresses) > 0 && !containsString(filter.AuthorAddresses, entry.AuthorAddress) {
		return false
	}
	if len(filter.Tags) > 0 && !anyTagMatches(entry.Tags, filter.Tags) {
		return false
	}
	if q := strings.TrimSpace(filter.Query); q != "" && !textMatches(entry, q) {
		return false
	}
	return true
}

// textMatches is an inclusive OR across title, content, and tag values,
// case-insensitive substring.
func textMatches(entry Entry, query string) bool {
	needle := strings.ToLower(query)
	if strings.Contains(strings.ToLower(entry.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Content), needle) {
		return true
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func anyTagMatches(entryTags, wanted []string) bool {
	for _, want := range wanted {
		for _, tag := range entryTags {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
