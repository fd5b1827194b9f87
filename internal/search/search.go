// Package search maintains queryable projections of documents, threads, and
// posts. The in-memory engine is authoritative and updated synchronously with
// every committed write; Meilisearch, when configured, receives the same
// entries as an asynchronous mirror.
package search

import (
	"time"

	"agora/core/internal/domain"
)

// Entry is the projection indexed per entity. It is derived data: the record
// store remains the source of truth and the index can be rebuilt from it.
type Entry struct {
	ID            string          `json:"id"`
	Kind          domain.Kind     `json:"kind"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Tags          []string        `json:"tags"`
	Category      domain.Category `json:"category"`
	AuthorAddress string          `json:"authorAddress"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Filter describes a query. Zero values mean "no constraint".
type Filter struct {
	Query           string
	Kind            domain.Kind
	Tags            []string
	Category        domain.Category
	AuthorAddresses []string
	PageSize        int
	Cursor          string
}

// Response carries one page of hits. Total counts every match regardless of
// page truncation; NextCursor is empty once the result set is exhausted.
type Response struct {
	Items      []Entry `json:"items"`
	Total      int     `json:"total"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// Index upserts, evicts, and queries projections.
type Index interface {
	Index(entry Entry) error
	Remove(id string) error
	Query(filter Filter) (Response, error)
}
