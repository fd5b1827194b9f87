// Package domain holds the entity model and error taxonomy shared by the
// record store, the search index, and the services built on top of them.
package domain

import "time"

// Kind identifies an entity family in the record store. Ids are unique per
// kind for the lifetime of the store and are never reused after deletion.
type Kind string

const (
	KindDocument       Kind = "document"
	KindThread         Kind = "thread"
	KindPost           Kind = "post"
	KindSupportRequest Kind = "support_request"
	KindVolunteer      Kind = "volunteer"
)

// Category is the closed set of content categories accepted at the service
// boundary. Anything outside the set is a validation error, never a default.
type Category string

const (
	CategoryGeneral     Category = "GENERAL"
	CategoryTechnical   Category = "TECHNICAL"
	CategoryFAQ         Category = "FAQ"
	CategoryGuide       Category = "GUIDE"
	CategoryGovernance  Category = "GOVERNANCE"
	CategoryMarketplace Category = "MARKETPLACE"
	CategoryWallet      Category = "WALLET"
	CategorySecurity    Category = "SECURITY"
)

// Categories lists every accepted category, in display order.
func Categories() []Category {
	return []Category{
		CategoryGeneral, CategoryTechnical, CategoryFAQ, CategoryGuide,
		CategoryGovernance, CategoryMarketplace, CategoryWallet, CategorySecurity,
	}
}

func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

type VolunteerStatus string

const (
	VolunteerAvailable VolunteerStatus = "available"
	VolunteerBusy      VolunteerStatus = "busy"
	VolunteerOffline   VolunteerStatus = "offline"
)

type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionActive    SessionStatus = "active"
	SessionResolved  SessionStatus = "resolved"
	SessionCancelled SessionStatus = "cancelled"
)

// Meta is the bookkeeping every stored record carries. Version starts at 1
// and is bumped by exactly 1 per successful authorized update; counter
// mutations leave it alone.
type Meta struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	AuthorAddress string    `json:"authorAddress"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Record is anything the versioned store can hold. Clone must return a deep
// copy so readers see a consistent snapshot while writers mutate in place.
type Record interface {
	Meta() *Meta
	Clone() Record
}

type Document struct {
	Meta_     Meta     `json:"meta"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  Category `json:"category"`
	Tags      []string `json:"tags"`
	ViewCount int64    `json:"viewCount"`
}

func (d *Document) Meta() *Meta { return &d.Meta_ }

func (d *Document) Clone() Record {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	return &c
}

type Thread struct {
	Meta_      Meta     `json:"meta"`
	Title      string   `json:"title"`
	Category   Category `json:"category"`
	Tags       []string `json:"tags"`
	ReplyCount int64    `json:"replyCount"`
}

func (t *Thread) Meta() *Meta { return &t.Meta_ }

func (t *Thread) Clone() Record {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	return &c
}

// Post references its thread (and optionally a parent post) by id; it does
// not own either lifecycle.
type Post struct {
	Meta_    Meta   `json:"meta"`
	ThreadID string `json:"threadId"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

func (p *Post) Meta() *Meta { return &p.Meta_ }

func (p *Post) Clone() Record {
	c := *p
	return &c
}

type SupportRequest struct {
	Meta_          Meta              `json:"meta"`
	UserAddress    string            `json:"userAddress"`
	Category       Category          `json:"category"`
	Priority       Priority          `json:"priority"`
	InitialMessage string            `json:"initialMessage"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	SessionID      string            `json:"sessionId"`
}

func (r *SupportRequest) Meta() *Meta { return &r.Meta_ }

func (r *SupportRequest) Clone() Record {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

type Volunteer struct {
	Meta_                 Meta            `json:"meta"`
	Address               string          `json:"address"`
	DisplayName           string          `json:"displayName"`
	Languages             []string        `json:"languages"`
	ExpertiseCategories   []Category      `json:"expertiseCategories"`
	Status                VolunteerStatus `json:"status"`
	MaxConcurrentSessions int             `json:"maxConcurrentSessions"`
}

func (v *Volunteer) Meta() *Meta { return &v.Meta_ }

func (v *Volunteer) Clone() Record {
	c := *v
	c.Languages = append([]string(nil), v.Languages...)
	c.ExpertiseCategories = append([]Category(nil), v.ExpertiseCategories...)
	return &c
}

// SupportSession is the pairing state for one request. It lives in the
// session store, not the record store, so its id space is independent.
type SupportSession struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"requestId"`
	UserAddress      string        `json:"userAddress"`
	Category         Category      `json:"category"`
	Priority         Priority      `json:"priority"`
	Status           SessionStatus `json:"status"`
	VolunteerAddress string        `json:"volunteerAddress,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
