// Package forum implements threads and posts. Creating a thread also
// creates its first post carrying the thread content, and every post append
// keeps the parent thread's reply count exact.
package forum

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
	"agora/core/internal/score"
	"agora/core/internal/search"
	"agora/core/internal/store"
)

type Service struct {
	ids    *ident.Provider
	store  store.Store
	index  *search.Service
	scores *score.Aggregator
	log    zerolog.Logger
}

func New(ids *ident.Provider, st store.Store, index *search.Service, scores *score.Aggregator, log zerolog.Logger) *Service {
	return &Service{ids: ids, store: st, index: index, scores: scores, log: log}
}

type CreateThreadInput struct {
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Category      domain.Category `json:"category"`
	Tags          []string        `json:"tags"`
	AuthorAddress string          `json:"authorAddress"`
}

func (in CreateThreadInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.AuthorAddress, validation.Required),
		validation.Field(&in.Category, validation.Required, validation.By(categoryRule)),
	)
}

type CreatePostInput struct {
	ThreadID      string `json:"threadId"`
	Content       string `json:"content"`
	AuthorAddress string `json:"authorAddress"`
	ParentID      string `json:"parentId,omitempty"`
}

func (in CreatePostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ThreadID, validation.Required),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.AuthorAddress, validation.Required),
	)
}

// CreateThread creates the thread together with its initial post. The reply
// count starts at 1: the initiating post counts.
func (s *Service) CreateThread(ctx context.Context, in CreateThreadInput) (*domain.Thread, *domain.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, asValidationError(err)
	}

	now := s.ids.Now()
	thread := &domain.Thread{
		Meta_: domain.Meta{
			ID:            s.ids.NewID("thr"),
			Kind:          domain.KindThread,
			AuthorAddress: in.AuthorAddress,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Title:      in.Title,
		Category:   in.Category,
		Tags:       append([]string(nil), in.Tags...),
		ReplyCount: 1,
	}
	if err := s.store.Create(ctx, thread); err != nil {
		return nil, nil, err
	}

	first, err := s.appendPost(ctx, thread.Meta_.ID, in.Content, in.AuthorAddress, "")
	if err != nil {
		// Roll the thread back so a half-created pair is never observable.
		if delErr := s.store.Delete(ctx, domain.KindThread, thread.Meta_.ID, in.AuthorAddress); delErr != nil {
			s.log.Error().Err(delErr).Str("id", thread.Meta_.ID).Msg("rollback thread failed")
		}
		return nil, nil, err
	}

	if err := s.index.Index(threadEntry(thread)); err != nil {
		return nil, nil, err
	}
	if err := s.index.Index(postEntry(first, thread.Title)); err != nil {
		return nil, nil, err
	}
	s.scores.Record(in.AuthorAddress, score.ActionThreadCreate)
	return thread, first, nil
}

// CreatePost appends a post to a live thread and increments the thread's
// reply count as part of the same logical operation.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*domain.Post, error) {
	if err := in.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	threadRec, err := s.store.Get(ctx, domain.KindThread, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if threadRec == nil {
		return nil, domain.NotFoundError(domain.KindThread, in.ThreadID)
	}
	thread := threadRec.(*domain.Thread)

	if in.ParentID != "" {
		parentRec, err := s.store.Get(ctx, domain.KindPost, in.ParentID)
		if err != nil {
			return nil, err
		}
		parent, ok := parentRec.(*domain.Post)
		if parentRec == nil || !ok || parent.ThreadID != in.ThreadID {
			return nil, domain.ValidationError("parent post does not belong to thread "+in.ThreadID, nil)
		}
	}

	post, err := s.appendPost(ctx, in.ThreadID, in.Content, in.AuthorAddress, in.ParentID)
	if err != nil {
		return nil, err
	}

	// Serialized counter write: concurrent appends on one thread each land
	// exactly one increment.
	if _, err := s.store.Mutate(ctx, domain.KindThread, in.ThreadID, func(r domain.Record) error {
		r.(*domain.Thread).ReplyCount++
		return nil
	}); err != nil {
		if delErr := s.store.Delete(ctx, domain.KindPost, post.Meta_.ID, in.AuthorAddress); delErr != nil {
			s.log.Error().Err(delErr).Str("id", post.Meta_.ID).Msg("rollback post failed")
		}
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NotFoundError(domain.KindThread, in.ThreadID)
		}
		return nil, err
	}

	if err := s.index.Index(postEntry(post, thread.Title)); err != nil {
		return nil, err
	}
	s.scores.Record(in.AuthorAddress, score.ActionPostCreate)
	return post, nil
}

// GetThread returns the thread or nil when the id is unknown.
func (s *Service) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	rec, err := s.store.Get(ctx, domain.KindThread, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*domain.Thread), nil
}

// GetThreadPosts returns the thread's posts in creation order, starting
// with the initiating post. Unknown threads yield an empty slice.
func (s *Service) GetThreadPosts(ctx context.Context, threadID string) ([]*domain.Post, error) {
	records, err := s.store.List(ctx, domain.KindPost)
	if err != nil {
		return nil, err
	}
	posts := make([]*domain.Post, 0)
	for _, rec := range records {
		post := rec.(*domain.Post)
		if post.ThreadID == threadID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (s *Service) Search(_ context.Context, filter search.Filter) (search.Response, error) {
	filter.Kind = domain.KindThread
	return s.index.Query(filter)
}

func (s *Service) appendPost(ctx context.Context, threadID, content, author, parentID string) (*domain.Post, error) {
	now := s.ids.Now()
	post := &domain.Post{
		Meta_: domain.Meta{
			ID:            s.ids.NewID("post"),
			Kind:          domain.KindPost,
			AuthorAddress: author,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		ThreadID: threadID,
		ParentID: parentID,
		Content:  content,
	}
	if err := s.store.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func threadEntry(thread *domain.Thread) search.Entry {
	return search.Entry{
		ID:            thread.Meta_.ID,
		Kind:          domain.KindThread,
		Title:         thread.Title,
		Tags:          thread.Tags,
		Category:      thread.Category,
		AuthorAddress: thread.Meta_.AuthorAddress,
		CreatedAt:     thread.Meta_.CreatedAt,
	}
}

func postEntry(post *domain.Post, threadTitle string) search.Entry {
	return search.Entry{
		ID:            post.Meta_.ID,
		Kind:          domain.KindPost,
		Title:         threadTitle,
		Content:       post.Content,
		AuthorAddress: post.Meta_.AuthorAddress,
		CreatedAt:     post.Meta_.CreatedAt,
	}
}

func categoryRule(value interface{}) error {
	category, _ := value.(domain.Category)
	if !domain.ValidCategory(category) {
		return domain.ValidationError("unknown category "+string(category), nil)
	}
	return nil
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*domain.Error); ok {
		return err
	}
	if fieldErrs, ok := err.(validation.Errors); ok {
		return domain.ValidationError("invalid input", fieldErrs)
	}
	return domain.ValidationError(err.Error(), nil)
}
