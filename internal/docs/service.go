// Package docs implements the document service: validation, persistence,
// synchronous indexing, view counting, and participation scoring.
package docs

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
	"agora/core/internal/revision"
	"agora/core/internal/score"
	"agora/core/internal/search"
	"agora/core/internal/store"
)

// Recorder keeps per-document content history. Nil disables it.
type Recorder interface {
	Record(documentID string, snap revision.Snapshot, author, message string) (revision.Commit, error)
	History(documentID string, limit int) ([]revision.Commit, error)
}

// Archiver receives snapshots of deleted documents. Nil disables it.
type Archiver interface {
	Store(ctx context.Context, rec domain.Record) error
}

type Service struct {
	ids       *ident.Provider
	store     store.Store
	index     *search.Service
	scores    *score.Aggregator
	revisions Recorder
	archive   Archiver
	log       zerolog.Logger
}

func New(ids *ident.Provider, st store.Store, index *search.Service, scores *score.Aggregator, revisions Recorder, archive Archiver, log zerolog.Logger) *Service {
	return &Service{
		ids:       ids,
		store:     st,
		index:     index,
		scores:    scores,
		revisions: revisions,
		archive:   archive,
		log:       log,
	}
}

type CreateDocumentInput struct {
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Category      domain.Category `json:"category"`
	Tags          []string        `json:"tags"`
	AuthorAddress string          `json:"authorAddress"`
}

func (in CreateDocumentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.AuthorAddress, validation.Required),
		validation.Field(&in.Category, validation.Required, validation.By(categoryRule)),
	)
}

// UpdateDocumentInput is a patch: nil fields are left untouched.
type UpdateDocumentInput struct {
	Title    *string          `json:"title,omitempty"`
	Content  *string          `json:"content,omitempty"`
	Category *domain.Category `json:"category,omitempty"`
	Tags     *[]string        `json:"tags,omitempty"`

	// ExpectedVersion, when non-zero, turns the write into a
	// compare-and-set that fails with CONFLICT on a lost race.
	ExpectedVersion int64 `json:"expectedVersion,omitempty"`
}

func (in UpdateDocumentInput) Validate() error {
	if in.Title != nil && *in.Title == "" {
		return domain.ValidationError("title cannot be empty", nil)
	}
	if in.Category != nil && !domain.ValidCategory(*in.Category) {
		return domain.ValidationError("unknown category "+string(*in.Category), nil)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateDocumentInput) (*domain.Document, error) {
	if err := in.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	now := s.ids.Now()
	doc := &domain.Document{
		Meta_: domain.Meta{
			ID:            s.ids.NewID("doc"),
			Kind:          domain.KindDocument,
			AuthorAddress: in.AuthorAddress,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Tags:     append([]string(nil), in.Tags...),
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.index.Index(documentEntry(doc)); err != nil {
		return nil, err
	}
	s.recordRevision(doc, "Create document")
	s.scores.Record(in.AuthorAddress, score.ActionDocumentCreate)
	return doc, nil
}

// Get returns the document, counting the read as a view. Unknown and
// deleted ids return nil without error.
func (s *Service) Get(ctx context.Context, id string) (*domain.Document, error) {
	rec, err := s.store.Get(ctx, domain.KindDocument, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	viewed, err := s.store.Mutate(ctx, domain.KindDocument, id, func(r domain.Record) error {
		r.(*domain.Document).ViewCount++
		return nil
	})
	if err != nil {
		// The record vanished between read and view bump; treat as missing.
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return viewed.(*domain.Document), nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateDocumentInput, actorAddress string) (*domain.Document, error) {
	if err := in.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	rec, err := s.store.Update(ctx, domain.KindDocument, id, actorAddress, in.ExpectedVersion, func(r domain.Record) error {
		doc := r.(*domain.Document)
		if in.Title != nil {
			doc.Title = *in.Title
		}
		if in.Content != nil {
			doc.Content = *in.Content
		}
		if in.Category != nil {
			doc.Category = *in.Category
		}
		if in.Tags != nil {
			doc.Tags = append([]string(nil), *in.Tags...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc := rec.(*domain.Document)
	if err := s.index.Index(documentEntry(doc)); err != nil {
		return nil, err
	}
	s.recordRevision(doc, "Update document")
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, id, actorAddress string) error {
	rec, err := s.store.Get(ctx, domain.KindDocument, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.NotFoundError(domain.KindDocument, id)
	}

	if err := s.store.Delete(ctx, domain.KindDocument, id, actorAddress); err != nil {
		return err
	}
	if err := s.index.Remove(id); err != nil {
		return err
	}
	if s.archive != nil {
		go func() {
			if err := s.archive.Store(context.Background(), rec); err != nil {
				s.log.Warn().Err(err).Str("id", id).Msg("archive deleted document failed")
			}
		}()
	}
	return nil
}

func (s *Service) Search(_ context.Context, filter search.Filter) (search.Response, error) {
	filter.Kind = domain.KindDocument
	return s.index.Query(filter)
}

// History returns the document's content revisions, newest first. Empty
// when revision tracking is disabled.
func (s *Service) History(_ context.Context, id string, limit int) ([]revision.Commit, error) {
	if s.revisions == nil {
		return nil, nil
	}
	return s.revisions.History(id, limit)
}

func (s *Service) recordRevision(doc *domain.Document, message string) {
	if s.revisions == nil {
		return
	}
	snap := revision.Snapshot{
		Title:    doc.Title,
		Content:  doc.Content,
		Category: doc.Category,
		Tags:     doc.Tags,
		Version:  doc.Meta_.Version,
	}
	if _, err := s.revisions.Record(doc.Meta_.ID, snap, doc.Meta_.AuthorAddress, message); err != nil {
		s.log.Warn().Err(err).Str("id", doc.Meta_.ID).Msg("record revision failed")
	}
}

func documentEntry(doc *domain.Document) search.Entry {
	return search.Entry{
		ID:            doc.Meta_.ID,
		Kind:          domain.KindDocument,
		Title:         doc.Title,
		Content:       doc.Content,
		Tags:          doc.Tags,
		Category:      doc.Category,
		AuthorAddress: doc.Meta_.AuthorAddress,
		CreatedAt:     doc.Meta_.CreatedAt,
	}
}

func categoryRule(value interface{}) error {
	category, _ := value.(domain.Category)
	if !domain.ValidCategory(category) {
		return domain.ValidationError("unknown category "+string(category), nil)
	}
	return nil
}

// asValidationError folds ozzo field errors into the domain taxonomy.
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
