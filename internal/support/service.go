package support

import (
	"context"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
	"agora/core/internal/score"
	"agora/core/internal/store"
)

const defaultMaxConcurrentSessions = 3

type Service struct {
	ids      *ident.Provider
	store    store.Store
	sessions SessionStore
	scores   *score.Aggregator
	log      zerolog.Logger
}

func New(ids *ident.Provider, st store.Store, sessions SessionStore, scores *score.Aggregator, log zerolog.Logger) *Service {
	return &Service{
		ids:      ids,
		store:    st,
		sessions: sessions,
		scores:   scores,
		log:      log,
	}
}

type RegisterVolunteerInput struct {
	Address               string            `json:"address"`
	DisplayName           string            `json:"displayName"`
	Languages             []string          `json:"languages"`
	ExpertiseCategories   []domain.Category `json:"expertiseCategories"`
	MaxConcurrentSessions int               `json:"maxConcurrentSessions"`
}

func (in RegisterVolunteerInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Address, validation.Required),
		validation.Field(&in.ExpertiseCategories, validation.Required, validation.By(categoriesRule)),
		validation.Field(&in.MaxConcurrentSessions, validation.Min(0)),
	)
}

// RegisterVolunteer upserts by address: a first call creates the volunteer
// as available, later calls update the profile in place.
func (s *Service) RegisterVolunteer(ctx context.Context, in RegisterVolunteerInput) (*domain.Volunteer, error) {
	if err := in.Validate(); err != nil {
		return nil, asValidationError(err)
	}
	maxSessions := in.MaxConcurrentSessions
	if maxSessions == 0 {
		maxSessions = defaultMaxConcurrentSessions
	}

	existing, err := s.store.Get(ctx, domain.KindVolunteer, in.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.updateVolunteer(ctx, in, maxSessions)
	}

	now := s.ids.Now()
	vol := &domain.Volunteer{
		Meta_: domain.Meta{
			// Volunteers are keyed by address so re-registration lands on
			// the same record.
			ID:            in.Address,
			Kind:          domain.KindVolunteer,
			AuthorAddress: in.Address,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Address:               in.Address,
		DisplayName:           in.DisplayName,
		Languages:             append([]string(nil), in.Languages...),
		ExpertiseCategories:   append([]domain.Category(nil), in.ExpertiseCategories...),
		Status:                domain.VolunteerAvailable,
		MaxConcurrentSessions: maxSessions,
	}
	if err := s.store.Create(ctx, vol); err != nil {
		// Lost a first-registration race to a concurrent caller; the
		// record exists now, so upsert it like any re-registration.
		if domain.IsCode(err, domain.CodeConflict) {
			return s.updateVolunteer(ctx, in, maxSessions)
		}
		return nil, err
	}
	return vol, nil
}

func (s *Service) updateVolunteer(ctx context.Context, in RegisterVolunteerInput, maxSessions int) (*domain.Volunteer, error) {
	rec, err := s.store.Update(ctx, domain.KindVolunteer, in.Address, in.Address, store.AnyVersion, func(r domain.Record) error {
		vol := r.(*domain.Volunteer)
		vol.DisplayName = in.DisplayName
		vol.Languages = append([]string(nil), in.Languages...)
		vol.ExpertiseCategories = append([]domain.Category(nil), in.ExpertiseCategories...)
		vol.MaxConcurrentSessions = maxSessions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec.(*domain.Volunteer), nil
}

// SetVolunteerStatus flips availability; offline volunteers are skipped by
// the matcher.
func (s *Service) SetVolunteerStatus(ctx context.Context, address string, status domain.VolunteerStatus) (*domain.Volunteer, error) {
	switch status {
	case domain.VolunteerAvailable, domain.VolunteerBusy, domain.VolunteerOffline:
	default:
		return nil, domain.ValidationError("unknown volunteer status "+string(status), nil)
	}
	rec, err := s.store.Update(ctx, domain.KindVolunteer, address, address, store.AnyVersion, func(r domain.Record) error {
		r.(*domain.Volunteer).Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec.(*domain.Volunteer), nil
}

type CreateRequestInput struct {
	UserAddress    string            `json:"userAddress"`
	Category       domain.Category   `json:"category"`
	Priority       domain.Priority   `json:"priority"`
	InitialMessage string            `json:"initialMessage"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (in CreateRequestInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.UserAddress, validation.Required),
		validation.Field(&in.Category, validation.Required, validation.By(categoryRule)),
		validation.Field(&in.InitialMessage, validation.Required),
		validation.Field(&in.Priority, validation.By(priorityRule)),
	)
}

// RequestResult is what intake hands back: the stored request plus the
// session it opened. Session is active when a volunteer matched right away,
// waiting otherwise.
type RequestResult struct {
	SessionID string                 `json:"sessionId"`
	Request   *domain.SupportRequest `json:"request"`
	Session   *domain.SupportSession `json:"session"`
}

// CreateRequest validates intake, persists the request, opens exactly one
// waiting session for it, scores the user, and then tries to assign a
// volunteer. No eligible volunteer is not an error.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*RequestResult, error) {
	if err := in.Validate(); err != nil {
		return nil, asValidationError(err)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := s.ids.Now()
	sessionID := s.ids.SessionID()
	req := &domain.SupportRequest{
		Meta_: domain.Meta{
			ID:            s.ids.NewID("req"),
			Kind:          domain.KindSupportRequest,
			AuthorAddress: in.UserAddress,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		UserAddress:    in.UserAddress,
		Category:       in.Category,
		Priority:       priority,
		InitialMessage: in.InitialMessage,
		Metadata:       in.Metadata,
		SessionID:      sessionID,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	session := domain.SupportSession{
		ID:          sessionID,
		RequestID:   req.Meta_.ID,
		UserAddress: in.UserAddress,
		Category:    in.Category,
		Priority:    priority,
		Status:      domain.SessionWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		// Roll the request back so a request without its session is never
		// observable.
		if delErr := s.store.Delete(ctx, domain.KindSupportRequest, req.Meta_.ID, in.UserAddress); delErr != nil {
			s.log.Error().Err(delErr).Str("id", req.Meta_.ID).Msg("rollback support request failed")
		}
		return nil, err
	}

	s.scores.Record(in.UserAddress, score.ActionSupportRequest)

	assigned, err := s.tryAssign(ctx, session)
	if err != nil {
		return nil, err
	}
	if assigned != nil {
		session = *assigned
	}
	return &RequestResult{SessionID: sessionID, Request: req, Session: &session}, nil
}

// GetRequest returns nil without error for unknown ids.
func (s *Service) GetRequest(ctx context.Context, id string) (*domain.SupportRequest, error) {
	rec, err := s.store.Get(ctx, domain.KindSupportRequest, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.(*domain.SupportRequest), nil
}

// GetSession returns nil without error for unknown ids.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.SupportSession, error) {
	return s.sessions.Get(ctx, id)
}

func (s *Service) ResolveSession(ctx context.Context, id string) (*domain.SupportSession, error) {
	return s.sessions.Resolve(ctx, id)
}

func (s *Service) CancelSession(ctx context.Context, id string) (*domain.SupportSession, error) {
	return s.sessions.Cancel(ctx, id)
}

// DispatchWaiting retries assignment for every waiting session, oldest
// first. Called after volunteer registrations and resolutions free capacity.
func (s *Service) DispatchWaiting(ctx context.Context) (int, error) {
	waiting, err := s.sessions.ListWaiting(ctx)
	if err != nil {
		return 0, err
	}
	assigned := 0
	for _, session := range waiting {
		got, err := s.tryAssign(ctx, session)
		if err != nil {
			return assigned, err
		}
		if got != nil {
			assigned++
		}
	}
	return assigned, nil
}

// tryAssign picks the best eligible volunteer and claims the session.
// Returns nil, nil when nobody qualifies; the session stays waiting.
func (s *Service) tryAssign(ctx context.Context, session domain.SupportSession) (*domain.SupportSession, error) {
	candidates, err := s.eligibleVolunteers(ctx, session.Category)
	if err != nil {
		return nil, err
	}

	for _, vol := range candidates {
		assigned, err := s.sessions.Assign(ctx, session.ID, vol.Address, vol.MaxConcurrentSessions)
		if err != nil {
			// Lost the slot race; the next candidate may still fit.
			if domain.IsCode(err, domain.CodeConflict) {
				continue
			}
			// Someone else claimed or cancelled the session meanwhile.
			if domain.IsCode(err, domain.CodeInvalidTransition) {
				return nil, nil
			}
			return nil, err
		}
		return assigned, nil
	}
	return nil, nil
}

// eligibleVolunteers returns available volunteers covering the category with
// spare capacity, best match first: higher participation score wins, address
// order breaks ties.
func (s *Service) eligibleVolunteers(ctx context.Context, category domain.Category) ([]*domain.Volunteer, error) {
	recs, err := s.store.List(ctx, domain.KindVolunteer)
	if err != nil {
		return nil, err
	}

	eligible := make([]*domain.Volunteer, 0, len(recs))
	for _, rec := range recs {
		vol := rec.(*domain.Volunteer)
		if vol.Status != domain.VolunteerAvailable {
			continue
		}
		if !hasCategory(vol.ExpertiseCategories, category) {
			continue
		}
		active, err := s.sessions.ActiveCount(ctx, vol.Address)
		if err != nil {
			return nil, err
		}
		if active >= vol.MaxConcurrentSessions {
			continue
		}
		eligible = append(eligible, vol)
	}

	sort.Slice(eligible, func(i, j int) bool {
		si := s.scores.UserScore(eligible[i].Address).Total
		sj := s.scores.UserScore(eligible[j].Address).Total
		if si != sj {
			return si > sj
		}
		return eligible[i].Address < eligible[j].Address
	})
	return eligible, nil
}

func hasCategory(set []domain.Category, category domain.Category) bool {
	for _, c := range set {
		if c == category {
			return true
		}
	}
	return false
}

func categoryRule(value interface{}) error {
	category, _ := value.(domain.Category)
	if !domain.ValidCategory(category) {
		return domain.ValidationError("unknown category "+string(category), nil)
	}
	return nil
}

func categoriesRule(value interface{}) error {
	categories, _ := value.([]domain.Category)
	for _, c := range categories {
		if !domain.ValidCategory(c) {
			return domain.ValidationError("unknown category "+string(c), nil)
		}
	}
	return nil
}

func priorityRule(value interface{}) error {
	priority, _ := value.(domain.Priority)
	if priority == "" {
		return nil
	}
	if !domain.ValidPriority(priority) {
		return domain.ValidationError("unknown priority "+string(priority), nil)
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
