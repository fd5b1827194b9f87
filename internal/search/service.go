package search

import "github.com/rs/zerolog"

// Service is the facade the domain services write through: the primary
// engine is updated synchronously, the Meilisearch mirror (if any)
// fire-and-forget.
type Service struct {
	primary Index
	meili   *Meili
	log     zerolog.Logger
}

// NewService creates the facade. primary is the authoritative engine
// (Memory in every current wiring); meili may be nil when no mirror is
// configured.
func NewService(primary Index, meili *Meili, log zerolog.Logger) *Service {
	return &Service{primary: primary, meili: meili, log: log}
}

// Index upserts the entry. The call does not return until the authoritative
// engine reflects it, so a subsequent Query in the same logical sequence
// always sees the write.
func (s *Service) Index(entry Entry) error {
	if err := s.primary.Index(entry); err != nil {
		return err
	}
	if s.meili != nil && s.meili.Healthy() {
		go func() {
			if err := s.meili.Index(entry); err != nil {
				s.log.Warn().Err(err).Str("id", entry.ID).Msg("mirror index failed")
			}
		}()
	}
	return nil
}

// Remove evicts the entry from the authoritative engine and the mirror.
func (s *Service) Remove(id string) error {
	if err := s.primary.Remove(id); err != nil {
		return err
	}
	if s.meili != nil && s.meili.Healthy() {
		go func() {
			if err := s.meili.Remove(id); err != nil {
				s.log.Warn().Err(err).Str("id", id).Msg("mirror remove failed")
			}
		}()
	}
	return nil
}

// Query always answers from the authoritative engine.
func (s *Service) Query(filter Filter) (Response, error) {
	return s.primary.Query(filter)
}
