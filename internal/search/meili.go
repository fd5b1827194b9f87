package search

import (
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const idxContent = "agora_content"

// Meili mirrors index entries into Meilisearch for external search surfaces.
// It is never on the query-consistency path: the memory engine answers the
// core's queries, this mirror serves whatever UI sits outside the core.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	log     zerolog.Logger
	done    chan struct{}
}

// NewMeili creates the mirror client and configures the content index. The
// caller should proceed without a mirror if the instance stays unhealthy.
func NewMeili(url, apiKey string, log zerolog.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		log:    log,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxContent,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Debug().Err(err).Msg("create content index (may already exist)")
	}

	index := m.client.Index(idxContent)
	filterable := []interface{}{"kind", "category", "authorAddress", "tags"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn().Err(err).Msg("update filterable attributes")
	}
	searchable := []string{"title", "content", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn().Err(err).Msg("update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info().Msg("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Index(entry Entry) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	_, err := m.client.Index(idxContent).AddDocuments([]Entry{entry}, nil)
	return err
}

func (m *Meili) Remove(id string) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	_, err := m.client.Index(idxContent).DeleteDocument(id, nil)
	return err
}

// IndexAll bulk-mirrors entries, used when rebuilding from the record store.
func (m *Meili) IndexAll(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	_, err := m.client.Index(idxContent).AddDocuments(entries, nil)
	return err
}
