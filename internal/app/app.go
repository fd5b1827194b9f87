// Package app assembles the platform core. Everything flows through one App
// value built by New; there is no package-level state anywhere in the tree.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"agora/core/internal/archive"
	"agora/core/internal/config"
	"agora/core/internal/docs"
	"agora/core/internal/forum"
	"agora/core/internal/ident"
	"agora/core/internal/revision"
	"agora/core/internal/score"
	"agora/core/internal/search"
	"agora/core/internal/store"
	"agora/core/internal/support"
	"agora/core/internal/validator"
)

type App struct {
	IDs    *ident.Provider
	Store  store.Store
	Search *search.Service
	Scores *score.Aggregator

	Docs    *docs.Service
	Forum   *forum.Service
	Support *support.Service

	// Validator is nil when no endpoint is configured.
	Validator *validator.Client

	log     zerolog.Logger
	closers []func() error
}

// New builds the core from configuration. Optional backends (postgres,
// redis, meilisearch, revisions, archive) are wired only when configured;
// the in-process implementations carry the authoritative semantics either
// way.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		IDs:    ident.New(),
		Scores: score.NewAggregator(),
		log:    log,
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg, err := store.NewPostgres(ctx, db, a.IDs)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.Store = pg
		a.closers = append(a.closers, db.Close)
		log.Info().Msg("record store: postgres")
	} else {
		a.Store = store.NewMemory(a.IDs)
		log.Info().Msg("record store: memory")
	}

	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		log.Info().Str("url", cfg.MeiliURL).Msg("search mirror: meilisearch")
	}
	a.Search = search.NewService(search.NewMemory(), meili, log)

	var sessions support.SessionStore
	if cfg.RedisURL != "" {
		redisSessions, err := support.NewRedisSessions(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		sessions = redisSessions
		a.closers = append(a.closers, redisSessions.Close)
		log.Info().Msg("session store: redis")
	} else {
		sessions = support.NewMemorySessions()
		log.Info().Msg("session store: memory")
	}

	var revisions docs.Recorder
	if cfg.RevisionsDir != "" {
		revisions = revision.New(cfg.RevisionsDir)
		log.Info().Str("dir", cfg.RevisionsDir).Msg("revision history enabled")
	}

	var archiver docs.Archiver
	if cfg.ArchiveEndpoint != "" {
		sink, err := archive.New(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey,
			cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL, log)
		if err != nil {
			return nil, err
		}
		archiver = sink
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("archive sink enabled")
	}

	if cfg.ValidatorEndpoint != "" {
		a.Validator = validator.NewClient(validator.Config{
			Endpoint: cfg.ValidatorEndpoint,
			Timeout:  cfg.ValidatorTimeout,
			Retry: validator.RetryPolicy{
				MaxRetries:   cfg.ValidatorMaxRetries,
				InitialDelay: cfg.ValidatorInitialDelay,
				MaxDelay:     cfg.ValidatorMaxDelay,
			},
		}, log)
	}

	a.Docs = docs.New(a.IDs, a.Store, a.Search, a.Scores, revisions, archiver, log)
	a.Forum = forum.New(a.IDs, a.Store, a.Search, a.Scores, log)
	a.Support = support.New(a.IDs, a.Store, sessions, a.Scores, log)

	return a, nil
}

// Health reports per-dependency status. The core is healthy when its record
// store answers; the validator is advisory.
type Health struct {
	Healthy   bool  `json:"healthy"`
	Store     bool  `json:"store"`
	Validator *bool `json:"validator,omitempty"`
}

func (a *App) Health(ctx context.Context) Health {
	h := Health{Store: a.Store.Ping(ctx) == nil}
	h.Healthy = h.Store
	if a.Validator != nil {
		v := a.Validator.CheckHealth(ctx).Healthy
		h.Validator = &v
	}
	return h
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
