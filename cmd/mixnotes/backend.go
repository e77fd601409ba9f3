package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"mixnotes/internal/app/comments"
	"mixnotes/internal/app/projects"
	"mixnotes/internal/app/tracks"
	"mixnotes/internal/app/users"
	"mixnotes/internal/auth"
	"mixnotes/internal/config"
	"mixnotes/internal/session"
	"mixnotes/internal/store"
	"mixnotes/internal/store/memstore"
	"mixnotes/migrations"
)

// dataStore is satisfied by both the Postgres and the in-memory store.
type dataStore interface {
	users.Store
	projects.Store
	tracks.Store
	comments.Store
	Ping(ctx context.Context) error
}

// backend is the assembled service graph plus whatever needs closing on exit.
type backend struct {
	store    dataStore
	tokens   *auth.TokenManager
	users    users.Service
	projects projects.Service
	tracks   tracks.Service
	comments comments.Service
	closers  []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on exit")
		b.store = memstore.New()
	case config.StoreDriverPostgres:
		db, err := openDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		changed, err := migrations.Run(db, migrations.Up)
		if err != nil {
			b.Close()
			return nil, err
		}
		log.Info().Bool("changed", changed).Msg("schema migrations applied")
		b.store = store.New(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	var opts []auth.Option
	if cfg.Redis.URL != "" {
		sessions, err := session.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, sessions.Close)
		opts = append(opts, auth.WithRevoker(sessions))
		log.Info().Msg("token revocation enabled")
	} else {
		log.Info().Msg("REDIS_URL not set, logout will not revoke tokens")
	}

	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.tokens = tokens
	b.users = users.New(b.store, tokens)
	b.projects = projects.New(b.store)
	b.tracks = tracks.New(b.store)
	b.comments = comments.New(b.store)
	return b, nil
}
