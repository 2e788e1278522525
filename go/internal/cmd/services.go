package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/admin"
	"github.com/mcdev12/quizlive/go/internal/config"
	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/gamestore/memstore"
	"github.com/mcdev12/quizlive/go/internal/gateway"
	"github.com/mcdev12/quizlive/go/internal/journal"
	"github.com/mcdev12/quizlive/go/internal/session"
)

type Services struct {
	Registry    *prometheus.Registry
	Coordinator *session.Coordinator
	Gateway     *gateway.Service
	Admin       *admin.Service

	listener *gamestore.StatusListener
	closers  []func()
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Store → Journal → Coordinator → Gateway/Admin
	s := &Services{Registry: prometheus.NewRegistry()}
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := s.setupStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []session.Option{session.WithMetrics(session.NewMetrics(s.Registry))}
	if cfg.Journal.URL != "" {
		publisher, err := journal.NewPublisher(ctx, cfg.Journal)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect journal: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := publisher.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close journal")
			}
		})
		opts = append(opts, session.WithJournal(journal.NewMetricPublisher(publisher, s.Registry)))
	}

	coordinator, err := session.New(store, cfg.Session, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Coordinator = coordinator
	s.Gateway = gateway.NewService(cfg.Gateway, coordinator, coordinator)
	s.Admin = admin.NewService(coordinator)

	if cfg.Store == config.StorePostgres {
		listener, err := gamestore.NewStatusListener(cfg.Listener, coordinator)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start status listener: %w", err)
		}
		s.listener = listener
	}
	return s, nil
}

func (s *Services) setupStore(ctx context.Context, cfg config.Config) (session.GameStore, error) {
	var demo *gamestore.GameSeed
	if cfg.DemoCode != "" {
		seed := gamestore.DemoGame(cfg.DemoCode, cfg.DemoHost)
		demo = &seed
	}

	if cfg.Store == config.StoreMemory {
		store := memstore.New()
		if demo != nil {
			if err := store.Seed(*demo); err != nil {
				return nil, fmt.Errorf("failed to seed demo game: %w", err)
			}
			log.Info().Str("code", demo.Game.Code).Msg("seeded demo game")
		}
		return store, nil
	}

	pool, err := setupDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, pool.Close)

	store := gamestore.New(pool)
	if demo != nil {
		existing, err := store.FindGameByCode(ctx, demo.Game.Code)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if err := store.Seed(ctx, *demo); err != nil {
				return nil, fmt.Errorf("failed to seed demo game: %w", err)
			}
			log.Info().Str("code", demo.Game.Code).Msg("seeded demo game")
		}
	}
	return store, nil
}

// Start launches the background loops. wg is released once they all return.
func (s *Services) Start(ctx context.Context, wg *sync.WaitGroup) {
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("component", name).Msg("component stopped with error")
			}
		}()
	}

	run("coordinator", s.Coordinator.Run)
	run("gateway", s.Gateway.Start)
	if s.listener != nil {
		run("status_listener", s.listener.Start)
	}
}

// Close releases external connections in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
