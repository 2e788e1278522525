package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/config"
	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/gamestore/migrations"
)

func setupDatabase(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.Database.DSN()
	if err := migrations.Run(dsn); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := gamestore.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")
	return pool, nil
}
