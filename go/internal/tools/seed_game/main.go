package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/quizlive/go/internal/dbconfig"
	"github.com/mcdev12/quizlive/go/internal/gamestore"
)

func main() {
	ctx := context.Background()

	// 1) Load the quiz file
	path := "go/internal/assets/quizzes.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	seeds, err := parseQuizzes(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert games whose code is free
	store := gamestore.New(pool)
	total, inserted, skipped, errs := len(seeds), 0, 0, 0
	for _, seed := range seeds {
		existing, err := store.FindGameByCode(ctx, seed.Game.Code)
		if err != nil {
			errs++
			continue
		}
		if existing != nil {
			skipped++
			continue
		}
		if err := store.Seed(ctx, seed); err != nil {
			fmt.Fprintf(os.Stderr, "seed %s: %v\n", seed.Game.Code, err)
			errs++
			continue
		}
		inserted++
	}
	fmt.Printf(
		"Games seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
