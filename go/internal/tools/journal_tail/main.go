package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/journal"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	event := flag.String("event", ">", "event name to follow, > for all")
	game := flag.String("game", "", "only print events of this game id")
	replay := flag.Bool("replay", false, "start from the beginning of the stream")
	flag.Parse()

	cfg := journal.DefaultConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.URL = url
	}

	reader, err := journal.NewReader(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to journal")
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("event", *event).Bool("replay", *replay).Msg("following journal")
	err = reader.Follow(ctx, *event, *replay, func(env journal.Envelope) {
		if *game != "" && env.GameID != *game {
			return
		}
		log.Info().
			Str("event_id", env.EventID).
			Str("event_type", env.EventType).
			Str("game_id", env.GameID).
			Time("at", env.Timestamp).
			RawJSON("payload", env.Payload).
			Msg("event")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("journal follow failed")
	}
}
