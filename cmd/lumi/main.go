// cmd/lumi/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"lumi/internal/ai"
	"lumi/internal/companion"
	"lumi/internal/config"
	"lumi/internal/discord"
	"lumi/internal/logging"
	"lumi/internal/memory"
	"lumi/internal/mind"
	"lumi/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("lumi exited")
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("persona", cfg.PersonaName).Msg("starting up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	embedder, err := memory.NewEmbedder(cfg.Embed)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	mem, err := memory.NewStore(store.DB(), cfg.PersonaID, embedder)
	if err != nil {
		return fmt.Errorf("memory: %w", err)
	}

	provider := ai.NewOpenAIProvider(cfg.AI)

	bot, err := discord.New(cfg)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}

	coord := companion.New(store, mem, provider, bot, cfg)
	bot.SetProcessor(coord)

	cycle := mind.NewCycle(store, mem, cfg.Behavior, cfg.PersonaID, coord, coord)
	cycle.SetPlanner(coord)

	errCh := make(chan error, 2)
	go func() { errCh <- bot.Run(ctx) }()
	go func() { errCh <- cycle.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("component failed")
		}
		cancel()
	}

	log.Info().Msg("goodbye")
	return nil
}
