package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eliseohh/channelstatbot/internal/bot"
	"github.com/eliseohh/channelstatbot/internal/config"
	"github.com/eliseohh/channelstatbot/internal/stats"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("bot exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	// 1. Open the counter store
	store, err := stats.Open(cfg.Backend, cfg.StatsPath)
	if err != nil {
		return fmt.Errorf("open %s stats store: %w", cfg.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing stats store")
		}
	}()

	// 2. Start Bot
	b, err := bot.New(bot.Config{
		Token:       cfg.Token,
		ChannelID:   cfg.ChannelID,
		AdminIDs:    cfg.AdminIDs,
		PollTimeout: cfg.PollTimeout,
	}, store)
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}

	go b.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	// Waits for running handlers before the deferred store close.
	b.Stop()
	return nil
}
