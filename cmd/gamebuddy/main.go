// cmd/gamebuddy/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"game-buddy/internal/auth"
	"game-buddy/internal/command"
	"game-buddy/internal/command/chars"
	"game-buddy/internal/command/checkin"
	"game-buddy/internal/command/notes"
	"game-buddy/internal/config"
	"game-buddy/internal/dashboard"
	"game-buddy/internal/discord"
	"game-buddy/internal/executor"
	"game-buddy/internal/gameapi"
	"game-buddy/internal/logger"
	"game-buddy/internal/ratelimit"
	"game-buddy/internal/storage"
	v "game-buddy/internal/version"
)

// promptRouter sends the credential ask through the channel the command came
// in on: a modal for Discord, nothing for the dashboard (its 202 response
// already tells the client what to do).
type promptRouter struct {
	bot *discord.Bot
}

func (p promptRouter) PromptCredential(cc *executor.CommandContext, requestID string) error {
	if _, ok := cc.Data.(*discordgo.InteractionCreate); ok {
		return p.bot.PromptCredential(cc, requestID)
	}
	return nil
}

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogPath)
	zlog.Info().Str("version", v.Version).Msgf("Starting %s...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	creds, err := auth.NewCredentialStore(store.DataStore(), cfg.EncryptionKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to init credential store")
	}

	corr := auth.NewCorrelator(store.DataStore(), cfg.AuthDeadline, zlog)
	go corr.Run(ctx)

	limiter := ratelimit.New(store.DataStore(), cfg.RateLeakInterval, cfg.RateBurst)

	api := gameapi.NewClient(zlog)
	command.Register(command.Descriptor{
		Name:        "notes",
		Description: "Show real-time notes (stamina, expeditions) for your account",
		Handler:     &notes.Handler{API: api, Store: store},
	})
	command.Register(command.Descriptor{
		Name:        "chars",
		Description: "List your characters",
		Handler:     &chars.Handler{API: api, Store: store},
	})
	command.Register(command.Descriptor{
		Name:        "checkin",
		Description: "Claim today's daily check-in reward",
		Handler:     &checkin.Handler{API: api},
	})

	bot := discord.NewBot(cfg, corr, zlog)
	exec := executor.New(executor.Config{
		Limiter:     limiter,
		Credentials: creds,
		Correlator:  corr,
		Prompt:      promptRouter{bot: bot},
		Resolve:     command.Get,
		Logger:      zlog,
	})
	command.InstallValidators(exec)
	bot.SetExecutor(exec)

	dash := dashboard.NewServer(exec, corr, zlog)

	errCh := make(chan error, 2)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := dash.Run(ctx, cfg.DashboardAddr); err != nil {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		zlog.Info().Str("signal", s.String()).Msg("received signal, shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			zlog.Error().Err(err).Msg("front-end error")
		}
		cancel()
	case <-ctx.Done():
	}

	zlog.Info().Msgf("%s exited cleanly", v.AppName)
}
