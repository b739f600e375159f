package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"game-buddy/internal/auth"
	"game-buddy/internal/command"
	"game-buddy/internal/config"
	"game-buddy/internal/executor"
)

// Bot is the Discord front-end: it turns slash commands into executor
// invocations and credential-modal submissions into correlator resolutions.
type Bot struct {
	dg   *discordgo.Session
	cfg  *config.Config
	exec *executor.Executor
	corr *auth.Correlator
	log  zerolog.Logger
}

// NewBot wires the front-end. The executor must be built with this bot as
// its PromptSender (see cmd/discord).
func NewBot(cfg *config.Config, corr *auth.Correlator, log zerolog.Logger) *Bot {
	return &Bot{cfg: cfg, corr: corr, log: log.With().Str("component", "discord").Logger()}
}

// SetExecutor injects the executor after construction; the executor itself
// needs the bot as prompt sender, so the two are wired in two steps.
func (b *Bot) SetExecutor(exec *executor.Executor) {
	b.exec = exec
}

// Run starts the Discord session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing Discord session")
	return nil
}

// onReady registers one slash command per registered handler.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Msg("connected")

	for _, d := range command.All() {
		cmd := &discordgo.ApplicationCommand{
			Name:        d.Name,
			Description: d.Description,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "game",
					Description: "Which game to query",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Genshin Impact", Value: "genshin"},
						{Name: "Honkai: Star Rail", Value: "hsr"},
						{Name: "Zenless Zone Zero", Value: "zzz"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "server",
					Description: "Game server (remembered after first use)",
				},
			},
		}
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", cmd); err != nil {
			b.log.Error().Err(err).Str("command", d.Name).Msg("failed to register slash command")
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleAuthModal(s, i)
	}
}
