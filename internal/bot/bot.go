package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/commands"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
)

// Bot wraps the Discord session and command handlers. It is also the
// auction's Announcer: progress messages go to the channel the auction
// is bound to.
type Bot struct {
	session  *discordgo.Session
	svc      *auction.Service
	cfg      config.DiscordConfig
	logger   *slog.Logger
	handlers *commands.Handlers
	cmds     []*discordgo.ApplicationCommand
}

// New creates a new Bot instance and wires it as the service's announcer.
func New(cfg config.DiscordConfig, svc *auction.Service, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	b := &Bot{
		session:  session,
		svc:      svc,
		cfg:      cfg,
		logger:   logger,
		handlers: commands.NewHandlers(svc, logger, tp),
	}
	svc.SetNotifier(b)
	return b, nil
}

// Announce sends an auction progress message to the bound channel.
func (b *Bot) Announce(ctx context.Context, msg string) {
	channelID := b.svc.Channel()
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, msg); err != nil {
		b.logger.ErrorContext(ctx, "failed to send announcement",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.handlers.BindContext(ctx)

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})

	b.session.AddHandler(b.handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	// Register slash commands.
	appCmds := commands.SlashCommands()
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, appCmds)
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop gracefully closes the Discord connection.
func (b *Bot) Stop() error {
	// Remove slash commands on shutdown (optional for dev).
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}
