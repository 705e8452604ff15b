// Package discord is the messaging transport: a DM-only bridge between the
// operator and the persona.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lumi/internal/config"
)

// Processor receives incoming operator messages. The coordinator implements
// it; the bot stays a dumb pipe.
type Processor interface {
	ProcessUserMessage(ctx context.Context, content string) error
}

// Bot wraps a Discord session locked to one operator's DM channel. It also
// serves as the coordinator's outgoing Sender.
type Bot struct {
	dg   *discordgo.Session
	cfg  *config.Config
	proc Processor

	mu        sync.Mutex
	channelID string // operator DM channel, resolved lazily

	runCtx context.Context
	logger zerolog.Logger
}

// New creates the session without opening it.
func New(cfg *config.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	b := &Bot{
		dg:     dg,
		cfg:    cfg,
		logger: log.With().Str("comp", "discord").Logger(),
	}
	dg.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	return b, nil
}

// SetProcessor wires the message handler. Must be called before Run; it is
// separate from New because the coordinator needs the bot as its Sender.
func (b *Bot) SetProcessor(p Processor) { b.proc = p }

// Run opens the gateway connection and blocks until the context is
// canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx = ctx
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.logger.Info().Msg("shutting down transport")
	return ctx.Err()
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	b.logger.Info().Str("user", s.State.User.Username).Msg("connected")
	if _, err := b.dmChannel(); err != nil {
		b.logger.Error().Err(err).Msg("cannot open operator DM channel")
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}
	// one operator, DMs only; everyone and everywhere else is ignored
	if m.GuildID != "" || m.Author.ID != b.cfg.OperatorID {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	if b.proc == nil {
		b.logger.Warn().Msg("message arrived before processor was wired")
		return
	}

	go func() {
		if err := b.proc.ProcessUserMessage(b.runCtx, content); err != nil {
			b.logger.Error().Err(err).Msg("processing message failed")
			_, _ = s.ChannelMessageSend(m.ChannelID, "…sorry, I lost my train of thought. say that again?")
		}
	}()
}

// Typing shows the typing indicator in the operator DM. Best effort.
func (b *Bot) Typing(_ context.Context) {
	ch, err := b.dmChannel()
	if err != nil {
		return
	}
	_ = b.dg.ChannelTyping(ch)
}

// Send delivers one message to the operator DM.
func (b *Bot) Send(_ context.Context, text string) error {
	ch, err := b.dmChannel()
	if err != nil {
		return err
	}
	if _, err := b.dg.ChannelMessageSend(ch, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) dmChannel() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channelID != "" {
		return b.channelID, nil
	}
	ch, err := b.dg.UserChannelCreate(b.cfg.OperatorID)
	if err != nil {
		return "", fmt.Errorf("open DM channel: %w", err)
	}
	b.channelID = ch.ID
	return b.channelID, nil
}
