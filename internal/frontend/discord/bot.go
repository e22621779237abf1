package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/goonbox/plexcord/internal/core"
)

// Discord embed limits.
const (
	maxTitleLen       = 256
	maxDescriptionLen = 4096
	maxFooterLen      = 2048
)

// session is the subset of *discordgo.Session the bot uses.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(
		channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// Bot is the Discord delivery channel. It owns one gateway session.
type Bot struct {
	session session
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.RWMutex
	selfID string
}

var _ core.Messenger = (*Bot)(nil)

// New creates a Discord bot authenticated with token. The gateway connection
// is opened by Start.
func New(token string, logger *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return newBot(s, logger), nil
}

func newBot(s session, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		session: s,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	return b
}

// Name returns the platform name.
func (b *Bot) Name() string { return "discord" }

// Ready returns a channel that is closed after the first gateway Ready event.
func (b *Bot) Ready() <-chan struct{} { return b.ready }

// Start opens the gateway session and blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.logger.Info("discord session opened")

	<-ctx.Done()

	if err := b.session.Close(); err != nil {
		b.logger.Warn("discord session close failed", slog.String("error", err.Error()))
	}
	b.logger.Info("discord bot stopped")
	return nil
}

// Send posts msg as an embed into channelID.
func (b *Bot) Send(ctx context.Context, channelID string, msg *core.Embed) error {
	select {
	case <-b.ready:
	default:
		return core.ErrNotReady
	}

	// Resolve the channel on every send; the bot may have been removed since the last one.
	if _, err := b.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		return classify(channelID, err)
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(msg), discordgo.WithContext(ctx)); err != nil {
		return classify(channelID, err)
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		b.mu.Lock()
		b.selfID = r.User.ID
		b.mu.Unlock()
		b.logger.Info("discord bot logged in",
			slog.String("user", r.User.String()),
			slog.String("id", r.User.ID),
			slog.Int("guilds", len(r.Guilds)),
		)
	}
	b.readyOnce.Do(func() { close(b.ready) })
}

// onMessageCreate answers "ping" with "pong" so operators can check the bot is alive.
func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	b.mu.RLock()
	self := b.selfID
	b.mu.RUnlock()
	if m.Author.ID == self || m.Author.Bot {
		return
	}
	if m.Content != "ping" {
		return
	}
	if _, err := b.session.ChannelMessageSend(m.ChannelID, "pong"); err != nil {
		b.logger.Warn("failed to answer ping",
			slog.String("channel_id", m.ChannelID),
			slog.String("error", err.Error()),
		)
	}
}

// classify maps discordgo errors onto the core delivery errors.
func classify(channelID string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		unknown := restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
		missing := restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
		if unknown || missing {
			return fmt.Errorf("discord channel %s: %w", channelID, core.ErrChannelNotFound)
		}
	}
	return fmt.Errorf("discord channel %s: %w: %w", channelID, core.ErrTransport, err)
}

func toMessageEmbed(e *core.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       truncate(e.Title, maxTitleLen),
		URL:         e.URL,
		Description: truncate(e.Description, maxDescriptionLen),
		Color:       e.Color,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncate(e.Footer, maxFooterLen)}
	}
	if e.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	return embed
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
