package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/goonbox/plexcord/internal/core"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetMe() (tgbotapi.User, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot delivers notifications to a Telegram chat.
// It implements the core.Messenger interface.
type Bot struct {
	api       botAPI
	ready     chan struct{}
	readyOnce sync.Once
	logger    *slog.Logger
}

// compile-time check.
var _ core.Messenger = (*Bot)(nil)

// New creates a new Telegram Bot.
func New(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newBot(api, logger), nil
}

func newBot(api botAPI, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:    api,
		ready:  make(chan struct{}),
		logger: logger,
	}
}

// Name returns the platform name.
func (b *Bot) Name() string { return "telegram" }

// Ready returns a channel that is closed once the bot identity is confirmed.
func (b *Bot) Ready() <-chan struct{} { return b.ready }

// Start confirms the token and runs the long-polling loop. It blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.api.GetMe()
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("telegram bot started", slog.String("username", me.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

// Send posts msg to the chat with the given numeric id. Messages with an
// image go out as a captioned photo.
func (b *Bot) Send(_ context.Context, channelID string, msg *core.Embed) error {
	select {
	case <-b.ready:
	default:
		return core.ErrNotReady
	}

	chatID, err := strconv.ParseInt(strings.TrimSpace(channelID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat %q: %w", channelID, core.ErrChannelNotFound)
	}

	// Resolve the chat on every send; the bot may have been removed since the last one.
	if _, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}}); err != nil {
		return classify(channelID, err)
	}

	var out tgbotapi.Chattable
	if msg.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(msg.ImageURL))
		photo.Caption = RenderHTML(msg, maxCaptionLen)
		photo.ParseMode = tgbotapi.ModeHTML
		out = photo
	} else {
		text := tgbotapi.NewMessage(chatID, RenderHTML(msg, maxMessageLen))
		text.ParseMode = tgbotapi.ModeHTML
		out = text
	}

	if _, err := b.api.Send(out); err != nil {
		return classify(channelID, err)
	}
	return nil
}

// handleUpdate answers "ping" with "pong" so operators can check the bot is alive.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	if strings.TrimSpace(msg.Text) != "ping" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "pong")); err != nil {
		b.logger.Warn("failed to answer ping",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", err.Error()),
		)
	}
}

// classify maps Telegram API errors onto the core delivery errors.
func classify(channelID string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "chat not found") {
		return fmt.Errorf("telegram chat %s: %w", channelID, core.ErrChannelNotFound)
	}
	return fmt.Errorf("telegram chat %s: %w: %w", channelID, core.ErrTransport, err)
}
