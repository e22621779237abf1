package core

import (
	"context"
	"errors"
)

// Delivery errors returned by Messenger implementations. Callers match them with errors.Is.
var (
	// ErrChannelNotFound means the target channel could not be resolved. Not retried.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotReady means the chat session has not completed its handshake yet.
	ErrNotReady = errors.New("chat session not ready")

	// ErrTransport wraps network and platform API failures.
	ErrTransport = errors.New("chat transport failure")
)

// Messenger defines the interface for chat platforms that notifications are delivered to (Discord, Telegram).
type Messenger interface {
	// Start opens the long-lived session and blocks until ctx is canceled.
	Start(ctx context.Context) error

	// Ready returns a channel that is closed once the session can send messages.
	Ready() <-chan struct{}

	// Send delivers a rich message to the given channel.
	// The channel is resolved on every call; membership can change between sends.
	Send(ctx context.Context, channelID string, msg *Embed) error

	// Name returns the platform name (e.g., "discord", "telegram")
	Name() string
}

// ServerIdentifier resolves the media server's machine identifier.
type ServerIdentifier interface {
	// MachineIdentifier returns the unique server id used in deep links.
	MachineIdentifier(ctx context.Context) (string, error)
}

// Embed is a platform-neutral rich chat message.
type Embed struct {
	Title        string // Headline
	URL          string // Optional link attached to the title
	Description  string // Multi-line body, "**label:** value" markdown
	Color        int    // RGB accent colour
	Footer       string // Footer text
	ThumbnailURL string // Small image shown beside the title
	ImageURL     string // Large preview image
}
