package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/plex"
	"github.com/goonbox/plexcord/internal/telemetry"
)

// ErrDeliveryTimeout is returned in wait mode when the send outlives the delivery timeout.
var ErrDeliveryTimeout = errors.New("delivery timed out")

// identityTimeout bounds the server id lookup made on the request path.
const identityTimeout = 3 * time.Second

// Options configures a Service.
type Options struct {
	Display       DisplayConfig
	ChannelID     string
	TestChannelID string
	// Wait blocks the Notify methods until the dispatcher reports the outcome or Timeout passes.
	Wait    bool
	Timeout time.Duration
	// Identifier resolves the server id when a webhook does not carry one. Optional.
	Identifier core.ServerIdentifier
}

// Service turns Plex metadata into chat notifications.
type Service struct {
	dispatcher *Dispatcher
	opts       Options
	telemetry  *telemetry.Provider
	logger     *slog.Logger
}

// NewService creates a notification service on top of a running dispatcher.
func NewService(dispatcher *Dispatcher, opts Options, tel *telemetry.Provider, logger *slog.Logger) *Service {
	if dispatcher == nil {
		panic("notification.NewService: dispatcher must not be nil")
	}
	if tel == nil {
		panic("notification.NewService: telemetry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dispatcher: dispatcher,
		opts:       opts,
		telemetry:  tel,
		logger:     logger,
	}
}

// NotifyNewItem sends a notification for a library.new webhook.
func (s *Service) NotifyNewItem(ctx context.Context, w *plex.Webhook) error {
	if w == nil {
		return errors.New("nil plex webhook")
	}
	return s.notify(ctx, w.Metadata, w.ServerID(), s.opts.ChannelID)
}

// NotifyTest pushes the sample record through the same pipeline. With
// useTestChannel set it targets the test channel when one is configured.
func (s *Service) NotifyTest(ctx context.Context, useTestChannel bool) error {
	channelID := s.opts.ChannelID
	if useTestChannel && s.opts.TestChannelID != "" {
		channelID = s.opts.TestChannelID
	}
	return s.notify(ctx, plex.SampleMetadata(), "", channelID)
}

func (s *Service) notify(ctx context.Context, m plex.Metadata, serverID, channelID string) error {
	n := plex.Normalize(m)

	ctx, span := s.telemetry.StartSpan(ctx, "plexcord.notify",
		attribute.String("plex.type", n.ContentType),
		attribute.String("plex.rating_key", n.RatingKey),
	)
	defer span.End()

	if serverID == "" {
		serverID = s.lookupServerID(ctx)
	}
	embed := Format(n, s.opts.Display, serverID)

	done, err := s.dispatcher.Enqueue(channelID, embed)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	s.logger.Info("notification queued",
		slog.String("type", n.ContentType),
		slog.String("title", n.DisplayTitle),
		slog.String("channel_id", channelID),
	)

	if !s.opts.Wait {
		telemetry.SetSpanSuccess(span)
		return nil
	}

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		// A session that never came up is reported as such, not as a slow send.
		err = ErrDeliveryTimeout
		if !s.dispatcher.sessionReady() {
			err = s.dispatcher.errNotReady()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		telemetry.SetSpanError(span, err)
		return fmt.Errorf("deliver notification: %w", err)
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

// lookupServerID asks the media server for its id. Failure only costs the deep link.
func (s *Service) lookupServerID(ctx context.Context) string {
	if s.opts.Identifier == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()
	id, err := s.opts.Identifier.MachineIdentifier(ctx)
	if err != nil {
		s.logger.Warn("plex server id unavailable, sending without link",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return id
}
