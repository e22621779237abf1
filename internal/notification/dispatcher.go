package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/telemetry"
)

// ErrQueueFull is returned by Enqueue when the dispatcher cannot accept more work.
var ErrQueueFull = errors.New("delivery queue full")

// job is one pending send. done receives exactly one result.
type job struct {
	channelID string
	embed     *core.Embed
	enqueued  time.Time
	done      chan error
}

// Dispatcher owns all outbound sends. HTTP handlers hand work over through
// Enqueue and never talk to the chat session directly.
type Dispatcher struct {
	messenger core.Messenger
	jobs      chan *job
	timeout   time.Duration
	telemetry *telemetry.Provider
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher with a bounded queue. timeout bounds both
// the wait for the session handshake and each individual send.
func NewDispatcher(
	messenger core.Messenger,
	queueSize int,
	timeout time.Duration,
	tel *telemetry.Provider,
	logger *slog.Logger,
) *Dispatcher {
	if messenger == nil {
		panic("notification.NewDispatcher: messenger must not be nil")
	}
	if tel == nil {
		panic("notification.NewDispatcher: telemetry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		messenger: messenger,
		jobs:      make(chan *job, queueSize),
		timeout:   timeout,
		telemetry: tel,
		logger:    logger,
	}
}

// Enqueue schedules embed for delivery to channelID. The returned channel
// yields the delivery result once; callers that do not care may ignore it.
func (d *Dispatcher) Enqueue(channelID string, embed *core.Embed) (<-chan error, error) {
	j := &job{
		channelID: channelID,
		embed:     embed,
		enqueued:  time.Now(),
		done:      make(chan error, 1),
	}
	select {
	case d.jobs <- j:
		return j.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Run delivers queued jobs one at a time until ctx is canceled. Jobs still
// queued at shutdown are failed with the context error.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", slog.String("backend", d.messenger.Name()))
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx.Err())
			d.logger.Info("dispatcher stopped")
			return nil
		case j := <-d.jobs:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) drain(err error) {
	for {
		select {
		case j := <-d.jobs:
			j.done <- fmt.Errorf("dispatcher stopped: %w", err)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j *job) {
	backend := d.messenger.Name()
	ctx, span := d.telemetry.StartSpan(ctx, "plexcord.deliver",
		attribute.String("plexcord.backend", backend),
		attribute.String("plexcord.channel_id", j.channelID),
	)
	defer span.End()

	err := d.send(ctx, j)
	elapsed := time.Since(j.enqueued)
	if err != nil {
		telemetry.SetSpanError(span, err)
		d.telemetry.RecordFailed(ctx, backend, elapsed, errorKind(err))
		d.logger.Error("notification delivery failed",
			slog.String("backend", backend),
			slog.String("channel_id", j.channelID),
			slog.String("title", j.embed.Title),
			slog.String("error", err.Error()),
		)
	} else {
		telemetry.SetSpanSuccess(span)
		d.telemetry.RecordDelivered(ctx, backend, elapsed)
		d.logger.Info("notification delivered",
			slog.String("backend", backend),
			slog.String("channel_id", j.channelID),
			slog.String("title", j.embed.Title),
			slog.Duration("elapsed", elapsed),
		)
	}
	j.done <- err
}

// send waits for the session handshake and performs a single send attempt.
func (d *Dispatcher) send(ctx context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	select {
	case <-d.messenger.Ready():
	case <-ctx.Done():
		return d.errNotReady()
	}
	return d.messenger.Send(ctx, j.channelID, j.embed)
}

// sessionReady reports whether the messenger has completed its handshake.
func (d *Dispatcher) sessionReady() bool {
	select {
	case <-d.messenger.Ready():
		return true
	default:
		return false
	}
}

func (d *Dispatcher) errNotReady() error {
	return fmt.Errorf("%s session: %w", d.messenger.Name(), core.ErrNotReady)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrChannelNotFound):
		return "channel_not_found"
	case errors.Is(err, core.ErrNotReady):
		return "not_ready"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
