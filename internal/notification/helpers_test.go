package notification_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/notification"
	"github.com/goonbox/plexcord/internal/telemetry"
)

type sentEmbed struct {
	channelID string
	embed     *core.Embed
}

// fakeMessenger records Send calls.
type fakeMessenger struct {
	ready   chan struct{}
	sendErr error
	// block makes Send wait for its context to end.
	block bool

	mu     sync.Mutex
	sent   []sentEmbed
	sentCh chan sentEmbed
}

func newFakeMessenger(ready bool) *fakeMessenger {
	m := &fakeMessenger{
		ready:  make(chan struct{}),
		sentCh: make(chan sentEmbed, 16),
	}
	if ready {
		close(m.ready)
	}
	return m
}

func (m *fakeMessenger) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *fakeMessenger) Ready() <-chan struct{} { return m.ready }
func (m *fakeMessenger) Name() string           { return "fake" }

func (m *fakeMessenger) Send(ctx context.Context, channelID string, e *core.Embed) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s := sentEmbed{channelID: channelID, embed: e}
	m.mu.Lock()
	m.sent = append(m.sent, s)
	m.mu.Unlock()
	select {
	case m.sentCh <- s:
	default:
	}
	return m.sendErr
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// waitSent returns the next delivered embed or fails the test.
func (m *fakeMessenger) waitSent(t *testing.T) sentEmbed {
	t.Helper()
	select {
	case s := <-m.sentCh:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered within timeout")
		return sentEmbed{}
	}
}

// fakeIdentifier returns a fixed server id.
type fakeIdentifier struct {
	id  string
	err error
}

func (f fakeIdentifier) MachineIdentifier(context.Context) (string, error) { return f.id, f.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopTelemetry(t *testing.T) *telemetry.Provider {
	t.Helper()
	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)
	return tel
}

func testOptions() notification.Options {
	return notification.Options{
		Display: notification.DisplayConfig{
			MediaHostName:      "plex.example.com",
			AccessToken:        "secret-token",
			StaticThumbnailURL: "https://cdn.example.com/plex.png",
			FooterText:         "Plex Library • GoonBox",
		},
		ChannelID:     "main",
		TestChannelID: "testing",
		Timeout:       2 * time.Second,
	}
}

// runDispatcher starts d in the background and stops it when the test ends.
func runDispatcher(t *testing.T, d *notification.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

type harness struct {
	messenger  *fakeMessenger
	dispatcher *notification.Dispatcher
	service    *notification.Service
}

// newHarness wires a service to m the way the serve command does: dispatcher
// and service share opts.Timeout. The dispatcher runs only when run is set.
func newHarness(t *testing.T, m *fakeMessenger, opts notification.Options, queueSize int, run bool) *harness {
	t.Helper()
	tel := noopTelemetry(t)
	d := notification.NewDispatcher(m, queueSize, opts.Timeout, tel, discardLogger())
	if run {
		runDispatcher(t, d)
	}
	return &harness{
		messenger:  m,
		dispatcher: d,
		service:    notification.NewService(d, opts, tel, discardLogger()),
	}
}
