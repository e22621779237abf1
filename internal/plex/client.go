package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goonbox/plexcord/internal/core"
	"github.com/goonbox/plexcord/internal/httpclient"
)

const maxErrorBodyBytes = 4096

const (
	// identityFetchTimeout bounds the shared identity request, independent of any caller.
	identityFetchTimeout = 10 * time.Second
	// identityRetryAfter is how long a failed lookup is remembered.
	identityRetryAfter = 30 * time.Second
)

// Client talks to the Plex Media Server HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
	logger  *slog.Logger

	group singleflight.Group
	now   func() time.Time

	mu        sync.Mutex
	machineID string
	lastErr   error
	failedAt  time.Time
}

var _ core.ServerIdentifier = (*Client)(nil)

// NewClient creates a Plex API client for the server at baseURL.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := httpclient.DefaultConfig()
	cfg.Name = "plex"
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpclient.New(cfg, logger),
		logger:  logger,
		now:     time.Now,
	}
}

type identityResponse struct {
	MediaContainer struct {
		MachineIdentifier string `json:"machineIdentifier"`
		Version           string `json:"version"`
	} `json:"MediaContainer"`
}

// MachineIdentifier returns the server's machine identifier. A successful
// lookup is cached for the lifetime of the client and a failure for
// identityRetryAfter. Concurrent callers share one request; each stops
// waiting when its own ctx ends.
func (c *Client) MachineIdentifier(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.machineID != "" {
		id := c.machineID
		c.mu.Unlock()
		return id, nil
	}
	if c.lastErr != nil && c.now().Sub(c.failedAt) < identityRetryAfter {
		err := c.lastErr
		c.mu.Unlock()
		return "", err
	}
	c.mu.Unlock()

	ch := c.group.DoChan("identity", func() (any, error) {
		return c.fetchIdentity()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("plex identity: %w", ctx.Err())
	}
}

// fetchIdentity performs the lookup and records its outcome.
func (c *Client) fetchIdentity() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), identityFetchTimeout)
	defer cancel()

	id, err := c.requestIdentity(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.failedAt = c.now()
		return "", err
	}
	c.machineID = id
	c.lastErr = nil
	return id, nil
}

func (c *Client) requestIdentity(ctx context.Context) (string, error) {
	var resp identityResponse
	if err := c.get(ctx, "/identity", &resp); err != nil {
		return "", fmt.Errorf("plex identity: %w", err)
	}
	id := strings.TrimSpace(resp.MediaContainer.MachineIdentifier)
	if id == "" {
		return "", errors.New("plex identity: empty machine identifier")
	}

	c.logger.Debug("resolved plex server identity",
		slog.String("machine_id", id),
		slog.String("version", resp.MediaContainer.Version),
	)
	return id, nil
}

// get performs an authenticated GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("plex API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}
