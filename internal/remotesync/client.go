// Package remotesync pushes tracker snapshots to the remote progress store and
// fetches them back at session start.
package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const progressPath = "/sync/progress"

var (
	ErrUnauthorized = errors.New("remotesync: unauthorized")
	ErrRejected     = errors.New("remotesync: remote store rejected snapshot")
)

type Client struct {
	endpoint       string
	http           *http.Client
	logger         *zap.Logger
	maxRetries     uint64
	initialBackoff time.Duration
	newTimer       func() backoff.Timer
}

type Option func(*Client)

// WithHTTPClient sets the client requests are sent with. When the client
// has a token source, hc carries the authenticated requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how many times a failed push is retried and the first
// backoff interval; each following interval doubles.
func WithRetries(n int, initial time.Duration) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = uint64(n)
		c.initialBackoff = initial
	}
}

// WithTimer replaces the timer used to wait between retries.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *Client) { c.newTimer = newTimer }
}

// NewClient returns a client for the store at endpoint. Requests carry a
// bearer token from ts when it is not nil.
func NewClient(endpoint string, ts oauth2.TokenSource, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		http:           http.DefaultClient,
		logger:         logger,
		maxRetries:     3,
		initialBackoff: 2 * time.Second,
		newTimer:       func() backoff.Timer { return nil },
	}
	for _, opt := range opts {
		opt(c)
	}
	if ts != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.http = oauth2.NewClient(ctx, ts)
	}
	return c
}

// Sync uploads snap, retrying transport and server failures with exponential
// backoff. Authentication failures are returned immediately. Cancelling ctx
// stops pending retries but does not abort a request already in flight.
func (c *Client) Sync(ctx context.Context, snap models.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.initialBackoff << c.maxRetries
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		return c.push(ctx, body)
	}

	err = backoff.RetryNotifyWithTimer(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx),
		func(err error, d time.Duration) {
			c.logger.Warn("Sync attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", d),
				zap.Error(err))
		},
		c.newTimer(),
	)
	if err != nil {
		c.logger.Error("Sync failed", zap.Int("attempts", attempt), zap.Error(err))
		return err
	}
	return nil
}

func (c *Client) push(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPut, c.endpoint+progressPath, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return backoff.Permanent(ErrUnauthorized)
	}
	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRejected, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: no success indicator", ErrRejected)
	}
	return nil
}

// Fetch returns the stored snapshot. A store with no record for the user
// yields an empty snapshot.
func (c *Client) Fetch(ctx context.Context) (models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+progressPath, nil)
	if err != nil {
		return models.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Snapshot{}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return models.Snapshot{}, ErrUnauthorized
	case resp.StatusCode >= 300:
		return models.Snapshot{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
