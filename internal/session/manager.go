// Package session owns one badge tracker per logged-in user, from login to
// logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/remotesync"
	"github.com/gdg-garage/airbadge/internal/storage"
	"github.com/gdg-garage/airbadge/internal/tracker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SyncClient talks to the remote progress store on behalf of one user.
type SyncClient interface {
	tracker.Syncer
	Fetch(ctx context.Context) (models.Snapshot, error)
}

// ClientFactory builds the sync client of a user.
type ClientFactory func(userID uint) (SyncClient, error)

type Manager struct {
	kv          storage.KV
	newClient   ClientFactory
	logger      *zap.Logger
	trackerOpts []tracker.Option
	subscribers []func(tracker.Event)

	mu       sync.Mutex
	trackers map[uint]*tracker.Tracker
	starting singleflight.Group
}

type Option func(*Manager)

// WithTrackerOptions applies opts to every tracker the manager creates.
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(m *Manager) { m.trackerOpts = append(m.trackerOpts, opts...) }
}

// WithSubscriber subscribes fn to the events of every tracker.
func WithSubscriber(fn func(tracker.Event)) Option {
	return func(m *Manager) { m.subscribers = append(m.subscribers, fn) }
}

func NewManager(kv storage.KV, newClient ClientFactory, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:        kv,
		newClient: newClient,
		logger:    logger,
		trackers:  make(map[uint]*tracker.Tracker),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session for userID, seeding its tracker from the remote
// store. An unreachable store is tolerated; a rejected token is not.
// Starting an open session is a no-op.
func (m *Manager) Start(ctx context.Context, userID uint) error {
	_, err := m.start(ctx, userID)
	return err
}

func (m *Manager) start(ctx context.Context, userID uint) (*tracker.Tracker, error) {
	if t, ok := m.Get(userID); ok {
		return t, nil
	}

	// The remote fetch runs outside m.mu; concurrent starts for one user share
	// a single fetch.
	key := strconv.FormatUint(uint64(userID), 10)
	v, err, _ := m.starting.Do(key, func() (any, error) {
		if t, ok := m.Get(userID); ok {
			return t, nil
		}

		t, err := m.open(ctx, userID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.trackers[userID]; ok {
			t.Close()
			return existing, nil
		}
		m.trackers[userID] = t
		m.logger.Info("Session started", zap.Uint("user_id", userID))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tracker.Tracker), nil
}

// open builds a tracker for userID and seeds it from the remote store.
func (m *Manager) open(ctx context.Context, userID uint) (*tracker.Tracker, error) {
	client, err := m.newClient(userID)
	if err != nil {
		return nil, fmt.Errorf("create sync client: %w", err)
	}

	id := strconv.FormatUint(uint64(userID), 10)
	opts := append([]tracker.Option{tracker.WithLogger(m.logger)}, m.trackerOpts...)
	t := tracker.New(ctx, id, m.kv, client, opts...)
	for _, fn := range m.subscribers {
		t.Subscribe(fn)
	}

	snap, err := client.Fetch(ctx)
	switch {
	case errors.Is(err, remotesync.ErrUnauthorized):
		t.Close()
		return nil, err
	case err != nil:
		m.logger.Warn("Remote progress unavailable, using local state",
			zap.Uint("user_id", userID), zap.Error(err))
	default:
		t.Initialize(ctx, snap)
	}
	return t, nil
}

func (m *Manager) Get(userID uint) (*tracker.Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[userID]
	return t, ok
}

// Ensure returns the tracker of userID, starting a session when none is open.
func (m *Manager) Ensure(ctx context.Context, userID uint) (*tracker.Tracker, error) {
	if t, ok := m.Get(userID); ok {
		return t, nil
	}
	return m.start(ctx, userID)
}

// End pushes a final snapshot, then clears and discards the user's tracker.
// Local state is cleared even when the final sync fails; its error is
// returned.
func (m *Manager) End(ctx context.Context, userID uint) error {
	m.mu.Lock()
	t, ok := m.trackers[userID]
	delete(m.trackers, userID)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	err := t.SyncNow(ctx)
	if err != nil {
		m.logger.Error("Final sync failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	t.Close()
	t.Clear(ctx)
	m.logger.Info("Session ended", zap.Uint("user_id", userID))
	return err
}

// Shutdown flushes every open session without clearing local state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	trackers := m.trackers
	m.trackers = make(map[uint]*tracker.Tracker)
	m.mu.Unlock()

	var errs []error
	for userID, t := range trackers {
		if err := t.SyncNow(ctx); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
		}
		t.Close()
	}
	return errors.Join(errs...)
}
