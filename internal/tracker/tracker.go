// Package tracker turns user actions into progress updates and badge awards
// and keeps the remote store in sync.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gdg-garage/airbadge/internal/badges"
	"github.com/gdg-garage/airbadge/internal/clock"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/progress"
	"github.com/gdg-garage/airbadge/internal/storage"
	"go.uber.org/zap"
)

const DefaultDebounce = 30 * time.Second

var (
	ErrUnknownAction = errors.New("tracker: unknown action")
	ErrMissingCity   = errors.New("tracker: city_view requires a city")
)

type ActionType string

const (
	ActionAQICheck     ActionType = "aqi_check"
	ActionReportSubmit ActionType = "report_submit"
	ActionUpvote       ActionType = "upvote"
	ActionDownvote     ActionType = "downvote"
	ActionQuizComplete ActionType = "quiz_complete"
	ActionAlertOpened  ActionType = "alert_opened"
	ActionCityView     ActionType = "city_view"
)

var counterActions = map[ActionType]models.TrackingKey{
	ActionReportSubmit: models.KeyReportsSubmitted,
	ActionUpvote:       models.KeyUpvotesGiven,
	ActionDownvote:     models.KeyDownvotesGiven,
	ActionQuizComplete: models.KeyQuizzesCompleted,
	ActionAlertOpened:  models.KeyAlertsOpened,
}

type Payload struct {
	City string
}

type Result struct {
	Progress    models.Progress      `json:"progress"`
	NewlyEarned []models.EarnedBadge `json:"newly_earned"`
}

// View is a progress record together with the ids of the badges earned so far.
type View struct {
	ReportsSubmitted int         `json:"reports_submitted"`
	UpvotesGiven     int         `json:"upvotes_given"`
	DownvotesGiven   int         `json:"downvotes_given"`
	QuizzesCompleted int         `json:"quizzes_completed"`
	AlertsOpened     int         `json:"alerts_opened"`
	CitiesViewed     []string    `json:"cities_viewed"`
	AQIChecks        int         `json:"aqi_checks"`
	LastCheckDate    *civil.Date `json:"last_check_date,omitempty"`
	EarnedBadges     []string    `json:"earned_badges"`
}

func newView(p models.Progress, earned []string) View {
	return View{
		ReportsSubmitted: p.ReportsSubmitted,
		UpvotesGiven:     p.UpvotesGiven,
		DownvotesGiven:   p.DownvotesGiven,
		QuizzesCompleted: p.QuizzesCompleted,
		AlertsOpened:     p.AlertsOpened,
		CitiesViewed:     p.CitiesViewed,
		AQIChecks:        p.AQIChecks,
		LastCheckDate:    p.LastCheckDate,
		EarnedBadges:     earned,
	}
}

type BadgeProgress struct {
	Current    int  `json:"current"`
	Threshold  int  `json:"threshold"`
	Percentage int  `json:"percentage"`
	Earned     bool `json:"earned"`
}

// Syncer uploads a snapshot to the remote store.
type Syncer interface {
	Sync(ctx context.Context, snap models.Snapshot) error
}

// EarnedBadgesKey is the storage key of a user's earned badge list.
func EarnedBadgesKey(userID string) string {
	return fmt.Sprintf("airbadge:%s:earned_badges", userID)
}

type Tracker struct {
	userID   string
	kv       storage.KV
	store    *progress.Store
	syncer   Syncer
	clock    clock.Clock
	location *time.Location
	debounce time.Duration
	catalog  []models.BadgeDefinition
	logger   *zap.Logger
	events   emitter

	mu      sync.Mutex
	earned  []models.EarnedBadge
	pending clock.Timer
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

type Option func(*Tracker)

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLocation sets the time zone calendar days are counted in.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.location = loc }
}

func WithDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.debounce = d }
}

func WithCatalog(defs []models.BadgeDefinition) Option {
	return func(t *Tracker) { t.catalog = defs }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New builds a tracker for userID and loads its persisted state from kv.
func New(ctx context.Context, userID string, kv storage.KV, syncer Syncer, opts ...Option) *Tracker {
	t := &Tracker{
		userID:   userID,
		kv:       kv,
		syncer:   syncer,
		clock:    clock.Real(),
		location: time.Local,
		debounce: DefaultDebounce,
		catalog:  badges.All(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("user_id", userID))
	t.ctx, t.cancel = context.WithCancel(context.Background())

	t.store = progress.NewStore(kv, userID, t.logger)
	t.store.Load(ctx)
	t.earned = t.loadEarned(ctx)
	return t
}

func (t *Tracker) UserID() string {
	return t.userID
}

// Subscribe registers fn for every event of this tracker. Callbacks run
// synchronously, in subscription order, outside the tracker lock.
func (t *Tracker) Subscribe(fn func(Event)) (unsubscribe func()) {
	return t.events.subscribe(fn)
}

// Track applies action to the progress record, awards any badge that became
// eligible and schedules a sync. Invalid actions are logged and leave the
// state untouched.
func (t *Tracker) Track(ctx context.Context, action ActionType, payload Payload) Result {
	t.mu.Lock()

	if t.closed {
		t.logger.Warn("Ignoring action on closed tracker", zap.String("action", string(action)))
		res := Result{Progress: t.store.Current(), NewlyEarned: []models.EarnedBadge{}}
		t.mu.Unlock()
		return res
	}

	if err := t.apply(action, payload); err != nil {
		t.logger.Warn("Ignoring action", zap.String("action", string(action)), zap.Error(err))
		res := Result{Progress: t.store.Current(), NewlyEarned: []models.EarnedBadge{}}
		t.mu.Unlock()
		return res
	}
	t.store.Save(ctx)

	newly := t.award(ctx)
	if len(newly) == 0 {
		t.scheduleSyncLocked()
	}
	res := Result{Progress: t.store.Current(), NewlyEarned: newly}
	snap := t.snapshotLocked()
	syncCtx := t.ctx
	t.mu.Unlock()

	for _, b := range newly {
		t.logger.Info("Badge earned", zap.String("badge_id", b.ID))
		t.events.emit(Event{Type: EventBadgeEarned, UserID: t.userID, Badge: b})
	}
	if len(newly) > 0 {
		go t.runSync(syncCtx, snap)
	}
	return res
}

func (t *Tracker) apply(action ActionType, payload Payload) error {
	if key, ok := counterActions[action]; ok {
		return t.store.IncrementCounter(key)
	}

	switch action {
	case ActionAQICheck:
		t.store.UpdateStreak(civil.DateOf(t.clock.Now().In(t.location)))
		return nil
	case ActionCityView:
		city := strings.TrimSpace(payload.City)
		if city == "" {
			return ErrMissingCity
		}
		_, err := t.store.AddToSet(models.KeyCitiesViewed, city)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// award records every catalog badge that is eligible and not yet earned.
func (t *Tracker) award(ctx context.Context) []models.EarnedBadge {
	p := t.store.Current()
	newly := []models.EarnedBadge{}
	for _, def := range t.catalog {
		if t.hasEarnedLocked(def.ID) || !badges.IsEligible(def, p) {
			continue
		}
		value, _ := badges.CurrentValue(def, p)
		eb := models.EarnedBadge{
			ID:              def.ID,
			Name:            def.Name,
			EarnedAt:        t.clock.Now(),
			ProgressAtAward: value,
		}
		t.earned = append(t.earned, eb)
		newly = append(newly, eb)
	}
	if len(newly) > 0 {
		t.saveEarned(ctx)
	}
	return newly
}

func (t *Tracker) hasEarnedLocked(id string) bool {
	return slices.ContainsFunc(t.earned, func(b models.EarnedBadge) bool { return b.ID == id })
}

func (t *Tracker) scheduleSyncLocked() {
	if t.closed {
		return
	}
	if t.pending != nil {
		t.pending.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.debounce, func() { t.fireDebounced(gen) })
}

func (t *Tracker) fireDebounced(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	snap := t.snapshotLocked()
	ctx := t.ctx
	t.mu.Unlock()

	t.runSync(ctx, snap)
}

func (t *Tracker) runSync(ctx context.Context, snap models.Snapshot) error {
	t.events.emit(Event{Type: EventSyncStarted, UserID: t.userID})
	if err := t.syncer.Sync(ctx, snap); err != nil {
		t.logger.Error("Failed to sync progress", zap.Error(err))
		t.events.emit(Event{Type: EventSyncFailed, UserID: t.userID, Err: err})
		return err
	}
	t.events.emit(Event{Type: EventSyncCompleted, UserID: t.userID})
	return nil
}

// SyncNow pushes the current snapshot and returns the final outcome.
func (t *Tracker) SyncNow(ctx context.Context) error {
	t.mu.Lock()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	return t.runSync(ctx, snap)
}

func (t *Tracker) Snapshot() models.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() models.Snapshot {
	p := t.store.Current()
	return models.Snapshot{Badges: slices.Clone(t.earned), Progress: &p}
}

func (t *Tracker) Progress() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.earned))
	for _, b := range t.earned {
		ids = append(ids, b.ID)
	}
	return newView(t.store.Current(), ids)
}

func (t *Tracker) EarnedBadges() []models.EarnedBadge {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.earned)
}

// AllBadgeProgress reports, for every catalog badge, how close the user is.
func (t *Tracker) AllBadgeProgress() map[string]BadgeProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.store.Current()
	out := make(map[string]BadgeProgress, len(t.catalog))
	for _, def := range t.catalog {
		current, _ := badges.CurrentValue(def, p)
		out[def.ID] = BadgeProgress{
			Current:    current,
			Threshold:  def.Threshold,
			Percentage: badges.Percentage(def, p),
			Earned:     t.hasEarnedLocked(def.ID),
		}
	}
	return out
}

// Initialize seeds the tracker from the authoritative remote snapshot. Remote
// values replace local ones wherever the snapshot carries them.
func (t *Tracker) Initialize(ctx context.Context, snap models.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		t.logger.Warn("Ignoring snapshot on closed tracker")
		return
	}

	if snap.Badges != nil {
		t.earned = dedupe(snap.Badges)
		t.saveEarned(ctx)
	}
	if snap.Progress != nil {
		t.store.Replace(*snap.Progress)
		t.store.Save(ctx)
	}
	t.logger.Info("Tracker initialized",
		zap.Int("badges", len(t.earned)),
		zap.Bool("remote_progress", snap.Progress != nil))
}

// Clear drops all local state and cancels the pending sync and any retries
// waiting to run. It does not sync.
func (t *Tracker) Clear(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if !t.closed {
		t.ctx, t.cancel = context.WithCancel(context.Background())
	}

	t.store.Reset(ctx)
	t.earned = []models.EarnedBadge{}
	if err := t.kv.Delete(ctx, EarnedBadgesKey(t.userID)); err != nil {
		t.logger.Error("Failed to delete earned badges", zap.Error(err))
	}
}

// Close stops background work. The tracker must not be used afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.closed = true
}

func (t *Tracker) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
	t.cancel()
}

func (t *Tracker) loadEarned(ctx context.Context) []models.EarnedBadge {
	raw, err := t.kv.Get(ctx, EarnedBadgesKey(t.userID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Warn("Failed to read earned badges", zap.Error(err))
		}
		return []models.EarnedBadge{}
	}

	var list []models.EarnedBadge
	if err := json.Unmarshal(raw, &list); err != nil {
		t.logger.Warn("Discarding corrupt earned badges", zap.Error(err))
		return []models.EarnedBadge{}
	}
	return dedupe(list)
}

func (t *Tracker) saveEarned(ctx context.Context) {
	raw, err := json.Marshal(t.earned)
	if err != nil {
		t.logger.Error("Failed to encode earned badges", zap.Error(err))
		return
	}
	if err := t.kv.Set(ctx, EarnedBadgesKey(t.userID), raw); err != nil {
		t.logger.Error("Failed to persist earned badges", zap.Error(err))
	}
}

// dedupe keeps the first record of every badge id.
func dedupe(list []models.EarnedBadge) []models.EarnedBadge {
	out := make([]models.EarnedBadge, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, b := range list {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out
}
