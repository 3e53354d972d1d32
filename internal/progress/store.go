// Package progress keeps a user's progress record in memory and persists it
// after every change.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/gdg-garage/airbadge/internal/storage"
	"go.uber.org/zap"
)

var ErrUnknownKey = errors.New("progress: unknown field")

// Key is the storage key of a user's progress record.
func Key(userID string) string {
	return fmt.Sprintf("airbadge:%s:progress", userID)
}

type Store struct {
	kv     storage.KV
	key    string
	logger *zap.Logger

	current models.Progress
}

func NewStore(kv storage.KV, userID string, logger *zap.Logger) *Store {
	return &Store{
		kv:      kv,
		key:     Key(userID),
		logger:  logger.With(zap.String("user_id", userID)),
		current: models.DefaultProgress(),
	}
}

// Load replaces the in-memory record with the persisted one. Missing or
// unreadable data yields the default record.
func (s *Store) Load(ctx context.Context) models.Progress {
	s.current = models.DefaultProgress()

	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read progress, starting fresh", zap.Error(err))
		}
		return s.Current()
	}

	var p models.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("Discarding corrupt progress record", zap.Error(err))
		return s.Current()
	}
	p.Normalize()
	s.current = p
	return s.Current()
}

// Save persists the in-memory record. Failures are logged only.
func (s *Store) Save(ctx context.Context) {
	raw, err := json.Marshal(s.current)
	if err != nil {
		s.logger.Error("Failed to encode progress", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.logger.Error("Failed to persist progress", zap.Error(err))
	}
}

// Current returns a deep copy of the in-memory record.
func (s *Store) Current() models.Progress {
	return s.current.Clone()
}

// Replace swaps in p, normalized.
func (s *Store) Replace(p models.Progress) {
	s.current = p.Clone()
	s.current.Normalize()
}

// Reset restores the default record and removes the persisted one.
func (s *Store) Reset(ctx context.Context) {
	s.current = models.DefaultProgress()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Error("Failed to delete progress", zap.Error(err))
	}
}

func (s *Store) IncrementCounter(key models.TrackingKey) error {
	c := s.current.Counter(key)
	if c == nil || key == models.KeyAQIChecks {
		return fmt.Errorf("%w: %s is not a counter", ErrUnknownKey, key)
	}
	if *c < 0 {
		*c = 0
	}
	*c++
	return nil
}

// AddToSet inserts value into the set field named by key unless it is
// already present.
func (s *Store) AddToSet(key models.TrackingKey, value string) (bool, error) {
	set := s.current.Set(key)
	if set == nil {
		return false, fmt.Errorf("%w: %s is not a set", ErrUnknownKey, key)
	}
	if slices.Contains(*set, value) {
		return false, nil
	}
	*set = append(*set, value)
	return true, nil
}

// UpdateStreak records an AQI check on today. The streak grows by one on the
// day after the last check, restarts at 1 after a longer gap and is left alone
// on the same day. A date before the last check is ignored.
func (s *Store) UpdateStreak(today civil.Date) {
	p := &s.current
	if p.LastCheckDate == nil {
		p.AQIChecks = 1
		p.LastCheckDate = &today
		return
	}

	switch diff := today.DaysSince(*p.LastCheckDate); {
	case diff < 0:
		s.logger.Warn("Ignoring AQI check dated before the last one",
			zap.String("today", today.String()),
			zap.String("last_check", p.LastCheckDate.String()))
		return
	case diff == 0:
		if p.AQIChecks < 1 {
			p.AQIChecks = 1
		}
	case diff == 1:
		p.AQIChecks++
	default:
		p.AQIChecks = 1
	}
	p.LastCheckDate = &today
}
