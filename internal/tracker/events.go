package tracker

import (
	"sync"

	"github.com/gdg-garage/airbadge/internal/models"
)

type EventType int

const (
	EventBadgeEarned EventType = iota + 1
	EventSyncStarted
	EventSyncCompleted
	EventSyncFailed
)

func (e EventType) String() string {
	switch e {
	case EventBadgeEarned:
		return "badge_earned"
	case EventSyncStarted:
		return "sync_started"
	case EventSyncCompleted:
		return "sync_completed"
	case EventSyncFailed:
		return "sync_failed"
	}
	return "unknown"
}

type Event struct {
	Type   EventType
	UserID string
	// Badge is set for EventBadgeEarned.
	Badge models.EarnedBadge
	// Err is set for EventSyncFailed.
	Err error
}

type subscription struct {
	id int
	fn func(Event)
}

type emitter struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func (e *emitter) subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subs {
				if s.id == id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
