package models

import "time"

type TrackingKey string

const (
	KeyReportsSubmitted TrackingKey = "reports_submitted"
	KeyUpvotesGiven     TrackingKey = "upvotes_given"
	KeyDownvotesGiven   TrackingKey = "downvotes_given"
	KeyQuizzesCompleted TrackingKey = "quizzes_completed"
	KeyAlertsOpened     TrackingKey = "alerts_opened"
	KeyCitiesViewed     TrackingKey = "cities_viewed"
	KeyAQIChecks        TrackingKey = "aqi_checks"
)

type BadgeCategory string

const (
	CategoryReporting   BadgeCategory = "reporting"
	CategoryCommunity   BadgeCategory = "community"
	CategoryLearning    BadgeCategory = "learning"
	CategoryAwareness   BadgeCategory = "awareness"
	CategoryExploration BadgeCategory = "exploration"
	CategoryConsistency BadgeCategory = "consistency"
)

// BadgeDefinition is a catalog entry. Definitions are fixed at process start.
type BadgeDefinition struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Threshold   int           `json:"threshold"`
	TrackingKey TrackingKey   `json:"tracking_key"`
	Category    BadgeCategory `json:"category"`
}

// EarnedBadge records a badge unlocked by a user. A user holds at most one per ID.
type EarnedBadge struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	EarnedAt        time.Time `json:"earned_at"`
	ProgressAtAward int       `json:"progress_at_award"`
}

// Snapshot is the full state exchanged with the remote store.
type Snapshot struct {
	Badges   []EarnedBadge `json:"badges"`
	Progress *Progress     `json:"progress,omitempty"`
}
