package models

import (
	"slices"

	"cloud.google.com/go/civil"
)

// Progress holds the per-user counters that badges are evaluated against.
type Progress struct {
	ReportsSubmitted int         `json:"reports_submitted"`
	UpvotesGiven     int         `json:"upvotes_given"`
	DownvotesGiven   int         `json:"downvotes_given"`
	QuizzesCompleted int         `json:"quizzes_completed"`
	AlertsOpened     int         `json:"alerts_opened"`
	CitiesViewed     []string    `json:"cities_viewed"`
	AQIChecks        int         `json:"aqi_checks"`
	LastCheckDate    *civil.Date `json:"last_check_date,omitempty"`
}

func DefaultProgress() Progress {
	return Progress{CitiesViewed: []string{}}
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	c := p
	if p.CitiesViewed != nil {
		c.CitiesViewed = slices.Clone(p.CitiesViewed)
	}
	if p.LastCheckDate != nil {
		d := *p.LastCheckDate
		c.LastCheckDate = &d
	}
	return c
}

// Normalize drops duplicate cities, keeping the first occurrence, and clamps
// negative counters to zero.
func (p *Progress) Normalize() {
	seen := make(map[string]bool, len(p.CitiesViewed))
	cities := make([]string, 0, len(p.CitiesViewed))
	for _, c := range p.CitiesViewed {
		if seen[c] {
			continue
		}
		seen[c] = true
		cities = append(cities, c)
	}
	p.CitiesViewed = cities

	for _, c := range []*int{&p.ReportsSubmitted, &p.UpvotesGiven, &p.DownvotesGiven, &p.QuizzesCompleted, &p.AlertsOpened, &p.AQIChecks} {
		*c = max(*c, 0)
	}
}

// Counter returns a pointer to the scalar field named by key, or nil when key
// does not name a counter.
func (p *Progress) Counter(key TrackingKey) *int {
	switch key {
	case KeyReportsSubmitted:
		return &p.ReportsSubmitted
	case KeyUpvotesGiven:
		return &p.UpvotesGiven
	case KeyDownvotesGiven:
		return &p.DownvotesGiven
	case KeyQuizzesCompleted:
		return &p.QuizzesCompleted
	case KeyAlertsOpened:
		return &p.AlertsOpened
	case KeyAQIChecks:
		return &p.AQIChecks
	}
	return nil
}

// Set returns a pointer to the set field named by key, or nil.
func (p *Progress) Set(key TrackingKey) *[]string {
	if key == KeyCitiesViewed {
		return &p.CitiesViewed
	}
	return nil
}
