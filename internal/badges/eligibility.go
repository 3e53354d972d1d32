package badges

import (
	"math"

	"github.com/gdg-garage/airbadge/internal/models"
)

// CurrentValue reads the metric def is tracked by: the size of a set field or
// the value of a counter. ok is false when the key names no progress field.
func CurrentValue(def models.BadgeDefinition, p models.Progress) (value int, ok bool) {
	if set := p.Set(def.TrackingKey); set != nil {
		return len(*set), true
	}
	if c := p.Counter(def.TrackingKey); c != nil {
		return *c, true
	}
	return 0, false
}

func IsEligible(def models.BadgeDefinition, p models.Progress) bool {
	v, ok := CurrentValue(def, p)
	if !ok {
		return false
	}
	return v >= def.Threshold
}

// Percentage is the rounded completion of def, capped at 100.
func Percentage(def models.BadgeDefinition, p models.Progress) int {
	v, ok := CurrentValue(def, p)
	if !ok || def.Threshold <= 0 {
		return 0
	}
	pct := int(math.Round(float64(v) / float64(def.Threshold) * 100))
	return min(max(pct, 0), 100)
}
