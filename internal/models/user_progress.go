package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserProgress is the authoritative server-side copy of a user's snapshot.
type UserProgress struct {
	gorm.Model
	UserID   uint                             `json:"user_id" gorm:"uniqueIndex"`
	User     User                             `json:"-" gorm:"foreignKey:UserID"`
	Badges   datatypes.JSONSlice[EarnedBadge] `json:"badges"`
	Progress datatypes.JSONType[Progress]     `json:"progress"`
}

func (u UserProgress) Snapshot() Snapshot {
	p := u.Progress.Data()
	badges := []EarnedBadge(u.Badges)
	if badges == nil {
		badges = []EarnedBadge{}
	}
	return Snapshot{Badges: badges, Progress: &p}
}
