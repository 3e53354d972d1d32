package models

import (
	"gorm.io/gorm"
)

// User is a Discord account that has logged in. Its ID keys the user's
// badge progress.
type User struct {
	gorm.Model
	DiscordID string `gorm:"uniqueIndex"`
	Username  string
	Email     string
	Avatar    string
}

// Mention formats the user for a Discord message.
func (u User) Mention() string {
	return u.Username + " (<@" + u.DiscordID + ">)"
}
