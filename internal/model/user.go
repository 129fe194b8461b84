// Package model defines database models
package model

import "time"

type User struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `gorm:"not null" json:"name"`

	ReferralCode string `gorm:"size:8;uniqueIndex;not null" json:"referralCode"`
	// Set once at creation. Kept even when it didn't match anyone
	ReferredByCode *string `gorm:"size:8;index" json:"referredByCode"`
	ReferralCount  int     `gorm:"not null;default:0" json:"referralCount"`
	Rank           int     `gorm:"not null;index" json:"rank"`

	// Defines signup order, so it's never updated after the insert
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// LeaderboardEntry is the public projection of a user shown on the leaderboard
type LeaderboardEntry struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	ReferralCode  string `json:"referralCode"`
	ReferralCount int    `json:"referralCount"`
	Rank          int    `json:"rank"`
}
