package model

import (
	"time"
)

// Character is a player character. Money must never go negative; every
// write to Money happens inside a transaction that holds the row lock.
type Character struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	Health    int64     `gorm:"not null" json:"health"`
	Power     int64     `gorm:"not null" json:"power"`
	Money     int64     `gorm:"not null;default:0" json:"money"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Character) TableName() string {
	return "game_character"
}

// OwnedBy reports whether userID owns the character.
func (c *Character) OwnedBy(userID int64) bool {
	return c != nil && c.UserID == userID
}
