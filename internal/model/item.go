package model

import (
	"time"
)

// ItemStat holds the optional stat modifiers applied while an item is equipped.
type ItemStat struct {
	Attack  *int64 `json:"attack,omitempty"`
	Defense *int64 `json:"defense,omitempty"`
}

// AttackValue returns the attack modifier, zero when unset.
func (s ItemStat) AttackValue() int64 {
	if s.Attack == nil {
		return 0
	}
	return *s.Attack
}

// DefenseValue returns the defense modifier, zero when unset.
func (s ItemStat) DefenseValue() int64 {
	if s.Defense == nil {
		return 0
	}
	return *s.Defense
}

// Item is a catalog entry. ItemCode is the business key clients use;
// ID is internal and referenced by inventory and equipment rows.
type Item struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	ItemCode  int64     `gorm:"uniqueIndex;not null" json:"itemCode"`
	ItemName  string    `gorm:"type:varchar(128);not null" json:"itemName"`
	ItemStat  ItemStat  `gorm:"type:varchar(255);serializer:json;not null" json:"itemStat"`
	ItemPrice int64     `gorm:"not null;default:0" json:"itemPrice"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (Item) TableName() string {
	return "item"
}
