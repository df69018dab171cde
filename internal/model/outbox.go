package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventItemsPurchased = "ITEMS_PURCHASED"
	EventItemsSold      = "ITEMS_SOLD"
	EventItemEquipped   = "ITEM_EQUIPPED"
	EventItemUnequipped = "ITEM_UNEQUIPPED"
	EventMoneyMined     = "MONEY_MINED"
	EventCharacterGone  = "CHARACTER_DELETED"
)

// OutboxMessage is a domain event written in the same transaction as the
// state change it describes and published to Kafka afterwards.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(128);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// CharacterEvent is the payload carried by outbox messages.
type CharacterEvent struct {
	Type        string      `json:"type"`
	CharacterID int64       `json:"characterId"`
	UserID      int64       `json:"userId"`
	Money       int64       `json:"money"`
	Items       []EventItem `json:"items,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

type EventItem struct {
	ItemCode int64 `json:"itemCode"`
	Count    int64 `json:"count"`
}
