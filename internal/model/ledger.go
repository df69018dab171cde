package model

import (
	"time"
)

const (
	LedgerTypePurchase = "PURCHASE"
	LedgerTypeSell     = "SELL"
	LedgerTypeMining   = "MINING"
)

// LedgerEntry records one movement of a character's money. Rows are only
// ever appended, inside the same transaction as the balance change, so
// BalanceAfter of the newest row always equals Character.Money.
type LedgerEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"tradeNo"`
	CharacterID   int64     `gorm:"index;not null" json:"characterId"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"` // positive credits, negative debits
	BalanceBefore int64     `gorm:"not null" json:"balanceBefore"`
	BalanceAfter  int64     `gorm:"not null" json:"balanceAfter"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (LedgerEntry) TableName() string {
	return "character_ledger"
}
