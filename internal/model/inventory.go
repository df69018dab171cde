package model

import (
	"time"
)

// InventoryEntry is a stack of one item in a character's bag.
// Count is always positive: a stack that reaches zero is deleted.
type InventoryEntry struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int64     `gorm:"uniqueIndex:idx_inventory_character_item;not null" json:"characterId"`
	ItemID      int64     `gorm:"uniqueIndex:idx_inventory_character_item;not null" json:"itemId"`
	Count       int64     `gorm:"not null" json:"count"`
	Item        *Item     `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (InventoryEntry) TableName() string {
	return "inventory"
}

// EquippedItem is one worn unit; equipping the same item twice yields two rows.
// The bonuses applied at equip time are kept so unequip reverts exactly
// what was added even if the catalog entry changed in between.
type EquippedItem struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID  int64     `gorm:"index;not null" json:"characterId"`
	ItemID       int64     `gorm:"index;not null" json:"itemId"`
	AttackBonus  int64     `gorm:"not null;default:0" json:"attackBonus"`
	DefenseBonus int64     `gorm:"not null;default:0" json:"defenseBonus"`
	Item         *Item     `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (EquippedItem) TableName() string {
	return "equipped_item"
}
