package repository

import (
	"context"
	"errors"
	"sort"

	"itemsim/internal/model"

	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Get(ctx context.Context, tx *gorm.DB, characterID, itemID int64) (*model.InventoryEntry, error) {
	var entry model.InventoryEntry
	err := orDB(r.db, tx).WithContext(ctx).
		Where("character_id = ? AND item_id = ?", characterID, itemID).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err, ErrInventoryNotFound)
	}
	return &entry, nil
}

// Add puts count units of the item into the bag, creating the stack if needed.
func (r *InventoryRepository) Add(ctx context.Context, tx *gorm.DB, characterID, itemID, count int64) error {
	if count <= 0 {
		return ErrNonPositiveQuantity
	}

	entry, err := r.Get(ctx, tx, characterID, itemID)
	switch {
	case err == nil:
		return orDB(r.db, tx).WithContext(ctx).
			Model(&model.InventoryEntry{}).
			Where("id = ?", entry.ID).
			Update("count", gorm.Expr("count + ?", count)).Error
	case errors.Is(err, ErrInventoryNotFound):
		return orDB(r.db, tx).WithContext(ctx).Create(&model.InventoryEntry{
			CharacterID: characterID,
			ItemID:      itemID,
			Count:       count,
		}).Error
	default:
		return err
	}
}

// Remove takes count units out of the bag. A stack that reaches zero is
// deleted rather than kept at zero.
func (r *InventoryRepository) Remove(ctx context.Context, tx *gorm.DB, characterID, itemID, count int64) error {
	if count <= 0 {
		return ErrNonPositiveQuantity
	}

	entry, err := r.Get(ctx, tx, characterID, itemID)
	if err != nil {
		return err
	}
	if entry.Count < count {
		return ErrInventoryNotEnough
	}

	db := orDB(r.db, tx).WithContext(ctx)
	if entry.Count == count {
		return db.Where("id = ?", entry.ID).Delete(&model.InventoryEntry{}).Error
	}
	return db.Model(&model.InventoryEntry{}).
		Where("id = ? AND count >= ?", entry.ID, count).
		Update("count", gorm.Expr("count - ?", count)).Error
}

// ListByCharacter returns the bag with catalog rows attached, ordered by item code.
func (r *InventoryRepository) ListByCharacter(ctx context.Context, characterID int64) ([]*model.InventoryEntry, error) {
	var entries []*model.InventoryEntry
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("character_id = ?", characterID).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Item.ItemCode < entries[j].Item.ItemCode
	})
	return entries, nil
}

func (r *InventoryRepository) DeleteByCharacter(ctx context.Context, tx *gorm.DB, characterID int64) error {
	return orDB(r.db, tx).WithContext(ctx).
		Where("character_id = ?", characterID).
		Delete(&model.InventoryEntry{}).Error
}

type characterTotal struct {
	CharacterID int64
	Total       int64
}

// SumCountsByCharacter returns the total units held per character.
func (r *InventoryRepository) SumCountsByCharacter(ctx context.Context) (map[int64]int64, error) {
	var rows []characterTotal
	err := r.db.WithContext(ctx).
		Model(&model.InventoryEntry{}).
		Select("character_id, SUM(count) AS total").
		Group("character_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[int64]int64, len(rows))
	for _, row := range rows {
		totals[row.CharacterID] = row.Total
	}
	return totals, nil
}
