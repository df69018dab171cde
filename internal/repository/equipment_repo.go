package repository

import (
	"context"

	"itemsim/internal/model"

	"gorm.io/gorm"
)

type EquipmentRepository struct {
	db *gorm.DB
}

func NewEquipmentRepository(db *gorm.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

func (r *EquipmentRepository) Create(ctx context.Context, tx *gorm.DB, equipped *model.EquippedItem) error {
	return orDB(r.db, tx).WithContext(ctx).Create(equipped).Error
}

// First returns the oldest equipped unit of the item.
func (r *EquipmentRepository) First(ctx context.Context, tx *gorm.DB, characterID, itemID int64) (*model.EquippedItem, error) {
	var equipped model.EquippedItem
	err := orDB(r.db, tx).WithContext(ctx).
		Where("character_id = ? AND item_id = ?", characterID, itemID).
		Order("id ASC").
		First(&equipped).Error
	if err != nil {
		return nil, notFound(err, ErrEquippedNotFound)
	}
	return &equipped, nil
}

func (r *EquipmentRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := orDB(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.EquippedItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEquippedNotFound
	}
	return nil
}

// ListByCharacter returns one row per equipped unit with its catalog row.
func (r *EquipmentRepository) ListByCharacter(ctx context.Context, characterID int64) ([]*model.EquippedItem, error) {
	var equipped []*model.EquippedItem
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("character_id = ?", characterID).
		Order("id ASC").
		Find(&equipped).Error
	return equipped, err
}

func (r *EquipmentRepository) CountByItem(ctx context.Context, characterID, itemID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.EquippedItem{}).
		Where("character_id = ? AND item_id = ?", characterID, itemID).
		Count(&count).Error
	return count, err
}

func (r *EquipmentRepository) DeleteByCharacter(ctx context.Context, tx *gorm.DB, characterID int64) error {
	return orDB(r.db, tx).WithContext(ctx).
		Where("character_id = ?", characterID).
		Delete(&model.EquippedItem{}).Error
}

// CountByCharacter returns the number of equipped rows per character.
func (r *EquipmentRepository) CountByCharacter(ctx context.Context) (map[int64]int64, error) {
	var rows []characterTotal
	err := r.db.WithContext(ctx).
		Model(&model.EquippedItem{}).
		Select("character_id, COUNT(*) AS total").
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
