package repository

import (
	"context"
	"errors"

	"itemsim/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	return orDB(r.db, tx).WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) GetByTradeNo(ctx context.Context, tradeNo string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("trade_no = ?", tradeNo).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListByCharacter pages through the ledger, newest first.
func (r *LedgerRepository) ListByCharacter(ctx context.Context, characterID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("character_id = ?", characterID).
		Session(&gorm.Session{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

func (r *LedgerRepository) DeleteByCharacter(ctx context.Context, tx *gorm.DB, characterID int64) error {
	return orDB(r.db, tx).WithContext(ctx).
		Where("character_id = ?", characterID).
		Delete(&model.LedgerEntry{}).Error
}
