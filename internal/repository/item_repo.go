package repository

import (
	"context"

	"itemsim/internal/model"

	"gorm.io/gorm"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *model.Item) error {
	return duplicate(r.db.WithContext(ctx).Create(item).Error)
}

// GetByCode looks the item up by its business key, inside tx when given.
func (r *ItemRepository) GetByCode(ctx context.Context, tx *gorm.DB, itemCode int64) (*model.Item, error) {
	var item model.Item
	err := orDB(r.db, tx).WithContext(ctx).Where("item_code = ?", itemCode).First(&item).Error
	if err != nil {
		return nil, notFound(err, ErrItemNotFound)
	}
	return &item, nil
}

// GetByCodes returns the items found for codes keyed by code; missing codes are absent.
func (r *ItemRepository) GetByCodes(ctx context.Context, tx *gorm.DB, codes []int64) (map[int64]*model.Item, error) {
	var items []*model.Item
	if len(codes) > 0 {
		err := orDB(r.db, tx).WithContext(ctx).Where("item_code IN ?", codes).Find(&items).Error
		if err != nil {
			return nil, err
		}
	}

	byCode := make(map[int64]*model.Item, len(items))
	for _, item := range items {
		byCode[item.ItemCode] = item
	}
	return byCode, nil
}

func (r *ItemRepository) List(ctx context.Context) ([]*model.Item, error) {
	var items []*model.Item
	err := r.db.WithContext(ctx).Order("item_code ASC").Find(&items).Error
	return items, err
}

// ItemPatch lists the catalog fields an update may touch; nil leaves a field as is.
type ItemPatch struct {
	ItemName *string
	ItemStat *model.ItemStat
}

// UpdateByCode applies patch to the item and returns the fresh row.
func (r *ItemRepository) UpdateByCode(ctx context.Context, itemCode int64, patch ItemPatch) (*model.Item, error) {
	var columns []string
	var values model.Item
	if patch.ItemName != nil {
		columns = append(columns, "ItemName")
		values.ItemName = *patch.ItemName
	}
	if patch.ItemStat != nil {
		columns = append(columns, "ItemStat")
		values.ItemStat = *patch.ItemStat
	}

	var item *model.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := r.GetByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if len(columns) > 0 {
			if err := tx.Model(found).Select(columns).Updates(&values).Error; err != nil {
				return err
			}
		}
		item, err = r.GetByCode(ctx, tx, itemCode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
