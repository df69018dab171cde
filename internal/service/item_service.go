package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"itemsim/internal/model"
	"itemsim/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxItemName = 128

// ItemSummary is a catalog row as listed, without stats.
type ItemSummary struct {
	ItemCode  int64  `json:"itemCode"`
	ItemName  string `json:"itemName"`
	ItemPrice int64  `json:"itemPrice"`
}

type ItemService struct {
	itemRepo *repository.ItemRepository
	log      *zap.Logger
}

func NewItemService(db *gorm.DB, log *zap.Logger) *ItemService {
	return &ItemService{
		itemRepo: repository.NewItemRepository(db),
		log:      log,
	}
}

func (s *ItemService) Create(ctx context.Context, itemCode int64, itemName string, itemStat model.ItemStat, itemPrice int64) (*model.Item, error) {
	itemName = strings.TrimSpace(itemName)
	if itemCode <= 0 || itemName == "" || itemPrice < 0 {
		return nil, ValidationError("Check your input data")
	}
	if utf8.RuneCountInString(itemName) > maxItemName {
		return nil, ValidationError("Item name must be at most %d characters long", maxItemName)
	}

	item := &model.Item{
		ItemCode:  itemCode,
		ItemName:  itemName,
		ItemStat:  itemStat,
		ItemPrice: itemPrice,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ConflictError("Item code already exists")
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.log.Info("item created", zap.Int64("item_code", itemCode), zap.String("item_name", itemName))
	return item, nil
}

func (s *ItemService) List(ctx context.Context) ([]ItemSummary, error) {
	items, err := s.itemRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, ItemSummary{
			ItemCode:  item.ItemCode,
			ItemName:  item.ItemName,
			ItemPrice: item.ItemPrice,
		})
	}
	return summaries, nil
}

func (s *ItemService) Get(ctx context.Context, itemCode int64) (*model.Item, error) {
	item, err := s.itemRepo.GetByCode(ctx, nil, itemCode)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, NotFoundError("Item not found")
		}
		return nil, fmt.Errorf("load item: %w", err)
	}
	return item, nil
}

// Update changes the name and/or stats of an item. The price cannot be
// changed here.
func (s *ItemService) Update(ctx context.Context, itemCode int64, itemName *string, itemStat *model.ItemStat) (*model.Item, error) {
	if itemName == nil && itemStat == nil {
		return nil, ValidationError("Check your input data")
	}

	patch := repository.ItemPatch{ItemStat: itemStat}
	if itemName != nil {
		name := strings.TrimSpace(*itemName)
		if name == "" {
			return nil, ValidationError("Check your input data")
		}
		if utf8.RuneCountInString(name) > maxItemName {
			return nil, ValidationError("Item name must be at most %d characters long", maxItemName)
		}
		patch.ItemName = &name
	}

	item, err := s.itemRepo.UpdateByCode(ctx, itemCode, patch)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, NotFoundError("Item not found")
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	s.log.Info("item updated", zap.Int64("item_code", itemCode))
	return item, nil
}
