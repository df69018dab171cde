package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"itemsim/internal/config"
	"itemsim/internal/metrics"
	"itemsim/internal/model"
	"itemsim/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TradeLine asks for count units of the item with ItemCode.
type TradeLine struct {
	ItemCode int64 `json:"itemCode" binding:"required"`
	Count    int64 `json:"count" binding:"required"`
}

// TradeReceipt describes a completed purchase or sale.
type TradeReceipt struct {
	TradeNo string `json:"tradeNo"`
	Total   int64  `json:"total"`
	Money   int64  `json:"money"`
}

type TradeService struct {
	cfg           *config.Config
	guard         *characterGuard
	itemRepo      *repository.ItemRepository
	inventoryRepo *repository.InventoryRepository
	characterRepo *repository.CharacterRepository
	ledgerRepo    *repository.LedgerRepository
	events        *eventRecorder
	log           *zap.Logger
}

// NewTradeService builds the trading engine. locker may be nil, in which
// case the character row lock alone serializes trades.
func NewTradeService(db *gorm.DB, cfg *config.Config, locker CharacterLocker, log *zap.Logger) *TradeService {
	return &TradeService{
		cfg:           cfg,
		guard:         newCharacterGuard(db, locker),
		itemRepo:      repository.NewItemRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		characterRepo: repository.NewCharacterRepository(db),
		ledgerRepo:    repository.NewLedgerRepository(db),
		events:        newEventRecorder(db, cfg),
		log:           log,
	}
}

// Purchase buys every line or nothing. The balance is checked against the
// locked character row so concurrent trades cannot overdraw it.
func (s *TradeService) Purchase(ctx context.Context, characterID, callerID int64, lines []TradeLine) (*TradeReceipt, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	var receipt *TradeReceipt
	err = s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		items, err := s.lookupItems(ctx, tx, merged)
		if err != nil {
			return err
		}

		var totalCost int64
		for _, line := range merged {
			var ok bool
			totalCost, ok = addProduct(totalCost, items[line.ItemCode].ItemPrice, line.Count)
			if !ok {
				return ValidationError("Purchase total is too large")
			}
		}

		if character.Money < totalCost {
			return InsufficientFundsError("Not enough money")
		}

		for _, line := range merged {
			if err := s.inventoryRepo.Add(ctx, tx, character.ID, items[line.ItemCode].ID, line.Count); err != nil {
				return fmt.Errorf("add to inventory: %w", err)
			}
		}

		if err := s.characterRepo.Deduct(ctx, tx, character.ID, totalCost); err != nil {
			if errors.Is(err, repository.ErrMoneyNotEnough) {
				return InsufficientFundsError("Not enough money")
			}
			return fmt.Errorf("deduct money: %w", err)
		}

		receipt, err = s.settle(ctx, tx, character, model.LedgerTypePurchase, -totalCost, merged)
		return err
	})

	metrics.RecordOperation("purchase", operationResult(err))
	if err != nil {
		return nil, err
	}
	metrics.RecordMoney("purchase", receipt.Total)

	s.log.Info("items purchased",
		zap.Int64("character_id", characterID),
		zap.String("trade_no", receipt.TradeNo),
		zap.Int64("total", receipt.Total),
		zap.Int64("money", receipt.Money),
	)
	return receipt, nil
}

// Sell sells every line or nothing at the configured share of the catalog price.
func (s *TradeService) Sell(ctx context.Context, characterID, callerID int64, lines []TradeLine) (*TradeReceipt, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	var receipt *TradeReceipt
	err = s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		items, err := s.lookupItems(ctx, tx, merged)
		if err != nil {
			return err
		}

		var totalValue int64
		for _, line := range merged {
			item := items[line.ItemCode]
			entry, err := s.inventoryRepo.Get(ctx, tx, character.ID, item.ID)
			if err != nil && !errors.Is(err, repository.ErrInventoryNotFound) {
				return fmt.Errorf("load inventory: %w", err)
			}
			if entry == nil || entry.Count < line.Count {
				return InsufficientInventoryError("Not enough items to sell")
			}

			var ok bool
			totalValue, ok = addProduct(totalValue, SellValue(item.ItemPrice, s.cfg.Game.SellPercent), line.Count)
			if !ok {
				return ValidationError("Sale total is too large")
			}
		}
		if character.Money > math.MaxInt64-totalValue {
			return ValidationError("Sale total is too large")
		}

		for _, line := range merged {
			if err := s.inventoryRepo.Remove(ctx, tx, character.ID, items[line.ItemCode].ID, line.Count); err != nil {
				if errors.Is(err, repository.ErrInventoryNotEnough) || errors.Is(err, repository.ErrInventoryNotFound) {
					return InsufficientInventoryError("Not enough items to sell")
				}
				return fmt.Errorf("remove from inventory: %w", err)
			}
		}

		if err := s.characterRepo.Increase(ctx, tx, character.ID, totalValue); err != nil {
			return fmt.Errorf("credit money: %w", err)
		}

		receipt, err = s.settle(ctx, tx, character, model.LedgerTypeSell, totalValue, merged)
		return err
	})

	metrics.RecordOperation("sell", operationResult(err))
	if err != nil {
		return nil, err
	}
	metrics.RecordMoney("sell", receipt.Total)

	s.log.Info("items sold",
		zap.Int64("character_id", characterID),
		zap.String("trade_no", receipt.TradeNo),
		zap.Int64("total", receipt.Total),
		zap.Int64("money", receipt.Money),
	)
	return receipt, nil
}

// SellValue is the per-unit price paid back: floor(price * percent / 100).
func SellValue(price, percent int64) int64 {
	// split to keep price*percent from overflowing
	return price/100*percent + price%100*percent/100
}

func (s *TradeService) lookupItems(ctx context.Context, tx *gorm.DB, lines []TradeLine) (map[int64]*model.Item, error) {
	codes := make([]int64, 0, len(lines))
	for _, line := range lines {
		codes = append(codes, line.ItemCode)
	}

	items, err := s.itemRepo.GetByCodes(ctx, tx, codes)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, line := range lines {
		if _, ok := items[line.ItemCode]; !ok {
			return nil, NotFoundError("Item not found with code %d", line.ItemCode)
		}
	}
	return items, nil
}

// settle writes the ledger row and outbox event for a trade that moved
// amount (signed) of the character's money.
func (s *TradeService) settle(ctx context.Context, tx *gorm.DB, character *model.Character, ledgerType string, amount int64, lines []TradeLine) (*TradeReceipt, error) {
	eventType := model.EventItemsPurchased
	remark := "purchase"
	if ledgerType == model.LedgerTypeSell {
		eventType = model.EventItemsSold
		remark = "sell"
	}
	remark = fmt.Sprintf("%s %d line(s)", remark, len(lines))

	entry, err := appendLedger(ctx, tx, s.ledgerRepo, character, ledgerType, amount, remark)
	if err != nil {
		return nil, err
	}

	eventItems := make([]model.EventItem, 0, len(lines))
	for _, line := range lines {
		eventItems = append(eventItems, model.EventItem{ItemCode: line.ItemCode, Count: line.Count})
	}
	err = s.events.record(ctx, tx, model.CharacterEvent{
		Type:        eventType,
		CharacterID: character.ID,
		UserID:      character.UserID,
		Money:       entry.BalanceAfter,
		Items:       eventItems,
	})
	if err != nil {
		return nil, err
	}

	total := amount
	if total < 0 {
		total = -total
	}
	return &TradeReceipt{
		TradeNo: entry.TradeNo,
		Total:   total,
		Money:   entry.BalanceAfter,
	}, nil
}

// mergeLines validates the request and folds repeated item codes into one
// line, keeping first-seen order.
func mergeLines(lines []TradeLine) ([]TradeLine, error) {
	if len(lines) == 0 {
		return nil, ValidationError("Check your input data")
	}

	index := make(map[int64]int, len(lines))
	merged := make([]TradeLine, 0, len(lines))
	for _, line := range lines {
		if line.Count <= 0 {
			return nil, ValidationError("Item count must be positive for item code %d", line.ItemCode)
		}
		i, seen := index[line.ItemCode]
		if !seen {
			index[line.ItemCode] = len(merged)
			merged = append(merged, line)
			continue
		}
		if merged[i].Count > math.MaxInt64-line.Count {
			return nil, ValidationError("Item count is too large for item code %d", line.ItemCode)
		}
		merged[i].Count += line.Count
	}
	return merged, nil
}

// addProduct returns total + price*count, or false on int64 overflow.
func addProduct(total, price, count int64) (int64, bool) {
	if price == 0 || count == 0 {
		return total, true
	}
	if price > (math.MaxInt64-total)/count {
		return 0, false
	}
	return total + price*count, true
}
