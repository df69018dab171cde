package service

import (
	"context"
	"errors"
	"fmt"

	"itemsim/internal/config"
	"itemsim/internal/metrics"
	"itemsim/internal/model"
	"itemsim/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EquipmentService moves items between a character's bag and its worn set.
type EquipmentService struct {
	guard         *characterGuard
	itemRepo      *repository.ItemRepository
	inventoryRepo *repository.InventoryRepository
	equipmentRepo *repository.EquipmentRepository
	characterRepo *repository.CharacterRepository
	events        *eventRecorder
	log           *zap.Logger
}

func NewEquipmentService(db *gorm.DB, cfg *config.Config, locker CharacterLocker, log *zap.Logger) *EquipmentService {
	return &EquipmentService{
		guard:         newCharacterGuard(db, locker),
		itemRepo:      repository.NewItemRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		equipmentRepo: repository.NewEquipmentRepository(db),
		characterRepo: repository.NewCharacterRepository(db),
		events:        newEventRecorder(db, cfg),
		log:           log,
	}
}

// Equip takes one unit out of the bag and wears it, adding the item's
// attack to power and defense to health. Returns the updated character.
func (s *EquipmentService) Equip(ctx context.Context, characterID, callerID, itemCode int64) (*model.Character, error) {
	var updated *model.Character
	err := s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		item, err := s.loadItem(ctx, tx, itemCode)
		if err != nil {
			return err
		}

		if err := s.inventoryRepo.Remove(ctx, tx, character.ID, item.ID, 1); err != nil {
			if errors.Is(err, repository.ErrInventoryNotFound) {
				return NotFoundError("Item not in inventory")
			}
			return fmt.Errorf("take from inventory: %w", err)
		}

		equipped := &model.EquippedItem{
			CharacterID:  character.ID,
			ItemID:       item.ID,
			AttackBonus:  item.ItemStat.AttackValue(),
			DefenseBonus: item.ItemStat.DefenseValue(),
		}
		if err := s.equipmentRepo.Create(ctx, tx, equipped); err != nil {
			return fmt.Errorf("create equipped item: %w", err)
		}

		if err := s.characterRepo.AdjustStats(ctx, tx, character.ID, equipped.AttackBonus, equipped.DefenseBonus); err != nil {
			return fmt.Errorf("adjust stats: %w", err)
		}

		character.Power += equipped.AttackBonus
		character.Health += equipped.DefenseBonus
		updated = character

		return s.events.record(ctx, tx, model.CharacterEvent{
			Type:        model.EventItemEquipped,
			CharacterID: character.ID,
			UserID:      character.UserID,
			Money:       character.Money,
			Items:       []model.EventItem{{ItemCode: itemCode, Count: 1}},
		})
	})

	metrics.RecordOperation("equip", operationResult(err))
	if err != nil {
		return nil, err
	}

	s.log.Info("item equipped",
		zap.Int64("character_id", characterID),
		zap.Int64("item_code", itemCode),
	)
	return updated, nil
}

// Unequip returns one worn unit to the bag and removes exactly the bonuses
// that were applied when it was equipped.
func (s *EquipmentService) Unequip(ctx context.Context, characterID, callerID, itemCode int64) (*model.Character, error) {
	var updated *model.Character
	err := s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		item, err := s.loadItem(ctx, tx, itemCode)
		if err != nil {
			return err
		}

		equipped, err := s.equipmentRepo.First(ctx, tx, character.ID, item.ID)
		if err != nil {
			if errors.Is(err, repository.ErrEquippedNotFound) {
				return NotFoundError("Item not equipped")
			}
			return fmt.Errorf("load equipped item: %w", err)
		}

		if err := s.equipmentRepo.Delete(ctx, tx, equipped.ID); err != nil {
			return fmt.Errorf("delete equipped item: %w", err)
		}

		if err := s.inventoryRepo.Add(ctx, tx, character.ID, item.ID, 1); err != nil {
			return fmt.Errorf("return to inventory: %w", err)
		}

		if err := s.characterRepo.AdjustStats(ctx, tx, character.ID, -equipped.AttackBonus, -equipped.DefenseBonus); err != nil {
			return fmt.Errorf("adjust stats: %w", err)
		}

		character.Power -= equipped.AttackBonus
		character.Health -= equipped.DefenseBonus
		updated = character

		return s.events.record(ctx, tx, model.CharacterEvent{
			Type:        model.EventItemUnequipped,
			CharacterID: character.ID,
			UserID:      character.UserID,
			Money:       character.Money,
			Items:       []model.EventItem{{ItemCode: itemCode, Count: 1}},
		})
	})

	metrics.RecordOperation("unequip", operationResult(err))
	if err != nil {
		return nil, err
	}

	s.log.Info("item unequipped",
		zap.Int64("character_id", characterID),
		zap.Int64("item_code", itemCode),
	)
	return updated, nil
}

func (s *EquipmentService) loadItem(ctx context.Context, tx *gorm.DB, itemCode int64) (*model.Item, error) {
	item, err := s.itemRepo.GetByCode(ctx, tx, itemCode)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, NotFoundError("Item not found")
		}
		return nil, fmt.Errorf("load item: %w", err)
	}
	return item, nil
}
