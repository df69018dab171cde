package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"itemsim/internal/config"
	"itemsim/internal/metrics"
	"itemsim/internal/model"
	"itemsim/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxCharacterName = 64
	defaultPageSize  = 20
	maxPageSize      = 100
)

// CharacterView is the public shape of a character. Money is only set for
// the owner.
type CharacterView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Health int64  `json:"health"`
	Power  int64  `json:"power"`
	Money  *int64 `json:"money,omitempty"`
}

type InventoryView struct {
	ItemCode int64  `json:"itemCode"`
	ItemName string `json:"itemName"`
	Count    int64  `json:"count"`
}

type EquipmentView struct {
	ItemCode int64  `json:"itemCode"`
	ItemName string `json:"itemName"`
}

type LedgerPage struct {
	List     []*model.LedgerEntry `json:"list"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

type CharacterService struct {
	cfg           *config.Config
	guard         *characterGuard
	characterRepo *repository.CharacterRepository
	inventoryRepo *repository.InventoryRepository
	equipmentRepo *repository.EquipmentRepository
	ledgerRepo    *repository.LedgerRepository
	events        *eventRecorder
	log           *zap.Logger
}

func NewCharacterService(db *gorm.DB, cfg *config.Config, locker CharacterLocker, log *zap.Logger) *CharacterService {
	return &CharacterService{
		cfg:           cfg,
		guard:         newCharacterGuard(db, locker),
		characterRepo: repository.NewCharacterRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		equipmentRepo: repository.NewEquipmentRepository(db),
		ledgerRepo:    repository.NewLedgerRepository(db),
		events:        newEventRecorder(db, cfg),
		log:           log,
	}
}

// Create makes a character for callerID with the configured starting stats.
func (s *CharacterService) Create(ctx context.Context, callerID int64, name string) (*model.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError("Character name is required")
	}
	if utf8.RuneCountInString(name) > maxCharacterName {
		return nil, ValidationError("Character name must be at most %d characters long", maxCharacterName)
	}

	exists, err := s.characterRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check character name: %w", err)
	}
	if exists {
		return nil, ConflictError("Character name already taken")
	}

	character := &model.Character{
		Name:   name,
		UserID: callerID,
		Health: s.cfg.Game.StartingHealth,
		Power:  s.cfg.Game.StartingPower,
		Money:  s.cfg.Game.StartingMoney,
	}
	if err := s.characterRepo.Create(ctx, character); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ConflictError("Character name already taken")
		}
		return nil, fmt.Errorf("create character: %w", err)
	}

	s.log.Info("character created",
		zap.Int64("character_id", character.ID),
		zap.Int64("user_id", callerID),
	)
	return character, nil
}

// Delete removes the character together with its inventory, equipment
// and ledger.
func (s *CharacterService) Delete(ctx context.Context, characterID, callerID int64) error {
	err := s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		if err := s.inventoryRepo.DeleteByCharacter(ctx, tx, character.ID); err != nil {
			return fmt.Errorf("delete inventory: %w", err)
		}
		if err := s.equipmentRepo.DeleteByCharacter(ctx, tx, character.ID); err != nil {
			return fmt.Errorf("delete equipment: %w", err)
		}
		if err := s.ledgerRepo.DeleteByCharacter(ctx, tx, character.ID); err != nil {
			return fmt.Errorf("delete ledger: %w", err)
		}
		if err := s.characterRepo.Delete(ctx, tx, character.ID); err != nil {
			return fmt.Errorf("delete character: %w", err)
		}

		return s.events.record(ctx, tx, model.CharacterEvent{
			Type:        model.EventCharacterGone,
			CharacterID: character.ID,
			UserID:      character.UserID,
			Money:       character.Money,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("character deleted", zap.Int64("character_id", characterID), zap.Int64("user_id", callerID))
	return nil
}

// Details returns the character's stats. callerID is nil for anonymous
// callers; money is shown only to the owner.
func (s *CharacterService) Details(ctx context.Context, characterID int64, callerID *int64) (*CharacterView, error) {
	character, err := s.characterRepo.GetByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, repository.ErrCharacterNotFound) {
			return nil, NotFoundError("Character not found")
		}
		return nil, fmt.Errorf("load character: %w", err)
	}

	view := &CharacterView{
		ID:     character.ID,
		Name:   character.Name,
		Health: character.Health,
		Power:  character.Power,
	}
	if callerID != nil && character.OwnedBy(*callerID) {
		money := character.Money
		view.Money = &money
	}
	return view, nil
}

// Inventory lists the owner's bag ordered by item code.
func (s *CharacterService) Inventory(ctx context.Context, characterID, callerID int64) ([]InventoryView, error) {
	if _, err := s.guard.loadOwned(ctx, characterID, callerID); err != nil {
		return nil, err
	}

	entries, err := s.inventoryRepo.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	views := make([]InventoryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, InventoryView{
			ItemCode: entry.Item.ItemCode,
			ItemName: entry.Item.ItemName,
			Count:    entry.Count,
		})
	}
	return views, nil
}

// Equipment lists what the character wears, one row per unit. Public.
func (s *CharacterService) Equipment(ctx context.Context, characterID int64) ([]EquipmentView, error) {
	if _, err := s.characterRepo.GetByID(ctx, characterID); err != nil {
		if errors.Is(err, repository.ErrCharacterNotFound) {
			return nil, NotFoundError("Character not found")
		}
		return nil, fmt.Errorf("load character: %w", err)
	}

	equipped, err := s.equipmentRepo.ListByCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}

	views := make([]EquipmentView, 0, len(equipped))
	for _, e := range equipped {
		views = append(views, EquipmentView{
			ItemCode: e.Item.ItemCode,
			ItemName: e.Item.ItemName,
		})
	}
	return views, nil
}

// Mine credits the configured reward and returns the new balance.
func (s *CharacterService) Mine(ctx context.Context, characterID, callerID int64) (int64, error) {
	reward := s.cfg.Game.MiningReward

	var money int64
	err := s.guard.mutate(ctx, characterID, callerID, func(tx *gorm.DB, character *model.Character) error {
		if character.Money > math.MaxInt64-reward {
			return ConflictError("Money is already at its maximum")
		}
		if err := s.characterRepo.Increase(ctx, tx, character.ID, reward); err != nil {
			return fmt.Errorf("credit money: %w", err)
		}

		entry, err := appendLedger(ctx, tx, s.ledgerRepo, character, model.LedgerTypeMining, reward, "mining")
		if err != nil {
			return err
		}
		money = entry.BalanceAfter

		return s.events.record(ctx, tx, model.CharacterEvent{
			Type:        model.EventMoneyMined,
			CharacterID: character.ID,
			UserID:      character.UserID,
			Money:       money,
		})
	})

	metrics.RecordOperation("mining", operationResult(err))
	if err != nil {
		return 0, err
	}
	metrics.RecordMoney("mining", reward)

	s.log.Debug("money mined", zap.Int64("character_id", characterID), zap.Int64("money", money))
	return money, nil
}

// Ledger pages through the owner's money movements, newest first.
func (s *CharacterService) Ledger(ctx context.Context, characterID, callerID int64, page, pageSize int) (*LedgerPage, error) {
	if _, err := s.guard.loadOwned(ctx, characterID, callerID); err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, total, err := s.ledgerRepo.ListByCharacter(ctx, characterID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}

	return &LedgerPage{
		List:     entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
