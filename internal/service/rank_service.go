package service

import (
	"context"
	"fmt"
	"sort"

	"itemsim/internal/repository"

	"gorm.io/gorm"
)

type PowerRank struct {
	Name  string `json:"name"`
	Power int64  `json:"power"`
}

type HealthRank struct {
	Name   string `json:"name"`
	Health int64  `json:"health"`
}

type ItemCountRank struct {
	Name       string `json:"name"`
	TotalCount int64  `json:"totalCount"`
}

// RankService builds leaderboards. Ties are broken by character id ascending.
type RankService struct {
	characterRepo *repository.CharacterRepository
	inventoryRepo *repository.InventoryRepository
	equipmentRepo *repository.EquipmentRepository
}

func NewRankService(db *gorm.DB) *RankService {
	return &RankService{
		characterRepo: repository.NewCharacterRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		equipmentRepo: repository.NewEquipmentRepository(db),
	}
}

func (s *RankService) RankByPower(ctx context.Context) ([]PowerRank, error) {
	characters, err := s.characterRepo.ListRankedBy(ctx, repository.RankByPower)
	if err != nil {
		return nil, fmt.Errorf("rank by power: %w", err)
	}

	ranks := make([]PowerRank, 0, len(characters))
	for _, c := range characters {
		ranks = append(ranks, PowerRank{Name: c.Name, Power: c.Power})
	}
	return ranks, nil
}

func (s *RankService) RankByHealth(ctx context.Context) ([]HealthRank, error) {
	characters, err := s.characterRepo.ListRankedBy(ctx, repository.RankByHealth)
	if err != nil {
		return nil, fmt.Errorf("rank by health: %w", err)
	}

	ranks := make([]HealthRank, 0, len(characters))
	for _, c := range characters {
		ranks = append(ranks, HealthRank{Name: c.Name, Health: c.Health})
	}
	return ranks, nil
}

// RankByItemCount ranks by inventory units plus equipped rows.
func (s *RankService) RankByItemCount(ctx context.Context) ([]ItemCountRank, error) {
	characters, err := s.characterRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	held, err := s.inventoryRepo.SumCountsByCharacter(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum inventory: %w", err)
	}
	worn, err := s.equipmentRepo.CountByCharacter(ctx)
	if err != nil {
		return nil, fmt.Errorf("count equipment: %w", err)
	}

	ranks := make([]ItemCountRank, 0, len(characters))
	for _, c := range characters {
		ranks = append(ranks, ItemCountRank{
			Name:       c.Name,
			TotalCount: held[c.ID] + worn[c.ID],
		})
	}

	// characters arrive in id order, so a stable sort keeps id as tie-break
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].TotalCount > ranks[j].TotalCount
	})
	return ranks, nil
}
