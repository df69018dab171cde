package repository

import (
	"context"

	"itemsim/internal/model"

	"gorm.io/gorm"
)

type CharacterRepository struct {
	db *gorm.DB
}

func NewCharacterRepository(db *gorm.DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func (r *CharacterRepository) Create(ctx context.Context, character *model.Character) error {
	return duplicate(r.db.WithContext(ctx).Create(character).Error)
}

func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*model.Character, error) {
	var character model.Character
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&character).Error
	if err != nil {
		return nil, notFound(err, ErrCharacterNotFound)
	}
	return &character, nil
}

func (r *CharacterRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Character{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

// GetByIDForUpdate loads the character and holds its row lock until tx ends.
func (r *CharacterRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Character, error) {
	var character model.Character
	err := forUpdate(tx.WithContext(ctx)).
		Where("id = ?", id).
		First(&character).Error
	if err != nil {
		return nil, notFound(err, ErrCharacterNotFound)
	}
	return &character, nil
}

// Deduct lowers money by amount only if the balance covers it.
func (r *CharacterRepository) Deduct(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := orDB(r.db, tx).WithContext(ctx).
		Model(&model.Character{}).
		Where("id = ? AND money >= ?", id, amount).
		Update("money", gorm.Expr("money - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMoneyNotEnough
	}
	return nil
}

func (r *CharacterRepository) Increase(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := orDB(r.db, tx).WithContext(ctx).
		Model(&model.Character{}).
		Where("id = ?", id).
		Update("money", gorm.Expr("money + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// AdjustStats adds the given deltas to power and health.
func (r *CharacterRepository) AdjustStats(ctx context.Context, tx *gorm.DB, id int64, powerDelta, healthDelta int64) error {
	result := orDB(r.db, tx).WithContext(ctx).
		Model(&model.Character{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"power":  gorm.Expr("power + ?", powerDelta),
			"health": gorm.Expr("health + ?", healthDelta),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

func (r *CharacterRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return orDB(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Character{}).Error
}

// RankColumn is a character column a leaderboard can sort on.
type RankColumn string

const (
	RankByPower  RankColumn = "power"
	RankByHealth RankColumn = "health"
)

// ListRankedBy returns all characters ordered by column descending, ties by id.
func (r *CharacterRepository) ListRankedBy(ctx context.Context, column RankColumn) ([]*model.Character, error) {
	var characters []*model.Character
	err := r.db.WithContext(ctx).
		Order(string(column) + " DESC").
		Order("id ASC").
		Find(&characters).Error
	return characters, err
}

// ListAll returns every character ordered by id.
func (r *CharacterRepository) ListAll(ctx context.Context) ([]*model.Character, error) {
	var characters []*model.Character
	err := r.db.WithContext(ctx).Order("id ASC").Find(&characters).Error
	return characters, err
}
