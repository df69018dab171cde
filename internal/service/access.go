package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"itemsim/internal/config"
	"itemsim/internal/infrastructure/lock"
	"itemsim/internal/model"
	"itemsim/internal/repository"
	"itemsim/pkg/idgen"

	"gorm.io/gorm"
)

const msgNotOwner = "Unauthorized or Character not found"

// CharacterLocker serializes work on one character across instances.
// *lock.CharacterLocker satisfies it.
type CharacterLocker interface {
	LockCharacter(ctx context.Context, characterID int64, token string) (func(), error)
}

// authorizeOwner is the single ownership check for owner-only operations.
// A missing character is indistinguishable from a foreign one.
func authorizeOwner(character *model.Character, callerID int64) error {
	if character == nil || !character.OwnedBy(callerID) {
		return ForbiddenError(msgNotOwner)
	}
	return nil
}

// characterGuard runs owner-only mutations: ownership check, optional
// distributed lock, then a transaction holding the character row lock.
type characterGuard struct {
	db            *gorm.DB
	characterRepo *repository.CharacterRepository
	locker        CharacterLocker
}

func newCharacterGuard(db *gorm.DB, locker CharacterLocker) *characterGuard {
	return &characterGuard{
		db:            db,
		characterRepo: repository.NewCharacterRepository(db),
		locker:        locker,
	}
}

// loadOwned reads the character without locking and checks ownership.
func (g *characterGuard) loadOwned(ctx context.Context, characterID, callerID int64) (*model.Character, error) {
	character, err := g.characterRepo.GetByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, repository.ErrCharacterNotFound) {
			return nil, authorizeOwner(nil, callerID)
		}
		return nil, fmt.Errorf("load character: %w", err)
	}
	if err := authorizeOwner(character, callerID); err != nil {
		return nil, err
	}
	return character, nil
}

// mutate calls fn inside a transaction with the owned character row locked.
// The character handed to fn is the locked, current row.
func (g *characterGuard) mutate(ctx context.Context, characterID, callerID int64, fn func(tx *gorm.DB, character *model.Character) error) error {
	if _, err := g.loadOwned(ctx, characterID, callerID); err != nil {
		return err
	}

	if g.locker != nil {
		release, err := g.locker.LockCharacter(ctx, characterID, idgen.GenerateToken())
		if err != nil {
			if errors.Is(err, lock.ErrLockFailed) {
				return ConflictError("Character is busy, try again later")
			}
			return fmt.Errorf("lock character: %w", err)
		}
		defer release()
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		character, err := g.characterRepo.GetByIDForUpdate(ctx, tx, characterID)
		if err != nil {
			if errors.Is(err, repository.ErrCharacterNotFound) {
				return authorizeOwner(nil, callerID)
			}
			return fmt.Errorf("lock character row: %w", err)
		}
		if err := authorizeOwner(character, callerID); err != nil {
			return err
		}
		return fn(tx, character)
	})
}

// eventRecorder appends character events to the outbox when Kafka is
// configured; without brokers nothing would ever drain the table.
type eventRecorder struct {
	outboxRepo *repository.OutboxRepository
	topic      string
	enabled    bool
	now        func() time.Time
}

func newEventRecorder(db *gorm.DB, cfg *config.Config) *eventRecorder {
	return &eventRecorder{
		outboxRepo: repository.NewOutboxRepository(db),
		topic:      cfg.Kafka.Topic.CharacterEvents,
		enabled:    cfg.Kafka.Enabled(),
		now:        time.Now,
	}
}

func (r *eventRecorder) record(ctx context.Context, tx *gorm.DB, event model.CharacterEvent) error {
	if !r.enabled {
		return nil
	}
	event.OccurredAt = r.now().UTC()
	// keyed by character so one character's events stay ordered per partition
	key := strconv.FormatInt(event.CharacterID, 10)
	if err := r.outboxRepo.Enqueue(ctx, tx, r.topic, key, event); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}

// appendLedger records a money movement that was just applied in tx.
func appendLedger(ctx context.Context, tx *gorm.DB, repo *repository.LedgerRepository, character *model.Character, entryType string, amount int64, remark string) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{
		TradeNo:       idgen.GenerateTradeNo(),
		CharacterID:   character.ID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: character.Money,
		BalanceAfter:  character.Money + amount,
		Remark:        remark,
	}
	if err := repo.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("write ledger: %w", err)
	}
	return entry, nil
}

// operationResult is the metrics label for an operation outcome.
func operationResult(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
