package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrCharacterNotFound   = errors.New("character not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrInventoryNotFound   = errors.New("item not in inventory")
	ErrInventoryNotEnough  = errors.New("not enough items in inventory")
	ErrEquippedNotFound    = errors.New("item not equipped")
	ErrLedgerNotFound      = errors.New("ledger entry not found")
	ErrMoneyNotEnough      = errors.New("not enough money")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
)

// orDB runs outside a transaction when tx is nil.
func orDB(db, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks; its
// writers already serialize on the database file.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}
