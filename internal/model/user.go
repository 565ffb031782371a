package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a lockable anchor for an implicit single-currency account.
// It carries no balance and no version column; balances are always
// derived from the LedgerEntry log.
type User struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid"`
	Email     string    `gorm:"size:256;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
