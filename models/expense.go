package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is owned by the expense module; settlements only read it to reach
// the team and to split its amount.
type Expense struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"team_id"`
	Team        Team            `gorm:"foreignKey:TeamID" json:"-"`
	PayerID     uuid.UUID       `gorm:"type:uuid;not null" json:"payer_id"`
	Description string          `gorm:"not null;size:255" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
