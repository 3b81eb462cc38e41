package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ActivitySettleUp = "settlement"

// Activity records a settle-up between two team members. MemberID settled
// with CounterpartyID; Entries is how many ledger rows flipped.
type Activity struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID         uuid.UUID `gorm:"type:uuid;index" json:"team_id"`
	MemberID       uuid.UUID `gorm:"type:uuid" json:"member_id"`
	CounterpartyID uuid.UUID `gorm:"type:uuid" json:"counterparty_id"`
	Type           string    `gorm:"not null;size:30" json:"type"`
	Entries        int64     `json:"entries"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Type == "" {
		a.Type = ActivitySettleUp
	}
	return nil
}
