package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Team struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string       `gorm:"not null;size:100" json:"name"`
	Members   []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TeamMember is a roster row. JoinedAt fixes the roster order used by netting.
type TeamMember struct {
	TeamID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	MemberID uuid.UUID `gorm:"type:uuid;primaryKey" json:"member_id"`
	Member   Member    `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}
