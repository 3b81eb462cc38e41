package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement records that Settler owes Payer Amount for one expense.
type Settlement struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	IsSettled bool            `gorm:"not null;default:false" json:"is_settled"`
	SettlerID uuid.UUID       `gorm:"type:uuid;not null;index:idx_settler" json:"settler_id"`
	Settler   Member          `gorm:"foreignKey:SettlerID" json:"-"`
	PayerID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_payer" json:"payer_id"`
	Payer     Member          `gorm:"foreignKey:PayerID" json:"-"`
	ExpenseID uuid.UUID       `gorm:"type:uuid;not null;index:idx_expense" json:"expense_id"`
	Expense   Expense         `gorm:"foreignKey:ExpenseID" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Request structs
type CreateSettlementRequest struct {
	SettlerID string          `json:"settler_id" binding:"required"`
	PayerID   string          `json:"payer_id" binding:"required"`
	ExpenseID string          `json:"expense_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// CreateExpenseSettlementsRequest splits an expense evenly across SettlerIDs.
type CreateExpenseSettlementsRequest struct {
	PayerID    string   `json:"payer_id" binding:"required"`
	SettlerIDs []string `json:"settler_ids" binding:"required,min=1"`
}

// UpdateSettlementRequest is a partial update: nil fields are left unchanged.
type UpdateSettlementRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	SettlerID *uuid.UUID       `json:"settler_id"`
	PayerID   *uuid.UUID       `json:"payer_id"`
	ExpenseID *uuid.UUID       `json:"expense_id"`
	IsSettled *bool            `json:"is_settled"`
}

type SettleBetweenRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// SettlementFilter narrows a team listing. Every set field must match.
type SettlementFilter struct {
	PayerID   *uuid.UUID
	SettlerID *uuid.UUID
	ExpenseID *uuid.UUID
	IsSettled *bool
}

// Response
type SettlementResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Amount             decimal.Decimal `json:"amount"`
	IsSettled          bool            `json:"is_settled"`
	SettlerID          uuid.UUID       `json:"settler_id"`
	SettlerNickname    string          `json:"settler_nickname"`
	PayerID            uuid.UUID       `json:"payer_id"`
	PayerNickname      string          `json:"payer_nickname"`
	ExpenseID          uuid.UUID       `json:"expense_id"`
	ExpenseDescription string          `json:"expense_description"`
	TeamID             uuid.UUID       `json:"team_id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ToResponse expects Settler, Payer and Expense to be preloaded.
func (s *Settlement) ToResponse() SettlementResponse {
	return SettlementResponse{
		ID:                 s.ID,
		Amount:             s.Amount,
		IsSettled:          s.IsSettled,
		SettlerID:          s.SettlerID,
		SettlerNickname:    s.Settler.Nickname,
		PayerID:            s.PayerID,
		PayerNickname:      s.Payer.Nickname,
		ExpenseID:          s.ExpenseID,
		ExpenseDescription: s.Expense.Description,
		TeamID:             s.Expense.TeamID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}
