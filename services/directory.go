package services

import (
	"context"
	"errors"
	"fmt"

	"tripsplit-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory answers roster questions about teams and members.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// MemberIDs returns the team roster ordered by join time, then member id.
func (d *Directory) MemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := d.Team(ctx, teamID); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err := d.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Order("member_id ASC").
		Pluck("member_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("loading roster for team %s: %w", teamID, err)
	}
	return ids, nil
}

func (d *Directory) IsMember(ctx context.Context, teamID, memberID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ? AND member_id = ?", teamID, memberID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return count > 0, nil
}

func (d *Directory) Team(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := d.db.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
		}
		return nil, fmt.Errorf("loading team %s: %w", teamID, err)
	}
	return &team, nil
}

func (d *Directory) Member(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := d.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
		}
		return nil, fmt.Errorf("loading member %s: %w", memberID, err)
	}
	return &member, nil
}

// ExpenseTeam returns the id of the team an expense belongs to.
func (d *Directory) ExpenseTeam(ctx context.Context, expenseID uuid.UUID) (uuid.UUID, error) {
	var expense models.Expense
	if err := d.db.WithContext(ctx).Select("id", "team_id").First(&expense, "id = ?", expenseID).Error; err != nil {
		return uuid.Nil, notFound(err, ErrExpenseNotFound, expenseID)
	}
	return expense.TeamID, nil
}
