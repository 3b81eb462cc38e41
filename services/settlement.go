package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tripsplit-backend/metrics"
	"tripsplit-backend/models"
	"tripsplit-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultStreamBatch = 100

// SettlementService owns the settlement ledger: per-entry CRUD, team netting
// and settling every entry between two members.
type SettlementService struct {
	db        *gorm.DB
	directory *Directory
	events    EventPublisher
	notifier  Notifier
	log       *slog.Logger
	batchSize int
}

type Option func(*SettlementService)

func WithEvents(p EventPublisher) Option {
	return func(s *SettlementService) { s.events = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *SettlementService) { s.notifier = n }
}

// WithStreamBatch sets how many entries StreamByTeam loads per query.
func WithStreamBatch(size int) Option {
	return func(s *SettlementService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

func NewSettlementService(db *gorm.DB, directory *Directory, logger *slog.Logger, opts ...Option) *SettlementService {
	s := &SettlementService{
		db:        db,
		directory: directory,
		events:    nopPublisher{},
		log:       logger.With("component", "settlements"),
		batchSize: defaultStreamBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inTeam restricts a settlements query to entries whose expense belongs to teamID.
func inTeam(teamID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		expenses := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Expense{}).
			Select("id").
			Where("team_id = ?", teamID)
		return tx.Where("expense_id IN (?)", expenses)
	}
}

func withFilter(f models.SettlementFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if f.PayerID != nil {
			tx = tx.Where("payer_id = ?", *f.PayerID)
		}
		if f.SettlerID != nil {
			tx = tx.Where("settler_id = ?", *f.SettlerID)
		}
		if f.ExpenseID != nil {
			tx = tx.Where("expense_id = ?", *f.ExpenseID)
		}
		if f.IsSettled != nil {
			tx = tx.Where("is_settled = ?", *f.IsSettled)
		}
		return tx
	}
}

func withParties(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Settler").Preload("Payer").Preload("Expense")
}

// Create records that settlerID owes payerID amount for expenseID.
func (s *SettlementService) Create(ctx context.Context, settlerID, payerID, expenseID uuid.UUID, amount decimal.Decimal) (*models.Settlement, error) {
	if settlerID == payerID {
		return nil, ErrInvalidObligation
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	db := s.db.WithContext(ctx)
	if err := requireMember(db, settlerID); err != nil {
		return nil, err
	}
	if err := requireMember(db, payerID); err != nil {
		return nil, err
	}
	expense, err := findExpense(db, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOnTeam(ctx, expense.TeamID, settlerID, payerID); err != nil {
		return nil, err
	}

	settlement := models.Settlement{
		SettlerID: settlerID,
		PayerID:   payerID,
		ExpenseID: expenseID,
		Amount:    amount,
	}
	if err := db.Create(&settlement).Error; err != nil {
		return nil, fmt.Errorf("creating settlement: %w", err)
	}

	metrics.LedgerMutations.WithLabelValues("create").Inc()
	s.log.Info("settlement created", "id", settlement.ID, "settler", settlerID, "payer", payerID, "amount", settlement.Amount)
	s.publish(ctx, SettlementEvent{Type: EventCreated, TeamID: expense.TeamID, Entries: 1})
	return s.FindByID(ctx, settlement.ID)
}

// CreateForExpense splits the expense amount evenly across settlerIDs and
// records one entry for every settler other than the payer. Shares are
// rounded half-up to two places.
func (s *SettlementService) CreateForExpense(ctx context.Context, expenseID, payerID uuid.UUID, settlerIDs []uuid.UUID) ([]models.Settlement, error) {
	if len(settlerIDs) == 0 {
		return nil, fmt.Errorf("%w: no settlers given", ErrInvalidObligation)
	}

	db := s.db.WithContext(ctx)
	expense, err := findExpense(db, expenseID)
	if err != nil {
		return nil, err
	}
	if !expense.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	roster, err := s.directory.MemberIDs(ctx, expense.TeamID)
	if err != nil {
		return nil, err
	}
	onTeam := make(map[uuid.UUID]bool, len(roster))
	for _, id := range roster {
		onTeam[id] = true
	}
	for _, id := range append([]uuid.UUID{payerID}, settlerIDs...) {
		if !onTeam[id] {
			return nil, fmt.Errorf("%w: %s", ErrNotTeamMember, id)
		}
	}

	share := expense.Amount.DivRound(decimal.NewFromInt(int64(len(settlerIDs))), 2)
	if !share.IsPositive() {
		return nil, fmt.Errorf("%w: share of %s rounds to %s", ErrInvalidAmount, expense.Amount, share)
	}

	settlements := []models.Settlement{}
	for _, settlerID := range settlerIDs {
		if settlerID == payerID {
			continue
		}
		settlements = append(settlements, models.Settlement{
			SettlerID: settlerID,
			PayerID:   payerID,
			ExpenseID: expense.ID,
			Amount:    share,
		})
	}
	if len(settlements) == 0 {
		return settlements, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&settlements).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating settlements for expense %s: %w", expenseID, err)
	}

	metrics.LedgerMutations.WithLabelValues("create").Add(float64(len(settlements)))
	s.log.Info("expense split into settlements", "expense", expenseID, "entries", len(settlements), "share", share)
	s.publish(ctx, SettlementEvent{Type: EventCreated, TeamID: expense.TeamID, Entries: int64(len(settlements))})
	return settlements, nil
}

// Update applies every non-nil field of req. Referenced members and expense
// must exist, and the resulting settler and payer must be on the expense's team.
func (s *SettlementService) Update(ctx context.Context, id uuid.UUID, req models.UpdateSettlementRequest) (*models.Settlement, error) {
	db := s.db.WithContext(ctx)

	var settlement models.Settlement
	if err := db.First(&settlement, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSettlementNotFound, id)
	}

	updates := map[string]interface{}{}
	if req.Amount != nil {
		amount := req.Amount.Round(2)
		if !amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		updates["amount"] = amount
	}
	if req.SettlerID != nil {
		if err := requireMember(db, *req.SettlerID); err != nil {
			return nil, err
		}
		updates["settler_id"] = *req.SettlerID
	}
	if req.PayerID != nil {
		if err := requireMember(db, *req.PayerID); err != nil {
			return nil, err
		}
		updates["payer_id"] = *req.PayerID
	}
	expenseID := settlement.ExpenseID
	if req.ExpenseID != nil {
		expenseID = *req.ExpenseID
		updates["expense_id"] = expenseID
	}
	if req.IsSettled != nil {
		updates["is_settled"] = *req.IsSettled
	}

	if req.SettlerID != nil || req.PayerID != nil || req.ExpenseID != nil {
		expense, err := findExpense(db, expenseID)
		if err != nil {
			return nil, err
		}
		settlerID, payerID := settlement.SettlerID, settlement.PayerID
		if req.SettlerID != nil {
			settlerID = *req.SettlerID
		}
		if req.PayerID != nil {
			payerID = *req.PayerID
		}
		if err := s.requireOnTeam(ctx, expense.TeamID, settlerID, payerID); err != nil {
			return nil, err
		}
	}

	if len(updates) == 0 {
		return s.FindByID(ctx, id)
	}

	if err := db.Model(&settlement).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating settlement %s: %w", id, err)
	}
	metrics.LedgerMutations.WithLabelValues("update").Inc()
	s.log.Info("settlement updated", "id", id, "fields", len(updates))

	updated, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SettlementEvent{Type: EventUpdated, TeamID: updated.Expense.TeamID, Entries: 1})
	return updated, nil
}

// Settle marks one entry as paid. Settling a paid entry is a no-op.
func (s *SettlementService) Settle(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	db := s.db.WithContext(ctx)

	var settlement models.Settlement
	if err := db.First(&settlement, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSettlementNotFound, id)
	}

	if settlement.IsSettled {
		return s.FindByID(ctx, id)
	}

	if err := db.Model(&settlement).Update("is_settled", true).Error; err != nil {
		return nil, fmt.Errorf("settling %s: %w", id, err)
	}
	metrics.LedgerMutations.WithLabelValues("settle").Inc()
	s.log.Info("settlement settled", "id", id)

	settled, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SettlementEvent{Type: EventUpdated, TeamID: settled.Expense.TeamID, Entries: 1})
	return settled, nil
}

func (s *SettlementService) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.WithContext(ctx).Scopes(withParties).First(&settlement, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSettlementNotFound, id)
	}
	return &settlement, nil
}

// FindByTeam lists a team's entries, newest first.
func (s *SettlementService) FindByTeam(ctx context.Context, teamID uuid.UUID, filter models.SettlementFilter, page utils.PaginationQuery) (*models.PageResponse[models.SettlementResponse], error) {
	if teamID == uuid.Nil {
		return nil, ErrTeamNotSpecified
	}
	page.Normalize()

	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Settlement{}).Scopes(inTeam(teamID), withFilter(filter)).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting settlements: %w", err)
	}

	var settlements []models.Settlement
	err := db.Scopes(inTeam(teamID), withFilter(filter), withParties).
		Order("created_at DESC").
		Order("id").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&settlements).Error
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}

	content := make([]models.SettlementResponse, 0, len(settlements))
	for i := range settlements {
		content = append(content, settlements[i].ToResponse())
	}

	resp := models.NewPageResponse(content, page.Page, page.Limit, total)
	return &resp, nil
}

// StreamByTeam hands every entry of the team to fn, settled or not, loading
// at most one batch at a time. It stops at the first error fn returns.
func (s *SettlementService) StreamByTeam(ctx context.Context, teamID uuid.UUID, fn func(models.Settlement) error) error {
	if teamID == uuid.Nil {
		return ErrTeamNotSpecified
	}

	var batch []models.Settlement
	res := s.db.WithContext(ctx).Scopes(inTeam(teamID)).FindInBatches(&batch, s.batchSize, func(tx *gorm.DB, n int) error {
		for _, settlement := range batch {
			if err := fn(settlement); err != nil {
				return err
			}
		}
		return ctx.Err()
	})
	return res.Error
}

// Aggregate nets the team's ledger into suggested payments.
func (s *SettlementService) Aggregate(ctx context.Context, teamID uuid.UUID) (*models.SettlementAggregationResponse, error) {
	if teamID == uuid.Nil {
		return nil, ErrTeamNotSpecified
	}

	start := time.Now()
	memberIDs, err := s.directory.MemberIDs(ctx, teamID)
	if err != nil {
		return nil, err
	}

	edges, err := NetPositions(memberIDs, func(yield func(models.Settlement) error) error {
		return s.StreamByTeam(ctx, teamID, yield)
	})
	if err != nil {
		return nil, fmt.Errorf("netting team %s: %w", teamID, err)
	}

	elapsed := time.Since(start)
	metrics.NettingDuration.Observe(elapsed.Seconds())
	metrics.NetEdges.Observe(float64(len(edges)))
	s.log.Debug("team netted", "team", teamID, "members", len(memberIDs), "edges", len(edges), "elapsed", elapsed)

	return &models.SettlementAggregationResponse{Aggregations: edges}, nil
}

// SettleBetween marks every entry of the team between fromID and toID, in
// either direction, as settled and returns how many entries matched.
func (s *SettlementService) SettleBetween(ctx context.Context, teamID, fromID, toID uuid.UUID) (int64, error) {
	if teamID == uuid.Nil {
		return 0, ErrTeamNotSpecified
	}
	if fromID == toID {
		return 0, ErrInvalidObligation
	}

	team, err := s.directory.Team(ctx, teamID)
	if err != nil {
		return 0, err
	}
	if err := s.requireOnTeam(ctx, teamID, fromID, toID); err != nil {
		return 0, err
	}
	parties := make([]*models.Member, 0, 2)
	for _, id := range []uuid.UUID{fromID, toID} {
		member, err := s.directory.Member(ctx, id)
		if err != nil {
			return 0, err
		}
		parties = append(parties, member)
	}
	from, to := parties[0], parties[1]

	var affected int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Settlement{}).
			Scopes(inTeam(teamID)).
			Where("((settler_id = ? AND payer_id = ?) OR (settler_id = ? AND payer_id = ?))", fromID, toID, toID, fromID).
			Update("is_settled", true)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected

		return tx.Create(&models.Activity{
			TeamID:         teamID,
			MemberID:       fromID,
			CounterpartyID: toID,
			Type:           models.ActivitySettleUp,
			Entries:        affected,
			Description:    fmt.Sprintf("%s settled up with %s (%d entries)", from.Nickname, to.Nickname, affected),
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("settling between %s and %s: %w", fromID, toID, err)
	}

	metrics.SettledEntries.Add(float64(affected))
	s.log.Info("settled between members", "team", teamID, "from", fromID, "to", toID, "entries", affected)

	s.publish(ctx, SettlementEvent{Type: EventSettledBetween, TeamID: teamID, From: &fromID, To: &toID, Entries: affected})
	if s.notifier != nil {
		notice := SettleUpNotice{Team: *team, From: *from, To: *to, Entries: affected}
		go func(ctx context.Context) {
			if err := s.notifier.NotifySettledBetween(ctx, notice); err != nil {
				s.log.Warn("settle-up notification failed", "team", teamID, "error", err)
			}
		}(context.WithoutCancel(ctx))
	}

	return affected, nil
}

func (s *SettlementService) publish(ctx context.Context, event SettlementEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("publishing settlement event failed", "type", event.Type, "team", event.TeamID, "error", err)
	}
}

// requireOnTeam fails with ErrNotTeamMember for the first id off the team's roster.
func (s *SettlementService) requireOnTeam(ctx context.Context, teamID uuid.UUID, ids ...uuid.UUID) error {
	for _, id := range ids {
		ok, err := s.directory.IsMember(ctx, teamID, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotTeamMember, id)
		}
	}
	return nil
}

func requireMember(db *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Member{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("looking up member %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return nil
}

func findExpense(db *gorm.DB, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	if err := db.First(&expense, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrExpenseNotFound, id)
	}
	return &expense, nil
}

// notFound maps gorm.ErrRecordNotFound to sentinel and wraps anything else.
func notFound(err, sentinel error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return fmt.Errorf("loading %s: %w", id, err)
}

// Activity lists the team's ledger activity, newest first.
func (s *SettlementService) Activity(ctx context.Context, teamID uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error) {
	if teamID == uuid.Nil {
		return nil, ErrTeamNotSpecified
	}
	page.Normalize()

	activities := []models.Activity{}
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("listing activity for team %s: %w", teamID, err)
	}
	return activities, nil
}
