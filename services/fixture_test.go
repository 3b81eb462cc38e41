package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tripsplit-backend/database"
	"tripsplit-backend/logging"
	"tripsplit-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tripsplit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []SettlementEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(typ string) []SettlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []SettlementEvent
	for _, e := range p.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type chanNotifier chan SettleUpNotice

func (n chanNotifier) NotifySettledBetween(_ context.Context, notice SettleUpNotice) error {
	n <- notice
	return nil
}

// fixture is a team of alice, bob and carol (joined in that order) with one
// expense paid by bob, plus dave who is not on the team.
type fixture struct {
	db      *gorm.DB
	dir     *Directory
	svc     *SettlementService
	events  *recordingPublisher
	team    models.Team
	expense models.Expense

	alice, bob, carol, dave models.Member
}

var joinBase = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{db: db, events: &recordingPublisher{}}

	f.alice = createMember(t, db, "alice")
	f.bob = createMember(t, db, "bob")
	f.carol = createMember(t, db, "carol")
	f.dave = createMember(t, db, "dave")

	f.team = createTeam(t, db, "Jeju trip", f.alice, f.bob, f.carol)
	f.expense = createExpense(t, db, f.team.ID, f.bob.ID, "1500")

	f.dir = NewDirectory(db)
	f.svc = NewSettlementService(db, f.dir, logging.Discard(), append([]Option{WithEvents(f.events)}, opts...)...)
	return f
}

func createMember(t *testing.T, db *gorm.DB, nickname string) models.Member {
	t.Helper()
	m := models.Member{Nickname: nickname, Email: nickname + "@example.com"}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func createTeam(t *testing.T, db *gorm.DB, name string, members ...models.Member) models.Team {
	t.Helper()
	team := models.Team{Name: name}
	require.NoError(t, db.Create(&team).Error)
	for i, m := range members {
		require.NoError(t, db.Create(&models.TeamMember{
			TeamID:   team.ID,
			MemberID: m.ID,
			JoinedAt: joinBase.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	return team
}

func createExpense(t *testing.T, db *gorm.DB, teamID, payerID uuid.UUID, amount string) models.Expense {
	t.Helper()
	e := models.Expense{
		TeamID:      teamID,
		PayerID:     payerID,
		Description: "dinner",
		Amount:      decimal.RequireFromString(amount),
	}
	require.NoError(t, db.Create(&e).Error)
	return e
}

// entry writes a ledger row directly so tests can seed settled entries.
func (f *fixture) entry(t *testing.T, settler, payer models.Member, amount string, settled bool) models.Settlement {
	t.Helper()
	return seedEntry(t, f.db, f.expense.ID, settler, payer, amount, settled)
}

func seedEntry(t *testing.T, db *gorm.DB, expenseID uuid.UUID, settler, payer models.Member, amount string, settled bool) models.Settlement {
	t.Helper()
	s := models.Settlement{
		SettlerID: settler.ID,
		PayerID:   payer.ID,
		ExpenseID: expenseID,
		Amount:    decimal.RequireFromString(amount),
		IsSettled: settled,
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Settlement {
	t.Helper()
	var s models.Settlement
	require.NoError(t, f.db.First(&s, "id = ?", id).Error)
	return s
}
