package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tripsplit-backend/database"
	"tripsplit-backend/logging"
	"tripsplit-backend/middleware"
	"tripsplit-backend/models"
	"tripsplit-backend/services"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	team    models.Team
	expense models.Expense

	alice, bob, carol, dave models.Member
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
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

	e := &testEnv{db: db}
	e.alice = e.member(t, "alice")
	e.bob = e.member(t, "bob")
	e.carol = e.member(t, "carol")
	e.dave = e.member(t, "dave")

	e.team = models.Team{Name: "Jeju trip"}
	require.NoError(t, db.Create(&e.team).Error)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, m := range []models.Member{e.alice, e.bob, e.carol} {
		require.NoError(t, db.Create(&models.TeamMember{
			TeamID:   e.team.ID,
			MemberID: m.ID,
			JoinedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	e.expense = models.Expense{
		TeamID:      e.team.ID,
		PayerID:     e.bob.ID,
		Description: "dinner",
		Amount:      decimal.RequireFromString("900"),
	}
	require.NoError(t, db.Create(&e.expense).Error)

	dir := services.NewDirectory(db)
	svc := services.NewSettlementService(db, dir, logging.Discard())

	gin.SetMode(gin.TestMode)
	e.router = gin.New()
	api := e.router.Group("/api")
	api.Use(middleware.AuthRequired(testSecret))
	New(svc, dir, logging.Discard()).Register(api)
	return e
}

func (e *testEnv) member(t *testing.T, nickname string) models.Member {
	t.Helper()
	m := models.Member{Nickname: nickname}
	require.NoError(t, e.db.Create(&m).Error)
	return m
}

func (e *testEnv) entry(t *testing.T, settler, payer models.Member, amount string) models.Settlement {
	t.Helper()
	s := models.Settlement{
		SettlerID: settler.ID,
		PayerID:   payer.ID,
		ExpenseID: e.expense.ID,
		Amount:    decimal.RequireFromString(amount),
	}
	require.NoError(t, e.db.Create(&s).Error)
	return s
}

// do sends a request as member (uuid.Nil sends no token) and decodes the envelope.
func (e *testEnv) do(t *testing.T, as uuid.UUID, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != uuid.Nil {
		token, err := utils.GenerateToken(as, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestCreateSettlement(t *testing.T) {
	e := newTestEnv(t)

	code, body := e.do(t, e.alice.ID, http.MethodPost, "/api/settlements", gin.H{
		"settler_id": e.alice.ID,
		"payer_id":   e.bob.ID,
		"expense_id": e.expense.ID,
		"amount":     "120.50",
	})
	require.Equal(t, http.StatusCreated, code, body.Message)
	assert.True(t, body.Success)

	got := decode[models.SettlementResponse](t, body.Data)
	assert.Equal(t, "alice", got.SettlerNickname)
	assert.Equal(t, "bob", got.PayerNickname)
	assert.Equal(t, e.team.ID, got.TeamID)
	assert.True(t, decimal.RequireFromString("120.5").Equal(got.Amount))
	assert.False(t, got.IsSettled)
}

func TestCreateSettlement_Errors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		as   uuid.UUID
		body gin.H
		code int
	}{
		{"no token", uuid.Nil, gin.H{}, http.StatusUnauthorized},
		{"missing fields", e.alice.ID, gin.H{"amount": 10}, http.StatusBadRequest},
		{"bad uuid", e.alice.ID, gin.H{"settler_id": "x", "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": 10}, http.StatusBadRequest},
		{"settler is payer", e.alice.ID, gin.H{"settler_id": e.bob.ID, "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": 10}, http.StatusBadRequest},
		{"no amount", e.alice.ID, gin.H{"settler_id": e.alice.ID, "payer_id": e.bob.ID, "expense_id": e.expense.ID}, http.StatusBadRequest},
		{"unknown expense", e.alice.ID, gin.H{"settler_id": e.alice.ID, "payer_id": e.bob.ID, "expense_id": uuid.New(), "amount": 10}, http.StatusNotFound},
		{"unknown member", e.alice.ID, gin.H{"settler_id": uuid.New(), "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": 10}, http.StatusNotFound},
		{"caller off team", e.dave.ID, gin.H{"settler_id": e.alice.ID, "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": 10}, http.StatusUnauthorized},
		{"settler off team", e.alice.ID, gin.H{"settler_id": e.dave.ID, "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": 10}, http.StatusBadRequest},
		{"amount rounds to zero", e.alice.ID, gin.H{"settler_id": e.alice.ID, "payer_id": e.bob.ID, "expense_id": e.expense.ID, "amount": "0.001"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := e.do(t, tt.as, http.MethodPost, "/api/settlements", tt.body)
			assert.Equal(t, tt.code, code, body.Message)
			assert.False(t, body.Success)
		})
	}
}

func TestCreateExpenseSettlements(t *testing.T) {
	e := newTestEnv(t)

	code, body := e.do(t, e.bob.ID, http.MethodPost, "/api/expenses/"+e.expense.ID.String()+"/settlements", gin.H{
		"payer_id":    e.bob.ID,
		"settler_ids": []uuid.UUID{e.alice.ID, e.bob.ID, e.carol.ID},
	})
	require.Equal(t, http.StatusCreated, code, body.Message)

	created := decode[[]models.Settlement](t, body.Data)
	require.Len(t, created, 2)
	for _, s := range created {
		assert.True(t, decimal.RequireFromString("300").Equal(s.Amount))
		assert.Equal(t, e.bob.ID, s.PayerID)
	}

	code, _ = e.do(t, e.bob.ID, http.MethodPost, "/api/expenses/"+e.expense.ID.String()+"/settlements", gin.H{
		"payer_id":    e.bob.ID,
		"settler_ids": []uuid.UUID{e.dave.ID},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.bob.ID, http.MethodPost, "/api/expenses/"+e.expense.ID.String()+"/settlements", gin.H{
		"payer_id":    e.bob.ID,
		"settler_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.dave.ID, http.MethodPost, "/api/expenses/"+e.expense.ID.String()+"/settlements", gin.H{
		"payer_id":    e.bob.ID,
		"settler_ids": []uuid.UUID{e.alice.ID},
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, e.bob.ID, http.MethodPost, "/api/expenses/"+uuid.NewString()+"/settlements", gin.H{
		"payer_id":    e.bob.ID,
		"settler_ids": []uuid.UUID{e.alice.ID},
	})
	assert.Equal(t, http.StatusNotFound, code)

	var count int64
	require.NoError(t, e.db.Model(&models.Settlement{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGetSettlement(t *testing.T) {
	e := newTestEnv(t)
	s := e.entry(t, e.carol, e.bob, "75")

	code, body := e.do(t, e.alice.ID, http.MethodGet, "/api/settlements/"+s.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[models.SettlementResponse](t, body.Data)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "dinner", got.ExpenseDescription)

	code, body = e.do(t, e.alice.ID, http.MethodGet, "/api/settlements/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Settlement not found", body.Message)

	code, _ = e.do(t, e.alice.ID, http.MethodGet, "/api/settlements/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, e.dave.ID, http.MethodGet, "/api/settlements/"+s.ID.String(), nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "You are not a member of this team", body.Message)
}

func TestUpdateSettlement(t *testing.T) {
	e := newTestEnv(t)
	s := e.entry(t, e.alice, e.bob, "100")
	path := "/api/settlements/" + s.ID.String()

	code, body := e.do(t, e.alice.ID, http.MethodPatch, path, gin.H{"amount": "60"})
	require.Equal(t, http.StatusOK, code, body.Message)
	got := decode[models.SettlementResponse](t, body.Data)
	assert.True(t, decimal.RequireFromString("60").Equal(got.Amount))
	assert.Equal(t, e.alice.ID, got.SettlerID)
	assert.False(t, got.IsSettled)

	code, body = e.do(t, e.alice.ID, http.MethodPatch, path+"?settled_only=true", nil)
	require.Equal(t, http.StatusOK, code, body.Message)
	got = decode[models.SettlementResponse](t, body.Data)
	assert.True(t, got.IsSettled)
	assert.True(t, decimal.RequireFromString("60").Equal(got.Amount))

	code, _ = e.do(t, e.alice.ID, http.MethodPatch, path, gin.H{"payer_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, e.alice.ID, http.MethodPatch, path, gin.H{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.alice.ID, http.MethodPatch, "/api/settlements/"+uuid.NewString()+"?settled_only=true", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateSettlement_Guards(t *testing.T) {
	e := newTestEnv(t)
	s := e.entry(t, e.alice, e.bob, "100")
	path := "/api/settlements/" + s.ID.String()

	code, _ := e.do(t, e.dave.ID, http.MethodPatch, path, gin.H{"amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, e.dave.ID, http.MethodPatch, path+"?settled_only=true", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := e.do(t, e.alice.ID, http.MethodPatch, path+"?settled_only=yes", gin.H{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid settled_only", body.Message)

	code, _ = e.do(t, e.alice.ID, http.MethodPatch, path, gin.H{"amount": "0.004"})
	assert.Equal(t, http.StatusBadRequest, code)

	// Moving the entry onto another team's expense needs membership there.
	other := models.Team{Name: "Seoul"}
	require.NoError(t, e.db.Create(&other).Error)
	require.NoError(t, e.db.Create(&models.TeamMember{TeamID: other.ID, MemberID: e.dave.ID}).Error)
	foreign := models.Expense{TeamID: other.ID, PayerID: e.dave.ID, Description: "taxi", Amount: decimal.RequireFromString("20")}
	require.NoError(t, e.db.Create(&foreign).Error)

	code, _ = e.do(t, e.alice.ID, http.MethodPatch, path, gin.H{"expense_id": foreign.ID})
	assert.Equal(t, http.StatusUnauthorized, code)

	var stored models.Settlement
	require.NoError(t, e.db.First(&stored, "id = ?", s.ID).Error)
	assert.True(t, decimal.RequireFromString("100").Equal(stored.Amount))
	assert.False(t, stored.IsSettled)
	assert.Equal(t, e.expense.ID, stored.ExpenseID)
}

func TestGetTeamSettlements(t *testing.T) {
	e := newTestEnv(t)
	e.entry(t, e.alice, e.bob, "10")
	e.entry(t, e.carol, e.bob, "20")
	settled := e.entry(t, e.bob, e.alice, "30")
	require.NoError(t, e.db.Model(&settled).Update("is_settled", true).Error)

	base := "/api/teams/" + e.team.ID.String() + "/settlements"

	code, body := e.do(t, e.alice.ID, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[models.PageResponse[models.SettlementResponse]](t, body.Data)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, int64(3), page.TotalElements)

	code, body = e.do(t, e.alice.ID, http.MethodGet, base+"?payer_id="+e.bob.ID.String()+"&is_settled=false&limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	page = decode[models.PageResponse[models.SettlementResponse]](t, body.Data)
	assert.Len(t, page.Content, 1)
	assert.Equal(t, int64(2), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)

	code, _ = e.do(t, e.alice.ID, http.MethodGet, base+"?is_settled=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.alice.ID, http.MethodGet, base+"?settler_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.dave.ID, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAggregationAndSettleBetween(t *testing.T) {
	e := newTestEnv(t)
	e.entry(t, e.alice, e.bob, "1000")
	e.entry(t, e.bob, e.alice, "500")
	e.entry(t, e.alice, e.carol, "300")

	aggregation := "/api/teams/" + e.team.ID.String() + "/settlements/aggregation"
	settleBetween := "/api/teams/" + e.team.ID.String() + "/settlements/settle-between"

	code, body := e.do(t, e.carol.ID, http.MethodGet, aggregation, nil)
	require.Equal(t, http.StatusOK, code)
	agg := decode[models.SettlementAggregationResponse](t, body.Data)
	require.Len(t, agg.Aggregations, 2)
	assert.Equal(t, e.alice.ID, agg.Aggregations[0].From)
	assert.Equal(t, e.bob.ID, agg.Aggregations[0].To)
	assert.True(t, decimal.RequireFromString("500").Equal(agg.Aggregations[0].Amount))
	assert.Equal(t, e.carol.ID, agg.Aggregations[1].To)
	assert.True(t, decimal.RequireFromString("300").Equal(agg.Aggregations[1].Amount))

	code, body = e.do(t, e.alice.ID, http.MethodPost, settleBetween, gin.H{"from": e.alice.ID, "to": e.bob.ID})
	require.Equal(t, http.StatusOK, code, body.Message)
	assert.Equal(t, map[string]int64{"settled": 2}, decode[map[string]int64](t, body.Data))

	// Second call is a no-op that still succeeds.
	code, _ = e.do(t, e.alice.ID, http.MethodPost, settleBetween, gin.H{"from": e.bob.ID, "to": e.alice.ID})
	assert.Equal(t, http.StatusOK, code)

	// Settled entries keep counting toward the net position.
	code, body = e.do(t, e.carol.ID, http.MethodGet, aggregation, nil)
	require.Equal(t, http.StatusOK, code)
	agg = decode[models.SettlementAggregationResponse](t, body.Data)
	assert.Len(t, agg.Aggregations, 2)

	code, body = e.do(t, e.alice.ID, http.MethodGet, "/api/teams/"+e.team.ID.String()+"/activity", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Activity](t, body.Data), 2)
}

func TestAggregationAndSettleBetween_Errors(t *testing.T) {
	e := newTestEnv(t)
	teamPath := "/api/teams/" + e.team.ID.String()

	code, _ := e.do(t, e.dave.ID, http.MethodGet, teamPath+"/settlements/aggregation", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, e.alice.ID, http.MethodGet, "/api/teams/not-a-uuid/settlements/aggregation", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := e.do(t, e.alice.ID, http.MethodGet, "/api/teams/"+uuid.NewString()+"/settlements/aggregation", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Team not found", body.Message)

	code, _ = e.do(t, e.alice.ID, http.MethodGet, teamPath+"/activity?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.alice.ID, http.MethodPost, teamPath+"/settlements/settle-between", gin.H{"from": e.alice.ID})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, e.alice.ID, http.MethodPost, teamPath+"/settlements/settle-between", gin.H{"from": e.alice.ID, "to": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, e.alice.ID, http.MethodPost, teamPath+"/settlements/settle-between", gin.H{"from": e.alice.ID, "to": e.dave.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Member does not belong to this team", body.Message)

	code, _ = e.do(t, e.dave.ID, http.MethodPost, teamPath+"/settlements/settle-between", gin.H{"from": e.alice.ID, "to": e.bob.ID})
	assert.Equal(t, http.StatusUnauthorized, code)
}
