package handlers

import (
	"net/http"
	"strconv"

	"tripsplit-backend/models"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/settlements
func (h *Handler) CreateSettlement(c *gin.Context) {
	var req models.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	settlerID, err := uuid.Parse(req.SettlerID)
	if err != nil {
		utils.BadRequest(c, "Invalid settler_id")
		return
	}
	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		utils.BadRequest(c, "Invalid payer_id")
		return
	}
	expenseID, err := uuid.Parse(req.ExpenseID)
	if err != nil {
		utils.BadRequest(c, "Invalid expense_id")
		return
	}
	if !h.callerOnExpenseTeam(c, expenseID) {
		return
	}

	settlement, err := h.settlements.Create(c.Request.Context(), settlerID, payerID, expenseID, req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Settlement recorded", settlement.ToResponse())
}

// POST /api/expenses/:id/settlements
func (h *Handler) CreateExpenseSettlements(c *gin.Context) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var req models.CreateExpenseSettlementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		utils.BadRequest(c, "Invalid payer_id")
		return
	}
	settlerIDs, err := utils.ParseUUIDs(req.SettlerIDs)
	if err != nil {
		utils.BadRequest(c, "Invalid settler_ids")
		return
	}
	if !h.callerOnExpenseTeam(c, expenseID) {
		return
	}

	created, err := h.settlements.CreateForExpense(c.Request.Context(), expenseID, payerID, settlerIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Settlements recorded", created)
}

// GET /api/settlements/:id
func (h *Handler) GetSettlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid settlement ID")
		return
	}

	settlement, err := h.settlements.FindByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.callerOnTeam(c, settlement.Expense.TeamID) {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", settlement.ToResponse())
}

// PATCH /api/settlements/:id
// With ?settled_only=true the body is ignored and the entry is marked paid.
func (h *Handler) UpdateSettlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid settlement ID")
		return
	}

	settledOnly, err := strconv.ParseBool(c.DefaultQuery("settled_only", "false"))
	if err != nil {
		utils.BadRequest(c, "Invalid settled_only")
		return
	}

	current, err := h.settlements.FindByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.callerOnTeam(c, current.Expense.TeamID) {
		return
	}

	if settledOnly {
		settlement, err := h.settlements.Settle(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "Settlement marked as paid", settlement.ToResponse())
		return
	}

	var req models.UpdateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	// Moving the entry to another expense needs membership there too.
	if req.ExpenseID != nil && *req.ExpenseID != current.ExpenseID {
		if !h.callerOnExpenseTeam(c, *req.ExpenseID) {
			return
		}
	}

	settlement, err := h.settlements.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settlement updated", settlement.ToResponse())
}

// GET /api/teams/:id/settlements
func (h *Handler) GetTeamSettlements(c *gin.Context) {
	teamID, ok := h.teamForCaller(c)
	if !ok {
		return
	}

	var pagination utils.PaginationQuery
	if err := c.ShouldBindQuery(&pagination); err != nil {
		utils.BadRequest(c, "Invalid pagination")
		return
	}

	filter, problem := parseSettlementFilter(c)
	if problem != "" {
		utils.BadRequest(c, problem)
		return
	}

	page, err := h.settlements.FindByTeam(c.Request.Context(), teamID, filter, pagination)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", page)
}

// parseSettlementFilter returns a client-facing message for the first bad
// query parameter.
func parseSettlementFilter(c *gin.Context) (models.SettlementFilter, string) {
	var (
		filter models.SettlementFilter
		err    error
	)
	if filter.PayerID, err = utils.ParseOptionalUUID(c.Query("payer_id")); err != nil {
		return filter, "Invalid payer_id"
	}
	if filter.SettlerID, err = utils.ParseOptionalUUID(c.Query("settler_id")); err != nil {
		return filter, "Invalid settler_id"
	}
	if filter.ExpenseID, err = utils.ParseOptionalUUID(c.Query("expense_id")); err != nil {
		return filter, "Invalid expense_id"
	}
	if raw := c.Query("is_settled"); raw != "" {
		settled, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, "Invalid is_settled"
		}
		filter.IsSettled = &settled
	}
	return filter, ""
}
