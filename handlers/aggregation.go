package handlers

import (
	"net/http"

	"tripsplit-backend/models"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/teams/:id/settlements/aggregation
func (h *Handler) GetAggregation(c *gin.Context) {
	teamID, ok := h.teamForCaller(c)
	if !ok {
		return
	}

	aggregation, err := h.settlements.Aggregate(c.Request.Context(), teamID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", aggregation)
}

// POST /api/teams/:id/settlements/settle-between
func (h *Handler) SettleBetween(c *gin.Context) {
	teamID, ok := h.teamForCaller(c)
	if !ok {
		return
	}

	var req models.SettleBetweenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	from, err := uuid.Parse(req.From)
	if err != nil {
		utils.BadRequest(c, "Invalid from member ID")
		return
	}
	to, err := uuid.Parse(req.To)
	if err != nil {
		utils.BadRequest(c, "Invalid to member ID")
		return
	}

	settled, err := h.settlements.SettleBetween(c.Request.Context(), teamID, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settled up", gin.H{"settled": settled})
}
