package handlers

import (
	"net/http"

	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/teams/:id/activity
func (h *Handler) GetTeamActivity(c *gin.Context) {
	teamID, ok := h.teamForCaller(c)
	if !ok {
		return
	}

	var pagination utils.PaginationQuery
	if err := c.ShouldBindQuery(&pagination); err != nil {
		utils.BadRequest(c, "Invalid pagination")
		return
	}

	activities, err := h.settlements.Activity(c.Request.Context(), teamID, pagination)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
