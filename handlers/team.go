package handlers

import (
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// teamForCaller parses :id and checks the team exists and the caller is on
// it. It writes the error response and returns false when the request should
// stop.
func (h *Handler) teamForCaller(c *gin.Context) (uuid.UUID, bool) {
	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid team ID")
		return uuid.Nil, false
	}

	if _, err := h.directory.Team(c.Request.Context(), teamID); err != nil {
		h.respondError(c, err)
		return uuid.Nil, false
	}
	if !h.callerOnTeam(c, teamID) {
		return uuid.Nil, false
	}
	return teamID, true
}

// callerOnTeam answers 401 unless the authenticated member belongs to teamID.
func (h *Handler) callerOnTeam(c *gin.Context, teamID uuid.UUID) bool {
	ok, err := h.directory.IsMember(c.Request.Context(), teamID, utils.GetCurrentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if !ok {
		utils.Unauthorized(c, "You are not a member of this team")
		return false
	}
	return true
}

// callerOnExpenseTeam resolves the expense's team and checks the caller is on it.
func (h *Handler) callerOnExpenseTeam(c *gin.Context, expenseID uuid.UUID) bool {
	teamID, err := h.directory.ExpenseTeam(c.Request.Context(), expenseID)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	return h.callerOnTeam(c, teamID)
}
