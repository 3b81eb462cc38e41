package handlers

import (
	"errors"

	"tripsplit-backend/services"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP statuses. Unknown errors are
// logged and reported as a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSettlementNotFound):
		utils.NotFound(c, "Settlement not found")
	case errors.Is(err, services.ErrMemberNotFound):
		utils.NotFound(c, "Member not found")
	case errors.Is(err, services.ErrExpenseNotFound):
		utils.NotFound(c, "Expense not found")
	case errors.Is(err, services.ErrTeamNotFound):
		utils.NotFound(c, "Team not found")
	case errors.Is(err, services.ErrInvalidObligation):
		utils.BadRequest(c, "Settler and payer must be different members")
	case errors.Is(err, services.ErrInvalidAmount):
		utils.BadRequest(c, "Amount must be greater than zero")
	case errors.Is(err, services.ErrTeamNotSpecified):
		utils.BadRequest(c, "Team ID is required")
	case errors.Is(err, services.ErrNotTeamMember):
		utils.BadRequest(c, "Member does not belong to this team")
	default:
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		utils.InternalError(c, "Something went wrong")
	}
}
