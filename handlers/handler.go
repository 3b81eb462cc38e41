package handlers

import (
	"log/slog"

	"tripsplit-backend/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	settlements *services.SettlementService
	directory   *services.Directory
	log         *slog.Logger
}

func New(settlements *services.SettlementService, directory *services.Directory, logger *slog.Logger) *Handler {
	return &Handler{
		settlements: settlements,
		directory:   directory,
		log:         logger.With("component", "http"),
	}
}

// Register mounts the settlement routes on an authenticated group.
func (h *Handler) Register(api *gin.RouterGroup) {
	// Settlements
	api.POST("/settlements", h.CreateSettlement)
	api.GET("/settlements/:id", h.GetSettlement)
	api.PATCH("/settlements/:id", h.UpdateSettlement)
	api.POST("/expenses/:id/settlements", h.CreateExpenseSettlements)

	// Team ledger
	api.GET("/teams/:id/settlements", h.GetTeamSettlements)
	api.GET("/teams/:id/settlements/aggregation", h.GetAggregation)
	api.POST("/teams/:id/settlements/settle-between", h.SettleBetween)

	// Activity
	api.GET("/teams/:id/activity", h.GetTeamActivity)
}
