package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NetEdge says From owes To Amount after mutual obligations cancel.
// Amount is always positive.
type NetEdge struct {
	From   uuid.UUID       `json:"from"`
	To     uuid.UUID       `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// SettlementAggregationResponse is returned for GET /api/teams/:id/settlements/aggregation
type SettlementAggregationResponse struct {
	Aggregations []NetEdge `json:"aggregations"`
}
