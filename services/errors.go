package services

import "errors"

var (
	// Not found
	ErrSettlementNotFound = errors.New("settlement: not found")
	ErrMemberNotFound     = errors.New("settlement: member not found")
	ErrExpenseNotFound    = errors.New("settlement: expense not found")
	ErrTeamNotFound       = errors.New("settlement: team not found")

	// Bad input
	ErrInvalidObligation = errors.New("settlement: settler and payer must be different members")
	ErrInvalidAmount     = errors.New("settlement: amount must be greater than zero")
	ErrTeamNotSpecified  = errors.New("settlement: team not specified")
	ErrNotTeamMember     = errors.New("settlement: member does not belong to the team")
)
