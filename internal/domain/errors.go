package domain

import "errors"

// Errors returned by domain operations.
var (
	ErrGameOver    = errors.New("game over")
	ErrInvalidMove = errors.New("invalid move")
	ErrOutOfBounds = errors.New("out of bounds")
	ErrOccupied    = errors.New("cell occupied")

	// ErrContractViolation marks a Game implementation that broke its
	// contract: no actions on a non-terminal state, or a Result that
	// modified its input. It is a programming defect and never retried.
	ErrContractViolation = errors.New("game contract violation")
)
