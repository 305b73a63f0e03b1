package contract

import "errors"

var (
	ErrProvider        = errors.New("reasoning provider failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrToolNotFound = errors.New("tool not found")
	ErrToolArgument = errors.New("invalid tool arguments")

	ErrBudgetExhausted = errors.New("budget exhausted")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrDependencyUnmet = errors.New("step dependency not satisfied")
	ErrWorkerNotFound  = errors.New("worker not registered for role")
)
