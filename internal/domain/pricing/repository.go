package pricing

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the pricing catalog
type Repository interface {
	// FindActiveAction returns the active action for key, or shared.ErrNotFound
	FindActiveAction(ctx context.Context, tenantID uuid.UUID, key ActionKey) (*PricedAction, error)

	// FindAction returns an action by ID regardless of its active flag
	FindAction(ctx context.Context, tenantID, id uuid.UUID) (*PricedAction, error)

	// ListActions returns all actions with their overrides,
	// ordered by category, sort order and name
	ListActions(ctx context.Context, tenantID uuid.UUID) ([]PricedAction, error)

	// SaveAction inserts or updates an action.
	// A duplicate key within the tenant yields shared.ErrAlreadyExists.
	SaveAction(ctx context.Context, action *PricedAction) error

	// ListOverrides returns the overrides attached to an action
	ListOverrides(ctx context.Context, actionID uuid.UUID) ([]PriceOverride, error)

	// UpsertOverride inserts or replaces the override for
	// (action, target type, target value)
	UpsertOverride(ctx context.Context, override *PriceOverride) error

	// DeleteOverride removes an override
	DeleteOverride(ctx context.Context, tenantID, id uuid.UUID) error
}
