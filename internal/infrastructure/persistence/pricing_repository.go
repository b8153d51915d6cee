package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPricingRepository implements pricing.Repository using GORM
type GormPricingRepository struct {
	db *gorm.DB
}

// NewGormPricingRepository creates a new GormPricingRepository
func NewGormPricingRepository(db *gorm.DB) *GormPricingRepository {
	return &GormPricingRepository{db: db}
}

// FindActiveAction finds the active action for a key, with its overrides
func (r *GormPricingRepository) FindActiveAction(ctx context.Context, tenantID uuid.UUID, key pricing.ActionKey) (*pricing.PricedAction, error) {
	var model models.PricedActionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND action_key = ? AND is_active = ?", tenantID, key, true).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return r.withOverrides(ctx, model.ToDomain())
}

// FindAction finds an action by ID regardless of its active flag
func (r *GormPricingRepository) FindAction(ctx context.Context, tenantID, id uuid.UUID) (*pricing.PricedAction, error) {
	var model models.PricedActionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return r.withOverrides(ctx, model.ToDomain())
}

// ListActions lists the tenant's catalog with overrides
func (r *GormPricingRepository) ListActions(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricedAction, error) {
	var actionModels []models.PricedActionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("category ASC, sort_order ASC, name ASC").
		Find(&actionModels).Error; err != nil {
		return nil, err
	}
	if len(actionModels) == 0 {
		return []pricing.PricedAction{}, nil
	}

	var overrideModels []models.PriceOverrideModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("target_type ASC, target_value ASC").
		Find(&overrideModels).Error; err != nil {
		return nil, err
	}
	byAction := make(map[uuid.UUID][]pricing.PriceOverride)
	for i := range overrideModels {
		byAction[overrideModels[i].ActionID] = append(byAction[overrideModels[i].ActionID], overrideModels[i].ToDomain())
	}

	actions := make([]pricing.PricedAction, len(actionModels))
	for i := range actionModels {
		a := actionModels[i].ToDomain()
		a.Overrides = byAction[a.ID]
		actions[i] = *a
	}
	return actions, nil
}

// SaveAction inserts a new action or updates an existing one.
// New actions carry version 1; updates are version checked.
func (r *GormPricingRepository) SaveAction(ctx context.Context, action *pricing.PricedAction) error {
	model := models.PricedActionModelFromDomain(action)
	if action.Version <= 1 {
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "action_key"}},
				DoNothing: true,
			}).
			Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrAlreadyExists
		}
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.PricedActionModel{}).
		Where("id = ? AND version = ?", action.ID, action.Version-1).
		Updates(map[string]any{
			"name":                  model.Name,
			"description":           model.Description,
			"category":              model.Category,
			"retail_price":          model.RetailPrice,
			"unit_label":            model.UnitLabel,
			"has_tiered_pricing":    model.HasTieredPricing,
			"first_unit_price":      model.FirstUnitPrice,
			"additional_unit_price": model.AdditionalUnitPrice,
			"cogs":                  model.Cogs,
			"cogs_first_unit":       model.CogsFirstUnit,
			"cogs_additional_unit":  model.CogsAdditionalUnit,
			"is_active":             model.IsActive,
			"sort_order":            model.SortOrder,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ListOverrides lists the overrides attached to an action
func (r *GormPricingRepository) ListOverrides(ctx context.Context, actionID uuid.UUID) ([]pricing.PriceOverride, error) {
	var overrideModels []models.PriceOverrideModel
	if err := r.db.WithContext(ctx).
		Where("action_id = ?", actionID).
		Order("target_type ASC, target_value ASC").
		Find(&overrideModels).Error; err != nil {
		return nil, err
	}
	overrides := make([]pricing.PriceOverride, len(overrideModels))
	for i := range overrideModels {
		overrides[i] = overrideModels[i].ToDomain()
	}
	return overrides, nil
}

// UpsertOverride writes the override for (action, target type, target value),
// replacing every price column of an existing row. The stored row's ID is
// copied back onto the override.
func (r *GormPricingRepository) UpsertOverride(ctx context.Context, override *pricing.PriceOverride) error {
	model := models.PriceOverrideModelFromDomain(override)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "action_id"}, {Name: "target_type"}, {Name: "target_value"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"target_label",
				"retail_price",
				"first_unit_price",
				"additional_unit_price",
				"cogs",
				"cogs_first_unit",
				"cogs_additional_unit",
				"updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		return err
	}

	var stored models.PriceOverrideModel
	if err := r.db.WithContext(ctx).
		Where("action_id = ? AND target_type = ? AND target_value = ?", override.ActionID, override.TargetType, override.TargetValue).
		First(&stored).Error; err != nil {
		return translateError(err)
	}
	override.ID = stored.ID
	override.CreatedAt = stored.CreatedAt
	return nil
}

// DeleteOverride removes an override
func (r *GormPricingRepository) DeleteOverride(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.PriceOverrideModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormPricingRepository) withOverrides(ctx context.Context, action *pricing.PricedAction) (*pricing.PricedAction, error) {
	overrides, err := r.ListOverrides(ctx, action.ID)
	if err != nil {
		return nil, err
	}
	action.Overrides = overrides
	return action, nil
}

// translateError maps GORM sentinel errors onto domain errors
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

var _ pricing.Repository = (*GormPricingRepository)(nil)
