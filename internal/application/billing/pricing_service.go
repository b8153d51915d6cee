package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ResolvePriceRequest asks what quantity units of a service cost a customer
type ResolvePriceRequest struct {
	TenantID    uuid.UUID
	CustomerID  uuid.UUID
	ServiceType ledger.ServiceType
	Quantity    int
}

// PriceResolver prices a billable service
type PriceResolver interface {
	ResolvePrice(ctx context.Context, req ResolvePriceRequest) pricing.ResolvedPrice
}

// PricingService resolves prices and manages the tenant catalog
type PricingService struct {
	catalog   pricing.Repository
	directory directory.Directory
	logger    *zap.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(catalog pricing.Repository, dir directory.Directory, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{
		catalog:   catalog,
		directory: dir,
		logger:    logger,
	}
}

// ResolvePrice never fails. When the catalog has no active action for the
// service, or cannot be read, the tenant's legacy rate table is used and
// the gap is logged at WARN.
func (s *PricingService) ResolvePrice(ctx context.Context, req ResolvePriceRequest) pricing.ResolvedPrice {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing", "resolve")
	defer span.End()

	key := req.ServiceType.ActionKey()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrServiceType, string(req.ServiceType),
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	action, err := s.catalog.FindActiveAction(ctx, req.TenantID, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No active priced action, using tenant default rate",
				zap.String("tenant_id", req.TenantID.String()),
				zap.String("action_key", string(key)),
			)
		} else {
			s.logger.Warn("Pricing catalog lookup failed, using tenant default rate",
				zap.String("tenant_id", req.TenantID.String()),
				zap.String("action_key", string(key)),
				zap.Error(err),
			)
		}
		price := s.defaultPrice(ctx, req.TenantID, key, req.Quantity)
		telemetry.SetAttributes(span,
			telemetry.SpanAttrPriceSource, string(price.Source),
			telemetry.SpanAttrAmount, price.Total.String(),
		)
		return price
	}

	override, source := pricing.ForCustomer(action.Overrides, req.CustomerID.String(), s.segmentOf(ctx, req, action))
	price := pricing.Compute(action, override, req.Quantity, source)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPriceSource, string(price.Source),
		telemetry.SpanAttrAmount, price.Total.String(),
	)
	return price
}

// segmentOf reads the customer's segment only when a segment override exists
func (s *PricingService) segmentOf(ctx context.Context, req ResolvePriceRequest, action *pricing.PricedAction) string {
	hasSegmentOverride := false
	for _, o := range action.Overrides {
		if o.TargetType == pricing.TargetSegment {
			hasSegmentOverride = true
			break
		}
	}
	if !hasSegmentOverride {
		return ""
	}
	customer, err := s.directory.FindCustomer(ctx, req.TenantID, req.CustomerID)
	if err != nil {
		s.logger.Warn("Customer lookup failed, ignoring segment overrides",
			zap.String("customer_id", req.CustomerID.String()),
			zap.Error(err),
		)
		return ""
	}
	return customer.Segment
}

func (s *PricingService) defaultPrice(ctx context.Context, tenantID uuid.UUID, key pricing.ActionKey, quantity int) pricing.ResolvedPrice {
	var rates pricing.TenantRates
	tenant, err := s.directory.FindTenant(ctx, tenantID)
	if err != nil {
		s.logger.Warn("Tenant lookup failed, using built-in rates",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		rates = tenant.Rates()
	}
	return pricing.DefaultPrice(rates, key, quantity)
}

// ListActions returns the tenant's catalog with overrides
func (s *PricingService) ListActions(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricedAction, error) {
	actions, err := s.catalog.ListActions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list priced actions: %w", err)
	}
	return actions, nil
}

// CreateAction adds an action to the catalog
func (s *PricingService) CreateAction(ctx context.Context, tenantID uuid.UUID, in pricing.ActionInput) (*pricing.PricedAction, error) {
	action, err := pricing.NewPricedAction(tenantID, in)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SaveAction(ctx, action); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainError("ACTION_KEY_EXISTS",
				fmt.Sprintf("Priced action %q already exists", action.Key))
		}
		return nil, fmt.Errorf("failed to save priced action: %w", err)
	}
	s.logger.Info("Priced action created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("action_key", string(action.Key)),
		zap.String("retail_price", action.RetailPrice.String()),
	)
	return action, nil
}

// UpdateAction replaces the editable fields of an action
func (s *PricingService) UpdateAction(ctx context.Context, tenantID, actionID uuid.UUID, in pricing.ActionInput) (*pricing.PricedAction, error) {
	action, err := s.catalog.FindAction(ctx, tenantID, actionID)
	if err != nil {
		return nil, err
	}
	if err := action.Update(in); err != nil {
		return nil, err
	}
	if err := s.catalog.SaveAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to save priced action: %w", err)
	}
	return action, nil
}

// DeactivateAction hides an action from price resolution. Charges that
// already reference it keep their frozen prices.
func (s *PricingService) DeactivateAction(ctx context.Context, tenantID, actionID uuid.UUID) error {
	action, err := s.catalog.FindAction(ctx, tenantID, actionID)
	if err != nil {
		return err
	}
	if !action.IsActive {
		return nil
	}
	action.Deactivate()
	if err := s.catalog.SaveAction(ctx, action); err != nil {
		return fmt.Errorf("failed to deactivate priced action: %w", err)
	}
	s.logger.Info("Priced action deactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("action_key", string(action.Key)),
	)
	return nil
}

// UpsertOverride sets the override for one segment or customer
func (s *PricingService) UpsertOverride(ctx context.Context, tenantID, actionID uuid.UUID, in pricing.OverrideInput) (*pricing.PriceOverride, error) {
	action, err := s.catalog.FindAction(ctx, tenantID, actionID)
	if err != nil {
		return nil, err
	}
	override, err := pricing.NewPriceOverride(action, in)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.UpsertOverride(ctx, override); err != nil {
		return nil, fmt.Errorf("failed to save price override: %w", err)
	}
	return override, nil
}

// DeleteOverride removes an override
func (s *PricingService) DeleteOverride(ctx context.Context, tenantID, overrideID uuid.UUID) error {
	return s.catalog.DeleteOverride(ctx, tenantID, overrideID)
}

var _ PriceResolver = (*PricingService)(nil)
