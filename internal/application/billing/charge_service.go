package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ChargeSettler settles a pending charge entry
type ChargeSettler interface {
	Settle(ctx context.Context, req SettleRequest) (*SettleResult, error)
}

// ChargeServiceDeps are the collaborators of ChargeService
type ChargeServiceDeps struct {
	Pricer    PriceResolver
	Charges   ledger.ChargeRepository
	Usage     ledger.UsageRepository
	Terms     settlement.TermsRepository
	Directory directory.Directory
	Settler   ChargeSettler
	Scope     TransactionScope
	Events    shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// ChargeService writes billable events to the charge ledger and hands
// them on to settlement
type ChargeService struct {
	pricer    PriceResolver
	charges   ledger.ChargeRepository
	usage     ledger.UsageRepository
	terms     settlement.TermsRepository
	directory directory.Directory
	settler   ChargeSettler
	scope     TransactionScope
	events    shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// NewChargeService creates a new ChargeService
func NewChargeService(deps ChargeServiceDeps) *ChargeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeService{
		pricer:    deps.Pricer,
		charges:   deps.Charges,
		usage:     deps.Usage,
		terms:     deps.Terms,
		directory: deps.Directory,
		settler:   deps.Settler,
		scope:     deps.Scope,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// RecordChargeResult is the outcome of recording one charge. Settlement and
// usage problems end up in Warnings; the entry itself is already written.
type RecordChargeResult struct {
	Entry         *ledger.ChargeEntry   `json:"entry"`
	Price         pricing.ResolvedPrice `json:"price"`
	Settlement    *SettleResult         `json:"settlement,omitempty"`
	UsageRecordID *uuid.UUID            `json:"usage_record_id,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// RecordCharge prices and records a billable event. A nil result with a nil
// error means the event was free and nothing was written.
func (s *ChargeService) RecordCharge(ctx context.Context, in ledger.ChargeInput) (*RecordChargeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	price := s.pricer.ResolvePrice(ctx, ResolvePriceRequest{
		TenantID:    in.TenantID,
		CustomerID:  in.CustomerID,
		ServiceType: in.ServiceType,
		Quantity:    in.Quantity,
	})
	return s.record(ctx, in, price)
}

func (s *ChargeService) record(ctx context.Context, in ledger.ChargeInput, price pricing.ResolvedPrice) (*RecordChargeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, in.TenantID.String(),
		telemetry.SpanAttrCustomerID, in.CustomerID.String(),
		telemetry.SpanAttrServiceType, string(in.ServiceType),
		telemetry.SpanAttrQuantity, in.Quantity,
		telemetry.SpanAttrPriceSource, string(price.Source),
	)

	if price.Total.IsZero() && !in.ServiceType.AlwaysRecorded() {
		s.logger.Debug("Skipping zero-amount charge",
			zap.String("tenant_id", in.TenantID.String()),
			zap.String("service_type", string(in.ServiceType)),
		)
		return nil, nil
	}

	entry, err := ledger.NewChargeEntry(in, price)
	if err != nil {
		return nil, err
	}
	if err := s.charges.Create(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create charge entry: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrChargeEntryID, entry.ID.String())

	s.metrics.RecordCharge(ctx, entry.TenantID, string(entry.ServiceType), string(entry.PriceSource), entry.Total)
	publishAfterCommit(ctx, s.events, s.logger, []eventSource{entry})

	s.logger.Info("Charge recorded",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("charge_entry_id", entry.ID.String()),
		zap.String("service_type", string(entry.ServiceType)),
		zap.String("total", entry.Total.StringFixed(2)),
		zap.String("price_source", string(entry.PriceSource)),
	)

	result := &RecordChargeResult{Entry: entry, Price: price}

	cfg, err := optional(s.terms.FindConfig(ctx, entry.TenantID))
	if err != nil {
		s.logger.Warn("Billing config lookup failed, charge left pending",
			zap.String("charge_entry_id", entry.ID.String()),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, "billing config unavailable: "+err.Error())
		return result, nil
	}
	if cfg == nil {
		return result, nil
	}

	if cfg.TimeOfServiceEnabled && entry.Total.IsPositive() && s.settler != nil {
		res, err := s.settler.Settle(ctx, SettleRequest{TenantID: entry.TenantID, EntryID: entry.ID})
		if err != nil {
			s.logger.Warn("Settlement failed, charge left pending",
				zap.String("charge_entry_id", entry.ID.String()),
				zap.Error(err),
			)
			result.Warnings = append(result.Warnings, "settlement failed: "+err.Error())
		} else {
			result.Settlement = res
			if reloaded, err := s.charges.FindByID(ctx, entry.TenantID, entry.ID); err == nil {
				result.Entry = reloaded
			}
		}
	}

	if cfg.UsageBasedEnabled && s.usage != nil {
		id, err := s.recordUsage(ctx, entry)
		if err != nil {
			s.logger.Warn("Usage recording failed",
				zap.String("charge_entry_id", entry.ID.String()),
				zap.Error(err),
			)
			result.Warnings = append(result.Warnings, "usage recording failed: "+err.Error())
		}
		result.UsageRecordID = id
	}

	return result, nil
}

// recordUsage feeds the entry into the meter mapped to its service type.
// Service types without a meter, and inactive meters, record nothing.
func (s *ChargeService) recordUsage(ctx context.Context, entry *ledger.ChargeEntry) (*uuid.UUID, error) {
	slug, ok := entry.ServiceType.MeterSlug()
	if !ok {
		return nil, nil
	}
	meter, err := optional(s.usage.FindMeter(ctx, entry.TenantID, slug))
	if err != nil {
		return nil, fmt.Errorf("failed to find usage meter %s: %w", slug, err)
	}
	if meter == nil || !meter.IsActive {
		return nil, nil
	}

	record := ledger.NewUsageRecord(meter, entry.CustomerID, entry.Quantity, time.Now())
	record.Metadata["service_type"] = string(entry.ServiceType)
	record.Metadata["charge_entry_id"] = entry.ID.String()
	if entry.PackageID != nil {
		record.Metadata["package_id"] = entry.PackageID.String()
	}
	if err := s.usage.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create usage record: %w", err)
	}
	return &record.ID, nil
}

// ReverseResult holds a voided entry and the entry offsetting it
type ReverseResult struct {
	Original *ledger.ChargeEntry `json:"original"`
	Reversal *ledger.ChargeEntry `json:"reversal"`
}

// ReverseCharge voids a charge that was never settled and writes the
// offsetting negative entry in the same transaction.
func (s *ChargeService) ReverseCharge(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*ReverseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "reverse")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrChargeEntryID, entryID.String(),
	)

	var result ReverseResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		entry, err := repos.Charges().FindByIDForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		reversal, err := entry.Reverse(reason)
		if err != nil {
			return err
		}
		if err := repos.Charges().SaveStatus(ctx, entry); err != nil {
			return fmt.Errorf("failed to void charge entry: %w", err)
		}
		if err := repos.Charges().Create(ctx, reversal); err != nil {
			return fmt.Errorf("failed to create reversing entry: %w", err)
		}
		result.Original, result.Reversal = entry, reversal
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Charge reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_entry_id", entryID.String()),
		zap.String("reversal_id", result.Reversal.ID.String()),
		zap.String("reason", reason),
	)
	return &result, nil
}

// GetCharge returns one ledger entry
func (s *ChargeService) GetCharge(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.ChargeEntry, error) {
	return s.charges.FindByID(ctx, tenantID, entryID)
}

// ListCharges returns a page of ledger entries
func (s *ChargeService) ListCharges(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) (shared.Paginated[ledger.ChargeEntry], error) {
	entries, total, err := s.charges.List(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[ledger.ChargeEntry]{}, fmt.Errorf("failed to list charges: %w", err)
	}
	return shared.NewPaginated(entries, total, filter.Page, filter.PageSize), nil
}
