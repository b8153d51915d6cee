package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PackageCheckIn is emitted by intake when a package is logged in
type PackageCheckIn struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	MailboxID   string     `json:"mailbox_id"`
	PackageID   uuid.UUID  `json:"package_id" binding:"required"`
	Carrier     string     `json:"carrier"`
	PackageType string     `json:"package_type"`
	CreatedByID *uuid.UUID `json:"created_by_id,omitempty"`
}

// CheckoutPackage is one released package with its storage assessment
type CheckoutPackage struct {
	ID           uuid.UUID       `json:"id" binding:"required"`
	CheckedInAt  time.Time       `json:"checked_in_at"`
	StorageFee   decimal.Decimal `json:"storage_fee"`
	BillableDays int             `json:"billable_days"`
}

// PackageCheckout is emitted when packages are released to the customer
type PackageCheckout struct {
	TenantID    uuid.UUID         `json:"tenant_id"`
	CustomerID  uuid.UUID         `json:"customer_id" binding:"required"`
	MailboxID   string            `json:"mailbox_id"`
	Packages    []CheckoutPackage `json:"packages" binding:"required,dive"`
	CreatedByID *uuid.UUID        `json:"created_by_id,omitempty"`
}

// ShipmentCreated is emitted when an outbound label is bought
type ShipmentCreated struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	CustomerID    uuid.UUID       `json:"customer_id" binding:"required"`
	MailboxID     string          `json:"mailbox_id"`
	ShipmentID    uuid.UUID       `json:"shipment_id" binding:"required"`
	Carrier       string          `json:"carrier"`
	Service       string          `json:"service"`
	RetailPrice   decimal.Decimal `json:"retail_price"`
	WholesaleCost decimal.Decimal `json:"wholesale_cost"`
	CreatedByID   *uuid.UUID      `json:"created_by_id,omitempty"`
}

// Mail actions that bill
const (
	MailActionScan    = "scan"
	MailActionForward = "forward"
	MailActionDiscard = "discard"
)

// MailAction is emitted when staff act on a mail piece
type MailAction struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	CustomerID  uuid.UUID  `json:"customer_id" binding:"required"`
	MailboxID   string     `json:"mailbox_id"`
	MailPieceID uuid.UUID  `json:"mail_piece_id" binding:"required"`
	Action      string     `json:"action" binding:"required,oneof=scan forward discard"`
	PageCount   int        `json:"page_count"`
	CreatedByID *uuid.UUID `json:"created_by_id,omitempty"`
}

// OnPackageCheckIn bills the receiving fee
func (s *ChargeService) OnPackageCheckIn(ctx context.Context, ev PackageCheckIn) (*RecordChargeResult, error) {
	packageID := ev.PackageID
	return s.RecordCharge(ctx, ledger.ChargeInput{
		TenantID:    ev.TenantID,
		CustomerID:  ev.CustomerID,
		MailboxID:   ev.MailboxID,
		ServiceType: ledger.ServiceReceiving,
		Description: strings.TrimSpace(fmt.Sprintf("Package receiving: %s %s", ev.Carrier, ev.PackageType)),
		Quantity:    1,
		PackageID:   &packageID,
		CreatedByID: ev.CreatedByID,
	})
}

// CheckoutResult lists the storage charges written at checkout
type CheckoutResult struct {
	Charges []*RecordChargeResult `json:"charges"`
	Errors  []BatchError          `json:"errors,omitempty"`
}

// OnPackageCheckout bills storage for packages held past their free days.
// One package failing does not stop the others.
func (s *ChargeService) OnPackageCheckout(ctx context.Context, ev PackageCheckout) *CheckoutResult {
	result := &CheckoutResult{}
	for _, pkg := range ev.Packages {
		if pkg.BillableDays <= 0 || !pkg.StorageFee.IsPositive() {
			continue
		}
		packageID := pkg.ID
		res, err := s.RecordCharge(ctx, ledger.ChargeInput{
			TenantID:    ev.TenantID,
			CustomerID:  ev.CustomerID,
			MailboxID:   ev.MailboxID,
			ServiceType: ledger.ServiceStorage,
			Description: fmt.Sprintf("Package storage: %d day(s) beyond free period", pkg.BillableDays),
			Quantity:    pkg.BillableDays,
			PackageID:   &packageID,
			CreatedByID: ev.CreatedByID,
		})
		if err != nil {
			result.Errors = append(result.Errors, batchError("package "+pkg.ID.String(), err))
			continue
		}
		if res != nil {
			result.Charges = append(result.Charges, res)
		}
	}
	return result
}

// OnShipmentCreated bills the shipment at its own retail price. The catalog
// is not consulted: the carrier quote is the price.
func (s *ChargeService) OnShipmentCreated(ctx context.Context, ev ShipmentCreated) (*RecordChargeResult, error) {
	if !ev.RetailPrice.IsPositive() {
		return nil, nil
	}
	description := "Shipping: " + ev.Carrier
	if ev.Service != "" {
		description += " " + ev.Service
	}
	retail := shared.RoundMoney(ev.RetailPrice)
	cost := shared.RoundMoney(ev.WholesaleCost)
	shipmentID := ev.ShipmentID

	in := ledger.ChargeInput{
		TenantID:    ev.TenantID,
		CustomerID:  ev.CustomerID,
		MailboxID:   ev.MailboxID,
		ServiceType: ledger.ServiceShipping,
		Description: description,
		Quantity:    1,
		ShipmentID:  &shipmentID,
		CreatedByID: ev.CreatedByID,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.record(ctx, in, pricing.ResolvedPrice{
		UnitRate:  retail,
		CostBasis: cost,
		Markup:    shared.NonNegative(retail.Sub(cost)),
		Total:     retail,
		Source:    pricing.SourceShipment,
	})
}

// OnMailAction bills scanning per page, forwarding and disposal
func (s *ChargeService) OnMailAction(ctx context.Context, ev MailAction) (*RecordChargeResult, error) {
	var (
		serviceType ledger.ServiceType
		description string
		quantity    = 1
	)
	switch ev.Action {
	case MailActionScan:
		if ev.PageCount > 0 {
			quantity = ev.PageCount
		}
		serviceType = ledger.ServiceScanning
		description = fmt.Sprintf("Mail scanning: %d page(s)", quantity)
	case MailActionForward:
		serviceType = ledger.ServiceForwarding
		description = "Mail forwarding"
	case MailActionDiscard:
		serviceType = ledger.ServiceDisposal
		description = "Mail disposal / shredding"
	default:
		return nil, shared.NewDomainError("INVALID_MAIL_ACTION",
			fmt.Sprintf("Unknown mail action %q", ev.Action))
	}
	mailPieceID := ev.MailPieceID
	return s.RecordCharge(ctx, ledger.ChargeInput{
		TenantID:    ev.TenantID,
		CustomerID:  ev.CustomerID,
		MailboxID:   ev.MailboxID,
		ServiceType: serviceType,
		Description: description,
		Quantity:    quantity,
		MailPieceID: &mailPieceID,
		CreatedByID: ev.CreatedByID,
	})
}

// StorageRunResult summarizes one daily storage run
type StorageRunResult struct {
	Day     string       `json:"day"`
	Created int          `json:"created"`
	Skipped int          `json:"skipped"`
	Errors  []BatchError `json:"errors,omitempty"`
}

// GenerateDailyStorageCharges writes one storage charge per package still
// on the shelf past the tenant's free days. Running it twice for the same
// day is a no-op the second time. tenantID limits the run to one tenant.
func (s *ChargeService) GenerateDailyStorageCharges(ctx context.Context, tenantID *uuid.UUID, day time.Time) (*StorageRunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "daily_storage")
	defer span.End()

	dayKey := day.UTC().Format(ledger.DayFormat)
	result := &StorageRunResult{Day: dayKey}

	tenants, err := s.storageTenants(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for i := range tenants {
		tenant := &tenants[i]
		packages, err := s.directory.ListHeldPackages(ctx, tenant.ID, tenant.StorageCutoff(day))
		if err != nil {
			result.Errors = append(result.Errors, batchError("tenant "+tenant.ID.String(), err))
			continue
		}
		for j := range packages {
			pkg := &packages[j]
			created, err := s.chargeStorageDay(ctx, pkg, day, dayKey)
			switch {
			case err != nil:
				result.Errors = append(result.Errors, batchError("package "+pkg.ID.String(), err))
			case created:
				result.Created++
			default:
				result.Skipped++
			}
		}
	}

	s.logger.Info("Daily storage charges generated",
		zap.String("day", dayKey),
		zap.Int("tenants", len(tenants)),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *ChargeService) storageTenants(ctx context.Context, tenantID *uuid.UUID) ([]directory.Tenant, error) {
	if tenantID == nil {
		tenants, err := s.directory.ListActiveTenants(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active tenants: %w", err)
		}
		return tenants, nil
	}
	tenant, err := s.directory.FindTenant(ctx, *tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status != directory.StatusActive {
		return nil, nil
	}
	return []directory.Tenant{*tenant}, nil
}

func (s *ChargeService) chargeStorageDay(ctx context.Context, pkg *directory.HeldPackage, day time.Time, dayKey string) (bool, error) {
	exists, err := s.charges.ExistsForDay(ctx, pkg.ID, ledger.ServiceStorage, dayKey)
	if err != nil {
		return false, fmt.Errorf("failed to check existing storage charge: %w", err)
	}
	if exists {
		return false, nil
	}
	packageID := pkg.ID
	res, err := s.RecordCharge(ctx, ledger.ChargeInput{
		TenantID:    pkg.TenantID,
		CustomerID:  pkg.CustomerID,
		MailboxID:   pkg.MailboxID,
		ServiceType: ledger.ServiceStorage,
		Description: "Daily storage fee: package " + pkg.Label(),
		Quantity:    1,
		PackageID:   &packageID,
		Notes:       "Auto-generated daily storage charge for " + dayKey,
		OccurredAt:  day,
		Recurring:   true,
	})
	if err != nil {
		return false, err
	}
	return res != nil, nil
}
