package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics counts ledger, settlement, invoice and auto-pay activity.
// A nil *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	logger *zap.Logger

	chargesRecorded  *Counter
	chargeCents      *Counter
	settlements      *Counter
	captureDuration  *Histogram
	invoices         *Counter
	autoPayOutcomes  *Counter
	outstandingCents *Gauge

	balanceProvider OutstandingBalanceProvider

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// OutstandingBalanceProvider totals unpaid account balances per tenant
type OutstandingBalanceProvider interface {
	OutstandingByTenant(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BalanceProvider OutstandingBalanceProvider
}

// NewBillingMetrics registers the billing instruments on cfg.Meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		logger:          logger,
		balanceProvider: cfg.BalanceProvider,
		stopChan:        make(chan struct{}),
	}

	var err error
	if bm.chargesRecorded, err = NewCounter(cfg.Meter,
		"mailbill_charges_recorded_total", "Charge entries written to the ledger", "{charges}"); err != nil {
		return nil, err
	}
	if bm.chargeCents, err = NewCounter(cfg.Meter,
		"mailbill_charge_amount_total", "Charged amount in cents", "{cents}"); err != nil {
		return nil, err
	}
	if bm.settlements, err = NewCounter(cfg.Meter,
		"mailbill_settlements_total", "Settlement records created", "{records}"); err != nil {
		return nil, err
	}
	if bm.captureDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "mailbill_capture_duration_seconds",
		Description: "Payment capture latency",
		Unit:        "s",
		Boundaries:  CaptureDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.invoices, err = NewCounter(cfg.Meter,
		"mailbill_invoice_transitions_total", "Invoice lifecycle transitions", "{invoices}"); err != nil {
		return nil, err
	}
	if bm.autoPayOutcomes, err = NewCounter(cfg.Meter,
		"mailbill_autopay_invoices_total", "Invoices processed by auto-pay", "{invoices}"); err != nil {
		return nil, err
	}
	if bm.outstandingCents, err = NewGauge(cfg.Meter,
		"mailbill_outstanding_balance", "Outstanding account balance in cents", "{cents}"); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordCharge counts a ledger entry and its amount
func (bm *BillingMetrics) RecordCharge(ctx context.Context, tenantID uuid.UUID, serviceType, priceSource string, total decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.chargesRecorded.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrServiceType.String(serviceType),
		AttrPriceSource.String(priceSource),
	)
	bm.chargeCents.Add(ctx, toCents(total),
		AttrTenantID.String(tenantID.String()),
		AttrServiceType.String(serviceType),
	)
}

// RecordSettlement counts a settlement record by mode and status
func (bm *BillingMetrics) RecordSettlement(ctx context.Context, tenantID uuid.UUID, mode, status string) {
	if bm == nil {
		return
	}
	bm.settlements.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSettlementMode.String(mode),
		AttrRecordStatus.String(status),
	)
}

// RecordCapture observes one capture attempt
func (bm *BillingMetrics) RecordCapture(ctx context.Context, d time.Duration, success bool) {
	if bm == nil {
		return
	}
	outcome := "declined"
	if success {
		outcome = "captured"
	}
	bm.captureDuration.RecordDuration(ctx, d, AttrCaptureOutcome.String(outcome))
}

// RecordInvoice counts an invoice entering status
func (bm *BillingMetrics) RecordInvoice(ctx context.Context, tenantID uuid.UUID, status string) {
	if bm == nil {
		return
	}
	bm.invoices.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrInvoiceStatus.String(status),
	)
}

// RecordAutoPay counts an invoice processed by auto-pay
func (bm *BillingMetrics) RecordAutoPay(ctx context.Context, tenantID uuid.UUID, success bool) {
	if bm == nil {
		return
	}
	outcome := "declined"
	if success {
		outcome = "captured"
	}
	bm.autoPayOutcomes.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrCaptureOutcome.String(outcome),
	)
}

// StartPeriodicCollection samples outstanding balances every interval
// until Stop is called or ctx ends.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if bm == nil || bm.balanceProvider == nil {
		return
	}
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectBalances(ctx)
	for {
		select {
		case <-bm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectBalances(ctx)
		}
	}
}

func (bm *BillingMetrics) collectBalances(ctx context.Context) {
	totals, err := bm.balanceProvider.OutstandingByTenant(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect outstanding balances", zap.Error(err))
		return
	}
	for tenantID, total := range totals {
		bm.outstandingCents.Record(ctx, toCents(total), AttrTenantID.String(tenantID.String()))
	}
}

// Stop ends periodic collection
func (bm *BillingMetrics) Stop() {
	if bm == nil {
		return
	}
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics setup error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
