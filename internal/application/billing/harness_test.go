package billing_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/cache"
	"github.com/mailcenter/billing/internal/infrastructure/persistence"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeCapture approves every capture unless told to decline or hang
type fakeCapture struct {
	mu      sync.Mutex
	decline string
	hang    bool
	calls   []settlement.CaptureRequest
}

func (f *fakeCapture) Capture(ctx context.Context, req settlement.CaptureRequest) (settlement.CaptureResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	decline, hang := f.decline, f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return settlement.CaptureResult{}, ctx.Err()
	}
	if decline != "" {
		return settlement.CaptureResult{Success: false, FailureReason: decline}, nil
	}
	return settlement.CaptureResult{Success: true, Reference: fmt.Sprintf("ch_test_%d", n)}, nil
}

func (f *fakeCapture) setDecline(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decline = reason
}

func (f *fakeCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCapture) lastCall() settlement.CaptureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	capture  *fakeCapture
	events   *recordingPublisher
	claims   *cache.InMemoryIdempotencyStore
	pricing  *appbilling.PricingService
	settle   *appbilling.SettlementService
	charges  *appbilling.ChargeService
	invoices *appbilling.InvoiceService
	autopay  *appbilling.AutoPayService

	chargeRepo  *persistence.GormChargeRepository
	recordRepo  *persistence.GormSettlementRecordRepository
	balanceRepo *persistence.GormBalanceRepository
	termsRepo   *persistence.GormTermsRepository
	invoiceRepo *persistence.GormInvoiceRepository

	tenantID   uuid.UUID
	customerID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	h := &harness{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		capture:     &fakeCapture{},
		events:      &recordingPublisher{},
		claims:      cache.NewInMemoryIdempotencyStore(),
		chargeRepo:  persistence.NewGormChargeRepository(db),
		recordRepo:  persistence.NewGormSettlementRecordRepository(db),
		balanceRepo: persistence.NewGormBalanceRepository(db),
		termsRepo:   persistence.NewGormTermsRepository(db),
		invoiceRepo: persistence.NewGormInvoiceRepository(db),
		tenantID:    uuid.New(),
		customerID:  uuid.New(),
	}
	t.Cleanup(func() { _ = h.claims.Close() })

	scope := persistence.NewGormTransactionScope(db)
	dir := persistence.NewGormDirectory(db)
	methods := persistence.NewGormPaymentMethodRepository(db)

	h.pricing = appbilling.NewPricingService(persistence.NewGormPricingRepository(db), dir, zap.NewNop())
	h.settle = appbilling.NewSettlementService(appbilling.SettlementServiceDeps{
		Scope:     scope,
		Records:   h.recordRepo,
		Charges:   h.chargeRepo,
		Balances:  h.balanceRepo,
		Terms:     h.termsRepo,
		Methods:   methods,
		Directory: dir,
		Capture:   h.capture,
		Claims:    h.claims,
		Events:    h.events,
	}, appbilling.SettlementOptions{CaptureTimeout: 200 * time.Millisecond})
	h.charges = appbilling.NewChargeService(appbilling.ChargeServiceDeps{
		Pricer:    h.pricing,
		Charges:   h.chargeRepo,
		Usage:     persistence.NewGormUsageRepository(db),
		Terms:     h.termsRepo,
		Directory: dir,
		Settler:   h.settle,
		Scope:     scope,
		Events:    h.events,
	})
	h.invoices = appbilling.NewInvoiceService(appbilling.InvoiceServiceDeps{
		Scope:     scope,
		Invoices:  h.invoiceRepo,
		Records:   h.recordRepo,
		Schedules: persistence.NewGormInvoiceScheduleRepository(db),
		Terms:     h.termsRepo,
		Events:    h.events,
	}, appbilling.InvoiceOptions{})
	h.autopay = appbilling.NewAutoPayService(appbilling.AutoPayServiceDeps{
		Terms:     h.termsRepo,
		Invoices:  h.invoiceRepo,
		Methods:   methods,
		Directory: dir,
		Capture:   h.capture,
		Payer:     h.invoices,
		Events:    h.events,
	}, 200*time.Millisecond)

	receiving := decimal.NewFromFloat(3.50)
	storage := decimal.NewFromFloat(1.25)
	require.NoError(t, db.Create(&models.DirectoryTenantModel{
		ID:               h.tenantID,
		Name:             "Main Street Mail",
		Status:           "active",
		ReceivingFeeRate: &receiving,
		StorageRate:      &storage,
		StorageFreeDays:  3,
	}).Error)
	h.addCustomer(h.customerID, "Ada", "Lovelace", "")
	return h
}

func (h *harness) addCustomer(id uuid.UUID, first, last, segment string) {
	h.t.Helper()
	require.NoError(h.t, h.db.Create(&models.DirectoryCustomerModel{
		ID:        id,
		TenantID:  h.tenantID,
		FirstName: first,
		LastName:  last,
		MailboxID: "MB-" + id.String()[:4],
		Segment:   segment,
		Status:    "active",
	}).Error)
}

// enableBilling turns on time-of-service settlement in the given mode
func (h *harness) enableBilling(mode settlement.Mode, windowDays int) {
	h.t.Helper()
	require.NoError(h.t, h.db.Save(&models.BillingConfigModel{
		TenantID:             h.tenantID,
		TimeOfServiceEnabled: true,
		DefaultMode:          mode,
		PaymentWindowDays:    &windowDays,
		UpdatedAt:            time.Now(),
	}).Error)
}

func (h *harness) addCard(customerID uuid.UUID) uuid.UUID {
	h.t.Helper()
	id := uuid.New()
	require.NoError(h.t, h.db.Create(&models.PaymentMethodModel{
		ID:         id,
		TenantID:   h.tenantID,
		CustomerID: customerID,
		Type:       settlement.MethodCard,
		Label:      "Visa 4242",
		IsDefault:  true,
		Status:     settlement.MethodStatusActive,
		CreatedAt:  time.Now(),
	}).Error)
	return id
}

func (h *harness) setProfile(customerID uuid.UUID, mut func(*models.BillingProfileModel)) {
	h.t.Helper()
	profile := &models.BillingProfileModel{TenantID: h.tenantID, CustomerID: customerID, UpdatedAt: time.Now()}
	mut(profile)
	require.NoError(h.t, h.db.Save(profile).Error)
}

func (h *harness) balanceOf(customerID uuid.UUID) decimal.Decimal {
	h.t.Helper()
	b, err := h.balanceRepo.Find(h.ctx, h.tenantID, customerID)
	if err != nil {
		require.ErrorIs(h.t, err, shared.ErrNotFound)
		return decimal.Zero
	}
	return b.Balance
}

func (h *harness) checkIn(customerID uuid.UUID) *appbilling.RecordChargeResult {
	h.t.Helper()
	res, err := h.charges.OnPackageCheckIn(h.ctx, appbilling.PackageCheckIn{
		TenantID:    h.tenantID,
		CustomerID:  customerID,
		PackageID:   uuid.New(),
		Carrier:     "UPS",
		PackageType: "box",
	})
	require.NoError(h.t, err)
	require.NotNil(h.t, res)
	return res
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
