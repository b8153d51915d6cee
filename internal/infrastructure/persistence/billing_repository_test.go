package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/pricing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	appbilling "github.com/mailcenter/billing/internal/application/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestDeferredRecord(t *testing.T, tenantID, customerID uuid.UUID, amount string) *settlement.Record {
	t.Helper()
	rec, err := settlement.NewDeferredRecord(settlement.RecordInput{
		TenantID:      tenantID,
		CustomerID:    customerID,
		Description:   "Package receiving",
		Amount:        decimal.RequireFromString(amount),
		ReferenceType: string(ledger.ServiceReceiving),
	}, time.Now().AddDate(0, 0, 30), nil)
	require.NoError(t, err)
	return rec
}

func TestGormPricingRepository_Catalog(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPricingRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	action, err := pricing.NewPricedAction(tenantID, pricing.ActionInput{
		Key:         string(pricing.ActionPackageReceiving),
		Name:        "Package Receiving",
		Category:    pricing.CategoryPackage,
		RetailPrice: decimal.NewFromFloat(2.50),
		Cogs:        decimal.NewFromFloat(0.75),
	})
	require.NoError(t, err)
	require.NoError(t, repo.SaveAction(ctx, action))

	t.Run("duplicate key is rejected", func(t *testing.T) {
		dup, err := pricing.NewPricedAction(tenantID, pricing.ActionInput{
			Key:  string(pricing.ActionPackageReceiving),
			Name: "Receiving again",
		})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.SaveAction(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("override upsert replaces price columns", func(t *testing.T) {
		first, err := pricing.NewPriceOverride(action, pricing.OverrideInput{
			TargetType:  pricing.TargetSegment,
			TargetValue: pricing.SegmentIPostal,
			RetailPrice: decimalPtr("2.00"),
		})
		require.NoError(t, err)
		require.NoError(t, repo.UpsertOverride(ctx, first))

		second, err := pricing.NewPriceOverride(action, pricing.OverrideInput{
			TargetType:  pricing.TargetSegment,
			TargetValue: pricing.SegmentIPostal,
			RetailPrice: decimalPtr("1.75"),
		})
		require.NoError(t, err)
		require.NoError(t, repo.UpsertOverride(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		overrides, err := repo.ListOverrides(ctx, action.ID)
		require.NoError(t, err)
		require.Len(t, overrides, 1)
		require.NotNil(t, overrides[0].RetailPrice)
		assert.True(t, overrides[0].RetailPrice.Equal(decimal.RequireFromString("1.75")))
	})

	t.Run("active lookup carries overrides", func(t *testing.T) {
		found, err := repo.FindActiveAction(ctx, tenantID, pricing.ActionPackageReceiving)
		require.NoError(t, err)
		assert.Equal(t, action.ID, found.ID)
		assert.Len(t, found.Overrides, 1)
	})

	t.Run("deactivated action is not resolvable", func(t *testing.T) {
		action.Deactivate()
		require.NoError(t, repo.SaveAction(ctx, action))

		_, err := repo.FindActiveAction(ctx, tenantID, pricing.ActionPackageReceiving)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		stored, err := repo.FindAction(ctx, tenantID, action.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("stale save is a conflict", func(t *testing.T) {
		stale := *action
		require.NoError(t, stale.Update(pricing.ActionInput{Name: "Receiving", RetailPrice: decimal.NewFromInt(3)}))
		require.NoError(t, repo.SaveAction(ctx, &stale))

		require.NoError(t, action.Update(pricing.ActionInput{Name: "Receiving v2", RetailPrice: decimal.NewFromInt(4)}))
		assert.ErrorIs(t, repo.SaveAction(ctx, action), shared.ErrConcurrencyConflict)
	})
}

func TestGormBalanceRepository_GetOrCreateForUpdate(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBalanceRepository(db)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()

	opened, err := repo.GetOrCreateForUpdate(ctx, tenantID, customerID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, opened.Balance.IsZero())
	assert.True(t, opened.CreditLimit.Equal(decimal.NewFromInt(500)))

	opened.Increment(decimal.RequireFromString("12.50"))
	require.NoError(t, repo.Save(ctx, opened))

	again, err := repo.GetOrCreateForUpdate(ctx, tenantID, customerID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, opened.ID, again.ID)
	assert.True(t, again.Balance.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, again.CreditLimit.Equal(decimal.NewFromInt(500)), "existing limit is kept")

	outstanding, err := repo.ListOutstanding(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, customerID, outstanding[0].CustomerID)

	_, err = repo.Find(ctx, tenantID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSettlementRecordRepository_InvoiceLifecycle(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormSettlementRecordRepository(db)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()

	first := newTestDeferredRecord(t, tenantID, customerID, "3.00")
	second := newTestDeferredRecord(t, tenantID, customerID, "4.25")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	pending, err := repo.ListPendingDeferred(ctx, tenantID, customerID, nil, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	total, oldest, err := repo.PendingDeferredSummary(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("7.25")))
	assert.NotNil(t, oldest)

	customers, err := repo.CustomersWithPendingDeferred(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{customerID}, customers)

	invoiceID := uuid.New()
	n, err := repo.AttachInvoice(ctx, []uuid.UUID{first.ID, second.ID}, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	t.Run("attached records are not attached twice", func(t *testing.T) {
		n, err := repo.AttachInvoice(ctx, []uuid.UUID{first.ID}, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invoiced records still count as owed", func(t *testing.T) {
		total, _, err := repo.PendingDeferredSummary(ctx, tenantID, customerID)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("7.25")))
	})

	t.Run("detach returns records to pending", func(t *testing.T) {
		n, err := repo.DetachInvoice(ctx, invoiceID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		reloaded, err := repo.FindByID(ctx, tenantID, first.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusPending, reloaded.Status)
		assert.Nil(t, reloaded.InvoiceID)
	})

	t.Run("settle marks invoiced records paid", func(t *testing.T) {
		otherInvoice := uuid.New()
		_, err := repo.AttachInvoice(ctx, []uuid.UUID{first.ID, second.ID}, otherInvoice)
		require.NoError(t, err)

		n, err := repo.SettleInvoice(ctx, otherInvoice, "PAY-1", time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		records, err := repo.ListByInvoice(ctx, otherInvoice)
		require.NoError(t, err)
		for _, r := range records {
			assert.Equal(t, settlement.RecordStatusPaid, r.Status)
			assert.Equal(t, "PAY-1", r.PaymentRef)
		}

		total, oldest, err := repo.PendingDeferredSummary(ctx, tenantID, customerID)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
		assert.Nil(t, oldest)
	})
}

func TestGormInvoiceRepository_CreateAndSummarize(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()
	now := time.Now()

	newInvoice := func(number string, amounts ...string) *invoicing.Invoice {
		records := make([]settlement.Record, len(amounts))
		for i, a := range amounts {
			records[i] = *newTestDeferredRecord(t, tenantID, customerID, a)
		}
		inv, err := invoicing.NewInvoice(invoicing.Draft{
			TenantID:   tenantID,
			CustomerID: customerID,
			Number:     number,
			DueDate:    now.AddDate(0, 0, 30),
			PeriodEnd:  now,
		}, records)
		require.NoError(t, err)
		return inv
	}

	inv := newInvoice(invoicing.FormatNumber(now, 1), "3.00", "1.50")
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("number collision", func(t *testing.T) {
		dup := newInvoice(inv.Number, "2.00")
		assert.ErrorIs(t, repo.Create(ctx, dup), invoicing.ErrInvoiceNumberTaken)
	})

	t.Run("line items load in order", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.Len(t, loaded.LineItems, 2)
		assert.Equal(t, 0, loaded.LineItems[0].SortOrder)
		assert.True(t, loaded.Amount.Equal(decimal.RequireFromString("4.50")))
		assert.Len(t, loaded.RecordIDs(), 2)
	})

	t.Run("count since start of day", func(t *testing.T) {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		count, err := repo.CountCreatedSince(ctx, tenantID, start)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("summary by status", func(t *testing.T) {
		paid := newInvoice(invoicing.FormatNumber(now, 2), "10.00")
		require.NoError(t, repo.Create(ctx, paid))
		_, err := paid.ApplyPayment(invoicing.Payment{Amount: decimal.NewFromInt(10), Reference: "CHK-7"}, now)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, paid))

		totals, err := repo.SummarizeByStatus(ctx, tenantID)
		require.NoError(t, err)
		summary := invoicing.NewSummary(totals)
		assert.Equal(t, int64(1), summary.TotalDraft)
		assert.Equal(t, int64(1), summary.TotalPaid)
		assert.True(t, summary.AmountDraft.Equal(decimal.RequireFromString("4.50")))
		assert.True(t, summary.AmountPaid.Equal(decimal.NewFromInt(10)))
	})

	t.Run("past due lists sent invoices only", func(t *testing.T) {
		late := newInvoice(invoicing.FormatNumber(now, 3), "5.00")
		late.DueDate = now.AddDate(0, 0, -1)
		require.NoError(t, repo.Create(ctx, late))
		require.NoError(t, late.Send(invoicing.ChannelEmail, now))
		require.NoError(t, repo.Save(ctx, late))

		pastDue, err := repo.ListPastDue(ctx, tenantID, now)
		require.NoError(t, err)
		require.Len(t, pastDue, 1)
		assert.Equal(t, late.ID, pastDue[0].ID)
	})
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	db := setupBillingTestDB(t)
	scope := NewGormTransactionScope(db)
	records := NewGormSettlementRecordRepository(db)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()
	rec := newTestDeferredRecord(t, tenantID, customerID, "9.99")

	err := scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		if err := repos.Records().Create(ctx, rec); err != nil {
			return err
		}
		return shared.ErrConcurrencyConflict
	})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	_, err = records.FindByID(ctx, tenantID, rec.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormTermsRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormTermsRepository(db)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()

	_, err := repo.FindConfig(ctx, tenantID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	window := 15
	require.NoError(t, repo.SaveConfig(ctx, &settlement.BillingConfig{
		TenantID:             tenantID,
		TimeOfServiceEnabled: true,
		DefaultMode:          settlement.ModeDeferred,
		PaymentWindowDays:    &window,
	}))
	require.NoError(t, repo.SaveConfig(ctx, &settlement.BillingConfig{
		TenantID:             tenantID,
		TimeOfServiceEnabled: true,
		DefaultMode:          settlement.ModeImmediate,
		PaymentWindowDays:    &window,
	}))
	cfg, err := repo.FindConfig(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, settlement.ModeImmediate, cfg.DefaultMode)

	day := 12
	require.NoError(t, repo.SaveProfile(ctx, &settlement.BillingProfile{
		TenantID:       tenantID,
		CustomerID:     customerID,
		Mode:           settlement.ModeDeferred,
		AutoPayEnabled: true,
		AutoPayDay:     &day,
	}))
	profiles, err := repo.ListAutoPayProfiles(ctx, tenantID, 12)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, customerID, profiles[0].CustomerID)

	profiles, err = repo.ListAutoPayProfiles(ctx, tenantID, 13)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestGormTermsRepository_FallbackConfig(t *testing.T) {
	db := setupBillingTestDB(t)
	window := 45
	repo := NewGormTermsRepository(db).WithFallbackConfig(settlement.BillingConfig{
		DefaultMode:       settlement.ModeDeferred,
		PaymentWindowDays: &window,
	})
	ctx := context.Background()
	tenantID := uuid.New()

	cfg, err := repo.FindConfig(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, tenantID, cfg.TenantID)
	assert.Equal(t, settlement.ModeDeferred, cfg.DefaultMode)
	assert.False(t, cfg.TimeOfServiceEnabled)

	// a stored config wins over the fallback
	require.NoError(t, repo.SaveConfig(ctx, &settlement.BillingConfig{
		TenantID:    tenantID,
		DefaultMode: settlement.ModeImmediate,
	}))
	cfg, err = repo.FindConfig(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, settlement.ModeImmediate, cfg.DefaultMode)
	assert.Nil(t, cfg.PaymentWindowDays)
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
