package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deferTwoCharges puts two receiving charges on the customer's account
func deferTwoCharges(h *harness, customerID uuid.UUID) []uuid.UUID {
	h.t.Helper()
	ids := make([]uuid.UUID, 0, 2)
	for range 2 {
		res := h.checkIn(customerID)
		require.NotNil(h.t, res.Settlement)
		require.Equal(h.t, settlement.RecordStatusPending, res.Settlement.Status)
		ids = append(ids, res.Entry.ID)
	}
	return ids
}

func TestInvoiceService_GenerateAndPay(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 15)
	entryIDs := deferTwoCharges(h, h.customerID)

	res, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
		AutoSend:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	inv := res.Invoice
	assert.Equal(t, invoicing.FormatNumber(time.Now(), 1), inv.Number)
	assert.Equal(t, invoicing.StatusSent, inv.Status)
	assert.Equal(t, invoicing.ChannelEmail, inv.SentVia)
	assert.Equal(t, "7.00", inv.Total().StringFixed(2))
	assert.Len(t, inv.LineItems, 2)
	assert.Equal(t, 2, res.RecordsInvoiced)
	assert.EqualValues(t, 2, res.ChargesInvoiced)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 15), inv.DueDate, time.Minute)
	assert.Contains(t, h.events.types(), invoicing.EventTypeInvoiceSent)

	for _, id := range entryIDs {
		entry, err := h.charges.GetCharge(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.ChargeStatusInvoiced, entry.Status)
	}

	t.Run("nothing left to invoice", func(t *testing.T) {
		again, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
			TenantID:   h.tenantID,
			CustomerID: h.customerID,
		})
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	partial, err := h.invoices.RecordPayment(h.ctx, h.tenantID, inv.ID, appbilling.PaymentInput{
		Amount:    money("3.00"),
		Reference: "cash-001",
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPartiallyPaid, partial.Status)
	assert.Equal(t, "4.00", partial.AmountDue().StringFixed(2))
	assert.Equal(t, "7.00", h.balanceOf(h.customerID).StringFixed(2))

	paid, err := h.invoices.RecordPayment(h.ctx, h.tenantID, inv.ID, appbilling.PaymentInput{
		Amount:    money("4.00"),
		Reference: "cash-002",
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.True(t, h.balanceOf(h.customerID).IsZero())

	for _, id := range entryIDs {
		entry, err := h.charges.GetCharge(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.ChargeStatusPaid, entry.Status)
	}
	for _, id := range inv.RecordIDs() {
		record, err := h.settle.GetRecord(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusPaid, record.Status)
	}

	_, err = h.invoices.RecordPayment(h.ctx, h.tenantID, inv.ID, appbilling.PaymentInput{Amount: money("1.00")})
	assert.ErrorIs(t, err, invoicing.ErrInvoiceAlreadyPaid)
	_, err = h.invoices.VoidInvoice(h.ctx, h.tenantID, inv.ID)
	assert.ErrorIs(t, err, invoicing.ErrCannotVoidPaid)
}

func TestInvoiceService_VoidReleasesRecords(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 30)
	entryIDs := deferTwoCharges(h, h.customerID)

	res, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, invoicing.StatusDraft, res.Invoice.Status)

	voided, err := h.invoices.VoidInvoice(h.ctx, h.tenantID, res.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusVoid, voided.Status)

	for _, id := range res.Invoice.RecordIDs() {
		record, err := h.settle.GetRecord(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusPending, record.Status)
		assert.Nil(t, record.InvoiceID)
	}
	for _, id := range entryIDs {
		entry, err := h.charges.GetCharge(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.ChargeStatusPosted, entry.Status)
	}
	assert.Equal(t, "7.00", h.balanceOf(h.customerID).StringFixed(2))

	reissued, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
	})
	require.NoError(t, err)
	require.NotNil(t, reissued)
	assert.Equal(t, invoicing.FormatNumber(time.Now(), 2), reissued.Invoice.Number)
}

func TestInvoiceService_VoidSentInvoiceReissuesSameRecords(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 30)
	entryIDs := deferTwoCharges(h, h.customerID)
	third := h.checkIn(h.customerID)
	entryIDs = append(entryIDs, third.Entry.ID)

	sent, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
		AutoSend:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, invoicing.StatusSent, sent.Invoice.Status)
	require.Len(t, sent.Invoice.LineItems, 3)
	original := sent.Invoice.RecordIDs()

	voided, err := h.invoices.VoidInvoice(h.ctx, h.tenantID, sent.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusVoid, voided.Status)

	for _, id := range original {
		record, err := h.settle.GetRecord(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusPending, record.Status)
		assert.Nil(t, record.InvoiceID)
	}
	for _, id := range entryIDs {
		entry, err := h.charges.GetCharge(h.ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.ChargeStatusPosted, entry.Status)
	}
	assert.Equal(t, "10.50", h.balanceOf(h.customerID).StringFixed(2))

	reissued, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
	})
	require.NoError(t, err)
	require.NotNil(t, reissued)
	assert.ElementsMatch(t, original, reissued.Invoice.RecordIDs())
	assert.Equal(t, sent.Invoice.Total().StringFixed(2), reissued.Invoice.Total().StringFixed(2))
}

func TestInvoiceService_InvalidPeriod(t *testing.T) {
	h := newHarness(t)
	start := time.Now()
	end := start.AddDate(0, 0, -1)

	_, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:    h.tenantID,
		CustomerID:  h.customerID,
		PeriodStart: &start,
		PeriodEnd:   &end,
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_PERIOD", domainErr.Code)
}

func TestInvoiceService_Batch(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 30)
	second := uuid.New()
	h.addCustomer(second, "Grace", "Hopper", "")
	deferTwoCharges(h, h.customerID)
	h.checkIn(second)

	batch, err := h.invoices.GenerateBatch(h.ctx, h.tenantID, appbilling.BatchOptions{AutoSend: true})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count)
	assert.Equal(t, "10.50", batch.TotalAmount.StringFixed(2))
	assert.Empty(t, batch.Errors)

	summary, err := h.invoices.Summary(h.ctx, h.tenantID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.TotalSent)
	assert.Equal(t, "10.50", summary.AmountSent.StringFixed(2))

	t.Run("overdue after the due date", func(t *testing.T) {
		result, err := h.invoices.MarkOverdue(h.ctx, h.tenantID, time.Now().AddDate(0, 0, 31))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Marked)

		page, err := h.invoices.ListInvoices(h.ctx, h.tenantID, invoicing.Filter{Statuses: []invoicing.Status{invoicing.StatusOverdue}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
	})
}

func TestInvoiceService_Schedules(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 30)
	own := uuid.New()
	h.addCustomer(own, "Grace", "Hopper", "")
	deferTwoCharges(h, h.customerID)
	h.checkIn(own)

	tenantSchedule, err := h.invoices.GetOrCreateSchedule(h.ctx, h.tenantID, nil)
	require.NoError(t, err)
	again, err := h.invoices.GetOrCreateSchedule(h.ctx, h.tenantID, nil)
	require.NoError(t, err)
	assert.Equal(t, tenantSchedule.ID, again.ID)

	customerSchedule, err := h.invoices.GetOrCreateSchedule(h.ctx, h.tenantID, &own)
	require.NoError(t, err)
	weekly := invoicing.FrequencyWeekly
	updated, err := h.invoices.UpdateSchedule(h.ctx, h.tenantID, customerSchedule.ID, invoicing.ScheduleUpdate{Frequency: &weekly})
	require.NoError(t, err)
	assert.Equal(t, invoicing.FrequencyWeekly, updated.Frequency)

	result, err := h.invoices.RunScheduled(h.ctx, time.Now().AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Schedules)
	assert.Equal(t, 2, result.Invoices)
	assert.Empty(t, result.Errors)

	page, err := h.invoices.ListInvoices(h.ctx, h.tenantID, invoicing.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

// failingScope fails the deferred-record lookup for one customer
type failingScope struct {
	appbilling.TransactionScope
	customerID uuid.UUID
}

func (s failingScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.TransactionScope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		return fn(failingRepos{TransactionalRepositories: repos, customerID: s.customerID})
	})
}

type failingRepos struct {
	appbilling.TransactionalRepositories
	customerID uuid.UUID
}

func (r failingRepos) Records() settlement.RecordRepository {
	return failingRecords{RecordRepository: r.TransactionalRepositories.Records(), customerID: r.customerID}
}

type failingRecords struct {
	settlement.RecordRepository
	customerID uuid.UUID
}

func (r failingRecords) ListPendingDeferred(ctx context.Context, tenantID, customerID uuid.UUID, from *time.Time, to time.Time) ([]settlement.Record, error) {
	if customerID == r.customerID {
		return nil, errors.New("connection reset by peer")
	}
	return r.RecordRepository.ListPendingDeferred(ctx, tenantID, customerID, from, to)
}

func TestInvoiceService_BatchContinuesPastFailingCustomer(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeDeferred, 30)
	broken, third := uuid.New(), uuid.New()
	h.addCustomer(broken, "Alan", "Turing", "")
	h.addCustomer(third, "Grace", "Hopper", "")
	deferTwoCharges(h, h.customerID)
	brokenCharge := h.checkIn(broken)
	h.checkIn(third)

	svc := appbilling.NewInvoiceService(appbilling.InvoiceServiceDeps{
		Scope:     failingScope{TransactionScope: persistence.NewGormTransactionScope(h.db), customerID: broken},
		Invoices:  h.invoiceRepo,
		Records:   h.recordRepo,
		Schedules: persistence.NewGormInvoiceScheduleRepository(h.db),
		Terms:     h.termsRepo,
		Events:    h.events,
	}, appbilling.InvoiceOptions{})

	batch, err := svc.GenerateBatch(h.ctx, h.tenantID, appbilling.BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count)
	assert.Equal(t, "10.50", batch.TotalAmount.StringFixed(2))
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "customer "+broken.String(), batch.Errors[0].Subject)
	assert.Contains(t, batch.Errors[0].Message, "connection reset")

	record, err := h.settle.GetRecord(h.ctx, h.tenantID, brokenCharge.Settlement.RecordID)
	require.NoError(t, err)
	assert.Equal(t, settlement.RecordStatusPending, record.Status, "the failed customer is left untouched")
	assert.Nil(t, record.InvoiceID)

	retry, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: broken,
	})
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, []uuid.UUID{record.ID}, retry.Invoice.RecordIDs())
}
