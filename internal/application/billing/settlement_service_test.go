package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/mailcenter/billing/internal/application/billing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlement_ImmediateCapture(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeImmediate, 30)
	cardID := h.addCard(h.customerID)

	res := h.checkIn(h.customerID)

	require.NotNil(t, res.Settlement)
	assert.Equal(t, settlement.ModeImmediate, res.Settlement.Mode)
	assert.Equal(t, settlement.RecordStatusPaid, res.Settlement.Status)
	assert.Equal(t, "ch_test_1", res.Settlement.PaymentRef)
	assert.Equal(t, ledger.ChargeStatusPaid, res.Entry.Status)
	require.NotNil(t, res.Entry.SettlementRecordID)
	assert.Equal(t, res.Settlement.RecordID, *res.Entry.SettlementRecordID)

	call := h.capture.lastCall()
	assert.Equal(t, cardID, call.PaymentMethodID)
	assert.Equal(t, "3.50", call.Amount.StringFixed(2))
	assert.Equal(t, "settle:"+res.Entry.ID.String(), call.IdempotencyKey)

	assert.True(t, h.balanceOf(h.customerID).IsZero())
	assert.Contains(t, h.events.types(), settlement.EventTypeChargeSettled)
}

func TestSettlement_FallbackToDeferred(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness)
		reason string
	}{
		{
			name:   "no payment method",
			setup:  func(h *harness) {},
			reason: settlement.FailureNoPaymentMethod,
		},
		{
			name: "card declined",
			setup: func(h *harness) {
				h.addCard(h.customerID)
				h.capture.setDecline("card_declined")
			},
			reason: "card_declined",
		},
		{
			name: "processor timeout",
			setup: func(h *harness) {
				h.addCard(h.customerID)
				h.capture.hang = true
			},
			reason: "payment capture error: payment capture timed out after 200ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.enableBilling(settlement.ModeImmediate, 10)
			tt.setup(h)

			res := h.checkIn(h.customerID)

			require.NotNil(t, res.Settlement)
			assert.Equal(t, settlement.RecordStatusFailed, res.Settlement.Status)
			assert.Equal(t, tt.reason, res.Settlement.FailureReason)
			assert.Equal(t, "charge deferred to account, reason: "+tt.reason, res.Settlement.Message)
			require.NotNil(t, res.Settlement.DeferredRecordID)
			assert.Equal(t, ledger.ChargeStatusPosted, res.Entry.Status)
			assert.Equal(t, *res.Settlement.DeferredRecordID, *res.Entry.SettlementRecordID)

			failed, err := h.settle.GetRecord(h.ctx, h.tenantID, res.Settlement.RecordID)
			require.NoError(t, err)
			assert.Equal(t, settlement.RecordStatusFailed, failed.Status)

			deferred, err := h.settle.GetRecord(h.ctx, h.tenantID, *res.Settlement.DeferredRecordID)
			require.NoError(t, err)
			assert.Equal(t, settlement.ModeDeferred, deferred.Mode)
			assert.Equal(t, settlement.RecordStatusPending, deferred.Status)
			require.NotNil(t, deferred.FallbackOf)
			assert.Equal(t, failed.ID, *deferred.FallbackOf)
			require.NotNil(t, deferred.DueDate)
			assert.WithinDuration(t, time.Now().AddDate(0, 0, 10), *deferred.DueDate, time.Minute)

			assert.Equal(t, "3.50", h.balanceOf(h.customerID).StringFixed(2))
			assert.Contains(t, h.events.types(), settlement.EventTypePaymentFailed)
		})
	}
}

func TestSettlement_DeferredMode(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeImmediate, 30)
	h.addCard(h.customerID)
	terms := 7
	h.setProfile(h.customerID, func(p *models.BillingProfileModel) {
		p.Mode = settlement.ModeDeferred
		p.PaymentTermDays = &terms
	})

	res := h.checkIn(h.customerID)
	h.checkIn(h.customerID)

	require.NotNil(t, res.Settlement)
	assert.Equal(t, settlement.ModeDeferred, res.Settlement.Mode)
	assert.Equal(t, settlement.RecordStatusPending, res.Settlement.Status)
	assert.Equal(t, "charge added to account", res.Settlement.Message)
	assert.Zero(t, h.capture.callCount(), "deferred customers are never charged at the counter")

	record, err := h.settle.GetRecord(h.ctx, h.tenantID, res.Settlement.RecordID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *record.DueDate, time.Minute)

	summary, err := h.settle.GetAccountBalance(h.ctx, h.tenantID, h.customerID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", summary.CustomerName)
	assert.Equal(t, "7.00", summary.AccountBalance.StringFixed(2))
	assert.Equal(t, "7.00", summary.PendingCharges.StringFixed(2))
	assert.Equal(t, "7.00", summary.TotalOwed.StringFixed(2))
	assert.NotNil(t, summary.OldestUnpaidDate)

	outstanding, err := h.settle.ListOutstandingBalances(h.ctx, h.tenantID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, h.customerID, outstanding[0].CustomerID)
}

func TestSettlement_SettleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.addCard(h.customerID)
	res := h.checkIn(h.customerID)
	require.Equal(t, ledger.ChargeStatusPending, res.Entry.Status)

	t.Run("concurrent claim is rejected", func(t *testing.T) {
		claimed, err := h.claims.MarkProcessed(h.ctx, "settle:"+res.Entry.ID.String(), time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		_, err = h.settle.Settle(h.ctx, appbilling.SettleRequest{TenantID: h.tenantID, EntryID: res.Entry.ID})
		assert.ErrorIs(t, err, settlement.ErrSettlementInProgress)

		require.NoError(t, h.claims.Release(h.ctx, "settle:"+res.Entry.ID.String()))
	})

	t.Run("negative tax", func(t *testing.T) {
		_, err := h.settle.Settle(h.ctx, appbilling.SettleRequest{
			TenantID: h.tenantID,
			EntryID:  res.Entry.ID,
			Tax:      money("-1"),
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
	})

	first, err := h.settle.Settle(h.ctx, appbilling.SettleRequest{TenantID: h.tenantID, EntryID: res.Entry.ID})
	require.NoError(t, err)
	assert.Equal(t, settlement.RecordStatusPaid, first.Status)

	second, err := h.settle.Settle(h.ctx, appbilling.SettleRequest{TenantID: h.tenantID, EntryID: res.Entry.ID})
	require.NoError(t, err)
	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, 1, h.capture.callCount())

	_, err = h.settle.Settle(h.ctx, appbilling.SettleRequest{TenantID: h.tenantID, EntryID: uuid.New()})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSettlement_RetryCancelsFallback(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeImmediate, 30)
	h.addCard(h.customerID)
	h.capture.setDecline("insufficient_funds")

	res := h.checkIn(h.customerID)
	require.Equal(t, settlement.RecordStatusFailed, res.Settlement.Status)
	failedID := res.Settlement.RecordID
	fallbackID := *res.Settlement.DeferredRecordID

	h.capture.setDecline("")
	retry, err := h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
	require.NoError(t, err)

	assert.Equal(t, settlement.RecordStatusPaid, retry.Status)
	require.NotNil(t, retry.DeferredRecordID)
	assert.Equal(t, fallbackID, *retry.DeferredRecordID)
	assert.Equal(t, "retry:"+failedID.String()+":1", h.capture.lastCall().IdempotencyKey)

	fallback, err := h.settle.GetRecord(h.ctx, h.tenantID, fallbackID)
	require.NoError(t, err)
	assert.Equal(t, settlement.RecordStatusPaid, fallback.Status)

	entry, err := h.charges.GetCharge(h.ctx, h.tenantID, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ChargeStatusPaid, entry.Status)
	assert.True(t, h.balanceOf(h.customerID).IsZero())

	_, err = h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
	assert.Error(t, err, "a paid record cannot be retried")
}

func TestSettlement_RetryRejectedOnceFallbackInvoiced(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeImmediate, 30)
	h.addCard(h.customerID)
	h.capture.setDecline("insufficient_funds")

	res := h.checkIn(h.customerID)
	require.Equal(t, settlement.RecordStatusFailed, res.Settlement.Status)
	failedID := res.Settlement.RecordID
	fallbackID := *res.Settlement.DeferredRecordID

	inv, err := h.invoices.GenerateForCustomer(h.ctx, appbilling.GenerateInvoiceRequest{
		TenantID:   h.tenantID,
		CustomerID: h.customerID,
	})
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, []uuid.UUID{fallbackID}, inv.Invoice.RecordIDs())

	h.capture.setDecline("")
	calls := h.capture.callCount()

	t.Run("invoiced fallback", func(t *testing.T) {
		_, err := h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
		assert.ErrorIs(t, err, settlement.ErrFallbackAlreadyInvoiced)
		assert.Equal(t, calls, h.capture.callCount(), "nothing is captured")

		record, err := h.settle.GetRecord(h.ctx, h.tenantID, failedID)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusFailed, record.Status)
		assert.Zero(t, record.RetryCount)
	})

	t.Run("paid fallback", func(t *testing.T) {
		_, err := h.invoices.RecordPayment(h.ctx, h.tenantID, inv.Invoice.ID, appbilling.PaymentInput{
			Amount:    money("3.50"),
			Reference: "cash-001",
			Method:    "cash",
		})
		require.NoError(t, err)

		_, err = h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
		assert.ErrorIs(t, err, settlement.ErrFallbackAlreadyInvoiced)
		assert.Equal(t, calls, h.capture.callCount())
		assert.True(t, h.balanceOf(h.customerID).IsZero())
	})
}

func TestSettlement_RetryLimit(t *testing.T) {
	h := newHarness(t)
	h.enableBilling(settlement.ModeImmediate, 30)
	h.addCard(h.customerID)
	h.capture.setDecline("card_declined")

	res := h.checkIn(h.customerID)
	failedID := res.Settlement.RecordID

	for i := 1; i <= settlement.MaxRetries; i++ {
		retry, err := h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
		require.NoError(t, err)
		assert.Equal(t, settlement.RecordStatusFailed, retry.Status)
	}
	record, err := h.settle.GetRecord(h.ctx, h.tenantID, failedID)
	require.NoError(t, err)
	assert.Equal(t, settlement.MaxRetries, record.RetryCount)

	_, err = h.settle.RetryFailed(h.ctx, h.tenantID, failedID)
	assert.ErrorIs(t, err, settlement.ErrRetryLimitExceeded)

	assert.Equal(t, "3.50", h.balanceOf(h.customerID).StringFixed(2), "the fallback stays on account")
}
