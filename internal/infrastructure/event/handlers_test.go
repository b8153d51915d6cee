package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

type captureNotifier struct {
	sent []Notification
	err  error
}

func (n *captureNotifier) Notify(_ context.Context, msg Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func sentInvoice() *invoicing.Invoice {
	return &invoicing.Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(uuid.New()),
		CustomerID:          uuid.New(),
		Number:              "INV-20261017-00001",
		Amount:              decimal.RequireFromString("1234.5"),
		Tax:                 decimal.Zero,
		SentVia:             invoicing.ChannelInApp,
	}
}

func TestNotificationHandler_InvoiceSent(t *testing.T) {
	n := &captureNotifier{}
	h := NewNotificationHandler(n, language.AmericanEnglish)
	inv := sentInvoice()
	evt := invoicing.NewInvoiceSentEvent(inv)

	require.NoError(t, h.Handle(context.Background(), evt))

	require.Len(t, n.sent, 1)
	msg := n.sent[0]
	assert.Equal(t, KindInvoiceSent, msg.Kind)
	assert.Equal(t, inv.CustomerID, msg.CustomerID)
	assert.Equal(t, inv.TenantID, msg.TenantID)
	assert.Equal(t, evt.EventID(), msg.EventID)
	assert.Equal(t, invoicing.ChannelInApp, msg.Channel)
	assert.Equal(t, "Invoice INV-20261017-00001", msg.Subject)
	assert.Equal(t, "Your invoice INV-20261017-00001 for $1,234.50 is ready.", msg.Body)
}

func TestNotificationHandler_PaymentFailed(t *testing.T) {
	n := &captureNotifier{}
	h := NewNotificationHandler(n, language.AmericanEnglish)
	rec := &settlement.Record{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(uuid.New()),
		CustomerID:          uuid.New(),
		Total:               decimal.RequireFromString("3.5"),
		FailureReason:       "card_declined",
	}

	require.NoError(t, h.Handle(context.Background(), settlement.NewPaymentFailedEvent(rec)))

	require.Len(t, n.sent, 1)
	assert.Equal(t, KindPaymentFailed, n.sent[0].Kind)
	assert.Equal(t, invoicing.ChannelEmail, n.sent[0].Channel)
	assert.Equal(t, "A charge of $3.50 could not be collected (card_declined). It has been added to your account.", n.sent[0].Body)
}

func TestNotificationHandler_IgnoresOtherEvents(t *testing.T) {
	n := &captureNotifier{}
	h := NewNotificationHandler(n, language.AmericanEnglish)

	require.NoError(t, h.Handle(context.Background(), invoicing.NewInvoiceVoidedEvent(sentInvoice())))
	assert.Empty(t, n.sent)
	assert.NotContains(t, h.EventTypes(), invoicing.EventTypeInvoiceVoided)
}

func TestNotificationHandler_WrapsNotifierError(t *testing.T) {
	h := NewNotificationHandler(&captureNotifier{err: errors.New("queue full")}, language.AmericanEnglish)

	err := h.Handle(context.Background(), invoicing.NewInvoicePaidEvent(sentInvoice()))

	require.Error(t, err)
	assert.Equal(t, "failed to send invoice_paid notification: queue full", err.Error())
}

func TestAuditHandler_LogsEveryEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(NewAuditHandler(zap.New(core)))

	inv := sentInvoice()
	_ = bus.Publish(context.Background(), invoicing.NewInvoiceSentEvent(inv), invoicing.NewInvoiceVoidedEvent(inv))

	entries := logs.FilterMessage("Billing event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "InvoiceSent", entries[0].ContextMap()["event_type"])
	assert.Equal(t, inv.ID.String(), entries[1].ContextMap()["aggregate_id"])
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), Notification{Kind: KindInvoicePaid, Subject: "hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hi", logs.All()[0].ContextMap()["subject"])
}
