package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notification is a customer-facing message produced from a billing event
type Notification struct {
	Kind       string            `json:"kind"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Channel    invoicing.Channel `json:"channel"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	EventID    uuid.UUID         `json:"event_id"`
}

// Notification kinds
const (
	KindInvoiceSent   = "invoice_sent"
	KindInvoicePaid   = "invoice_paid"
	KindPaymentFailed = "payment_failed"
)

// Notifier delivers notifications to customers
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Used when no queue is
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Info("Customer notification",
		zap.String("kind", msg.Kind),
		zap.String("tenant_id", msg.TenantID.String()),
		zap.String("customer_id", msg.CustomerID.String()),
		zap.String("channel", string(msg.Channel)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// NotificationHandler turns invoice and payment events into customer
// notifications
type NotificationHandler struct {
	notifier Notifier
	printer  *message.Printer
}

// NewNotificationHandler creates a NotificationHandler. Amounts are
// formatted for tag, e.g. language.AmericanEnglish.
func NewNotificationHandler(notifier Notifier, tag language.Tag) *NotificationHandler {
	return &NotificationHandler{notifier: notifier, printer: message.NewPrinter(tag)}
}

// EventTypes implements shared.EventHandler
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceSent,
		invoicing.EventTypeInvoicePaid,
		settlement.EventTypePaymentFailed,
	}
}

// Handle implements shared.EventHandler
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	n, ok := h.compose(event)
	if !ok {
		return nil
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", n.Kind, err)
	}
	return nil
}

func (h *NotificationHandler) compose(event shared.DomainEvent) (Notification, bool) {
	n := Notification{TenantID: event.TenantID(), EventID: event.EventID(), Channel: invoicing.ChannelEmail}
	switch e := event.(type) {
	case *invoicing.InvoiceSentEvent:
		n.Kind = KindInvoiceSent
		n.CustomerID = e.CustomerID
		if e.Via != "" {
			n.Channel = e.Via
		}
		n.Subject = "Invoice " + e.Number
		n.Body = h.printer.Sprintf("Your invoice %s for %s is ready.", e.Number, h.amount(e.Total))
	case *invoicing.InvoicePaidEvent:
		n.Kind = KindInvoicePaid
		n.CustomerID = e.CustomerID
		n.Subject = "Payment received for invoice " + e.Number
		n.Body = h.printer.Sprintf("We received %s. Invoice %s is paid in full.", h.amount(e.Total), e.Number)
	case *settlement.PaymentFailedEvent:
		n.Kind = KindPaymentFailed
		n.CustomerID = e.CustomerID
		n.Subject = "Payment could not be processed"
		n.Body = h.printer.Sprintf("A charge of %s could not be collected (%s). It has been added to your account.",
			h.amount(e.Total), e.Reason)
	default:
		return Notification{}, false
	}
	return n, true
}

func (h *NotificationHandler) amount(d decimal.Decimal) string {
	f, _ := shared.RoundMoney(d).Float64()
	return h.printer.Sprintf("$%.2f", f)
}

// AuditHandler logs every billing event
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates an AuditHandler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	return &AuditHandler{logger: logger.Named("audit")}
}

// EventTypes returns nil: the audit log receives every event
func (h *AuditHandler) EventTypes() []string { return nil }

// Handle implements shared.EventHandler
func (h *AuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info("Billing event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}
