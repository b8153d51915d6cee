package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxNumberAttempts bounds retries when two generators race for the same
// daily invoice number
const maxNumberAttempts = 5

// InvoiceServiceDeps are the collaborators of InvoiceService
type InvoiceServiceDeps struct {
	Scope     TransactionScope
	Invoices  invoicing.Repository
	Records   settlement.RecordRepository
	Schedules invoicing.ScheduleRepository
	Terms     settlement.TermsRepository
	Events    shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// InvoiceOptions tune invoice generation
type InvoiceOptions struct {
	DefaultCreditLimit decimal.Decimal
	Now                func() time.Time
}

// InvoiceService consolidates deferred settlement records into invoices
// and drives them to paid or void
type InvoiceService struct {
	scope     TransactionScope
	invoices  invoicing.Repository
	records   settlement.RecordRepository
	schedules invoicing.ScheduleRepository
	terms     settlement.TermsRepository
	events    shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
	opts      InvoiceOptions
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(deps InvoiceServiceDeps, opts InvoiceOptions) *InvoiceService {
	if !opts.DefaultCreditLimit.IsPositive() {
		opts.DefaultCreditLimit = settlement.DefaultCreditLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		scope:     deps.Scope,
		invoices:  deps.Invoices,
		records:   deps.Records,
		schedules: deps.Schedules,
		terms:     deps.Terms,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    logger,
		opts:      opts,
	}
}

// GenerateInvoiceRequest selects what to invoice for one customer
type GenerateInvoiceRequest struct {
	TenantID    uuid.UUID         `json:"tenant_id"`
	CustomerID  uuid.UUID         `json:"customer_id" binding:"required"`
	PeriodStart *time.Time        `json:"period_start,omitempty"`
	PeriodEnd   *time.Time        `json:"period_end,omitempty"`
	Notes       string            `json:"notes"`
	AutoSend    bool              `json:"auto_send"`
	SendVia     invoicing.Channel `json:"send_via,omitempty"`
}

// InvoiceResult is a generated invoice
type InvoiceResult struct {
	Invoice         *invoicing.Invoice `json:"invoice"`
	RecordsInvoiced int                `json:"records_invoiced"`
	ChargesInvoiced int64              `json:"charges_invoiced"`
}

// GenerateForCustomer invoices the customer's pending deferred records in
// the period. It returns nil when there is nothing to invoice.
func (s *InvoiceService) GenerateForCustomer(ctx context.Context, req GenerateInvoiceRequest) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "generate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
	)

	now := s.opts.Now()
	periodEnd := now
	if req.PeriodEnd != nil {
		periodEnd = *req.PeriodEnd
	}
	if req.PeriodStart != nil && req.PeriodStart.After(periodEnd) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period start must not be after period end")
	}
	via := req.SendVia
	if via == "" {
		via = invoicing.ChannelEmail
	}
	terms := resolveTerms(ctx, s.terms, s.logger, req.TenantID, req.CustomerID)

	var (
		result *InvoiceResult
		err    error
	)
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		result, err = s.generateOnce(ctx, req, terms, periodEnd, via, now)
		if !errors.Is(err, invoicing.ErrInvoiceNumberTaken) {
			break
		}
		s.logger.Debug("Invoice number taken, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	inv := result.Invoice
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrInvoiceNumber, inv.Number,
		telemetry.SpanAttrAmount, inv.Total().String(),
	)
	publishAfterCommit(ctx, s.events, s.logger, []eventSource{inv})
	s.metrics.RecordInvoice(ctx, inv.TenantID, string(inv.Status))

	s.logger.Info("Invoice generated",
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("customer_id", inv.CustomerID.String()),
		zap.String("invoice_number", inv.Number),
		zap.Int("line_items", len(inv.LineItems)),
		zap.String("total", inv.Total().StringFixed(2)),
		zap.String("status", string(inv.Status)),
	)
	return result, nil
}

func (s *InvoiceService) generateOnce(
	ctx context.Context,
	req GenerateInvoiceRequest,
	terms settlement.Terms,
	periodEnd time.Time,
	via invoicing.Channel,
	now time.Time,
) (*InvoiceResult, error) {
	var result *InvoiceResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Serializes against settlements writing new deferred records.
		if _, err := repos.Balances().GetOrCreateForUpdate(ctx, req.TenantID, req.CustomerID, s.opts.DefaultCreditLimit); err != nil {
			return fmt.Errorf("failed to lock account balance: %w", err)
		}
		records, err := repos.Records().ListPendingDeferred(ctx, req.TenantID, req.CustomerID, req.PeriodStart, periodEnd)
		if err != nil {
			return fmt.Errorf("failed to list deferred records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		count, err := repos.Invoices().CountCreatedSince(ctx, req.TenantID, startOfDay(now))
		if err != nil {
			return fmt.Errorf("failed to count today's invoices: %w", err)
		}
		inv, err := invoicing.NewInvoice(invoicing.Draft{
			TenantID:    req.TenantID,
			CustomerID:  req.CustomerID,
			Number:      invoicing.FormatNumber(now, count+1),
			DueDate:     terms.DueDate(now),
			PeriodStart: req.PeriodStart,
			PeriodEnd:   periodEnd,
			Notes:       req.Notes,
		}, records)
		if err != nil {
			return err
		}
		if req.AutoSend {
			if err := inv.Send(via, now); err != nil {
				return err
			}
		}
		if err := repos.Invoices().Create(ctx, inv); err != nil {
			return err
		}

		attached, err := repos.Records().AttachInvoice(ctx, inv.RecordIDs(), inv.ID)
		if err != nil {
			return fmt.Errorf("failed to attach records to invoice: %w", err)
		}
		if attached != int64(len(records)) {
			return invoicing.ErrRecordsChanged
		}
		var charges int64
		if ids := inv.ChargeEntryIDs(); len(ids) > 0 {
			charges, err = repos.Charges().TransitionMany(ctx, ids, ledger.ChargeStatusPosted, ledger.ChargeStatusInvoiced)
			if err != nil {
				return fmt.Errorf("failed to mark charges invoiced: %w", err)
			}
		}
		result = &InvoiceResult{Invoice: inv, RecordsInvoiced: len(records), ChargesInvoiced: charges}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BatchOptions apply to every invoice of a batch run
type BatchOptions struct {
	PeriodStart        *time.Time        `json:"period_start,omitempty"`
	PeriodEnd          *time.Time        `json:"period_end,omitempty"`
	AutoSend           bool              `json:"auto_send"`
	SendVia            invoicing.Channel `json:"send_via,omitempty"`
	ExcludeCustomerIDs []uuid.UUID       `json:"-"`
}

// BatchResult summarizes a batch run
type BatchResult struct {
	Count       int                  `json:"count"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Invoices    []*invoicing.Invoice `json:"invoices"`
	Errors      []BatchError         `json:"errors,omitempty"`
}

// GenerateBatch invoices every customer of the tenant holding pending
// deferred records. A failing customer is reported and skipped.
func (s *InvoiceService) GenerateBatch(ctx context.Context, tenantID uuid.UUID, opts BatchOptions) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "generate_batch")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	customers, err := s.records.CustomersWithPendingDeferred(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list customers with deferred charges: %w", err)
	}
	excluded := make(map[uuid.UUID]struct{}, len(opts.ExcludeCustomerIDs))
	for _, id := range opts.ExcludeCustomerIDs {
		excluded[id] = struct{}{}
	}

	result := &BatchResult{TotalAmount: decimal.Zero}
	for _, customerID := range customers {
		if _, skip := excluded[customerID]; skip {
			continue
		}
		res, err := s.GenerateForCustomer(ctx, GenerateInvoiceRequest{
			TenantID:    tenantID,
			CustomerID:  customerID,
			PeriodStart: opts.PeriodStart,
			PeriodEnd:   opts.PeriodEnd,
			AutoSend:    opts.AutoSend,
			SendVia:     opts.SendVia,
		})
		if err != nil {
			s.logger.Warn("Invoice generation failed for customer",
				zap.String("customer_id", customerID.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, batchError("customer "+customerID.String(), err))
			continue
		}
		if res == nil {
			continue
		}
		result.Count++
		result.TotalAmount = result.TotalAmount.Add(res.Invoice.Total())
		result.Invoices = append(result.Invoices, res.Invoice)
	}
	result.TotalAmount = shared.RoundMoney(result.TotalAmount)

	s.logger.Info("Invoice batch completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("invoices", result.Count),
		zap.String("total_amount", result.TotalAmount.StringFixed(2)),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// PaymentInput is money received against an invoice
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount" binding:"required,money"`
	MethodID  *uuid.UUID      `json:"payment_method_id,omitempty"`
	Reference string          `json:"payment_ref"`
	Method    string          `json:"method"`
}

// InvoicePayer records payments against invoices
type InvoicePayer interface {
	RecordPayment(ctx context.Context, tenantID, invoiceID uuid.UUID, in PaymentInput) (*invoicing.Invoice, error)
}

// RecordPayment applies a payment. Paying in full settles the invoice's
// records and charge entries and takes the total off the account balance,
// all in one transaction.
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, invoiceID uuid.UUID, in PaymentInput) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	now := s.opts.Now()
	var (
		inv      *invoicing.Invoice
		paidFull bool
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		paidFull, err = inv.ApplyPayment(invoicing.Payment{
			Amount:          in.Amount,
			PaymentMethodID: in.MethodID,
			Reference:       in.Reference,
			Method:          in.Method,
		}, now)
		if err != nil {
			return err
		}

		if paidFull {
			balance, err := repos.Balances().GetOrCreateForUpdate(ctx, inv.TenantID, inv.CustomerID, s.opts.DefaultCreditLimit)
			if err != nil {
				return fmt.Errorf("failed to lock account balance: %w", err)
			}
			settled, err := repos.Records().SettleInvoice(ctx, inv.ID, in.Reference, now)
			if err != nil {
				return fmt.Errorf("failed to settle invoice records: %w", err)
			}
			if expected := len(inv.RecordIDs()); settled != int64(expected) {
				s.logger.Warn("Settled record count differs from invoice line items",
					zap.String("invoice_id", inv.ID.String()),
					zap.Int64("settled", settled),
					zap.Int("expected", expected),
				)
			}
			if ids := inv.ChargeEntryIDs(); len(ids) > 0 {
				if _, err := repos.Charges().TransitionMany(ctx, ids, ledger.ChargeStatusInvoiced, ledger.ChargeStatusPaid); err != nil {
					return fmt.Errorf("failed to mark charges paid: %w", err)
				}
			}
			balance.Decrement(inv.Total())
			if err := repos.Balances().Save(ctx, balance); err != nil {
				return fmt.Errorf("failed to update account balance: %w", err)
			}
		}
		return repos.Invoices().Save(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.events, s.logger, []eventSource{inv})
	s.metrics.RecordInvoice(ctx, inv.TenantID, string(inv.Status))
	s.logger.Info("Invoice payment recorded",
		zap.String("invoice_number", inv.Number),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.String("status", string(inv.Status)),
		zap.Bool("paid_in_full", paidFull),
	)
	return inv, nil
}

// SendInvoice delivers an invoice through via
func (s *InvoiceService) SendInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, via invoicing.Channel) (*invoicing.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Send(via, s.opts.Now()); err != nil {
		return nil, err
	}
	if err := s.invoices.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to save sent invoice: %w", err)
	}
	publishAfterCommit(ctx, s.events, s.logger, []eventSource{inv})
	s.metrics.RecordInvoice(ctx, inv.TenantID, string(inv.Status))
	return inv, nil
}

// VoidInvoice cancels an unpaid invoice and returns its records to the
// customer's pending account charges
func (s *InvoiceService) VoidInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "void")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
	)

	var inv *invoicing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if err := inv.Void(); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}
		if _, err := repos.Records().DetachInvoice(ctx, inv.ID); err != nil {
			return fmt.Errorf("failed to release invoice records: %w", err)
		}
		if ids := inv.ChargeEntryIDs(); len(ids) > 0 {
			if _, err := repos.Charges().TransitionMany(ctx, ids, ledger.ChargeStatusInvoiced, ledger.ChargeStatusPosted); err != nil {
				return fmt.Errorf("failed to return charges to posted: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishAfterCommit(ctx, s.events, s.logger, []eventSource{inv})
	s.metrics.RecordInvoice(ctx, inv.TenantID, string(inv.Status))
	s.logger.Info("Invoice voided",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_number", inv.Number),
	)
	return inv, nil
}

// OverdueResult summarizes an overdue sweep
type OverdueResult struct {
	Marked int          `json:"marked"`
	Errors []BatchError `json:"errors,omitempty"`
}

// MarkOverdue flags sent invoices whose due date has passed
func (s *InvoiceService) MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*OverdueResult, error) {
	invoices, err := s.invoices.ListPastDue(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list past-due invoices: %w", err)
	}
	result := &OverdueResult{}
	for i := range invoices {
		inv := &invoices[i]
		if !inv.MarkOverdue(now) {
			continue
		}
		if err := s.invoices.Save(ctx, inv); err != nil {
			result.Errors = append(result.Errors, batchError("invoice "+inv.Number, err))
			continue
		}
		s.metrics.RecordInvoice(ctx, inv.TenantID, string(inv.Status))
		result.Marked++
	}
	if result.Marked > 0 {
		s.logger.Info("Invoices marked overdue",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("count", result.Marked),
		)
	}
	return result, nil
}

// Summary returns invoice counts and amounts per status
func (s *InvoiceService) Summary(ctx context.Context, tenantID uuid.UUID) (invoicing.Summary, error) {
	totals, err := s.invoices.SummarizeByStatus(ctx, tenantID)
	if err != nil {
		return invoicing.Summary{}, fmt.Errorf("failed to summarize invoices: %w", err)
	}
	return invoicing.NewSummary(totals), nil
}

// GetInvoice returns an invoice with its line items
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error) {
	return s.invoices.FindByID(ctx, tenantID, invoiceID)
}

// ListInvoices returns a page of invoices
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter invoicing.Filter) (shared.Paginated[invoicing.Invoice], error) {
	invoices, total, err := s.invoices.List(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[invoicing.Invoice]{}, fmt.Errorf("failed to list invoices: %w", err)
	}
	return shared.NewPaginated(invoices, total, filter.Page, filter.PageSize), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var _ InvoicePayer = (*InvoiceService)(nil)
