package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AutoPayServiceDeps are the collaborators of AutoPayService
type AutoPayServiceDeps struct {
	Terms     settlement.TermsRepository
	Invoices  invoicing.Repository
	Methods   settlement.PaymentMethodRepository
	Directory directory.Directory
	Capture   settlement.PaymentCapture
	Payer     InvoicePayer
	Events    shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// AutoPayService collects open invoices from customers enrolled in auto-pay
type AutoPayService struct {
	terms          settlement.TermsRepository
	invoices       invoicing.Repository
	methods        settlement.PaymentMethodRepository
	directory      directory.Directory
	capture        settlement.PaymentCapture
	payer          InvoicePayer
	events         shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
	captureTimeout time.Duration
}

// NewAutoPayService creates a new AutoPayService
func NewAutoPayService(deps AutoPayServiceDeps, captureTimeout time.Duration) *AutoPayService {
	if captureTimeout <= 0 {
		captureTimeout = DefaultSettlementOptions().CaptureTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoPayService{
		terms:          deps.Terms,
		invoices:       deps.Invoices,
		methods:        deps.Methods,
		directory:      deps.Directory,
		capture:        deps.Capture,
		payer:          deps.Payer,
		events:         deps.Events,
		metrics:        deps.Metrics,
		logger:         logger,
		captureTimeout: captureTimeout,
	}
}

// AutoPayResult summarizes one auto-pay run
type AutoPayResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// Run charges every sent or overdue invoice of customers whose auto-pay
// day is today. Each invoice succeeds or fails on its own.
func (s *AutoPayService) Run(ctx context.Context, tenantID uuid.UUID, today time.Time) (*AutoPayResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "autopay", "run")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	profiles, err := s.terms.ListAutoPayProfiles(ctx, tenantID, today.Day())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list auto-pay profiles: %w", err)
	}

	result := &AutoPayResult{}
	for i := range profiles {
		profile := &profiles[i]
		if !profile.AutoPayDueOn(today) {
			continue
		}
		customer, err := s.directory.FindCustomer(ctx, tenantID, profile.CustomerID)
		if err != nil {
			result.Errors = append(result.Errors, batchError("customer "+profile.CustomerID.String(), err))
			continue
		}
		if customer.Status != directory.StatusActive {
			continue
		}
		invoices, err := s.invoices.ListByCustomerAndStatus(ctx, tenantID, customer.ID,
			invoicing.StatusSent, invoicing.StatusOverdue)
		if err != nil {
			result.Errors = append(result.Errors, batchError("customer "+customer.DisplayName(), err))
			continue
		}
		for j := range invoices {
			result.Processed++
			if err := s.collect(ctx, customer, &invoices[j], today); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, batchError("invoice "+invoices[j].Number, err))
				s.metrics.RecordAutoPay(ctx, tenantID, false)
				continue
			}
			result.Succeeded++
			s.metrics.RecordAutoPay(ctx, tenantID, true)
		}
	}

	s.logger.Info("Auto-pay run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *AutoPayService) collect(ctx context.Context, customer *directory.Customer, inv *invoicing.Invoice, today time.Time) error {
	method, err := s.methods.FindDefault(ctx, inv.TenantID, customer.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("no payment method for customer %s", customer.DisplayName())
		}
		return fmt.Errorf("failed to load payment method: %w", err)
	}

	amount := inv.AmountDue()
	res, err := captureWithTimeout(ctx, s.capture, s.captureTimeout, s.metrics, settlement.CaptureRequest{
		TenantID:        inv.TenantID,
		CustomerID:      customer.ID,
		PaymentMethodID: method.ID,
		MethodType:      method.Type,
		Amount:          amount,
		IdempotencyKey:  fmt.Sprintf("autopay:%s:%s", inv.ID, today.Format("20060102")),
		Description:     "Invoice " + inv.Number,
	})
	if err != nil || !res.Success {
		reason := settlement.FailureReasonOf(res, err)
		s.publishFailure(ctx, inv, reason)
		return fmt.Errorf("auto-pay failed: %s", reason)
	}

	methodID := method.ID
	if _, err := s.payer.RecordPayment(ctx, inv.TenantID, inv.ID, PaymentInput{
		Amount:    amount,
		MethodID:  &methodID,
		Reference: res.Reference,
		Method:    string(method.Type),
	}); err != nil {
		s.logger.Error("Auto-pay captured but payment could not be recorded",
			zap.String("invoice_number", inv.Number),
			zap.String("payment_ref", res.Reference),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record auto-pay payment %s: %w", res.Reference, err)
	}
	return nil
}

func (s *AutoPayService) publishFailure(ctx context.Context, inv *invoicing.Invoice, reason string) {
	event := &settlement.PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(settlement.EventTypePaymentFailed, invoicing.AggregateTypeInvoice, inv.ID, inv.TenantID),
		CustomerID:      inv.CustomerID,
		Total:           inv.AmountDue(),
		Reason:          reason,
	}
	publishAfterCommit(ctx, s.events, s.logger, nil, event)
}
