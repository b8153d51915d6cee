package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleRequest asks for a pending charge entry to be settled
type SettleRequest struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	EntryID         uuid.UUID       `json:"entry_id" binding:"required"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	Tax             decimal.Decimal `json:"tax"`
}

// SettleResult describes how a charge was settled
type SettleResult struct {
	Mode             settlement.Mode         `json:"mode"`
	Status           settlement.RecordStatus `json:"status"`
	RecordID         uuid.UUID               `json:"record_id"`
	DeferredRecordID *uuid.UUID              `json:"deferred_record_id,omitempty"`
	PaymentRef       string                  `json:"payment_ref,omitempty"`
	FailureReason    string                  `json:"failure_reason,omitempty"`
	Message          string                  `json:"message,omitempty"`
	AlreadySettled   bool                    `json:"already_settled,omitempty"`
}

// SettlementServiceDeps are the collaborators of SettlementService
type SettlementServiceDeps struct {
	Scope     TransactionScope
	Records   settlement.RecordRepository
	Charges   ledger.ChargeRepository
	Balances  settlement.BalanceRepository
	Terms     settlement.TermsRepository
	Methods   settlement.PaymentMethodRepository
	Directory directory.Directory
	Capture   settlement.PaymentCapture
	Claims    shared.IdempotencyStore
	Events    shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// SettlementOptions tune the settlement engine
type SettlementOptions struct {
	CaptureTimeout     time.Duration
	ClaimTTL           time.Duration
	DefaultCreditLimit decimal.Decimal
	Now                func() time.Time
}

// DefaultSettlementOptions returns the production defaults
func DefaultSettlementOptions() SettlementOptions {
	return SettlementOptions{
		CaptureTimeout:     15 * time.Second,
		ClaimTTL:           2 * time.Minute,
		DefaultCreditLimit: settlement.DefaultCreditLimit,
		Now:                time.Now,
	}
}

// SettlementService decides how each charge is collected: captured now,
// or deferred to the customer's account when the terms say so or the
// capture fails.
type SettlementService struct {
	scope     TransactionScope
	records   settlement.RecordRepository
	charges   ledger.ChargeRepository
	balances  settlement.BalanceRepository
	terms     settlement.TermsRepository
	methods   settlement.PaymentMethodRepository
	directory directory.Directory
	capture   settlement.PaymentCapture
	claims    shared.IdempotencyStore
	events    shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
	opts      SettlementOptions
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(deps SettlementServiceDeps, opts SettlementOptions) *SettlementService {
	defaults := DefaultSettlementOptions()
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = defaults.CaptureTimeout
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaults.ClaimTTL
	}
	if !opts.DefaultCreditLimit.IsPositive() {
		opts.DefaultCreditLimit = defaults.DefaultCreditLimit
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		scope:     deps.Scope,
		records:   deps.Records,
		charges:   deps.Charges,
		balances:  deps.Balances,
		terms:     deps.Terms,
		methods:   deps.Methods,
		directory: deps.Directory,
		capture:   deps.Capture,
		claims:    deps.Claims,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    logger,
		opts:      opts,
	}
}

// Settle settles one pending charge entry. Concurrent calls for the same
// entry are rejected with settlement.ErrSettlementInProgress; a call for an
// entry that already left pending returns its existing state.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrChargeEntryID, req.EntryID.String(),
	)

	key := "settle:" + req.EntryID.String()
	release, err := s.claim(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	entry, err := s.charges.FindByID(ctx, req.TenantID, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.IsSettled() {
		return s.existingState(ctx, entry)
	}
	if req.Tax.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Tax cannot be negative")
	}

	terms := s.loadTerms(ctx, entry.TenantID, entry.CustomerID)
	mode := terms.Mode()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, entry.CustomerID.String(),
		telemetry.SpanAttrMode, string(mode),
		telemetry.SpanAttrAmount, entry.Total.String(),
	)

	entryID := entry.ID
	in := settlement.RecordInput{
		TenantID:      entry.TenantID,
		CustomerID:    entry.CustomerID,
		Description:   entry.Description,
		Amount:        entry.Total,
		Tax:           req.Tax,
		ChargeEntryID: &entryID,
		ReferenceType: string(entry.ServiceType),
		ReferenceID:   entry.ID.String(),
	}

	var result *SettleResult
	if mode == settlement.ModeDeferred {
		result, err = s.settleDeferred(ctx, entry, in, terms)
	} else {
		result, err = s.settleImmediate(ctx, entry, in, terms, req.PaymentMethodID, key)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrRecordID, result.RecordID.String())
	return result, nil
}

// claim takes the idempotency key and returns the function releasing it
func (s *SettlementService) claim(ctx context.Context, key string) (func(), error) {
	claimed, err := s.claims.MarkProcessed(ctx, key, s.opts.ClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	if !claimed {
		return nil, settlement.ErrSettlementInProgress
	}
	return func() {
		if err := s.claims.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("Failed to release settlement claim", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *SettlementService) existingState(ctx context.Context, entry *ledger.ChargeEntry) (*SettleResult, error) {
	result := &SettleResult{
		AlreadySettled: true,
		Message:        "charge already " + string(entry.Status),
	}
	if entry.SettlementRecordID == nil {
		return result, nil
	}
	record, err := s.records.FindByID(ctx, entry.TenantID, *entry.SettlementRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement record: %w", err)
	}
	result.Mode = record.Mode
	result.Status = record.Status
	result.RecordID = record.ID
	result.PaymentRef = record.PaymentRef
	result.FailureReason = record.FailureReason
	return result, nil
}

func (s *SettlementService) loadTerms(ctx context.Context, tenantID, customerID uuid.UUID) settlement.Terms {
	return resolveTerms(ctx, s.terms, s.logger, tenantID, customerID)
}

// resolveMethod picks the explicit method when it is active, else the
// customer's default. With no usable method the failure reason is returned.
func (s *SettlementService) resolveMethod(ctx context.Context, tenantID, customerID uuid.UUID, explicit *uuid.UUID) (*settlement.PaymentMethod, string) {
	if explicit != nil {
		method, err := s.methods.FindActive(ctx, tenantID, customerID, *explicit)
		if err == nil {
			return method, ""
		}
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Payment method lookup failed",
				zap.String("payment_method_id", explicit.String()),
				zap.Error(err),
			)
		}
	}
	method, err := s.methods.FindDefault(ctx, tenantID, customerID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Default payment method lookup failed",
				zap.String("customer_id", customerID.String()),
				zap.Error(err),
			)
		}
		return nil, settlement.FailureNoPaymentMethod
	}
	return method, ""
}

func (s *SettlementService) settleImmediate(
	ctx context.Context,
	entry *ledger.ChargeEntry,
	in settlement.RecordInput,
	terms settlement.Terms,
	explicit *uuid.UUID,
	idempotencyKey string,
) (*SettleResult, error) {
	method, reason := s.resolveMethod(ctx, entry.TenantID, entry.CustomerID, explicit)
	if method != nil {
		res, err := captureWithTimeout(ctx, s.capture, s.opts.CaptureTimeout, s.metrics, settlement.CaptureRequest{
			TenantID:        entry.TenantID,
			CustomerID:      entry.CustomerID,
			PaymentMethodID: method.ID,
			MethodType:      method.Type,
			Amount:          shared.SumMoney(in.Amount, in.Tax),
			IdempotencyKey:  idempotencyKey,
			Description:     entry.Description,
		})
		if err == nil && res.Success {
			return s.commitCaptured(ctx, entry, in, method, res.Reference)
		}
		reason = settlement.FailureReasonOf(res, err)
	}

	s.logger.Info("Immediate capture failed, deferring charge",
		zap.String("charge_entry_id", entry.ID.String()),
		zap.String("reason", reason),
	)
	return s.commitFallback(ctx, entry, in, terms, method, reason)
}

func (s *SettlementService) commitCaptured(
	ctx context.Context,
	entry *ledger.ChargeEntry,
	in settlement.RecordInput,
	method *settlement.PaymentMethod,
	reference string,
) (*SettleResult, error) {
	var record *settlement.Record
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Charges().FindByIDForUpdate(ctx, entry.TenantID, entry.ID)
		if err != nil {
			return err
		}
		record, err = settlement.NewCapturedRecord(in, method, reference)
		if err != nil {
			return err
		}
		if err := repos.Records().Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create settlement record: %w", err)
		}
		if err := locked.MarkSettled(record.ID, ledger.ChargeStatusPaid); err != nil {
			return err
		}
		return repos.Charges().SaveStatus(ctx, locked)
	})
	if err != nil {
		// The processor already holds the money; the reference is the only trail.
		s.logger.Error("Captured payment could not be recorded",
			zap.String("charge_entry_id", entry.ID.String()),
			zap.String("payment_ref", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to record captured payment %s: %w", reference, err)
	}

	s.afterSettle(ctx, entry, record, record)
	return &SettleResult{
		Mode:       settlement.ModeImmediate,
		Status:     settlement.RecordStatusPaid,
		RecordID:   record.ID,
		PaymentRef: reference,
		Message:    "charge captured",
	}, nil
}

func (s *SettlementService) commitFallback(
	ctx context.Context,
	entry *ledger.ChargeEntry,
	in settlement.RecordInput,
	terms settlement.Terms,
	method *settlement.PaymentMethod,
	reason string,
) (*SettleResult, error) {
	var failed, deferred *settlement.Record
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Charges().FindByIDForUpdate(ctx, entry.TenantID, entry.ID)
		if err != nil {
			return err
		}
		balance, err := repos.Balances().GetOrCreateForUpdate(ctx, entry.TenantID, entry.CustomerID, s.opts.DefaultCreditLimit)
		if err != nil {
			return fmt.Errorf("failed to lock account balance: %w", err)
		}

		failed, err = settlement.NewFailedRecord(in, method, reason)
		if err != nil {
			return err
		}
		if err := repos.Records().Create(ctx, failed); err != nil {
			return fmt.Errorf("failed to create failed record: %w", err)
		}
		deferred, err = settlement.NewDeferredRecord(in, terms.DueDate(s.opts.Now()), failed)
		if err != nil {
			return err
		}
		if err := repos.Records().Create(ctx, deferred); err != nil {
			return fmt.Errorf("failed to create deferred record: %w", err)
		}

		balance.Increment(deferred.Total)
		if err := repos.Balances().Save(ctx, balance); err != nil {
			return fmt.Errorf("failed to update account balance: %w", err)
		}
		if err := locked.MarkSettled(deferred.ID, ledger.ChargeStatusPosted); err != nil {
			return err
		}
		return repos.Charges().SaveStatus(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, entry.TenantID, string(settlement.ModeImmediate), string(settlement.RecordStatusFailed))
	s.afterSettle(ctx, entry, deferred, failed, deferred)

	deferredID := deferred.ID
	return &SettleResult{
		Mode:             settlement.ModeImmediate,
		Status:           settlement.RecordStatusFailed,
		RecordID:         failed.ID,
		DeferredRecordID: &deferredID,
		FailureReason:    reason,
		Message:          "charge deferred to account, reason: " + reason,
	}, nil
}

func (s *SettlementService) settleDeferred(
	ctx context.Context,
	entry *ledger.ChargeEntry,
	in settlement.RecordInput,
	terms settlement.Terms,
) (*SettleResult, error) {
	var record *settlement.Record
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Charges().FindByIDForUpdate(ctx, entry.TenantID, entry.ID)
		if err != nil {
			return err
		}
		balance, err := repos.Balances().GetOrCreateForUpdate(ctx, entry.TenantID, entry.CustomerID, s.opts.DefaultCreditLimit)
		if err != nil {
			return fmt.Errorf("failed to lock account balance: %w", err)
		}
		record, err = settlement.NewDeferredRecord(in, terms.DueDate(s.opts.Now()), nil)
		if err != nil {
			return err
		}
		if err := repos.Records().Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create deferred record: %w", err)
		}
		balance.Increment(record.Total)
		if err := repos.Balances().Save(ctx, balance); err != nil {
			return fmt.Errorf("failed to update account balance: %w", err)
		}
		if err := locked.MarkSettled(record.ID, ledger.ChargeStatusPosted); err != nil {
			return err
		}
		return repos.Charges().SaveStatus(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.afterSettle(ctx, entry, record, record)
	return &SettleResult{
		Mode:     settlement.ModeDeferred,
		Status:   settlement.RecordStatusPending,
		RecordID: record.ID,
		Message:  "charge added to account",
	}, nil
}

// afterSettle publishes the committed records' events and the settled
// event for the record that now holds the charge
func (s *SettlementService) afterSettle(ctx context.Context, entry *ledger.ChargeEntry, holder *settlement.Record, written ...*settlement.Record) {
	sources := make([]eventSource, 0, len(written))
	for _, r := range written {
		sources = append(sources, r)
	}
	publishAfterCommit(ctx, s.events, s.logger, sources, settlement.NewChargeSettledEvent(holder, entry.ID))
	s.metrics.RecordSettlement(ctx, entry.TenantID, string(holder.Mode), string(holder.Status))

	s.logger.Info("Charge settled",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("charge_entry_id", entry.ID.String()),
		zap.String("mode", string(holder.Mode)),
		zap.String("status", string(holder.Status)),
		zap.String("settlement_record_id", holder.ID.String()),
	)
}

// RetryFailed re-runs the capture for a failed immediate record. On
// success the pending deferred fallback is cancelled against the account
// balance. Once the fallback has been invoiced or paid the retry is
// rejected before anything is captured or counted.
func (s *SettlementService) RetryFailed(ctx context.Context, tenantID, recordID uuid.UUID) (*SettleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "retry")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrRecordID, recordID.String(),
	)

	release, err := s.claim(ctx, "retry:"+recordID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.records.FindByID(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	fallback, err := optional(s.records.FindFallbackOf(ctx, tenantID, record.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to load deferred fallback: %w", err)
	}
	if fallback != nil && fallback.Status != settlement.RecordStatusPending {
		return nil, settlement.ErrFallbackAlreadyInvoiced
	}

	now := s.opts.Now()
	if err := record.BeginRetry(now); err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to count retry attempt: %w", err)
	}

	method, reason := s.resolveMethod(ctx, tenantID, record.CustomerID, record.PaymentMethodID)
	var res settlement.CaptureResult
	if method != nil {
		res, err = captureWithTimeout(ctx, s.capture, s.opts.CaptureTimeout, s.metrics, settlement.CaptureRequest{
			TenantID:        tenantID,
			CustomerID:      record.CustomerID,
			PaymentMethodID: method.ID,
			MethodType:      method.Type,
			Amount:          record.Total,
			IdempotencyKey:  fmt.Sprintf("retry:%s:%d", record.ID, record.RetryCount),
			Description:     record.Description,
		})
		if err == nil && res.Success {
			return s.commitRetryCaptured(ctx, record, method, res.Reference, now)
		}
		reason = settlement.FailureReasonOf(res, err)
	}

	record.RetryFailed(reason)
	if err := s.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save retry outcome: %w", err)
	}
	publishAfterCommit(ctx, s.events, s.logger, []eventSource{record})
	s.metrics.RecordSettlement(ctx, tenantID, string(settlement.ModeImmediate), string(settlement.RecordStatusFailed))

	s.logger.Info("Charge retry failed",
		zap.String("settlement_record_id", record.ID.String()),
		zap.Int("retry_count", record.RetryCount),
		zap.String("reason", reason),
	)
	return &SettleResult{
		Mode:          settlement.ModeImmediate,
		Status:        settlement.RecordStatusFailed,
		RecordID:      record.ID,
		FailureReason: reason,
		Message:       fmt.Sprintf("retry %d of %d failed: %s", record.RetryCount, settlement.MaxRetries, reason),
	}, nil
}

func (s *SettlementService) commitRetryCaptured(
	ctx context.Context,
	record *settlement.Record,
	method *settlement.PaymentMethod,
	reference string,
	now time.Time,
) (*SettleResult, error) {
	var (
		captured          *settlement.Record
		cancelledFallback *uuid.UUID
		invoicedFallback  *settlement.Record
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Records().FindByIDForUpdate(ctx, record.TenantID, record.ID)
		if err != nil {
			return err
		}
		fallback, err := optional(repos.Records().FindFallbackOf(ctx, record.TenantID, record.ID))
		if err != nil {
			return fmt.Errorf("failed to load deferred fallback: %w", err)
		}
		if fallback != nil {
			if fallback.Status == settlement.RecordStatusPending {
				balance, err := repos.Balances().GetOrCreateForUpdate(ctx, record.TenantID, record.CustomerID, s.opts.DefaultCreditLimit)
				if err != nil {
					return fmt.Errorf("failed to lock account balance: %w", err)
				}
				balance.Decrement(fallback.Total)
				if err := repos.Balances().Save(ctx, balance); err != nil {
					return fmt.Errorf("failed to update account balance: %w", err)
				}
				if err := fallback.SettleDeferred(reference, now); err != nil {
					return err
				}
				if err := repos.Records().Save(ctx, fallback); err != nil {
					return fmt.Errorf("failed to cancel deferred fallback: %w", err)
				}
				id := fallback.ID
				cancelledFallback = &id
			} else {
				invoicedFallback = fallback
			}
		}

		if err := locked.Captured(method, reference, now); err != nil {
			return err
		}
		if err := repos.Records().Save(ctx, locked); err != nil {
			return fmt.Errorf("failed to save captured record: %w", err)
		}

		if locked.ChargeEntryID != nil {
			entry, err := repos.Charges().FindByIDForUpdate(ctx, locked.TenantID, *locked.ChargeEntryID)
			if err != nil {
				return err
			}
			if entry.Status == ledger.ChargeStatusPosted {
				if err := entry.MarkSettled(locked.ID, ledger.ChargeStatusPaid); err != nil {
					return err
				}
				if err := repos.Charges().SaveStatus(ctx, entry); err != nil {
					return err
				}
			}
		}
		captured = locked
		return nil
	})
	if err != nil {
		s.logger.Error("Retried capture could not be recorded",
			zap.String("settlement_record_id", record.ID.String()),
			zap.String("payment_ref", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to record retried capture %s: %w", reference, err)
	}

	if invoicedFallback != nil {
		// invoiced between the pre-check and the commit
		s.logger.Warn("Retried charge collected but its deferred fallback is already invoiced",
			zap.String("settlement_record_id", captured.ID.String()),
			zap.String("fallback_record_id", invoicedFallback.ID.String()),
			zap.String("fallback_status", string(invoicedFallback.Status)),
		)
	}

	var extra []shared.DomainEvent
	if captured.ChargeEntryID != nil {
		extra = append(extra, settlement.NewChargeSettledEvent(captured, *captured.ChargeEntryID))
	}
	publishAfterCommit(ctx, s.events, s.logger, []eventSource{captured}, extra...)
	s.metrics.RecordSettlement(ctx, captured.TenantID, string(settlement.ModeImmediate), string(settlement.RecordStatusPaid))

	return &SettleResult{
		Mode:             settlement.ModeImmediate,
		Status:           settlement.RecordStatusPaid,
		RecordID:         captured.ID,
		DeferredRecordID: cancelledFallback,
		PaymentRef:       reference,
		Message:          "retried charge captured",
	}, nil
}

// GetRecord returns one settlement record
func (s *SettlementService) GetRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*settlement.Record, error) {
	return s.records.FindByID(ctx, tenantID, recordID)
}

// GetAccountBalance summarizes what a customer owes on account
func (s *SettlementService) GetAccountBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*settlement.BalanceSummary, error) {
	customer, err := s.directory.FindCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	balance, err := optional(s.balances.Find(ctx, tenantID, customerID))
	if err != nil {
		return nil, fmt.Errorf("failed to load account balance: %w", err)
	}
	pending, oldest, err := s.records.PendingDeferredSummary(ctx, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize deferred charges: %w", err)
	}

	summary := &settlement.BalanceSummary{
		CustomerID:       customer.ID,
		CustomerName:     customer.DisplayName(),
		MailboxID:        customer.MailboxID,
		AccountBalance:   decimal.Zero,
		CreditLimit:      s.opts.DefaultCreditLimit,
		PendingCharges:   pending,
		OldestUnpaidDate: oldest,
	}
	if balance != nil {
		summary.AccountBalance = balance.Balance
		summary.CreditLimit = balance.CreditLimit
	}
	summary.TotalOwed = summary.AccountBalance
	return summary, nil
}

// ListOutstandingBalances returns every customer with money on account,
// largest balance first
func (s *SettlementService) ListOutstandingBalances(ctx context.Context, tenantID uuid.UUID) ([]settlement.BalanceSummary, error) {
	balances, err := s.balances.ListOutstanding(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding balances: %w", err)
	}
	summaries := make([]settlement.BalanceSummary, 0, len(balances))
	for _, b := range balances {
		summary := settlement.BalanceSummary{
			CustomerID:     b.CustomerID,
			AccountBalance: b.Balance,
			CreditLimit:    b.CreditLimit,
			PendingCharges: decimal.Zero,
			TotalOwed:      b.Balance,
		}
		customer, err := s.directory.FindCustomer(ctx, tenantID, b.CustomerID)
		if err != nil {
			s.logger.Warn("Customer lookup failed for outstanding balance",
				zap.String("customer_id", b.CustomerID.String()),
				zap.Error(err),
			)
		} else {
			summary.CustomerName = customer.DisplayName()
			summary.MailboxID = customer.MailboxID
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

var _ ChargeSettler = (*SettlementService)(nil)
