package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// BatchError is one failed item of a batch run. Batches keep going after
// an item fails.
type BatchError struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (e BatchError) Error() string {
	return e.Subject + ": " + e.Message
}

func batchError(subject string, err error) BatchError {
	return BatchError{Subject: subject, Message: err.Error()}
}

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishAfterCommit hands pending aggregate events plus extra to the bus.
// Delivery is fire-and-forget: failures are logged, never returned.
func publishAfterCommit(ctx context.Context, bus shared.EventPublisher, logger *zap.Logger, sources []eventSource, extra ...shared.DomainEvent) {
	events := make([]shared.DomainEvent, 0, len(extra))
	for _, src := range sources {
		if src == nil {
			continue
		}
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	events = append(events, extra...)
	if bus == nil || len(events) == 0 {
		return
	}
	if err := bus.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish billing events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// captureWithTimeout runs one capture under its own deadline. A capture
// that outlives the deadline is reported as settlement.ErrCaptureTimeout.
func captureWithTimeout(
	ctx context.Context,
	capture settlement.PaymentCapture,
	timeout time.Duration,
	metrics *telemetry.BillingMetrics,
	req settlement.CaptureRequest,
) (settlement.CaptureResult, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := capture.Capture(cctx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", settlement.ErrCaptureTimeout, timeout)
	}
	metrics.RecordCapture(ctx, time.Since(start), err == nil && res.Success)
	return res, err
}

// resolveTerms never fails: unreadable configuration falls back to defaults
func resolveTerms(ctx context.Context, repo settlement.TermsRepository, logger *zap.Logger, tenantID, customerID uuid.UUID) settlement.Terms {
	var terms settlement.Terms
	cfg, err := optional(repo.FindConfig(ctx, tenantID))
	if err != nil {
		logger.Warn("Billing config lookup failed, using default terms",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
	terms.Config = cfg
	profile, err := optional(repo.FindProfile(ctx, tenantID, customerID))
	if err != nil {
		logger.Warn("Billing profile lookup failed, using tenant terms",
			zap.String("customer_id", customerID.String()),
			zap.Error(err),
		)
	}
	terms.Profile = profile
	return terms
}

func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return v, err
}
