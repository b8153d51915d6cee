package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodType is the kind of stored payment instrument
type MethodType string

const (
	MethodCard   MethodType = "card"
	MethodACH    MethodType = "ach"
	MethodPayPal MethodType = "paypal"
	MethodCash   MethodType = "cash"
	MethodCheck  MethodType = "check"
)

// MethodStatus is the status of a payment instrument
type MethodStatus string

const (
	MethodStatusActive   MethodStatus = "active"
	MethodStatusInactive MethodStatus = "inactive"
	MethodStatusExpired  MethodStatus = "expired"
)

// PaymentMethod is a stored payment instrument
type PaymentMethod struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Type       MethodType
	Label      string
	IsDefault  bool
	Status     MethodStatus
}

// IsActive reports whether the instrument can be charged
func (m *PaymentMethod) IsActive() bool {
	return m.Status == MethodStatusActive
}

// CaptureRequest asks the payment processor to collect an amount
type CaptureRequest struct {
	TenantID        uuid.UUID
	CustomerID      uuid.UUID
	PaymentMethodID uuid.UUID
	MethodType      MethodType
	Amount          decimal.Decimal
	IdempotencyKey  string
	Description     string
}

// CaptureResult is the processor's answer. A declined capture is a
// result with Success false, not an error.
type CaptureResult struct {
	Success       bool
	Reference     string
	FailureReason string
}

// PaymentCapture is the external payment processor
type PaymentCapture interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

// ErrCaptureTimeout is returned when the processor does not answer in time
var ErrCaptureTimeout = errors.New("payment capture timed out")

// FailureReasonOf turns a capture outcome into the reason stored on a
// failed record. Errors (including timeouts) count as failures.
func FailureReasonOf(res CaptureResult, err error) string {
	if err != nil {
		return "payment capture error: " + err.Error()
	}
	if res.FailureReason != "" {
		return res.FailureReason
	}
	return "payment authorization failed"
}
