package settlement

import "github.com/mailcenter/billing/internal/domain/shared"

// FailureNoPaymentMethod is the reason recorded when no instrument is on file
const FailureNoPaymentMethod = "no active payment method"

var (
	ErrRetryLimitExceeded = shared.NewDomainError("RETRY_LIMIT_EXCEEDED",
		"Maximum retry attempts (3) exceeded; charge must be handled manually")
	ErrSettlementInProgress = shared.NewDomainError("SETTLEMENT_IN_PROGRESS",
		"Charge is already being settled")
	ErrRecordNotFailed = shared.NewDomainError("RECORD_NOT_FAILED",
		"Only failed immediate charges can be retried")
	ErrAlreadyInvoiced = shared.NewDomainError("RECORD_ALREADY_INVOICED",
		"Settlement record already belongs to an invoice")
	ErrFallbackAlreadyInvoiced = shared.NewDomainError("FALLBACK_ALREADY_INVOICED",
		"Deferred fallback for this charge is already invoiced or paid; retry would collect it twice")
	ErrPaymentMethodNotFound = shared.NewDomainError("PAYMENT_METHOD_NOT_FOUND",
		"Payment method not found or inactive")
)
