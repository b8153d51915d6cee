package invoicing

import "github.com/mailcenter/billing/internal/domain/shared"

var (
	ErrNothingToInvoice   = shared.NewDomainError("NOTHING_TO_INVOICE", "No pending deferred charges to invoice")
	ErrInvoiceAlreadyPaid = shared.NewDomainError("INVOICE_ALREADY_PAID", "Invoice is already paid")
	ErrInvoiceVoided      = shared.NewDomainError("INVOICE_VOIDED", "Invoice has been voided")
	ErrCannotVoidPaid     = shared.NewDomainError("CANNOT_VOID_PAID_INVOICE", "Cannot void a paid invoice")
	ErrRecordsChanged     = shared.NewDomainError("INVOICE_RECORDS_CHANGED",
		"Settlement records changed while the invoice was being written")
	ErrInvoiceNumberTaken = shared.NewDomainError("INVOICE_NUMBER_TAKEN",
		"Invoice number is already in use for this tenant")
)
