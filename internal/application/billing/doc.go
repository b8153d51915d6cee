// Package billing orchestrates the settlement pipeline: a billable event is
// priced, written to the charge ledger, settled immediately or deferred to
// the customer's account, batched into invoices and finally collected by
// auto-pay.
package billing
