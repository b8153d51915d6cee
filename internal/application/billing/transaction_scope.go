package billing

import (
	"context"

	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/settlement"
)

// TransactionScope provides transactional access to the billing repositories.
// All repository operations inside Execute commit or roll back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to one transaction.
//
// Balance rows are locked with GetOrCreateForUpdate before any record that
// moves the balance is written, so concurrent settlements for one customer
// serialize on that row.
type TransactionalRepositories interface {
	Charges() ledger.ChargeRepository
	Records() settlement.RecordRepository
	Balances() settlement.BalanceRepository
	Invoices() invoicing.Repository
}
