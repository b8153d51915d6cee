package persistence

import (
	"strings"

	"github.com/mailcenter/billing/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ChargeEntrySortFields contains allowed sort fields for charge entries
var ChargeEntrySortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"service_type": true,
	"status":       true,
	"total":        true,
	"charge_day":   true,
	"mailbox_id":   true,
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"number":      true,
	"status":      true,
	"amount":      true,
	"due_date":    true,
	"amount_paid": true,
}

func orderClause(filter string, dir string, allowed map[string]bool, defaultField string) string {
	return ValidateSortField(filter, allowed, defaultField) + " " + ValidateSortOrder(dir)
}

const defaultPageSize = 20

// paginate applies the filter's page window, defaulting the page size
func paginate(f shared.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.PageSize <= 0 {
			f.PageSize = defaultPageSize
		}
		return db.Offset(f.Offset()).Limit(f.PageSize)
	}
}
