package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/invoicing"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.Repository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice with its line items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads an invoice with SELECT ... FOR UPDATE
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	var items []models.InvoiceLineItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("sort_order ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	model.LineItems = items
	return model.ToDomain(), nil
}

// Create inserts the invoice header and its line items.
// A number already used within the tenant yields invoicing.ErrInvoiceNumberTaken.
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Omit("LineItems").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "number"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicing.ErrInvoiceNumberTaken
	}
	if len(model.LineItems) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&model.LineItems).Error
}

// Save updates the invoice header with optimistic locking
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version-1).
		Updates(map[string]any{
			"status":            model.Status,
			"amount_paid":       model.AmountPaid,
			"sent_at":           model.SentAt,
			"sent_via":          model.SentVia,
			"paid_at":           model.PaidAt,
			"payment_method_id": model.PaymentMethodID,
			"payment_ref":       model.PaymentRef,
			"notes":             model.Notes,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountCreatedSince counts a tenant's invoices created at or after since
func (r *GormInvoiceRepository) CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByCustomerAndStatus lists a customer's invoices in the given statuses, oldest due first
func (r *GormInvoiceRepository) ListByCustomerAndStatus(ctx context.Context, tenantID, customerID uuid.UUID, statuses ...invoicing.Status) ([]invoicing.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var invoiceModels []models.InvoiceModel
	if err := query.Order("due_date ASC").Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// ListPastDue lists collectable invoices whose due date has passed
func (r *GormInvoiceRepository) ListPastDue(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date < ?", tenantID,
			[]invoicing.Status{invoicing.StatusSent, invoicing.StatusPartiallyPaid}, now).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

type statusTotalRow struct {
	Status invoicing.Status
	Count  int64
	Amount decimal.Decimal
}

// SummarizeByStatus counts and sums invoices per status
func (r *GormInvoiceRepository) SummarizeByStatus(ctx context.Context, tenantID uuid.UUID) ([]invoicing.StatusTotal, error) {
	var rows []statusTotalRow
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount + tax), 0) AS amount").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make([]invoicing.StatusTotal, len(rows))
	for i, row := range rows {
		totals[i] = invoicing.StatusTotal{Status: row.Status, Count: row.Count, Amount: shared.RoundMoney(row.Amount)}
	}
	return totals, nil
}

// List returns a filtered page of invoice headers and the total count
func (r *GormInvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, filter invoicing.Filter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var invoiceModels []models.InvoiceModel
	if err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, InvoiceSortFields, "created_at")).
		Scopes(paginate(filter.Filter)).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	return toInvoices(invoiceModels), total, nil
}

func toInvoices(invoiceModels []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

var _ invoicing.Repository = (*GormInvoiceRepository)(nil)

// GormInvoiceScheduleRepository implements invoicing.ScheduleRepository using GORM
type GormInvoiceScheduleRepository struct {
	db *gorm.DB
}

// NewGormInvoiceScheduleRepository creates a new GormInvoiceScheduleRepository
func NewGormInvoiceScheduleRepository(db *gorm.DB) *GormInvoiceScheduleRepository {
	return &GormInvoiceScheduleRepository{db: db}
}

// Find finds the tenant-level schedule, or a customer's when customerID is set
func (r *GormInvoiceScheduleRepository) Find(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*invoicing.Schedule, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	} else {
		query = query.Where("customer_id IS NULL")
	}
	var model models.InvoiceScheduleModel
	if err := query.Order("created_at ASC").First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByID finds a schedule by ID within a tenant
func (r *GormInvoiceScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Schedule, error) {
	var model models.InvoiceScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates a schedule
func (r *GormInvoiceScheduleRepository) Save(ctx context.Context, s *invoicing.Schedule) error {
	return r.db.WithContext(ctx).Save(models.InvoiceScheduleModelFromDomain(s)).Error
}

// ListDue lists active, non on-demand schedules due at or before now
func (r *GormInvoiceScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]invoicing.Schedule, error) {
	var scheduleModels []models.InvoiceScheduleModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND frequency <> ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
			true, invoicing.FrequencyOnDemand, now).
		Order("next_run_at ASC").
		Find(&scheduleModels).Error; err != nil {
		return nil, err
	}
	return toSchedules(scheduleModels), nil
}

// ListCustomerSchedules lists a tenant's active customer-level schedules
func (r *GormInvoiceScheduleRepository) ListCustomerSchedules(ctx context.Context, tenantID uuid.UUID) ([]invoicing.Schedule, error) {
	var scheduleModels []models.InvoiceScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id IS NOT NULL AND is_active = ?", tenantID, true).
		Find(&scheduleModels).Error; err != nil {
		return nil, err
	}
	return toSchedules(scheduleModels), nil
}

func toSchedules(scheduleModels []models.InvoiceScheduleModel) []invoicing.Schedule {
	schedules := make([]invoicing.Schedule, len(scheduleModels))
	for i := range scheduleModels {
		schedules[i] = *scheduleModels[i].ToDomain()
	}
	return schedules
}

var _ invoicing.ScheduleRepository = (*GormInvoiceScheduleRepository)(nil)
