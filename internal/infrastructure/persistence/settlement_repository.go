package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/settlement"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettlementRecordRepository implements settlement.RecordRepository using GORM
type GormSettlementRecordRepository struct {
	db *gorm.DB
}

// NewGormSettlementRecordRepository creates a new GormSettlementRecordRepository
func NewGormSettlementRecordRepository(db *gorm.DB) *GormSettlementRecordRepository {
	return &GormSettlementRecordRepository{db: db}
}

// FindByID finds a settlement record by ID within a tenant
func (r *GormSettlementRecordRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Record, error) {
	var model models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a settlement record with SELECT ... FOR UPDATE
func (r *GormSettlementRecordRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Record, error) {
	var model models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindFallbackOf finds the deferred record linked to a failed attempt
func (r *GormSettlementRecordRepository) FindFallbackOf(ctx context.Context, tenantID, failedID uuid.UUID) (*settlement.Record, error) {
	var model models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fallback_of = ?", tenantID, failedID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a settlement record
func (r *GormSettlementRecordRepository) Create(ctx context.Context, record *settlement.Record) error {
	return r.db.WithContext(ctx).Create(models.SettlementRecordModelFromDomain(record)).Error
}

// Save updates a settlement record with optimistic locking
func (r *GormSettlementRecordRepository) Save(ctx context.Context, record *settlement.Record) error {
	model := models.SettlementRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(&models.SettlementRecordModel{}).
		Where("id = ? AND version = ?", record.ID, record.Version-1).
		Updates(map[string]any{
			"status":              model.Status,
			"description":         model.Description,
			"payment_method_id":   model.PaymentMethodID,
			"payment_method_type": model.PaymentMethodType,
			"payment_ref":         model.PaymentRef,
			"failure_reason":      model.FailureReason,
			"retry_count":         model.RetryCount,
			"last_retry_at":       model.LastRetryAt,
			"due_date":            model.DueDate,
			"paid_at":             model.PaidAt,
			"invoice_id":          model.InvoiceID,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ListPendingDeferred lists a customer's uninvoiced deferred records, oldest first
func (r *GormSettlementRecordRepository) ListPendingDeferred(ctx context.Context, tenantID, customerID uuid.UUID, from *time.Time, to time.Time) ([]settlement.Record, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND mode = ? AND status = ? AND invoice_id IS NULL",
			tenantID, customerID, settlement.ModeDeferred, settlement.RecordStatusPending).
		Where("created_at <= ?", to)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	var recordModels []models.SettlementRecordModel
	if err := query.Order("created_at ASC").Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toRecords(recordModels), nil
}

// ListByInvoice lists the records consumed by an invoice
func (r *GormSettlementRecordRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]settlement.Record, error) {
	var recordModels []models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toRecords(recordModels), nil
}

// AttachInvoice flips still-pending records to invoiced
func (r *GormSettlementRecordRepository) AttachInvoice(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.SettlementRecordModel{}).
		Where("id IN ? AND status = ? AND invoice_id IS NULL", ids, settlement.RecordStatusPending).
		Updates(map[string]any{
			"status":     settlement.RecordStatusInvoiced,
			"invoice_id": invoiceID,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// DetachInvoice returns an invoice's records to pending
func (r *GormSettlementRecordRepository) DetachInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SettlementRecordModel{}).
		Where("invoice_id = ? AND status = ?", invoiceID, settlement.RecordStatusInvoiced).
		Updates(map[string]any{
			"status":     settlement.RecordStatusPending,
			"invoice_id": nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// SettleInvoice marks an invoice's records paid
func (r *GormSettlementRecordRepository) SettleInvoice(ctx context.Context, invoiceID uuid.UUID, reference string, paidAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SettlementRecordModel{}).
		Where("invoice_id = ? AND status = ?", invoiceID, settlement.RecordStatusInvoiced).
		Updates(map[string]any{
			"status":      settlement.RecordStatusPaid,
			"payment_ref": reference,
			"paid_at":     paidAt,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  paidAt,
		})
	return result.RowsAffected, result.Error
}

// CustomersWithPendingDeferred lists customers with uninvoiced deferred records
func (r *GormSettlementRecordRepository) CustomersWithPendingDeferred(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SettlementRecordModel{}).
		Distinct("customer_id").
		Where("tenant_id = ? AND mode = ? AND status = ? AND invoice_id IS NULL",
			tenantID, settlement.ModeDeferred, settlement.RecordStatusPending).
		Order("customer_id").
		Pluck("customer_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PendingDeferredSummary totals a customer's unpaid deferred records
func (r *GormSettlementRecordRepository) PendingDeferredSummary(ctx context.Context, tenantID, customerID uuid.UUID) (decimal.Decimal, *time.Time, error) {
	var recordModels []models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Select("total", "created_at").
		Where("tenant_id = ? AND customer_id = ? AND mode = ? AND status IN ?",
			tenantID, customerID, settlement.ModeDeferred,
			[]settlement.RecordStatus{settlement.RecordStatusPending, settlement.RecordStatusInvoiced}).
		Order("created_at ASC").
		Find(&recordModels).Error; err != nil {
		return decimal.Zero, nil, err
	}
	if len(recordModels) == 0 {
		return decimal.Zero, nil, nil
	}
	totals := make([]decimal.Decimal, len(recordModels))
	for i := range recordModels {
		totals[i] = recordModels[i].Total
	}
	oldest := recordModels[0].CreatedAt
	return shared.SumMoney(totals...), &oldest, nil
}

func toRecords(recordModels []models.SettlementRecordModel) []settlement.Record {
	records := make([]settlement.Record, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records
}

var _ settlement.RecordRepository = (*GormSettlementRecordRepository)(nil)

// GormBalanceRepository implements settlement.BalanceRepository using GORM
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewGormBalanceRepository creates a new GormBalanceRepository
func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// Find finds a customer's balance
func (r *GormBalanceRepository) Find(ctx context.Context, tenantID, customerID uuid.UUID) (*settlement.AccountBalance, error) {
	var model models.AccountBalanceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// GetOrCreateForUpdate opens the balance row if missing and locks it
func (r *GormBalanceRepository) GetOrCreateForUpdate(ctx context.Context, tenantID, customerID uuid.UUID, creditLimit decimal.Decimal) (*settlement.AccountBalance, error) {
	opening := models.AccountBalanceModelFromDomain(settlement.NewAccountBalance(tenantID, customerID, creditLimit))
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(opening).Error; err != nil {
		return nil, err
	}

	var model models.AccountBalanceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save updates a balance with optimistic locking
func (r *GormBalanceRepository) Save(ctx context.Context, balance *settlement.AccountBalance) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountBalanceModel{}).
		Where("id = ? AND version = ?", balance.ID, balance.Version-1).
		Updates(map[string]any{
			"balance":      balance.Balance,
			"credit_limit": balance.CreditLimit,
			"version":      balance.Version,
			"updated_at":   balance.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ListOutstanding lists balances above zero, largest first
func (r *GormBalanceRepository) ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]settlement.AccountBalance, error) {
	var balanceModels []models.AccountBalanceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND balance > 0", tenantID).
		Order("balance DESC").
		Find(&balanceModels).Error; err != nil {
		return nil, err
	}
	balances := make([]settlement.AccountBalance, len(balanceModels))
	for i := range balanceModels {
		balances[i] = *balanceModels[i].ToDomain()
	}
	return balances, nil
}

var _ settlement.BalanceRepository = (*GormBalanceRepository)(nil)

// GormTermsRepository implements settlement.TermsRepository using GORM
type GormTermsRepository struct {
	db       *gorm.DB
	fallback *settlement.BillingConfig
}

// NewGormTermsRepository creates a new GormTermsRepository
func NewGormTermsRepository(db *gorm.DB) *GormTermsRepository {
	return &GormTermsRepository{db: db}
}

// WithFallbackConfig makes FindConfig answer with a copy of fallback for
// tenants that never stored a billing config. Only the mode and payment
// window of fallback should be set; the feature switches stay off.
func (r *GormTermsRepository) WithFallbackConfig(fallback settlement.BillingConfig) *GormTermsRepository {
	r.fallback = &fallback
	return r
}

// FindConfig finds the tenant's billing config
func (r *GormTermsRepository) FindConfig(ctx context.Context, tenantID uuid.UUID) (*settlement.BillingConfig, error) {
	var model models.BillingConfigModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && r.fallback != nil {
		cfg := *r.fallback
		cfg.TenantID = tenantID
		return &cfg, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// SaveConfig upserts the tenant's billing config
func (r *GormTermsRepository) SaveConfig(ctx context.Context, cfg *settlement.BillingConfig) error {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(models.BillingConfigModelFromDomain(cfg)).Error
}

// FindProfile finds a customer's billing profile
func (r *GormTermsRepository) FindProfile(ctx context.Context, tenantID, customerID uuid.UUID) (*settlement.BillingProfile, error) {
	var model models.BillingProfileModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// SaveProfile upserts a customer's billing profile
func (r *GormTermsRepository) SaveProfile(ctx context.Context, profile *settlement.BillingProfile) error {
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "customer_id"}},
			UpdateAll: true,
		}).
		Create(models.BillingProfileModelFromDomain(profile)).Error
}

// ListAutoPayProfiles lists profiles with auto-pay scheduled on dayOfMonth
func (r *GormTermsRepository) ListAutoPayProfiles(ctx context.Context, tenantID uuid.UUID, dayOfMonth int) ([]settlement.BillingProfile, error) {
	var profileModels []models.BillingProfileModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND auto_pay_enabled = ? AND auto_pay_day = ?", tenantID, true, dayOfMonth).
		Order("customer_id").
		Find(&profileModels).Error; err != nil {
		return nil, err
	}
	profiles := make([]settlement.BillingProfile, len(profileModels))
	for i := range profileModels {
		profiles[i] = *profileModels[i].ToDomain()
	}
	return profiles, nil
}

var _ settlement.TermsRepository = (*GormTermsRepository)(nil)

// GormPaymentMethodRepository implements settlement.PaymentMethodRepository using GORM
type GormPaymentMethodRepository struct {
	db *gorm.DB
}

// NewGormPaymentMethodRepository creates a new GormPaymentMethodRepository
func NewGormPaymentMethodRepository(db *gorm.DB) *GormPaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

// FindActive finds an active method owned by the customer
func (r *GormPaymentMethodRepository) FindActive(ctx context.Context, tenantID, customerID, methodID uuid.UUID) (*settlement.PaymentMethod, error) {
	var model models.PaymentMethodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND id = ? AND status = ?",
			tenantID, customerID, methodID, settlement.MethodStatusActive).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindDefault finds the customer's active default method
func (r *GormPaymentMethodRepository) FindDefault(ctx context.Context, tenantID, customerID uuid.UUID) (*settlement.PaymentMethod, error) {
	var model models.PaymentMethodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND is_default = ? AND status = ?",
			tenantID, customerID, true, settlement.MethodStatusActive).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save upserts a payment method
func (r *GormPaymentMethodRepository) Save(ctx context.Context, method *settlement.PaymentMethod) error {
	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "label", "is_default", "status"}),
		}).
		Create(models.PaymentMethodModelFromDomain(method)).Error
}

var _ settlement.PaymentMethodRepository = (*GormPaymentMethodRepository)(nil)
