package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/ledger"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormChargeRepository implements ledger.ChargeRepository using GORM
type GormChargeRepository struct {
	db *gorm.DB
}

// NewGormChargeRepository creates a new GormChargeRepository
func NewGormChargeRepository(db *gorm.DB) *GormChargeRepository {
	return &GormChargeRepository{db: db}
}

// FindByID finds a charge entry by ID within a tenant
func (r *GormChargeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.ChargeEntry, error) {
	var model models.ChargeEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a charge entry with SELECT ... FOR UPDATE
func (r *GormChargeRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.ChargeEntry, error) {
	var model models.ChargeEntryModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new charge entry
func (r *GormChargeRepository) Create(ctx context.Context, entry *ledger.ChargeEntry) error {
	return r.db.WithContext(ctx).Create(models.ChargeEntryModelFromDomain(entry)).Error
}

// SaveStatus persists the status and settlement link with optimistic locking
func (r *GormChargeRepository) SaveStatus(ctx context.Context, entry *ledger.ChargeEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChargeEntryModel{}).
		Where("id = ? AND version = ?", entry.ID, entry.Version-1).
		Updates(map[string]any{
			"status":               entry.Status,
			"settlement_record_id": entry.SettlementRecordID,
			"version":              entry.Version,
			"updated_at":           entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// TransitionMany moves entries in status from to status to
func (r *GormChargeRepository) TransitionMany(ctx context.Context, ids []uuid.UUID, from, to ledger.ChargeStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.ChargeEntryModel{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ExistsForDay reports whether the daily run already recorded a recurring
// charge. Entries from checkout or manual recording do not count.
func (r *GormChargeRepository) ExistsForDay(ctx context.Context, packageID uuid.UUID, serviceType ledger.ServiceType, day string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ChargeEntryModel{}).
		Where("package_id = ? AND service_type = ? AND charge_day = ? AND recurring = ?", packageID, serviceType, day, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns a filtered page of charge entries and the total count
func (r *GormChargeRepository) List(ctx context.Context, tenantID uuid.UUID, filter ledger.ChargeFilter) ([]ledger.ChargeEntry, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ChargeEntryModel{}).
		Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ServiceType != "" {
		query = query.Where("service_type = ?", filter.ServiceType)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.ChargeEntryModel
	if err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, ChargeEntrySortFields, "created_at")).
		Scopes(paginate(filter.Filter)).
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}
	entries := make([]ledger.ChargeEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries, total, nil
}

var _ ledger.ChargeRepository = (*GormChargeRepository)(nil)

// GormUsageRepository implements ledger.UsageRepository using GORM
type GormUsageRepository struct {
	db *gorm.DB
}

// NewGormUsageRepository creates a new GormUsageRepository
func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

// FindMeter finds a tenant meter by slug
func (r *GormUsageRepository) FindMeter(ctx context.Context, tenantID uuid.UUID, slug ledger.MeterSlug) (*ledger.UsageMeter, error) {
	var model models.UsageMeterModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// SaveMeter upserts a meter on (tenant, slug)
func (r *GormUsageRepository) SaveMeter(ctx context.Context, meter *ledger.UsageMeter) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "is_active", "updated_at"}),
		}).
		Create(models.UsageMeterModelFromDomain(meter)).Error
}

// CreateRecord appends a usage record
func (r *GormUsageRepository) CreateRecord(ctx context.Context, record *ledger.UsageRecord) error {
	return r.db.WithContext(ctx).Create(models.UsageRecordModelFromDomain(record)).Error
}

// SumForPeriod totals a customer's usage on a meter for a month
func (r *GormUsageRepository) SumForPeriod(ctx context.Context, meterID, customerID uuid.UUID, period string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.UsageRecordModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("meter_id = ? AND customer_id = ? AND period = ?", meterID, customerID, period).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

var _ ledger.UsageRepository = (*GormUsageRepository)(nil)
