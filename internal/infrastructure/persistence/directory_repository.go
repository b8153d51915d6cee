package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDirectory implements directory.Directory over the directory read tables
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GormDirectory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// FindTenant finds a tenant by ID
func (r *GormDirectory) FindTenant(ctx context.Context, tenantID uuid.UUID) (*directory.Tenant, error) {
	var model models.DirectoryTenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", tenantID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// ListActiveTenants lists every active tenant
func (r *GormDirectory) ListActiveTenants(ctx context.Context) ([]directory.Tenant, error) {
	var tenantModels []models.DirectoryTenantModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", directory.StatusActive).
		Order("name ASC").
		Find(&tenantModels).Error; err != nil {
		return nil, err
	}
	tenants := make([]directory.Tenant, len(tenantModels))
	for i := range tenantModels {
		tenants[i] = *tenantModels[i].ToDomain()
	}
	return tenants, nil
}

// FindCustomer finds a customer within a tenant
func (r *GormDirectory) FindCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*directory.Customer, error) {
	var model models.DirectoryCustomerModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, customerID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// ListHeldPackages lists packages still on the shelf that were checked in before the cutoff
func (r *GormDirectory) ListHeldPackages(ctx context.Context, tenantID uuid.UUID, checkedInBefore time.Time) ([]directory.HeldPackage, error) {
	var packageModels []models.DirectoryPackageModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND checked_in_at < ?", tenantID, directory.HeldPackageStatuses, checkedInBefore).
		Order("checked_in_at ASC").
		Find(&packageModels).Error; err != nil {
		return nil, err
	}
	packages := make([]directory.HeldPackage, len(packageModels))
	for i := range packageModels {
		packages[i] = packageModels[i].ToDomain()
	}
	return packages, nil
}

var _ directory.Directory = (*GormDirectory)(nil)
