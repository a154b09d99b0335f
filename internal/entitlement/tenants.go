package entitlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alintentu/farmer-app/internal/model"
)

// GormTenantSource loads tenants for the gate middleware.
type GormTenantSource struct {
	db *gorm.DB
}

func NewGormTenantSource(db *gorm.DB) *GormTenantSource {
	return &GormTenantSource{db: db}
}

func (s *GormTenantSource) TenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}
