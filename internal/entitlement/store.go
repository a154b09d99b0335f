package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alintentu/farmer-app/internal/model"
)

// GormModuleSource implements ModuleSource over the shared database.
type GormModuleSource struct {
	db *gorm.DB
}

func NewGormModuleSource(db *gorm.DB) *GormModuleSource {
	return &GormModuleSource{db: db}
}

func (s *GormModuleSource) TenantModule(ctx context.Context, tenantID uuid.UUID, featureKey string) (*model.Module, *model.TenantModule, error) {
	var module model.Module
	err := s.db.WithContext(ctx).Where("key = ?", featureKey).First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var pivot model.TenantModule
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND module_id = ?", tenantID, module.ID).
		First(&pivot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return &module, &pivot, nil
}

func (s *GormModuleSource) PlanByKey(ctx context.Context, key string) (*model.Plan, error) {
	var plan model.Plan
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
