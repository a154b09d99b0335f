package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Module is an optionally-enabled capability area (tasks, crm, docs, ...)
// gated per tenant through the TenantModule pivot.
type Module struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Key         string         `json:"key" gorm:"type:varchar(100);uniqueIndex;not null"`
	Label       string         `json:"label" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Icon        string         `json:"icon" gorm:"type:varchar(100)"`
	Defaults    JSONB          `json:"defaults" gorm:"type:jsonb"`
	IsActive    bool           `json:"is_active" gorm:"default:true;index"`
	SortOrder   int            `json:"sort_order" gorm:"default:0;index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// DefaultLimit returns the module's default limit for a resource, or
// (0, false) when none is declared. Limits arrive as JSON numbers.
func (m *Module) DefaultLimit(resource string) (int64, bool) {
	if m.Defaults == nil {
		return 0, false
	}
	limits, ok := m.Defaults["limits"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := limits[resource].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// DefaultSettings returns the module's default settings map.
func (m *Module) DefaultSettings() map[string]interface{} {
	if m.Defaults == nil {
		return nil
	}
	settings, _ := m.Defaults["settings"].(map[string]interface{})
	return settings
}

// DefaultLimits returns the module's default limits as a LimitMap so
// they can be copied onto a pivot row at attach time.
func (m *Module) DefaultLimits() LimitMap {
	if m.Defaults == nil {
		return nil
	}
	raw, ok := m.Defaults["limits"].(map[string]interface{})
	if !ok {
		return nil
	}
	limits := make(LimitMap, len(raw))
	for resource, v := range raw {
		if f, ok := v.(float64); ok {
			limits[resource] = int64(f)
		}
	}
	return limits
}

// TenantModule is the pivot attaching a module to a tenant. Limits are
// copied from the module defaults at attach time and may diverge
// afterwards; there is no automatic re-sync.
type TenantModule struct {
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;primaryKey"`
	ModuleID  uint      `json:"module_id" gorm:"primaryKey"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	Limits    LimitMap  `json:"limits" gorm:"type:jsonb"`
	Settings  JSONB     `json:"settings" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Module Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
}
