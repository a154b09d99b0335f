package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageCounter tracks consumption of a plan-bound resource for one
// tenant within one service scope. Increments go through a conditional
// UPDATE so the check and the write are a single statement.
type UsageCounter struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_tenant_service_resource"`
	Service   string    `json:"service" gorm:"type:varchar(50);not null;uniqueIndex:idx_tenant_service_resource"`
	Resource  string    `json:"resource" gorm:"type:varchar(100);not null;uniqueIndex:idx_tenant_service_resource"`
	Used      int64     `json:"used" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
