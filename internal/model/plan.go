package model

import (
	"time"
)

// Plan is a named subscription tier. Plans are read-only reference data
// and are never owned by a tenant.
type Plan struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Key          string    `json:"key" gorm:"type:varchar(50);uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Description  string    `json:"description" gorm:"type:text"`
	Price        float64   `json:"price" gorm:"type:decimal(10,2);default:0"`
	BillingCycle string    `json:"billing_cycle" gorm:"type:varchar(20);default:'monthly'"`
	Features     JSONB     `json:"features" gorm:"type:jsonb"`
	Limits       LimitMap  `json:"limits" gorm:"type:jsonb"`
	IsActive     bool      `json:"is_active" gorm:"default:true;index"`
	SortOrder    int       `json:"sort_order" gorm:"default:0;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
