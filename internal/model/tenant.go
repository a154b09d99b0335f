package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant represents an isolated customer account. A tenant is on exactly
// one plan at a time; feature_overrides take precedence over anything the
// plan or module pivots derive.
type Tenant struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name               string         `json:"name" gorm:"type:varchar(255);not null"`
	Domain             string         `json:"domain" gorm:"type:varchar(255);uniqueIndex"`
	Plan               string         `json:"plan" gorm:"type:varchar(50);not null;default:'starter';index"`
	FeatureOverrides   JSONB          `json:"feature_overrides" gorm:"type:jsonb"`
	Settings           JSONB          `json:"settings" gorm:"type:jsonb"`
	IsActive           bool           `json:"is_active" gorm:"default:true;index"`
	TrialEndsAt        *time.Time     `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time     `json:"subscription_ends_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Users   []User         `json:"users,omitempty" gorm:"foreignKey:TenantID"`
	Modules []TenantModule `json:"modules,omitempty" gorm:"foreignKey:TenantID"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
