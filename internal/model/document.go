package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Processing status values for documents and their pages/images.
// "complete" and "failed" are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// ContentDocument is an uploaded PDF and the root of the ingestion
// lifecycle: created pending, moved to processing when the pipeline
// starts, and finished as complete or failed. Failure is terminal and
// does not auto-retry.
type ContentDocument struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string     `json:"name" gorm:"type:varchar(255);not null"`
	Description      string     `json:"description" gorm:"type:text"`
	Language         string     `json:"language" gorm:"type:varchar(10)"`
	IsActive         bool       `json:"is_active" gorm:"default:true"`
	ProcessingStatus string     `json:"processing_status" gorm:"type:varchar(20);default:'pending';index"`
	FilePath         string     `json:"file_path" gorm:"type:varchar(500);not null"`
	TokensUsed       uint       `json:"tokens_used" gorm:"default:0"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relations
	Pages  []DocumentPage  `json:"pages,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Images []DocumentImage `json:"images,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (d *ContentDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DocumentPage holds the extracted text and embedding for one physical
// page. is_active toggles inclusion in downstream search independently
// of the embedding status. Vectors are never serialized to clients.
type DocumentPage struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	DocumentID      uuid.UUID       `json:"document_id" gorm:"type:uuid;not null;uniqueIndex:idx_document_page"`
	PageNumber      int             `json:"page_number" gorm:"not null;uniqueIndex:idx_document_page"`
	Text            string          `json:"text" gorm:"type:text"`
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	EmbeddingStatus string          `json:"embedding_status" gorm:"type:varchar(20);default:'pending'"`
	Embedding       pgvector.Vector `json:"-" gorm:"type:vector(1536)"`
	TokensUsed      uint            `json:"tokens_used" gorm:"default:0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *DocumentPage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DocumentImage is one rasterized page, created only when rasterization
// succeeded for that page.
type DocumentImage struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	DocumentID      uuid.UUID       `json:"document_id" gorm:"type:uuid;not null;index"`
	PageNumber      int             `json:"page_number" gorm:"not null"`
	ImagePath       string          `json:"image_path" gorm:"type:varchar(500);not null"`
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	EmbeddingStatus string          `json:"embedding_status" gorm:"type:varchar(20);default:'pending'"`
	Embedding       pgvector.Vector `json:"-" gorm:"type:vector(1536)"`
	TokensUsed      uint            `json:"tokens_used" gorm:"default:0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (i *DocumentImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
