package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/alintentu/farmer-app/internal/model"
)

// Store persists pipeline state transitions for documents, pages, and
// images.
type Store interface {
	Document(ctx context.Context, id uuid.UUID) (*model.ContentDocument, error)
	BeginProcessing(ctx context.Context, id uuid.UUID) error
	CreatePage(ctx context.Context, page *model.DocumentPage) error
	CompletePage(ctx context.Context, id uuid.UUID, embedding pgvector.Vector) error
	FailPage(ctx context.Context, id uuid.UUID) error
	CreateImage(ctx context.Context, image *model.DocumentImage) error
	CompleteImage(ctx context.Context, id uuid.UUID, embedding pgvector.Vector) error
	FailImage(ctx context.Context, id uuid.UUID) error
	CompleteDocument(ctx context.Context, id uuid.UUID) error
	FailDocument(ctx context.Context, id uuid.UUID) error
}

// GormStore is the database-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Document(ctx context.Context, id uuid.UUID) (*model.ContentDocument, error) {
	var doc model.ContentDocument
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// BeginProcessing moves the document from pending to processing. The
// transition is a conditional update so two workers cannot both claim
// the same document.
func (s *GormStore) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&model.ContentDocument{}).
		Where("id = ? AND processing_status = ?", id, model.StatusPending).
		Update("processing_status", model.StatusProcessing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessing
	}
	return nil
}

func (s *GormStore) CreatePage(ctx context.Context, page *model.DocumentPage) error {
	return s.db.WithContext(ctx).Create(page).Error
}

func (s *GormStore) CompletePage(ctx context.Context, id uuid.UUID, embedding pgvector.Vector) error {
	return s.db.WithContext(ctx).
		Model(&model.DocumentPage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":        embedding,
			"embedding_status": model.StatusComplete,
		}).Error
}

func (s *GormStore) FailPage(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&model.DocumentPage{}).
		Where("id = ?", id).
		Update("embedding_status", model.StatusFailed).Error
}

func (s *GormStore) CreateImage(ctx context.Context, image *model.DocumentImage) error {
	return s.db.WithContext(ctx).Create(image).Error
}

func (s *GormStore) CompleteImage(ctx context.Context, id uuid.UUID, embedding pgvector.Vector) error {
	return s.db.WithContext(ctx).
		Model(&model.DocumentImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":        embedding,
			"embedding_status": model.StatusComplete,
		}).Error
}

func (s *GormStore) FailImage(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&model.DocumentImage{}).
		Where("id = ?", id).
		Update("embedding_status", model.StatusFailed).Error
}

func (s *GormStore) CompleteDocument(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&model.ContentDocument{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": model.StatusComplete,
			"processed_at":      now,
		}).Error
}

func (s *GormStore) FailDocument(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&model.ContentDocument{}).
		Where("id = ?", id).
		Update("processing_status", model.StatusFailed).Error
}
