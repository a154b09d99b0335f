package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/alintentu/farmer-app/internal/entitlement"
	"github.com/alintentu/farmer-app/internal/model"
	"github.com/alintentu/farmer-app/internal/queue"
	"github.com/alintentu/farmer-app/pkg/database"
	"github.com/alintentu/farmer-app/pkg/logger"
	"github.com/alintentu/farmer-app/pkg/storage"
	"github.com/alintentu/farmer-app/prometheus"
)

// DocumentHandler serves the content library endpoints. Uploads are
// stored on disk and queued for asynchronous processing.
type DocumentHandler struct {
	files      *storage.LocalStore
	dispatcher queue.Dispatcher
	usage      entitlement.UsageStore
}

func NewDocumentHandler(files *storage.LocalStore, dispatcher queue.Dispatcher, usage entitlement.UsageStore) *DocumentHandler {
	return &DocumentHandler{files: files, dispatcher: dispatcher, usage: usage}
}

// releaseDocumentSlot hands a consumed document unit back when the
// upload falls through after the counter was incremented. The dispatch
// branch keeps its unit: the record exists and can be re-queued.
func (h *DocumentHandler) releaseDocumentSlot(ctx context.Context, tenantID uuid.UUID, consumed bool, log *zap.Logger) {
	if !consumed {
		return
	}
	if err := h.usage.Release(ctx, tenantID, "files", "documents", 1); err != nil {
		log.Warn("Failed to release document slot",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

// Upload accepts a multipart PDF, records it as pending, and enqueues
// a processing job. Uploads count against the tenant's document limit.
func (h *DocumentHandler) Upload(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	name := c.FormValue("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if filepath.Ext(fileHeader.Filename) != ".pdf" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only PDF files are accepted"})
	}

	db := database.GetDB()

	var tenant model.Tenant
	if err := db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no tenant associated"})
	}

	resolver := entitlement.NewResolver(entitlement.NewGormModuleSource(db), nil)
	limit, declared, err := resolver.FeatureLimit(c.Request().Context(), &tenant, "files", "documents")
	if err != nil {
		log.Error("Limit resolution failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "entitlement resolution failed"})
	}
	consumed := false
	if declared {
		allowed, err := h.usage.TryConsume(c.Request().Context(), tenantID, "files", "documents", 1, limit)
		if err != nil {
			log.Error("Usage accounting failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "usage accounting failed"})
		}
		if !allowed {
			prometheus.RecordLimitExceeded("files", "documents")
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":    "document limit reached for your plan",
				"resource": "documents",
				"limit":    limit,
			})
		}
		consumed = true
	}

	docID := uuid.New()
	relPath := filepath.Join("content_library", "pdf", docID.String()+".pdf")

	src, err := fileHeader.Open()
	if err != nil {
		h.releaseDocumentSlot(c.Request().Context(), tenantID, consumed, log)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	defer src.Close()

	if err := h.files.Save(relPath, src); err != nil {
		log.Error("Failed to store upload", zap.Error(err))
		h.releaseDocumentSlot(c.Request().Context(), tenantID, consumed, log)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "file storage failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	doc := model.ContentDocument{
		ID:               docID,
		Name:             name,
		Description:      c.FormValue("description"),
		Language:         c.FormValue("language"),
		IsActive:         true,
		ProcessingStatus: model.StatusPending,
		FilePath:         relPath,
	}
	if err := db.Create(&doc).Error; err != nil {
		log.Error("Failed to create document record", zap.Error(err))
		h.releaseDocumentSlot(c.Request().Context(), tenantID, consumed, log)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "document creation failed"})
	}

	job := queue.DocumentJob{DocumentID: doc.ID, TenantID: tenantID}
	if err := h.dispatcher.Dispatch(c.Request().Context(), job); err != nil {
		log.Error("Failed to enqueue document job", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing could not be scheduled"})
	}

	log.Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("name", doc.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":  "Document uploaded, processing queued",
		"document": doc,
	})
}

// List returns documents filtered by free-text query, language, and
// processing status.
func (h *DocumentHandler) List(c echo.Context) error {
	defer prometheus.TrackDBOperation("select")(time.Now())

	query := database.GetDB().Model(&model.ContentDocument{})
	if q := c.QueryParam("q"); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if language := c.QueryParam("language"); language != "" {
		query = query.Where("language = ?", language)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("processing_status = ?", status)
	}

	var docs []model.ContentDocument
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "document listing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": docs})
}

// Get returns one document with its pages and images in page order.
func (h *DocumentHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document ID"})
	}

	defer prometheus.TrackDBOperation("select")(time.Now())

	var doc model.ContentDocument
	result := database.GetDB().
		Preload("Pages", func(db *gorm.DB) *gorm.DB { return db.Order("page_number") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("page_number") }).
		First(&doc, "id = ?", id)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"document": doc})
}

// Download streams the original uploaded file.
func (h *DocumentHandler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document ID"})
	}

	var doc model.ContentDocument
	if result := database.GetDB().First(&doc, "id = ?", id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	}

	return c.Attachment(h.files.Path(doc.FilePath), doc.Name+".pdf")
}

// Reprocess queues a document again. Failed documents are reset to
// pending first; documents already in flight are rejected.
func (h *DocumentHandler) Reprocess(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := c.Get("tenant_id").(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document ID"})
	}

	db := database.GetDB()
	var doc model.ContentDocument
	if result := db.First(&doc, "id = ?", id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	}

	switch doc.ProcessingStatus {
	case model.StatusPending:
		// Already queued, dispatch again below.
	case model.StatusFailed, model.StatusComplete:
		// Earlier pages and images are replaced wholesale on reprocess.
		err := db.Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&model.ContentDocument{}).
				Where("id = ? AND processing_status = ?", id, doc.ProcessingStatus).
				Update("processing_status", model.StatusPending)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			if err := tx.Where("document_id = ?", id).Delete(&model.DocumentPage{}).Error; err != nil {
				return err
			}
			return tx.Where("document_id = ?", id).Delete(&model.DocumentImage{}).Error
		})
		if err != nil {
			return c.JSON(http.StatusConflict, echo.Map{"error": "document is already being processed"})
		}
	default:
		return c.JSON(http.StatusConflict, echo.Map{"error": "document is already being processed"})
	}

	job := queue.DocumentJob{DocumentID: id, TenantID: tenantID}
	if err := h.dispatcher.Dispatch(c.Request().Context(), job); err != nil {
		log.Error("Failed to enqueue document job", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing could not be scheduled"})
	}

	return c.JSON(http.StatusAccepted, echo.Map{"message": "Processing queued"})
}

// TogglePage flips a page's visibility in search results.
func (h *DocumentHandler) TogglePage(c echo.Context) error {
	return h.toggle(c, &model.DocumentPage{}, c.Param("pageID"))
}

// ToggleImage flips an image's visibility.
func (h *DocumentHandler) ToggleImage(c echo.Context) error {
	return h.toggle(c, &model.DocumentImage{}, c.Param("imageID"))
}

func (h *DocumentHandler) toggle(c echo.Context, target interface{}, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ID"})
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_active is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	result := database.GetDB().Model(target).Where("id = ?", id).Update("is_active", *req.IsActive)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"is_active": *req.IsActive})
}

// Delete removes the document record and its stored file.
func (h *DocumentHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document ID"})
	}

	db := database.GetDB()
	var doc model.ContentDocument
	if result := db.First(&doc, "id = ?", id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := db.Delete(&doc).Error; err != nil {
		log.Error("Failed to delete document", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "document deletion failed"})
	}
	if err := h.files.Remove(doc.FilePath); err != nil {
		log.Warn("Failed to remove stored file",
			zap.String("path", doc.FilePath),
			zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Document deleted"})
}
