package ingestion

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/embedding"
	"github.com/alintentu/farmer-app/internal/model"
	"github.com/alintentu/farmer-app/prometheus"
)

// Text longer than this is cut before embedding to stay inside
// provider input limits.
const maxEmbeddingInput = 8000

// Pipeline turns an uploaded document into embedded pages and images.
// Embedding work fans out over a shared worker pool; a page whose
// embedding fails is marked failed without sinking the document.
type Pipeline struct {
	store      Store
	extractor  PageExtractor
	rasterizer Rasterizer
	embedder   embedding.Client
	pool       *ants.Pool
	log        *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithRasterizer replaces the default no-op rasterizer backend.
func WithRasterizer(r Rasterizer) Option {
	return func(p *Pipeline) error {
		p.rasterizer = r
		return nil
	}
}

func NewPipeline(store Store, extractor PageExtractor, embedder embedding.Client, log *zap.Logger, opts ...Option) (*Pipeline, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      store,
		extractor:  extractor,
		rasterizer: NewNoopRasterizer(),
		embedder:   embedder,
		pool:       pool,
		log:        log,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Process runs the full pipeline for one document. It claims the
// document, extracts and embeds its text pages, rasterizes and embeds
// page images when a backend is available, then marks the document
// complete. Any stage error fails the document.
func (p *Pipeline) Process(ctx context.Context, documentID uuid.UUID) error {
	start := time.Now()

	doc, err := p.store.Document(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if err := p.store.BeginProcessing(ctx, doc.ID); err != nil {
		return err
	}

	if err := p.run(ctx, doc); err != nil {
		p.log.Error("document processing failed",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
		if failErr := p.store.FailDocument(ctx, doc.ID); failErr != nil {
			p.log.Error("failed to mark document failed",
				zap.String("document_id", doc.ID.String()),
				zap.Error(failErr))
		}
		prometheus.RecordDocumentProcessed(model.StatusFailed)
		prometheus.PipelineDuration.WithLabelValues(model.StatusFailed).Observe(time.Since(start).Seconds())
		return err
	}

	if err := p.store.CompleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to mark document complete: %w", err)
	}

	prometheus.RecordDocumentProcessed(model.StatusComplete)
	prometheus.PipelineDuration.WithLabelValues(model.StatusComplete).Observe(time.Since(start).Seconds())

	p.log.Info("document processed",
		zap.String("document_id", doc.ID.String()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (p *Pipeline) run(ctx context.Context, doc *model.ContentDocument) error {
	if err := p.processText(ctx, doc); err != nil {
		return err
	}
	p.processImages(ctx, doc)
	return nil
}

func (p *Pipeline) processText(ctx context.Context, doc *model.ContentDocument) error {
	pages, err := p.extractor.Extract(doc.FilePath)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}

	var wg sync.WaitGroup
	for _, page := range pages {
		record := &model.DocumentPage{
			DocumentID:      doc.ID,
			PageNumber:      page.Number,
			Text:            page.Text,
			IsActive:        true,
			EmbeddingStatus: model.StatusProcessing,
		}
		if err := p.store.CreatePage(ctx, record); err != nil {
			wg.Wait()
			return fmt.Errorf("failed to create page %d: %w", page.Number, err)
		}

		text := truncate(page.Text, maxEmbeddingInput)
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			p.embedPage(ctx, record, text)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to submit page %d: %w", page.Number, err)
		}
	}

	wg.Wait()
	return nil
}

func (p *Pipeline) embedPage(ctx context.Context, page *model.DocumentPage, text string) {
	embStart := time.Now()
	vec, err := p.embedder.Embed(ctx, text)
	prometheus.RecordEmbedding(p.embedder.Driver(), embStart, err)
	if err != nil {
		p.log.Warn("page embedding failed",
			zap.String("document_id", page.DocumentID.String()),
			zap.Int("page_number", page.PageNumber),
			zap.Error(err))
		if err := p.store.FailPage(ctx, page.ID); err != nil {
			p.log.Error("failed to mark page failed",
				zap.String("page_id", page.ID.String()),
				zap.Error(err))
		}
		prometheus.RecordPageProcessed(model.StatusFailed)
		return
	}

	if err := p.store.CompletePage(ctx, page.ID, pgvector.NewVector(vec)); err != nil {
		p.log.Error("failed to store page embedding",
			zap.String("page_id", page.ID.String()),
			zap.Error(err))
		prometheus.RecordPageProcessed(model.StatusFailed)
		return
	}
	prometheus.RecordPageProcessed(model.StatusComplete)
}

// processImages is non-fatal end to end. Deployments without a
// rasterizer backend simply skip the stage.
func (p *Pipeline) processImages(ctx context.Context, doc *model.ContentDocument) {
	rendered, err := p.rasterizer.Rasterize(doc.FilePath, doc.ID.String())
	if err != nil {
		p.log.Warn("rasterizer unavailable or failed",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, img := range rendered {
		record := &model.DocumentImage{
			DocumentID:      doc.ID,
			PageNumber:      img.Number,
			ImagePath:       img.Path,
			IsActive:        true,
			EmbeddingStatus: model.StatusProcessing,
		}
		if err := p.store.CreateImage(ctx, record); err != nil {
			p.log.Error("failed to create image record",
				zap.String("document_id", doc.ID.String()),
				zap.Int("page_number", img.Number),
				zap.Error(err))
			continue
		}

		description := fmt.Sprintf("image page %d of %s", img.Number, doc.Name)
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			p.embedImage(ctx, record, description)
		}); err != nil {
			wg.Done()
			p.log.Error("failed to submit image embedding",
				zap.String("image_id", record.ID.String()),
				zap.Error(err))
		}
	}
	wg.Wait()
}

func (p *Pipeline) embedImage(ctx context.Context, image *model.DocumentImage, description string) {
	embStart := time.Now()
	vec, err := p.embedder.Embed(ctx, description)
	prometheus.RecordEmbedding(p.embedder.Driver(), embStart, err)
	if err != nil {
		p.log.Warn("image embedding failed",
			zap.String("image_id", image.ID.String()),
			zap.Error(err))
		if err := p.store.FailImage(ctx, image.ID); err != nil {
			p.log.Error("failed to mark image failed",
				zap.String("image_id", image.ID.String()),
				zap.Error(err))
		}
		prometheus.RecordImageProcessed(model.StatusFailed)
		return
	}

	if err := p.store.CompleteImage(ctx, image.ID, pgvector.NewVector(vec)); err != nil {
		p.log.Error("failed to store image embedding",
			zap.String("image_id", image.ID.String()),
			zap.Error(err))
		prometheus.RecordImageProcessed(model.StatusFailed)
		return
	}
	prometheus.RecordImageProcessed(model.StatusComplete)
}

// Release frees the worker pool. The pipeline should not be used
// after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
