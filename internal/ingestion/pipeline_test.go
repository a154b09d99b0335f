package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/embedding"
	"github.com/alintentu/farmer-app/internal/model"
	"github.com/alintentu/farmer-app/pkg/config"
	"github.com/alintentu/farmer-app/prometheus"
)

func TestMain(m *testing.M) {
	prometheus.InitMetrics(&config.Config{
		Metrics: config.MetricsConfig{Prefix: "ingestion_test"},
	})
	os.Exit(m.Run())
}

type memStore struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]*model.ContentDocument
	pages  map[uuid.UUID]*model.DocumentPage
	images map[uuid.UUID]*model.DocumentImage
}

func newMemStore(docs ...*model.ContentDocument) *memStore {
	s := &memStore{
		docs:   make(map[uuid.UUID]*model.ContentDocument),
		pages:  make(map[uuid.UUID]*model.DocumentPage),
		images: make(map[uuid.UUID]*model.DocumentImage),
	}
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return s
}

func (s *memStore) Document(_ context.Context, id uuid.UUID) (*model.ContentDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	copied := *doc
	return &copied, nil
}

func (s *memStore) BeginProcessing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.ProcessingStatus != model.StatusPending {
		return ErrAlreadyProcessing
	}
	doc.ProcessingStatus = model.StatusProcessing
	return nil
}

func (s *memStore) CreatePage(_ context.Context, page *model.DocumentPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	copied := *page
	s.pages[page.ID] = &copied
	return nil
}

func (s *memStore) CompletePage(_ context.Context, id uuid.UUID, embedding pgvector.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := s.pages[id]
	page.Embedding = embedding
	page.EmbeddingStatus = model.StatusComplete
	return nil
}

func (s *memStore) FailPage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[id].EmbeddingStatus = model.StatusFailed
	return nil
}

func (s *memStore) CreateImage(_ context.Context, image *model.DocumentImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	copied := *image
	s.images[image.ID] = &copied
	return nil
}

func (s *memStore) CompleteImage(_ context.Context, id uuid.UUID, embedding pgvector.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.images[id]
	img.Embedding = embedding
	img.EmbeddingStatus = model.StatusComplete
	return nil
}

func (s *memStore) FailImage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].EmbeddingStatus = model.StatusFailed
	return nil
}

func (s *memStore) CompleteDocument(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].ProcessingStatus = model.StatusComplete
	return nil
}

func (s *memStore) FailDocument(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].ProcessingStatus = model.StatusFailed
	return nil
}

func (s *memStore) pageByNumber(number int) *model.DocumentPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range s.pages {
		if page.PageNumber == number {
			return page
		}
	}
	return nil
}

type fakeExtractor struct {
	pages []Page
	err   error
}

func (f *fakeExtractor) Extract(string) ([]Page, error) {
	return f.pages, f.err
}

type fakeRasterizer struct {
	pages []RasterizedPage
}

func (f *fakeRasterizer) Rasterize(string, string) ([]RasterizedPage, error) {
	return f.pages, nil
}

type flakyEmbedder struct {
	inner    embedding.Client
	failWhen func(text string) bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failWhen(text) {
		return nil, errors.New("provider unavailable")
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }
func (f *flakyEmbedder) Driver() string  { return "flaky" }

func pendingDocument(name string) *model.ContentDocument {
	return &model.ContentDocument{
		ID:               uuid.New(),
		Name:             name,
		ProcessingStatus: model.StatusPending,
		FilePath:         "content/" + name + ".pdf",
	}
}

func TestPipelineProcessesAllPages(t *testing.T) {
	doc := pendingDocument("handbook")
	store := newMemStore(doc)
	extractor := &fakeExtractor{pages: []Page{
		{Number: 1, Text: "first page"},
		{Number: 2, Text: "second page"},
		{Number: 3, Text: "third page"},
	}}

	p, err := NewPipeline(store, extractor, embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, model.StatusComplete, store.docs[doc.ID].ProcessingStatus)
	assert.Len(t, store.pages, 3)
	for _, page := range store.pages {
		assert.Equal(t, model.StatusComplete, page.EmbeddingStatus)
		assert.NotEmpty(t, page.Embedding.Slice())
	}
}

func TestPipelinePageFailureDoesNotFailDocument(t *testing.T) {
	doc := pendingDocument("flaky-doc")
	store := newMemStore(doc)
	extractor := &fakeExtractor{pages: []Page{
		{Number: 1, Text: "fine"},
		{Number: 2, Text: "poison"},
		{Number: 3, Text: "also fine"},
	}}
	embedder := &flakyEmbedder{
		inner:    embedding.NewMockClient(),
		failWhen: func(text string) bool { return strings.Contains(text, "poison") },
	}

	p, err := NewPipeline(store, extractor, embedder, zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, model.StatusComplete, store.docs[doc.ID].ProcessingStatus)
	assert.Equal(t, model.StatusComplete, store.pageByNumber(1).EmbeddingStatus)
	assert.Equal(t, model.StatusFailed, store.pageByNumber(2).EmbeddingStatus)
	assert.Equal(t, model.StatusComplete, store.pageByNumber(3).EmbeddingStatus)
}

func TestPipelineRejectsNonPendingDocument(t *testing.T) {
	doc := pendingDocument("claimed")
	doc.ProcessingStatus = model.StatusProcessing
	store := newMemStore(doc)

	p, err := NewPipeline(store, &fakeExtractor{}, embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	err = p.Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
}

func TestPipelineFailsDocumentForCorruptFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "garbage.pdf"), []byte("this file is not a pdf at all, just plain text padding"), 0o644))

	doc := pendingDocument("garbage")
	doc.FilePath = "garbage.pdf"
	store := newMemStore(doc)

	p, err := NewPipeline(store, NewPDFExtractor(root), embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	err = p.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, store.docs[doc.ID].ProcessingStatus)
	assert.Empty(t, store.pages)
}

func TestNoopExtractorYieldsSingleEmptyPage(t *testing.T) {
	doc := pendingDocument("no-parser")
	store := newMemStore(doc)

	p, err := NewPipeline(store, NewNoopExtractor(), embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, model.StatusComplete, store.docs[doc.ID].ProcessingStatus)
	require.Len(t, store.pages, 1)
	page := store.pageByNumber(1)
	require.NotNil(t, page)
	assert.Empty(t, page.Text)
	assert.Equal(t, model.StatusComplete, page.EmbeddingStatus)
}

func TestPipelineExtractionFailureFailsDocument(t *testing.T) {
	doc := pendingDocument("corrupt")
	store := newMemStore(doc)
	extractor := &fakeExtractor{err: errors.New("unreadable stream")}

	p, err := NewPipeline(store, extractor, embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	err = p.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, store.docs[doc.ID].ProcessingStatus)
}

func TestPipelineRasterizesImages(t *testing.T) {
	doc := pendingDocument("illustrated")
	store := newMemStore(doc)
	extractor := &fakeExtractor{pages: []Page{{Number: 1, Text: "text"}}}
	rasterizer := &fakeRasterizer{pages: []RasterizedPage{
		{Number: 1, Path: "content/extracted/page_1.png"},
		{Number: 2, Path: "content/extracted/page_2.png"},
	}}

	p, err := NewPipeline(store, extractor, embedding.NewMockClient(), zap.NewNop(),
		WithRasterizer(rasterizer))
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, model.StatusComplete, store.docs[doc.ID].ProcessingStatus)
	assert.Len(t, store.images, 2)
	for _, img := range store.images {
		assert.Equal(t, model.StatusComplete, img.EmbeddingStatus)
	}
}

func TestPipelineSkipsImagesWithoutRasterizer(t *testing.T) {
	doc := pendingDocument("plain")
	store := newMemStore(doc)
	extractor := &fakeExtractor{pages: []Page{{Number: 1, Text: "text"}}}

	p, err := NewPipeline(store, extractor, embedding.NewMockClient(), zap.NewNop())
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, model.StatusComplete, store.docs[doc.ID].ProcessingStatus)
	assert.Empty(t, store.images)
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("ж", maxEmbeddingInput+10)
	out := truncate(s, maxEmbeddingInput)
	assert.Equal(t, maxEmbeddingInput, len([]rune(out)))
}
