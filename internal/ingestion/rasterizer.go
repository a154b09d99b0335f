package ingestion

// RasterizedPage is one page rendered to an image on disk.
type RasterizedPage struct {
	Number int
	Path   string
}

// Rasterizer renders document pages to images. Deployments without a
// rendering backend return ErrRasterizerUnavailable and the pipeline
// skips the image stage.
type Rasterizer interface {
	Rasterize(sourcePath string, documentID string) ([]RasterizedPage, error)
}

// NoopRasterizer is the default backend.
type NoopRasterizer struct{}

func NewNoopRasterizer() *NoopRasterizer {
	return &NoopRasterizer{}
}

func (NoopRasterizer) Rasterize(string, string) ([]RasterizedPage, error) {
	return nil, ErrRasterizerUnavailable
}
