package ingestion

import "errors"

var (
	// ErrAlreadyProcessing is returned when a document that is not in
	// the pending state is handed to the pipeline again.
	ErrAlreadyProcessing = errors.New("document is already being processed")

	// ErrRasterizerUnavailable signals that no rasterizer backend is
	// configured. The image stage treats it as a non-fatal skip.
	ErrRasterizerUnavailable = errors.New("rasterizer is not available")
)
