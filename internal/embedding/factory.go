package embedding

import (
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/pkg/config"
)

// NewClient builds the embedding client selected by configuration.
// Unknown drivers fall back to the mock client so development
// environments work without credentials.
func NewClient(cfg *config.EmbeddingsConfig, log *zap.Logger) Client {
	switch cfg.Driver {
	case "openai":
		return NewOpenAIClient(cfg)
	case "mock":
		return NewMockClient()
	default:
		log.Warn("unknown embeddings driver, falling back to mock",
			zap.String("driver", cfg.Driver))
		return NewMockClient()
	}
}
