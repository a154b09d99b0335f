package embedding

import (
	"context"
	"errors"
)

// ErrEmptyEmbedding is returned when the provider responds without vector data.
var ErrEmptyEmbedding = errors.New("embedding provider returned no data")

// Client produces a fixed-size vector for a piece of text.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Driver() string
}
