package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/pkg/config"
)

func TestMockClientDeterministic(t *testing.T) {
	client := NewMockClient()

	first, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	second, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, client.Dimensions())
}

func TestMockClientDistinctInputs(t *testing.T) {
	client := NewMockClient()

	a, err := client.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := client.Embed(context.Background(), "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestMockClientValueRange(t *testing.T) {
	client := NewMockClient()

	vector, err := client.Embed(context.Background(), "range check")
	require.NoError(t, err)

	for _, v := range vector {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestOpenAIClientEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"model": "text-embedding-3-small",
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(&config.EmbeddingsConfig{
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		BaseURL:    srv.URL,
		Dimensions: 3,
		Timeout:    5 * time.Second,
	})

	vector, err := client.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestOpenAIClientEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   []map[string]interface{}{},
			"model":  "text-embedding-3-small",
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient(&config.EmbeddingsConfig{
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		BaseURL:    srv.URL,
		Dimensions: 3,
		Timeout:    5 * time.Second,
	})

	_, err := client.Embed(context.Background(), "some text")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestNewClientFallsBackToMock(t *testing.T) {
	client := NewClient(&config.EmbeddingsConfig{Driver: "bogus"}, zap.NewNop())
	assert.Equal(t, "mock", client.Driver())
}
