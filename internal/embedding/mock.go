package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
)

const mockDimensions = 16

// MockClient produces a small deterministic vector derived from the
// text's md5 digest. Useful for development and tests where no
// embedding provider is configured.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	sum := md5.Sum([]byte(text))
	digest := hex.EncodeToString(sum[:])

	vector := make([]float32, mockDimensions)
	for i := 0; i < mockDimensions; i++ {
		pair := digest[(i*2)%32 : (i*2)%32+2]
		b, _ := hex.DecodeString(pair)
		vector[i] = float32(int(b[0])%100) / 100.0
	}
	return vector, nil
}

func (m *MockClient) Dimensions() int {
	return mockDimensions
}

func (m *MockClient) Driver() string {
	return "mock"
}
