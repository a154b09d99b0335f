package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/pkg/config"
	"github.com/alintentu/farmer-app/prometheus"
)

func TestMain(m *testing.M) {
	prometheus.InitMetrics(&config.Config{
		Metrics: config.MetricsConfig{Prefix: "registry_test"},
	})
	os.Exit(m.Run())
}

func testConfig() *config.RegistryConfig {
	return &config.RegistryConfig{
		HealthTTL:      5 * time.Minute,
		ProbeTimeout:   2 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

func TestIsHealthyCachesVerdict(t *testing.T) {
	var probes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			atomic.AddInt32(&probes, 1)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop(),
		WithEndpoints(map[string]string{"core": srv.URL}))

	ctx := context.Background()
	assert.True(t, reg.IsHealthy(ctx, "core"))
	assert.True(t, reg.IsHealthy(ctx, "core"))
	assert.True(t, reg.IsHealthy(ctx, "core"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes))
}

func TestIsHealthyUnknownService(t *testing.T) {
	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop(),
		WithEndpoints(map[string]string{}))

	assert.False(t, reg.IsHealthy(context.Background(), "missing"))
}

func TestMemoryHealthCacheExpiry(t *testing.T) {
	cache := NewMemoryHealthCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set(context.Background(), "core", true, time.Minute)

	healthy, ok := cache.Get(context.Background(), "core")
	require.True(t, ok)
	assert.True(t, healthy)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(context.Background(), "core")
	assert.False(t, ok)
}

func TestRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/widgets":
			assert.Equal(t, "value", r.Header.Get("X-Custom"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"widgets": 3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop(),
		WithEndpoints(map[string]string{"core": srv.URL}))

	result, err := reg.Request(context.Background(), "core", "GET", "/widgets", nil,
		map[string]string{"X-Custom": "value"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, map[string]interface{}{"widgets": float64(3)}, result.Data)
}

func TestRequestDownstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop(),
		WithEndpoints(map[string]string{"core": srv.URL}))

	result, err := reg.Request(context.Background(), "core", "GET", "/widgets", nil, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadGateway, result.Status)
	assert.Contains(t, result.Error, "boom")
}

func TestRequestUnknownService(t *testing.T) {
	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop(),
		WithEndpoints(map[string]string{}))

	_, err := reg.Request(context.Background(), "nope", "GET", "/", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestRequestUnhealthyService(t *testing.T) {
	cache := NewMemoryHealthCache()
	cache.Set(context.Background(), "core", false, time.Minute)

	reg := NewRegistry(testConfig(), cache, zap.NewNop(),
		WithEndpoints(map[string]string{"core": "http://127.0.0.1:1"}))

	_, err := reg.Request(context.Background(), "core", "GET", "/", nil, nil)
	assert.ErrorIs(t, err, ErrServiceUnhealthy)
}

func TestDependenciesHealthy(t *testing.T) {
	cache := NewMemoryHealthCache()
	ctx := context.Background()
	cache.Set(ctx, "core", true, time.Minute)
	cache.Set(ctx, "crm", false, time.Minute)

	reg := NewRegistry(testConfig(), cache, zap.NewNop())

	assert.True(t, reg.DependenciesHealthy(ctx, "tasks"))
	assert.False(t, reg.DependenciesHealthy(ctx, "marketing"))
}

func TestDependencyGraph(t *testing.T) {
	reg := NewRegistry(testConfig(), NewMemoryHealthCache(), zap.NewNop())

	assert.Empty(t, reg.Dependencies("core"))
	assert.Equal(t, []string{"core"}, reg.Dependencies("tasks"))
	assert.Equal(t, []string{"core", "crm"}, reg.Dependencies("marketing"))
	assert.Equal(t, []string{"core", "tasks", "crm", "invoicing", "marketing"}, reg.Dependencies("analytics"))
}
