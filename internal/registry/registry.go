package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/pkg/config"
	"github.com/alintentu/farmer-app/prometheus"
)

var (
	ErrUnknownService   = errors.New("unknown service")
	ErrServiceUnhealthy = errors.New("service is not healthy")
)

var defaultEndpoints = map[string]string{
	"core":          "http://atlas-core.atlas.svc.cluster.local:8000",
	"tasks":         "http://atlas-tasks.atlas.svc.cluster.local:8000",
	"crm":           "http://atlas-crm.atlas.svc.cluster.local:8000",
	"invoicing":     "http://atlas-invoicing.atlas.svc.cluster.local:8000",
	"marketing":     "http://atlas-marketing.atlas.svc.cluster.local:8000",
	"analytics":     "http://atlas-analytics.atlas.svc.cluster.local:8000",
	"communication": "http://atlas-communication.atlas.svc.cluster.local:8000",
	"files":         "http://atlas-files.atlas.svc.cluster.local:8000",
	"search":        "http://atlas-search.atlas.svc.cluster.local:8000",
}

// Every service depends on core being up. Analytics and search fan out
// across the business services they aggregate.
var serviceDependencies = map[string][]string{
	"core":          {},
	"tasks":         {"core"},
	"crm":           {"core"},
	"invoicing":     {"core"},
	"marketing":     {"core", "crm"},
	"analytics":     {"core", "tasks", "crm", "invoicing", "marketing"},
	"communication": {"core"},
	"files":         {"core"},
	"search":        {"core", "tasks", "crm", "invoicing", "marketing"},
}

// Result is the normalized outcome of a proxied service request.
type Result struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServiceStatus describes one downstream service in the status summary.
type ServiceStatus struct {
	Healthy             bool     `json:"healthy"`
	Endpoint            string   `json:"endpoint"`
	Dependencies        []string `json:"dependencies"`
	DependenciesHealthy bool     `json:"dependencies_healthy"`
}

// Registry tracks downstream service endpoints, their health, and the
// dependency graph between them.
type Registry struct {
	endpoints      map[string]string
	cache          HealthCache
	probeClient    *http.Client
	requestClient  *http.Client
	healthTTL      time.Duration
	requestTimeout time.Duration
	log            *zap.Logger
}

// Option tweaks a Registry, mostly for tests.
type Option func(*Registry)

// WithEndpoints replaces the built-in endpoint table.
func WithEndpoints(endpoints map[string]string) Option {
	return func(r *Registry) {
		r.endpoints = endpoints
	}
}

func NewRegistry(cfg *config.RegistryConfig, cache HealthCache, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		endpoints:      defaultEndpoints,
		cache:          cache,
		probeClient:    &http.Client{Timeout: cfg.ProbeTimeout},
		requestClient:  &http.Client{Timeout: cfg.RequestTimeout},
		healthTTL:      cfg.HealthTTL,
		requestTimeout: cfg.RequestTimeout,
		log:            log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Endpoint returns the base URL for a service, or "" when unknown.
func (r *Registry) Endpoint(service string) string {
	return r.endpoints[service]
}

// Services returns the names of all registered services.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}

// Dependencies returns the services that must be healthy before the
// given service can be considered operational.
func (r *Registry) Dependencies(service string) []string {
	return serviceDependencies[service]
}

// IsHealthy probes the service's /health endpoint, caching the verdict.
func (r *Registry) IsHealthy(ctx context.Context, service string) bool {
	if healthy, ok := r.cache.Get(ctx, service); ok {
		return healthy
	}

	healthy := r.probe(ctx, service)
	r.cache.Set(ctx, service, healthy, r.healthTTL)
	return healthy
}

func (r *Registry) probe(ctx context.Context, service string) bool {
	endpoint := r.Endpoint(service)
	if endpoint == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := r.probeClient.Do(req)
	if err != nil {
		r.log.Warn("service health check failed",
			zap.String("service", service),
			zap.Error(err))
		prometheus.RecordHealthProbe(service, "error")
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	if healthy {
		prometheus.RecordHealthProbe(service, "healthy")
	} else {
		prometheus.RecordHealthProbe(service, "unhealthy")
	}
	return healthy
}

// HealthyServices returns the registered services that currently pass
// their health checks.
func (r *Registry) HealthyServices(ctx context.Context) []string {
	var healthy []string
	for name := range r.endpoints {
		if r.IsHealthy(ctx, name) {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// DependenciesHealthy reports whether every dependency of the service
// passes its health check.
func (r *Registry) DependenciesHealthy(ctx context.Context, service string) bool {
	for _, dep := range r.Dependencies(service) {
		if !r.IsHealthy(ctx, dep) {
			return false
		}
	}
	return true
}

// Request forwards a request to a downstream service and normalizes
// the response. Transport failures come back as a failed Result, not
// an error; only unknown or unhealthy services error out.
func (r *Registry) Request(ctx context.Context, service, method, path string, body interface{}, headers map[string]string) (*Result, error) {
	baseURL := r.Endpoint(service)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	if !r.IsHealthy(ctx, service) {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnhealthy, service)
	}

	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := r.requestClient.Do(req)
	if err != nil {
		r.log.Error("service request failed",
			zap.String("service", service),
			zap.String("url", url),
			zap.Error(err))
		prometheus.RecordProxyRequest(service, "error")
		return &Result{Success: false, Status: http.StatusInternalServerError, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		prometheus.RecordProxyRequest(service, "error")
		return &Result{Success: false, Status: http.StatusInternalServerError, Error: err.Error()}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var data interface{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				data = string(raw)
			}
		}
		prometheus.RecordProxyRequest(service, "success")
		return &Result{Success: true, Status: resp.StatusCode, Data: data}, nil
	}

	prometheus.RecordProxyRequest(service, "failure")
	return &Result{Success: false, Status: resp.StatusCode, Error: string(raw)}, nil
}

// Broadcast posts an event to every healthy service.
func (r *Registry) Broadcast(ctx context.Context, event string, payload map[string]interface{}) map[string]*Result {
	results := make(map[string]*Result)
	for name := range r.endpoints {
		if !r.IsHealthy(ctx, name) {
			continue
		}
		result, err := r.Request(ctx, name, http.MethodPost, "/events", map[string]interface{}{
			"event":     event,
			"payload":   payload,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, nil)
		if err != nil {
			result = &Result{Success: false, Status: http.StatusInternalServerError, Error: err.Error()}
		}
		results[name] = result
	}
	return results
}

// StatusSummary reports health and dependency state for every service.
func (r *Registry) StatusSummary(ctx context.Context) map[string]ServiceStatus {
	summary := make(map[string]ServiceStatus, len(r.endpoints))
	for name, endpoint := range r.endpoints {
		deps := r.Dependencies(name)
		if deps == nil {
			deps = []string{}
		}
		summary[name] = ServiceStatus{
			Healthy:             r.IsHealthy(ctx, name),
			Endpoint:            endpoint,
			Dependencies:        deps,
			DependenciesHealthy: r.DependenciesHealthy(ctx, name),
		}
	}
	return summary
}
