package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alintentu/farmer-app/internal/model"
)

// Unlimited is the sentinel limit meaning "no ceiling".
const Unlimited int64 = -1

// ModuleSource loads the data the resolver needs. The gorm-backed
// implementation lives in store.go; tests supply an in-memory fake.
type ModuleSource interface {
	// TenantModule returns the module with the given key together with
	// the tenant's pivot row, or (nil, nil, nil) when the module is not
	// attached to the tenant.
	TenantModule(ctx context.Context, tenantID uuid.UUID, featureKey string) (*model.Module, *model.TenantModule, error)

	// PlanByKey returns the plan reference row, or nil when unknown.
	PlanByKey(ctx context.Context, key string) (*model.Plan, error)
}

// Resolver answers feature access and limit queries for a tenant by
// merging plan defaults, module pivots and tenant-level overrides.
// It holds no per-tenant state and never caches access decisions; every
// call re-evaluates trial and subscription windows against the clock.
type Resolver struct {
	source ModuleSource
	now    func() time.Time
}

// NewResolver creates a Resolver. A nil clock defaults to time.Now.
func NewResolver(source ModuleSource, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{source: source, now: now}
}

// IsOnTrial reports whether the tenant's trial window is still open.
func (r *Resolver) IsOnTrial(tenant *model.Tenant) bool {
	return tenant.TrialEndsAt != nil && tenant.TrialEndsAt.After(r.now().UTC())
}

// HasActiveSubscription reports whether the tenant's subscription is
// active. A missing end date means perpetually active.
func (r *Resolver) HasActiveSubscription(tenant *model.Tenant) bool {
	return tenant.SubscriptionEndsAt == nil || tenant.SubscriptionEndsAt.After(r.now().UTC())
}

// HasFeature resolves whether a feature is enabled for the tenant,
// ignoring account state. Overrides short-circuit; otherwise the module
// pivot's enabled flag decides, and an unattached module denies.
func (r *Resolver) HasFeature(ctx context.Context, tenant *model.Tenant, feature string) (bool, error) {
	if v, ok := tenant.FeatureOverrides[feature]; ok {
		return overrideEnabled(v), nil
	}

	_, pivot, err := r.source.TenantModule(ctx, tenant.ID, feature)
	if err != nil {
		return false, err
	}
	if pivot == nil {
		return false, nil
	}
	return pivot.Enabled, nil
}

// CanAccessFeature is the full gate: the tenant must be active, inside
// a trial or subscription window, and have the feature enabled.
func (r *Resolver) CanAccessFeature(ctx context.Context, tenant *model.Tenant, feature string) (bool, error) {
	if !tenant.IsActive {
		return false, nil
	}
	if !r.IsOnTrial(tenant) && !r.HasActiveSubscription(tenant) {
		return false, nil
	}
	return r.HasFeature(ctx, tenant, feature)
}

// FeatureLimit resolves the limit for a resource under a feature.
// A numeric override wins; otherwise the pivot's limits apply, falling
// back to the module's default limits. The second return value is false
// when no limit is declared anywhere.
func (r *Resolver) FeatureLimit(ctx context.Context, tenant *model.Tenant, feature, resource string) (int64, bool, error) {
	if v, ok := tenant.FeatureOverrides[feature]; ok {
		if limit, ok := overrideLimit(v); ok {
			return limit, true, nil
		}
	}

	module, pivot, err := r.source.TenantModule(ctx, tenant.ID, feature)
	if err != nil {
		return 0, false, err
	}
	if module == nil {
		return 0, false, nil
	}

	if pivot != nil && pivot.Limits != nil {
		if limit, ok := pivot.Limits[resource]; ok {
			return limit, true, nil
		}
	}
	if limit, ok := module.DefaultLimit(resource); ok {
		return limit, true, nil
	}
	return 0, false, nil
}

// PlanFeatures merges the plan's feature map with the tenant's
// overrides. Overrides win on conflict.
func (r *Resolver) PlanFeatures(ctx context.Context, tenant *model.Tenant) (map[string]interface{}, error) {
	features := map[string]interface{}{}

	plan, err := r.source.PlanByKey(ctx, tenant.Plan)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		for k, v := range plan.Features {
			features[k] = v
		}
	}
	for k, v := range tenant.FeatureOverrides {
		features[k] = v
	}
	return features, nil
}

// overrideEnabled interprets an override value as an access decision.
// Booleans are taken verbatim; a numeric override (a limit) implies the
// feature is enabled.
func overrideEnabled(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64, int, int64:
		return true
	default:
		return false
	}
}

// overrideLimit interprets an override value as a limit if numeric.
func overrideLimit(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case int:
		return int64(val), true
	case int64:
		return val, true
	default:
		return 0, false
	}
}
