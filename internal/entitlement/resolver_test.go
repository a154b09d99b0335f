package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alintentu/farmer-app/internal/model"
)

type fakeSource struct {
	modules map[string]*model.Module
	pivots  map[string]*model.TenantModule
	plans   map[string]*model.Plan
}

func (f *fakeSource) TenantModule(_ context.Context, _ uuid.UUID, key string) (*model.Module, *model.TenantModule, error) {
	return f.modules[key], f.pivots[key], nil
}

func (f *fakeSource) PlanByKey(_ context.Context, key string) (*model.Plan, error) {
	return f.plans[key], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func activeTenant() *model.Tenant {
	return &model.Tenant{
		ID:               uuid.New(),
		Plan:             "team",
		IsActive:         true,
		FeatureOverrides: model.JSONB{},
	}
}

func enabledPivot(moduleID uint) *model.TenantModule {
	return &model.TenantModule{ModuleID: moduleID, Enabled: true}
}

func TestIsOnTrial(t *testing.T) {
	r := NewResolver(&fakeSource{}, fixedClock(testNow))

	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-24 * time.Hour)

	tenant := activeTenant()
	assert.False(t, r.IsOnTrial(tenant))

	tenant.TrialEndsAt = &future
	assert.True(t, r.IsOnTrial(tenant))

	tenant.TrialEndsAt = &past
	assert.False(t, r.IsOnTrial(tenant))
}

func TestHasActiveSubscription(t *testing.T) {
	r := NewResolver(&fakeSource{}, fixedClock(testNow))

	tenant := activeTenant()
	assert.True(t, r.HasActiveSubscription(tenant), "missing end date means active")

	future := testNow.Add(time.Hour)
	tenant.SubscriptionEndsAt = &future
	assert.True(t, r.HasActiveSubscription(tenant))

	past := testNow.Add(-time.Hour)
	tenant.SubscriptionEndsAt = &past
	assert.False(t, r.HasActiveSubscription(tenant))
}

func TestHasFeatureOverrideShortCircuits(t *testing.T) {
	source := &fakeSource{
		modules: map[string]*model.Module{"crm": {Key: "crm"}},
		pivots:  map[string]*model.TenantModule{"crm": enabledPivot(1)},
	}
	r := NewResolver(source, fixedClock(testNow))
	ctx := context.Background()

	tenant := activeTenant()
	tenant.FeatureOverrides = model.JSONB{"crm": false}

	enabled, err := r.HasFeature(ctx, tenant, "crm")
	require.NoError(t, err)
	assert.False(t, enabled, "override denies even with an enabled pivot")

	tenant.FeatureOverrides = model.JSONB{"crm": true}
	enabled, err = r.HasFeature(ctx, tenant, "crm")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHasFeatureNumericOverrideImpliesEnabled(t *testing.T) {
	r := NewResolver(&fakeSource{}, fixedClock(testNow))

	tenant := activeTenant()
	tenant.FeatureOverrides = model.JSONB{"tasks": float64(50)}

	enabled, err := r.HasFeature(context.Background(), tenant, "tasks")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHasFeaturePivotDecides(t *testing.T) {
	source := &fakeSource{
		modules: map[string]*model.Module{"crm": {Key: "crm"}},
		pivots:  map[string]*model.TenantModule{"crm": {ModuleID: 1, Enabled: false}},
	}
	r := NewResolver(source, fixedClock(testNow))
	ctx := context.Background()
	tenant := activeTenant()

	enabled, err := r.HasFeature(ctx, tenant, "crm")
	require.NoError(t, err)
	assert.False(t, enabled)

	source.pivots["crm"].Enabled = true
	enabled, err = r.HasFeature(ctx, tenant, "crm")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestHasFeatureUnattachedModuleDenies(t *testing.T) {
	r := NewResolver(&fakeSource{}, fixedClock(testNow))

	enabled, err := r.HasFeature(context.Background(), activeTenant(), "marketing")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCanAccessFeature(t *testing.T) {
	source := &fakeSource{
		modules: map[string]*model.Module{"tasks": {Key: "tasks"}},
		pivots:  map[string]*model.TenantModule{"tasks": enabledPivot(1)},
	}
	r := NewResolver(source, fixedClock(testNow))
	ctx := context.Background()

	t.Run("active tenant with subscription", func(t *testing.T) {
		ok, err := r.CanAccessFeature(ctx, activeTenant(), "tasks")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("inactive tenant denied", func(t *testing.T) {
		tenant := activeTenant()
		tenant.IsActive = false
		ok, err := r.CanAccessFeature(ctx, tenant, "tasks")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired subscription denied", func(t *testing.T) {
		tenant := activeTenant()
		past := testNow.Add(-time.Hour)
		tenant.SubscriptionEndsAt = &past
		ok, err := r.CanAccessFeature(ctx, tenant, "tasks")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("trial keeps expired subscription alive", func(t *testing.T) {
		tenant := activeTenant()
		past := testNow.Add(-time.Hour)
		future := testNow.Add(time.Hour)
		tenant.SubscriptionEndsAt = &past
		tenant.TrialEndsAt = &future
		ok, err := r.CanAccessFeature(ctx, tenant, "tasks")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestFeatureLimitResolutionOrder(t *testing.T) {
	source := &fakeSource{
		modules: map[string]*model.Module{
			"tasks": {
				Key:      "tasks",
				Defaults: model.JSONB{"limits": map[string]interface{}{"projects": float64(5)}},
			},
		},
		pivots: map[string]*model.TenantModule{
			"tasks": {ModuleID: 1, Enabled: true, Limits: model.LimitMap{"projects": 25}},
		},
	}
	r := NewResolver(source, fixedClock(testNow))
	ctx := context.Background()

	t.Run("numeric override wins", func(t *testing.T) {
		tenant := activeTenant()
		tenant.FeatureOverrides = model.JSONB{"tasks": float64(99)}
		limit, ok, err := r.FeatureLimit(ctx, tenant, "tasks", "projects")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(99), limit)
	})

	t.Run("boolean override falls through to pivot", func(t *testing.T) {
		tenant := activeTenant()
		tenant.FeatureOverrides = model.JSONB{"tasks": true}
		limit, ok, err := r.FeatureLimit(ctx, tenant, "tasks", "projects")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(25), limit)
	})

	t.Run("pivot limit beats module default", func(t *testing.T) {
		limit, ok, err := r.FeatureLimit(ctx, activeTenant(), "tasks", "projects")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(25), limit)
	})

	t.Run("module default when pivot silent", func(t *testing.T) {
		source.pivots["tasks"].Limits = nil
		defer func() { source.pivots["tasks"].Limits = model.LimitMap{"projects": 25} }()

		limit, ok, err := r.FeatureLimit(ctx, activeTenant(), "tasks", "projects")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(5), limit)
	})

	t.Run("no limit declared anywhere", func(t *testing.T) {
		limit, ok, err := r.FeatureLimit(ctx, activeTenant(), "tasks", "unknown_resource")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(0), limit)
	})

	t.Run("unattached module has no limit", func(t *testing.T) {
		_, ok, err := r.FeatureLimit(ctx, activeTenant(), "missing", "projects")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPlanFeaturesMergesOverrides(t *testing.T) {
	source := &fakeSource{
		plans: map[string]*model.Plan{
			"team": {
				Key:      "team",
				Features: model.JSONB{"tasks": true, "crm": true, "marketing": false},
			},
		},
	}
	r := NewResolver(source, fixedClock(testNow))

	tenant := activeTenant()
	tenant.FeatureOverrides = model.JSONB{"marketing": true, "beta_reports": true}

	features, err := r.PlanFeatures(context.Background(), tenant)
	require.NoError(t, err)

	assert.Equal(t, true, features["tasks"])
	assert.Equal(t, true, features["marketing"], "override wins over plan")
	assert.Equal(t, true, features["beta_reports"], "override adds features the plan lacks")
}

func TestWithinLimit(t *testing.T) {
	assert.True(t, WithinLimit(Unlimited, 1_000_000, 1))
	assert.True(t, WithinLimit(10, 9, 1))
	assert.False(t, WithinLimit(10, 10, 1))
	assert.True(t, WithinLimit(10, 0, 10))
	assert.False(t, WithinLimit(0, 0, 1))
}

func TestCanAccessService(t *testing.T) {
	assert.True(t, CanAccessService("tasks", "starter"))
	assert.False(t, CanAccessService("crm", "starter"))
	assert.True(t, CanAccessService("crm", "team"))
	assert.False(t, CanAccessService("analytics", "growth"))
	assert.True(t, CanAccessService("analytics", "enterprise"))
	assert.False(t, CanAccessService("unknown", "enterprise"))
}

func TestServiceLimitsFor(t *testing.T) {
	limits := ServiceLimitsFor("tasks", "team")
	assert.Equal(t, int64(25), limits["projects"])
	assert.Equal(t, int64(500), limits["tasks_per_project"])

	assert.Equal(t, int64(Unlimited), ServiceLimitsFor("tasks", "enterprise")["projects"])
	assert.Empty(t, ServiceLimitsFor("tasks", "nonexistent"))
	assert.Empty(t, ServiceLimitsFor("communication", "team"), "services without declared limits")

	// Returned map is a copy.
	limits["projects"] = 1
	assert.Equal(t, int64(25), ServiceLimitsFor("tasks", "team")["projects"])
}
