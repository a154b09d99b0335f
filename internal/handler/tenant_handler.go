package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/entitlement"
	"github.com/alintentu/farmer-app/internal/model"
	"github.com/alintentu/farmer-app/pkg/database"
	"github.com/alintentu/farmer-app/pkg/logger"
	"github.com/alintentu/farmer-app/prometheus"
)

// CreateTenant handles tenant creation and attaches the catalog of
// active modules to the new tenant.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
		Plan   string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" || req.Domain == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and domain are required"})
	}
	if req.Plan == "" {
		req.Plan = "starter"
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	tenant := model.Tenant{
		Name:             req.Name,
		Domain:           req.Domain,
		Plan:             req.Plan,
		IsActive:         true,
		FeatureOverrides: model.JSONB{},
		Settings:         model.JSONB{},
	}
	if result := tx.Create(&tenant); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create tenant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant creation failed"})
	}

	// New tenants start with every active module attached and enabled;
	// plan and overrides decide actual access.
	var modules []model.Module
	if result := tx.Where("is_active = ?", true).Order("sort_order").Find(&modules); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to load module catalog", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "module catalog unavailable"})
	}
	for _, m := range modules {
		pivot := model.TenantModule{
			TenantID: tenant.ID,
			ModuleID: m.ID,
			Enabled:  true,
			Limits:   m.DefaultLimits(),
			Settings: model.JSONB(m.DefaultSettings()),
		}
		if result := tx.Create(&pivot); result.Error != nil {
			tx.Rollback()
			log.Error("Failed to attach module",
				zap.String("module", m.Key),
				zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "module attachment failed"})
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction commit failed"})
	}

	log.Info("Tenant created",
		zap.String("id", tenant.ID.String()),
		zap.String("name", tenant.Name),
		zap.String("plan", tenant.Plan))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant created successfully",
		"tenant":  tenant,
	})
}

// GetTenant retrieves tenant details with attached modules
func GetTenant(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	defer prometheus.TrackDBOperation("select")(time.Now())

	var tenant model.Tenant
	if result := database.GetDB().Preload("Modules.Module").First(&tenant, "id = ?", id); result.Error != nil {
		log.Warn("Tenant not found", zap.String("id", id.String()))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tenant": tenant})
}

// UpdateTenant changes plan, overrides, settings, or active state
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	var req struct {
		Plan             *string      `json:"plan"`
		IsActive         *bool        `json:"is_active"`
		FeatureOverrides *model.JSONB `json:"feature_overrides"`
		Settings         *model.JSONB `json:"settings"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Plan != nil {
		updates["plan"] = *req.Plan
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.FeatureOverrides != nil {
		updates["feature_overrides"] = *req.FeatureOverrides
	}
	if req.Settings != nil {
		updates["settings"] = *req.Settings
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	result := database.GetDB().Model(&model.Tenant{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Error("Failed to update tenant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant update failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant reload failed"})
	}

	log.Info("Tenant updated", zap.String("id", id.String()))
	return c.JSON(http.StatusOK, echo.Map{"tenant": tenant})
}

// AttachModule creates or updates the tenant's module pivot
func AttachModule(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	var req struct {
		ModuleKey string         `json:"module_key"`
		Enabled   *bool          `json:"enabled"`
		Limits    model.LimitMap `json:"limits"`
		Settings  model.JSONB    `json:"settings"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ModuleKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "module_key is required"})
	}

	db := database.GetDB()

	var module model.Module
	if result := db.Where("key = ?", req.ModuleKey).First(&module); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	var pivot model.TenantModule
	result := db.Where("tenant_id = ? AND module_id = ?", id, module.ID).First(&pivot)
	if result.Error != nil {
		pivot = model.TenantModule{
			TenantID: id,
			ModuleID: module.ID,
			Enabled:  enabled,
			Limits:   attachmentLimits(req.Limits, &module),
			Settings: req.Settings,
		}
		if err := db.Create(&pivot).Error; err != nil {
			log.Error("Failed to attach module", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "module attachment failed"})
		}
	} else {
		updates := map[string]interface{}{"enabled": enabled}
		if req.Limits != nil {
			updates["limits"] = req.Limits
		}
		if req.Settings != nil {
			updates["settings"] = req.Settings
		}
		if err := db.Model(&pivot).Updates(updates).Error; err != nil {
			log.Error("Failed to update module pivot", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "module update failed"})
		}
	}

	log.Info("Module attached",
		zap.String("tenant_id", id.String()),
		zap.String("module", module.Key),
		zap.Bool("enabled", enabled))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Module attached",
		"module":  module.Key,
		"enabled": enabled,
	})
}

// attachmentLimits picks the pivot limits for a new attachment:
// explicit limits win, otherwise the module defaults are copied so the
// pivot does not track later changes to the catalog.
func attachmentLimits(requested model.LimitMap, m *model.Module) model.LimitMap {
	if requested != nil {
		return requested
	}
	return m.DefaultLimits()
}

// ListModules returns the module catalog
func ListModules(c echo.Context) error {
	defer prometheus.TrackDBOperation("select")(time.Now())

	var modules []model.Module
	if err := database.GetDB().Where("is_active = ?", true).Order("sort_order").Find(&modules).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "module catalog unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"modules": modules})
}

// ListPlans returns the plan catalog
func ListPlans(c echo.Context) error {
	defer prometheus.TrackDBOperation("select")(time.Now())

	var plans []model.Plan
	if err := database.GetDB().Where("is_active = ?", true).Order("sort_order").Find(&plans).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "plan catalog unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"plans": plans})
}

// GetEntitlements reports the authenticated tenant's resolved feature
// map together with trial and subscription state.
func GetEntitlements(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	db := database.GetDB()
	var tenant model.Tenant
	if err := db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	resolver := entitlement.NewResolver(entitlement.NewGormModuleSource(db), nil)
	features, err := resolver.PlanFeatures(c.Request().Context(), &tenant)
	if err != nil {
		log.Error("Failed to resolve plan features", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "entitlement resolution failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"plan":                tenant.Plan,
		"features":            features,
		"on_trial":            resolver.IsOnTrial(&tenant),
		"active_subscription": resolver.HasActiveSubscription(&tenant),
	})
}

// CheckFeature answers whether a single feature is accessible, and its
// limit when a resource is named.
func CheckFeature(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	feature := c.Param("feature")

	db := database.GetDB()
	var tenant model.Tenant
	if err := db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	resolver := entitlement.NewResolver(entitlement.NewGormModuleSource(db), nil)
	allowed, err := resolver.CanAccessFeature(c.Request().Context(), &tenant, feature)
	if err != nil {
		log.Error("Feature resolution failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "entitlement resolution failed"})
	}

	resp := echo.Map{
		"feature": feature,
		"allowed": allowed,
	}
	if resource := c.QueryParam("resource"); resource != "" {
		limit, declared, err := resolver.FeatureLimit(c.Request().Context(), &tenant, feature, resource)
		if err != nil {
			log.Error("Limit resolution failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "entitlement resolution failed"})
		}
		if declared {
			resp["resource"] = resource
			resp["limit"] = limit
		}
	}
	return c.JSON(http.StatusOK, resp)
}
