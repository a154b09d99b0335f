package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/entitlement"
	"github.com/alintentu/farmer-app/internal/model"
	"github.com/alintentu/farmer-app/pkg/logger"
	"github.com/alintentu/farmer-app/prometheus"
)

// TenantLoader fetches the tenant for gate decisions. The gorm-backed
// implementation lives in the handler package; tests use a fake.
type TenantLoader interface {
	TenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
}

// FeatureGate denies the request unless the tenant can access the
// named feature. AuthMiddleware must run first.
func FeatureGate(resolver *entitlement.Resolver, tenants TenantLoader, feature string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			tenantID, ok := GetTenantIDFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}

			tenant, err := tenants.TenantByID(c.Request().Context(), tenantID)
			if err != nil {
				log.Error("failed to load tenant", zap.Error(err))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no tenant associated"})
			}

			allowed, err := resolver.CanAccessFeature(c.Request().Context(), tenant, feature)
			if err != nil {
				log.Error("feature resolution failed",
					zap.String("feature", feature),
					zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve feature access"})
			}
			if !allowed {
				prometheus.RecordFeatureDenied(feature)
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":   "feature '" + feature + "' not available on your plan",
					"feature": feature,
					"plan":    tenant.Plan,
				})
			}

			c.Set("tenant", tenant)
			return next(c)
		}
	}
}
