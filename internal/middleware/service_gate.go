package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/entitlement"
	"github.com/alintentu/farmer-app/pkg/logger"
	"github.com/alintentu/farmer-app/prometheus"
)

// ServiceGate denies the request unless the tenant's plan includes the
// named downstream service and the subscription is alive. Resolved
// limits and current usage are stashed in the context for handlers.
func ServiceGate(resolver *entitlement.Resolver, tenants TenantLoader, usage entitlement.UsageStore, service string) echo.MiddlewareFunc {
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

			if !entitlement.CanAccessService(service, tenant.Plan) {
				prometheus.RecordServiceDenied(service, "plan")
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":            "service '" + service + "' not available on your plan",
					"service":          service,
					"plan":             tenant.Plan,
					"upgrade_required": true,
					"available_plans":  entitlement.AllowedPlans(service),
				})
			}

			if !resolver.HasActiveSubscription(tenant) && !resolver.IsOnTrial(tenant) {
				prometheus.RecordServiceDenied(service, "subscription")
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":                 "subscription expired or inactive",
					"service":               service,
					"plan":                  tenant.Plan,
					"subscription_required": true,
				})
			}

			c.Set("tenant", tenant)
			c.Set("service_limits", entitlement.ServiceLimitsFor(service, tenant.Plan))

			if usage != nil {
				current, err := usage.Usage(c.Request().Context(), tenant.ID, service)
				if err != nil {
					log.Warn("failed to load usage counters",
						zap.String("service", service),
						zap.Error(err))
				} else {
					c.Set("current_usage", current)
				}
			}

			return next(c)
		}
	}
}
