package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/internal/registry"
	"github.com/alintentu/farmer-app/pkg/logger"
)

// ServiceHandler exposes the downstream service registry: status
// summaries and authenticated proxying.
type ServiceHandler struct {
	registry *registry.Registry
}

func NewServiceHandler(reg *registry.Registry) *ServiceHandler {
	return &ServiceHandler{registry: reg}
}

// Status reports health and dependency state for every registered
// service.
func (h *ServiceHandler) Status(c echo.Context) error {
	summary := h.registry.StatusSummary(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"services": summary})
}

// Proxy forwards the request body and selected headers to the named
// downstream service. The service gate has already authorized the
// tenant by the time this runs.
func (h *ServiceHandler) Proxy(service string) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		path := c.Param("*")

		var body interface{}
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&body); err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
			}
		}

		headers := map[string]string{}
		if auth := c.Request().Header.Get("Authorization"); auth != "" {
			headers["Authorization"] = auth
		}
		if requestID := c.Request().Header.Get(logger.RequestIDKey); requestID != "" {
			headers[logger.RequestIDKey] = requestID
		}

		result, err := h.registry.Request(c.Request().Context(), service,
			c.Request().Method, "/"+strings.TrimPrefix(path, "/"), body, headers)
		if err != nil {
			log.Warn("service proxy rejected",
				zap.String("service", service),
				zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"error":   "service unavailable",
				"service": service,
			})
		}

		return c.JSON(result.Status, result)
	}
}
