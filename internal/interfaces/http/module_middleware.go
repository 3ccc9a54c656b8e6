package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
)

// tenantChecker lo implementa *engine.Engine.
type tenantChecker interface {
	HasTenant(tenantID string) bool
}

// RequireTenant rechaza tokens de hoteles que esta instancia no atiende.
// Debe usarse DESPUÉS de AuthMiddleware (necesita LocalTenantID).
func RequireTenant(checker tenantChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "tenant_id no encontrado en el token",
			})
		}
		if !checker.HasTenant(tenantID) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "TENANT_DISABLED",
				Message: "el hotel '" + tenantID + "' no está habilitado en este motor",
			})
		}
		return c.Next()
	}
}
