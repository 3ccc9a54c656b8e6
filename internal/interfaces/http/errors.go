package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/dto"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain"
)

var statusByCode = map[string]int{
	"INVALID_INPUT":        fiber.StatusBadRequest,
	"UNKNOWN_ITEM":         fiber.StatusNotFound,
	"NOT_FOUND":            fiber.StatusNotFound,
	"INSUFFICIENT_STOCK":   fiber.StatusConflict,
	"CONCURRENT_APPEND":    fiber.StatusConflict,
	"ALERT_NOT_OPEN":       fiber.StatusConflict,
	"CONFLICT":             fiber.StatusConflict,
	"INSUFFICIENT_HISTORY": fiber.StatusUnprocessableEntity,
	"UNAUTHORIZED":         fiber.StatusUnauthorized,
	"FORBIDDEN":            fiber.StatusForbidden,
}

// writeError responde con el código estable del error de dominio.
func writeError(c *fiber.Ctx, err error) error {
	code := domain.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
