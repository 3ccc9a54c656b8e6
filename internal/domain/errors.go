package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                = errors.New("recurso no encontrado")
	ErrInvalidInput            = errors.New("entrada inválida")
	ErrUnauthorized            = errors.New("no autorizado")
	ErrForbidden               = errors.New("acceso denegado")
	ErrConflict                = errors.New("conflicto con el estado actual")
	ErrUnknownItem             = errors.New("artículo desconocido o inactivo")
	ErrInsufficientStock       = errors.New("stock insuficiente")
	ErrConcurrentAppend        = errors.New("reintentos agotados por escrituras concurrentes")
	ErrDuplicateIdempotencyKey = errors.New("clave de idempotencia ya registrada")
	ErrAlertNotOpen            = errors.New("la alerta no está abierta")
	ErrInsufficientHistory     = errors.New("historial de consumo insuficiente")
	ErrTransportRetryable      = errors.New("fallo transitorio del transporte")
	ErrTransportTerminal       = errors.New("fallo definitivo del transporte")
	ErrLockNotObtained         = errors.New("lock ocupado")
)

// Code devuelve el código estable del error para los adaptadores externos.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrUnknownItem):
		return "UNKNOWN_ITEM"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrConcurrentAppend):
		return "CONCURRENT_APPEND"
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		return "DUPLICATE_IDEMPOTENCY_KEY"
	case errors.Is(err, ErrAlertNotOpen):
		return "ALERT_NOT_OPEN"
	case errors.Is(err, ErrInsufficientHistory):
		return "INSUFFICIENT_HISTORY"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrTransportRetryable):
		return "TRANSPORT_RETRYABLE"
	case errors.Is(err, ErrTransportTerminal):
		return "TRANSPORT_TERMINAL"
	default:
		return "INTERNAL"
	}
}
