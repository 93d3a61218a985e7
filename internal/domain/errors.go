package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrSnapshotUnavailable = errors.New("snapshot de stock no disponible")
	ErrStockOverflow       = errors.New("desbordamiento en la suma de stock")
)

// ValidationError describe una operación mal formada rechazada en la ingesta.
// errors.Is(err, ErrInvalidInput) es verdadero para cualquier ValidationError.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validación: " + e.Reason
	}
	return fmt.Sprintf("validación: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError construye un ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError envuelve un fallo de infraestructura del almacén (I/O, conexión, constraint).
// Permanent=true para violaciones de constraint; el resto es reintentable.
type StoreError struct {
	Op        string
	Err       error
	Permanent bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable indica si el llamador puede reintentar con backoff.
func (e *StoreError) Retryable() bool { return !e.Permanent }

// ConsistencyViolation se produce cuando current_stock != Σ stock por ubicación.
// Siempre es un defecto: se registra y se reporta, nunca se corrige.
type ConsistencyViolation struct {
	OrganizationID string
	ProductID      string
	Expected       int64 // suma por ubicaciones
	Actual         int64 // current_stock publicado
	Delta          int64 // Actual - Expected
}

func (v *ConsistencyViolation) Error() string {
	return fmt.Sprintf("inconsistencia de stock org=%s product=%s: expected=%d actual=%d delta=%d",
		v.OrganizationID, v.ProductID, v.Expected, v.Actual, v.Delta)
}

// OverflowError indica que la acumulación excedió el rango int64.
type OverflowError struct {
	ProductID  string
	LocationID string
}

func (e *OverflowError) Error() string {
	if e.LocationID == "" {
		return fmt.Sprintf("desbordamiento de stock en producto %s", e.ProductID)
	}
	return fmt.Sprintf("desbordamiento de stock en producto %s ubicación %s", e.ProductID, e.LocationID)
}

func (e *OverflowError) Is(target error) bool { return target == ErrStockOverflow }

// IsRetryable devuelve true si err contiene un StoreError reintentable.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
