package entity

import "time"

// Location representa un punto de venta o bodega donde se registra inventario (multi-ubicación).
type Location struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
}

// Supplier proveedor de la organización; el ledger solo lo usa como FK en supply.
type Supplier struct {
	ID             string
	OrganizationID string
	Name           string
}
