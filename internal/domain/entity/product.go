package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto de la organización. El ledger lo referencia pero no lo modifica;
// el stock se deriva de las operaciones, nunca se guarda en el producto.
type Product struct {
	ID             string
	OrganizationID string
	Name           string
	SKU            string // código único por organización
	Code           string // código interno / de barras
	Price          decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
