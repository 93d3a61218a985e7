package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// OperationType es el tipo cerrado de movimiento del ledger: supply, sale o write_off.
// El cero no es un tipo válido para que una operación sin tipo nunca sume nada en silencio.
type OperationType uint8

const (
	OperationSupply OperationType = iota + 1 // entrada de proveedor
	OperationSale                            // venta
	OperationWriteOff                        // baja / merma
)

// OperationTypes lista los tipos válidos en orden estable.
var OperationTypes = []OperationType{OperationSupply, OperationSale, OperationWriteOff}

// ParseOperationType convierte el valor persistido/recibido al tipo cerrado.
// Valores desconocidos se rechazan.
func ParseOperationType(s string) (OperationType, error) {
	switch strings.TrimSpace(s) {
	case "supply":
		return OperationSupply, nil
	case "sale":
		return OperationSale, nil
	case "write_off":
		return OperationWriteOff, nil
	}
	return 0, domain.NewValidationError("operation_type", fmt.Sprintf("tipo desconocido %q", s))
}

func (t OperationType) String() string {
	switch t {
	case OperationSupply:
		return "supply"
	case OperationSale:
		return "sale"
	case OperationWriteOff:
		return "write_off"
	}
	return fmt.Sprintf("OperationType(%d)", uint8(t))
}

// Valid indica si t es uno de los tres tipos del ledger.
func (t OperationType) Valid() bool {
	switch t {
	case OperationSupply, OperationSale, OperationWriteOff:
		return true
	}
	return false
}

// Sign devuelve +1 para supply y -1 para sale/write_off. Panic ante un tipo inválido:
// Operation.Validate lo impide antes de llegar aquí.
func (t OperationType) Sign() int64 {
	switch t {
	case OperationSupply:
		return 1
	case OperationSale, OperationWriteOff:
		return -1
	}
	panic("entity: signo de tipo de operación inválido " + t.String())
}

// MarshalText serializa el tipo como su nombre en el ledger.
func (t OperationType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("operation type inválido: %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText acepta solo supply, sale o write_off.
func (t *OperationType) UnmarshalText(b []byte) error {
	parsed, err := ParseOperationType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Operation es un movimiento inmutable del ledger. Nunca se actualiza ni se borra:
// las correcciones se registran como operaciones compensatorias.
type Operation struct {
	ID             string
	OrganizationID string
	ProductID      string
	LocationID     string
	SupplierID     *string // solo en supply
	Type           OperationType
	Quantity       int64            // magnitud no negativa; el signo lo aplica el agregador
	UnitPrice      *decimal.Decimal // opcional (precio de compra/venta)
	OperationDate  time.Time
	CreatedAt      time.Time
	CreatedBy      string
}

// Validate aplica las reglas de ingesta: FKs requeridas, tipo cerrado, cantidad > 0.
func (o *Operation) Validate() error {
	switch {
	case o.OrganizationID == "":
		return domain.NewValidationError("organization_id", "requerido")
	case o.ProductID == "":
		return domain.NewValidationError("product_id", "requerido")
	case o.LocationID == "":
		return domain.NewValidationError("location_id", "requerido")
	case !o.Type.Valid():
		return domain.NewValidationError("operation_type", "tipo desconocido")
	case o.Quantity < 0:
		return domain.NewValidationError("quantity", "no puede ser negativa")
	case o.Quantity == 0:
		return domain.NewValidationError("quantity", "debe ser mayor que cero")
	case o.OperationDate.IsZero():
		return domain.NewValidationError("operation_date", "requerida")
	}
	if o.SupplierID != nil {
		if o.Type != OperationSupply {
			return domain.NewValidationError("supplier_id", "solo permitido en supply")
		}
		if *o.SupplierID == "" {
			return domain.NewValidationError("supplier_id", "vacío")
		}
	}
	if o.UnitPrice != nil && o.UnitPrice.IsNegative() {
		return domain.NewValidationError("unit_price", "no puede ser negativo")
	}
	return nil
}

// SignedQuantity devuelve la cantidad con el signo del tipo.
func (o *Operation) SignedQuantity() int64 {
	return o.Type.Sign() * o.Quantity
}
