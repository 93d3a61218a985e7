package stock

// StockStatus etiqueta de salud derivada de current_stock.
type StockStatus string

const (
	StatusOutOfStock    StockStatus = "out of stock"
	StatusNegativeStock StockStatus = "negative stock"
	StatusLowStock      StockStatus = "low stock"
	StatusInStock       StockStatus = "in stock"
)

// DefaultLowStockThreshold umbral por defecto para "low stock" (inclusive).
const DefaultLowStockThreshold int64 = 10

// Statuses lista las etiquetas en orden de evaluación.
var Statuses = []StockStatus{StatusOutOfStock, StatusNegativeStock, StatusLowStock, StatusInStock}

// ParseStatus valida una etiqueta recibida (p.ej. filtro de listado).
func ParseStatus(s string) (StockStatus, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Classifier mapea una cantidad a su StockStatus.
// Orden (gana el primero): == 0, < 0, <= umbral, resto. Un negativo nunca es "out of stock".
type Classifier struct {
	LowThreshold int64
}

// NewClassifier construye el clasificador; un umbral <= 0 usa DefaultLowStockThreshold.
func NewClassifier(lowThreshold int64) Classifier {
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowStockThreshold
	}
	return Classifier{LowThreshold: lowThreshold}
}

// Classify devuelve la etiqueta para current_stock.
func (c Classifier) Classify(current int64) StockStatus {
	switch {
	case current == 0:
		return StatusOutOfStock
	case current < 0:
		return StatusNegativeStock
	case current <= c.LowThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Rank orden de severidad usado para ordenar por estado (más grave primero).
func (s StockStatus) Rank() int {
	switch s {
	case StatusNegativeStock:
		return 0
	case StatusOutOfStock:
		return 1
	case StatusLowStock:
		return 2
	case StatusInStock:
		return 3
	}
	return 4
}
