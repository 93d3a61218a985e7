package stock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger/internal/domain/stock"
)

func TestClassify_Limites(t *testing.T) {
	c := stock.NewClassifier(stock.DefaultLowStockThreshold)

	cases := []struct {
		qty  int64
		want stock.StockStatus
	}{
		{0, stock.StatusOutOfStock},
		{-1, stock.StatusNegativeStock},
		{-500, stock.StatusNegativeStock},
		{1, stock.StatusLowStock},
		{10, stock.StatusLowStock},
		{11, stock.StatusInStock},
		{1_000_000, stock.StatusInStock},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.qty), "qty=%d", tc.qty)
	}
}

// Un negativo nunca debe reportarse como "out of stock": son alertas distintas.
func TestClassify_NegativoNoEsSinStock(t *testing.T) {
	c := stock.NewClassifier(10)
	assert.NotEqual(t, stock.StatusOutOfStock, c.Classify(-1))
	assert.NotEqual(t, stock.StatusLowStock, c.Classify(-1))
}

func TestClassify_UmbralConfigurable(t *testing.T) {
	c := stock.NewClassifier(3)
	assert.Equal(t, stock.StatusLowStock, c.Classify(3))
	assert.Equal(t, stock.StatusInStock, c.Classify(4))

	// umbral inválido → default
	assert.Equal(t, stock.DefaultLowStockThreshold, stock.NewClassifier(0).LowThreshold)
}

func TestParseStatus(t *testing.T) {
	st, ok := stock.ParseStatus("low stock")
	assert.True(t, ok)
	assert.Equal(t, stock.StatusLowStock, st)

	_, ok = stock.ParseStatus("Мало")
	assert.False(t, ok)
}
