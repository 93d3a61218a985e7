package stock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/stock"
)

func TestCheck_SnapshotCorrecto(t *testing.T) {
	snap, err := stock.AggregateOperations(testOrg, scenarioOps(), stock.NewClassifier(10), t0)
	require.NoError(t, err)

	assert.NoError(t, stock.Check(snap, "P"))
	assert.NoError(t, stock.Check(snap, "sin-operaciones"))
	assert.Empty(t, stock.CheckAll(snap))
}

// Simula un refresco parcial: el total no coincide con el desglose.
func TestCheck_DetectaDeriva(t *testing.T) {
	snap, err := stock.AggregateOperations(testOrg, scenarioOps(), stock.NewClassifier(10), t0)
	require.NoError(t, err)
	snap.Products["P"].CurrentStock = 40

	err = stock.Check(snap, "P")
	var v *domain.ConsistencyViolation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, int64(25), v.Expected)
	assert.Equal(t, int64(40), v.Actual)
	assert.Equal(t, int64(15), v.Delta)
	assert.Equal(t, testOrg, v.OrganizationID)

	errs := stock.CheckAll(snap)
	assert.Len(t, errs, 1)
}

func TestCheck_SnapshotNil(t *testing.T) {
	assert.ErrorIs(t, stock.Check(nil, "P"), domain.ErrSnapshotUnavailable)
}
