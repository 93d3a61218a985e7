package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jhoicas/stock-ledger/internal/domain/stock"
)

// SnapshotStore guarda el último snapshot publicado por organización.
// Publish reemplaza el puntero completo: un lector ve el snapshot anterior o el nuevo, nunca uno a medias.
type SnapshotStore struct {
	slots sync.Map // organizationID → *atomic.Pointer[stock.Snapshot]
}

// NewSnapshotStore construye el store vacío.
func NewSnapshotStore() *SnapshotStore { return &SnapshotStore{} }

func (s *SnapshotStore) slot(organizationID string) *atomic.Pointer[stock.Snapshot] {
	if v, ok := s.slots.Load(organizationID); ok {
		return v.(*atomic.Pointer[stock.Snapshot])
	}
	v, _ := s.slots.LoadOrStore(organizationID, new(atomic.Pointer[stock.Snapshot]))
	return v.(*atomic.Pointer[stock.Snapshot])
}

// Load devuelve el snapshot vigente o nil si aún no hay ninguno.
func (s *SnapshotStore) Load(_ context.Context, organizationID string) (*stock.Snapshot, error) {
	return s.slot(organizationID).Load(), nil
}

// Publish instala snap salvo que el vigente refleje más operaciones o se haya calculado después.
func (s *SnapshotStore) Publish(_ context.Context, snap *stock.Snapshot) error {
	p := s.slot(snap.OrganizationID)
	for {
		cur := p.Load()
		if !snap.Supersedes(cur) {
			return nil
		}
		if p.CompareAndSwap(cur, snap) {
			return nil
		}
	}
}
