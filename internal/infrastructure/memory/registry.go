package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository  = (*Registry)(nil)
	_ repository.LocationRepository = (*LocationRegistry)(nil)
	_ repository.SupplierRepository = (*Registry)(nil)
	_ repository.OrganizationLister = (*Registry)(nil)
)

// Registry catálogo en memoria de productos, ubicaciones y proveedores.
type Registry struct {
	mu        sync.RWMutex
	products  map[string]*entity.Product
	locations map[string]*entity.Location
	suppliers map[string]*entity.Supplier
}

// NewRegistry construye un registro vacío.
func NewRegistry() *Registry {
	return &Registry{
		products:  make(map[string]*entity.Product),
		locations: make(map[string]*entity.Location),
		suppliers: make(map[string]*entity.Supplier),
	}
}

// PutProduct inserta o reemplaza un producto.
func (r *Registry) PutProduct(p *entity.Product) {
	cp := *p
	r.mu.Lock()
	r.products[p.ID] = &cp
	r.mu.Unlock()
}

// PutLocation inserta o reemplaza una ubicación.
func (r *Registry) PutLocation(l *entity.Location) {
	cp := *l
	r.mu.Lock()
	r.locations[l.ID] = &cp
	r.mu.Unlock()
}

// PutSupplier inserta o reemplaza un proveedor.
func (r *Registry) PutSupplier(s *entity.Supplier) {
	cp := *s
	r.mu.Lock()
	r.suppliers[s.ID] = &cp
	r.mu.Unlock()
}

// GetByID devuelve el producto si pertenece a organizationID.
func (r *Registry) GetByID(_ context.Context, organizationID, id string) (*entity.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok || p.OrganizationID != organizationID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ListByOrganization productos de la organización ordenados por nombre.
func (r *Registry) ListByOrganization(_ context.Context, organizationID string) ([]*entity.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*entity.Product
	for _, p := range r.products {
		if p.OrganizationID == organizationID {
			cp := *p
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// Exists valida la FK supplier_id dentro de la organización.
func (r *Registry) Exists(_ context.Context, organizationID, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suppliers[id]
	return ok && s.OrganizationID == organizationID, nil
}

// ListOrganizationIDs organizaciones con al menos un producto o ubicación.
func (r *Registry) ListOrganizationIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, p := range r.products {
		set[p.OrganizationID] = struct{}{}
	}
	for _, l := range r.locations {
		set[l.OrganizationID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Locations expone las ubicaciones del registro como LocationRepository.
func (r *Registry) Locations() *LocationRegistry { return &LocationRegistry{r: r} }

// LocationRegistry vista de ubicaciones de un Registry.
type LocationRegistry struct {
	r *Registry
}

// GetByID devuelve la ubicación si pertenece a organizationID.
func (lr *LocationRegistry) GetByID(_ context.Context, organizationID, id string) (*entity.Location, error) {
	lr.r.mu.RLock()
	defer lr.r.mu.RUnlock()
	l, ok := lr.r.locations[id]
	if !ok || l.OrganizationID != organizationID {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

// ListByOrganization ubicaciones de la organización ordenadas por nombre.
func (lr *LocationRegistry) ListByOrganization(_ context.Context, organizationID string) ([]*entity.Location, error) {
	lr.r.mu.RLock()
	defer lr.r.mu.RUnlock()
	var list []*entity.Location
	for _, l := range lr.r.locations {
		if l.OrganizationID == organizationID {
			cp := *l
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}
