package postgres

// Repositories agrupa los adaptadores que comparten el mismo pool.
type Repositories struct {
	Operations    *OperationRepo
	Products      *ProductRepo
	Locations     *LocationRepo
	Suppliers     *SupplierRepo
	Organizations *OrganizationRepo
}

// NewRepositories construye todos los repositorios sobre q.
func NewRepositories(q Querier) Repositories {
	return Repositories{
		Operations:    NewOperationRepository(q),
		Products:      NewProductRepository(q),
		Locations:     NewLocationRepository(q),
		Suppliers:     NewSupplierRepository(q),
		Organizations: NewOrganizationRepository(q),
	}
}
