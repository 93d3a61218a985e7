package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Motivos de rechazo reportados en métricas.
const (
	RejectValidation = "validation"
	RejectForeignKey = "foreign_key"
	RejectStore      = "store"
)

const reasonUnknownReference = "no existe en la organización"

// MaxListPageSize tope de page_size del historial.
const MaxListPageSize = 200

// RecordOperationUseCase registra operaciones en el ledger de la organización del llamador.
type RecordOperationUseCase struct {
	operations   repository.OperationRepository
	products     repository.ProductRepository
	locations    repository.LocationRepository
	suppliers    repository.SupplierRepository
	invalidators []Invalidator
	log          *logger.Logger
	metrics      Metrics
	now          func() time.Time
}

// NewRecordOperationUseCase construye el caso de uso. metrics puede ser nil.
func NewRecordOperationUseCase(
	operations repository.OperationRepository,
	products repository.ProductRepository,
	locations repository.LocationRepository,
	suppliers repository.SupplierRepository,
	log *logger.Logger,
	metrics Metrics,
	invalidators ...Invalidator,
) *RecordOperationUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecordOperationUseCase{
		operations:   operations,
		products:     products,
		locations:    locations,
		suppliers:    suppliers,
		invalidators: invalidators,
		log:          log.Component("ledger"),
		metrics:      metrics,
		now:          time.Now,
	}
}

// build convierte el request en una operación validada (sin consultar FKs).
func (uc *RecordOperationUseCase) build(organizationID, userID string, in dto.AppendOperationRequest) (*entity.Operation, error) {
	typ, err := entity.ParseOperationType(in.OperationType)
	if err != nil {
		return nil, err
	}
	op := &entity.Operation{
		OrganizationID: organizationID,
		ProductID:      in.ProductID,
		LocationID:     in.LocationID,
		SupplierID:     in.SupplierID,
		Type:           typ,
		Quantity:       in.Quantity,
		UnitPrice:      in.UnitPrice,
		CreatedBy:      userID,
	}
	if in.OperationDate != nil {
		op.OperationDate = in.OperationDate.UTC()
	} else {
		op.OperationDate = uc.now().UTC()
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}

// fkCache evita consultar dos veces la misma FK dentro de un lote.
type fkCache map[string]bool

// checkReferences verifica que producto, ubicación y proveedor existan en la organización.
// Un ID de otra organización se rechaza igual que uno inexistente.
func (uc *RecordOperationUseCase) checkReferences(ctx context.Context, op *entity.Operation, seen fkCache) error {
	check := func(field, id string, exists func() (bool, error)) error {
		key := field + "/" + id
		ok, cached := seen[key]
		if !cached {
			var err error
			if ok, err = exists(); err != nil {
				return err
			}
			seen[key] = ok
		}
		if !ok {
			return domain.NewValidationError(field, reasonUnknownReference)
		}
		return nil
	}
	if err := check("product_id", op.ProductID, func() (bool, error) {
		p, err := uc.products.GetByID(ctx, op.OrganizationID, op.ProductID)
		return p != nil, err
	}); err != nil {
		return err
	}
	if err := check("location_id", op.LocationID, func() (bool, error) {
		l, err := uc.locations.GetByID(ctx, op.OrganizationID, op.LocationID)
		return l != nil, err
	}); err != nil {
		return err
	}
	if op.SupplierID != nil {
		return check("supplier_id", *op.SupplierID, func() (bool, error) {
			return uc.suppliers.Exists(ctx, op.OrganizationID, *op.SupplierID)
		})
	}
	return nil
}

func (uc *RecordOperationUseCase) reject(organizationID string, err error) error {
	reason := RejectStore
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		reason = RejectValidation
		if ve.Reason == reasonUnknownReference {
			reason = RejectForeignKey
		}
	}
	uc.metrics.IncOperationsRejected(reason)
	ev := uc.log.Warn()
	if reason == RejectStore {
		ev = uc.log.Error()
	}
	ev.Err(err).Str("organization_id", organizationID).Str("reason", reason).Msg("operación rechazada")
	return err
}

func (uc *RecordOperationUseCase) notify(ctx context.Context, organizationID string) {
	for _, inv := range uc.invalidators {
		inv.Invalidate(ctx, organizationID)
	}
}

// Record valida y agrega una operación. Devuelve el ID asignado.
func (uc *RecordOperationUseCase) Record(ctx context.Context, organizationID, userID string, in dto.AppendOperationRequest) (string, error) {
	if organizationID == "" {
		return "", domain.NewValidationError("organization_id", "requerido")
	}
	op, err := uc.build(organizationID, userID, in)
	if err != nil {
		return "", uc.reject(organizationID, err)
	}
	if err := uc.checkReferences(ctx, op, fkCache{}); err != nil {
		return "", uc.reject(organizationID, err)
	}
	id, err := uc.operations.Append(ctx, op)
	if err != nil {
		return "", uc.reject(organizationID, err)
	}
	uc.metrics.AddOperationsAppended(op.Type.String(), 1)
	uc.notify(ctx, organizationID)
	uc.log.Debug().
		Str("organization_id", organizationID).
		Str("operation_id", id).
		Str("operation_type", op.Type.String()).
		Int64("quantity", op.Quantity).
		Msg("operación registrada")
	return id, nil
}

// RecordBatch agrega todas las operaciones o ninguna. Un ítem inválido rechaza el lote
// indicando su posición.
func (uc *RecordOperationUseCase) RecordBatch(ctx context.Context, organizationID, userID string, ins []dto.AppendOperationRequest) ([]string, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	if len(ins) == 0 {
		return nil, domain.NewValidationError("operations", "lote vacío")
	}
	ops := make([]*entity.Operation, 0, len(ins))
	seen := fkCache{}
	for i, in := range ins {
		op, err := uc.build(organizationID, userID, in)
		if err == nil {
			err = uc.checkReferences(ctx, op, seen)
		}
		if err != nil {
			return nil, uc.reject(organizationID, fmt.Errorf("operación %d: %w", i, err))
		}
		ops = append(ops, op)
	}
	if err := uc.operations.AppendBatch(ctx, ops); err != nil {
		return nil, uc.reject(organizationID, err)
	}
	ids := make([]string, len(ops))
	byType := map[entity.OperationType]int{}
	for i, op := range ops {
		ids[i] = op.ID
		byType[op.Type]++
	}
	for typ, n := range byType {
		uc.metrics.AddOperationsAppended(typ.String(), n)
	}
	uc.notify(ctx, organizationID)
	uc.log.Info().Str("organization_id", organizationID).Int("operations", len(ops)).Msg("lote registrado")
	return ids, nil
}

// ListOperations historial del ledger de la organización, más recientes primero.
func (uc *RecordOperationUseCase) ListOperations(ctx context.Context, organizationID string, req dto.OperationListRequest) (*dto.OperationListDTO, error) {
	if organizationID == "" {
		return nil, domain.NewValidationError("organization_id", "requerido")
	}
	req.DefaultPage()
	if req.Page < 1 {
		return nil, domain.NewValidationError("page", "debe ser >= 1")
	}
	if req.PageSize < 1 || req.PageSize > MaxListPageSize {
		return nil, domain.NewValidationError("page_size", "fuera de rango")
	}
	filter := repository.OperationFilter{
		OrganizationID: organizationID,
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
	}
	var err error
	if filter.From, err = parseTime("from", req.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseTime("to", req.To); err != nil {
		return nil, err
	}

	ops, total, err := uc.operations.List(ctx, filter, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, err
	}
	items := make([]dto.OperationDTO, 0, len(ops))
	for _, op := range ops {
		items = append(items, dto.OperationDTO{
			ID:            op.ID,
			ProductID:     op.ProductID,
			LocationID:    op.LocationID,
			SupplierID:    op.SupplierID,
			OperationType: op.Type.String(),
			Quantity:      op.Quantity,
			UnitPrice:     op.UnitPrice,
			OperationDate: op.OperationDate,
			CreatedAt:     op.CreatedAt,
			CreatedBy:     op.CreatedBy,
		})
	}
	return &dto.OperationListDTO{
		Items: items,
		Page:  dto.PageResponse{Page: req.Page, PageSize: req.PageSize, Total: total},
	}, nil
}

func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewValidationError(field, "formato RFC3339 esperado")
	}
	return &t, nil
}
