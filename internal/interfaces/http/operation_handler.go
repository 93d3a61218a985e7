package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// OperationHandler ingesta e historial del ledger (protegido).
type OperationHandler struct {
	uc       *ledger.RecordOperationUseCase
	validate *validator.Validate
	log      *logger.Logger
}

// NewOperationHandler construye el handler.
func NewOperationHandler(uc *ledger.RecordOperationUseCase, log *logger.Logger) *OperationHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Los errores reportan el nombre JSON del campo.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &OperationHandler{uc: uc, validate: v, log: log}
}

// validationResponse convierte el primer error del validador en ErrorResponse.
func validationResponse(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// Namespace: "AppendBatchRequest.operations[2].quantity" -> "operations[2].quantity"
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := fmt.Sprintf("%s: no cumple la regla %q", field, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: no cumple la regla %s=%s", field, fe.Tag(), fe.Param())
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: msg, Field: field})
	}
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
}

// Append godoc
// @Summary      Registrar operación de stock
// @Description  Agrega una operación (supply, sale o write_off) al ledger de la organización.
// @Tags         operations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.AppendOperationRequest  true  "product_id, location_id, operation_type, quantity"
// @Success      201   {object}  dto.AppendOperationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/operations [post]
func (h *OperationHandler) Append(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	var in dto.AppendOperationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.validate.Struct(in); err != nil {
		return validationResponse(c, err)
	}
	id, err := h.uc.Record(c.Context(), organizationID, GetUserID(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AppendOperationResponse{ID: id})
}

// AppendBatch godoc
// @Summary      Registrar lote de operaciones
// @Description  Todo o nada: un ítem inválido rechaza el lote completo indicando su posición.
// @Tags         operations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.AppendBatchRequest  true  "operations (1..500)"
// @Success      201   {object}  dto.AppendBatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/operations/batch [post]
func (h *OperationHandler) AppendBatch(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	var in dto.AppendBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.validate.Struct(in); err != nil {
		return validationResponse(c, err)
	}
	ids, err := h.uc.RecordBatch(c.Context(), organizationID, GetUserID(c), in.Operations)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AppendBatchResponse{IDs: ids})
}

// List godoc
// @Summary      Historial del ledger
// @Tags         operations
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  false  "Filtrar por producto"
// @Param        location_id  query  string  false  "Filtrar por ubicación"
// @Param        from         query  string  false  "Desde (RFC3339)"
// @Param        to           query  string  false  "Hasta (RFC3339)"
// @Param        page         query  int     false  "Página"
// @Param        page_size    query  int     false  "Tamaño de página"
// @Success      200  {object}  dto.OperationListDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/operations [get]
func (h *OperationHandler) List(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)
	if organizationID == "" {
		return unauthorized(c)
	}
	var req dto.OperationListRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	out, err := h.uc.ListOperations(c.Context(), organizationID, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}
