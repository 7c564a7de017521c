package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// Textos del disparador de emisión (los consume el front-end tal cual).
const (
	msgEmissionBadBody  = "Corpo da requisição inválido"
	msgEmissionNoID     = "invoiceId é obrigatório"
	msgEmissionNotFound = "Nota fiscal não encontrada"
	msgEmissionConflict = "Nota fiscal já processada"
	msgEmissionInternal = "Erro interno ao emitir nota fiscal"
)

// EmissionHandler dispara el envío a la SEFAZ y la conciliación.
type EmissionHandler struct {
	uc  *fiscal.EmissionUseCase
	log *logger.Logger
}

// NewEmissionHandler construye el handler.
func NewEmissionHandler(uc *fiscal.EmissionUseCase, log *logger.Logger) *EmissionHandler {
	return &EmissionHandler{uc: uc, log: log}
}

// Emit emite la nota indicada en el body {"invoiceId": "..."}.
// @Summary      Emitir nota fiscal
// @Tags         emission
// @Accept       json
// @Produce      json
// @Param        body  body      dto.EmissionRequest  true  "ID de la nota"
// @Success      200   {object}  dto.EmissionResponse
// @Failure      400   {object}  dto.EmissionErrorResponse
// @Failure      409   {object}  dto.EmissionErrorResponse
// @Failure      500   {object}  dto.EmissionErrorResponse
// @Router       /api/emitir-nota-fiscal [post]
func (h *EmissionHandler) Emit(c *fiber.Ctx) error {
	var in dto.EmissionRequest
	if err := c.BodyParser(&in); err != nil {
		return emissionError(c, fiber.StatusBadRequest, msgEmissionBadBody)
	}
	return h.emit(c, in.InvoiceID)
}

// EmitByID variante REST: POST /api/invoices/:id/emit
func (h *EmissionHandler) EmitByID(c *fiber.Ctx) error {
	return h.emit(c, c.Params("id"))
}

func (h *EmissionHandler) emit(c *fiber.Ctx, invoiceID string) error {
	resp, err := h.uc.Emit(c.Context(), invoiceID)
	if err == nil {
		return c.JSON(resp)
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return emissionError(c, fiber.StatusBadRequest, msgEmissionNoID)
	case errors.Is(err, domain.ErrNotFound):
		return emissionError(c, fiber.StatusBadRequest, msgEmissionNotFound)
	case errors.Is(err, domain.ErrConflict):
		return emissionError(c, fiber.StatusConflict, msgEmissionConflict)
	}
	h.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("emisión fallida")
	return emissionError(c, fiber.StatusInternalServerError, msgEmissionInternal)
}

func emissionError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.EmissionErrorResponse{Success: false, Error: msg})
}
