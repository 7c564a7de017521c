package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// LedgerHandler operaciones sobre el flujo de caja.
type LedgerHandler struct {
	uc  *fiscal.LedgerUseCase
	log *logger.Logger
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(uc *fiscal.LedgerUseCase, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{uc: uc, log: log}
}

// Backfill registra los asientos faltantes de notas ya emitidas.
// POST /api/ledger/backfill?limit=N
func (h *LedgerHandler) Backfill(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "limit debe ser >= 0"})
	}
	out, err := h.uc.Backfill(c.Context(), limit)
	if err != nil {
		return writeError(c, h.log, err, "")
	}
	return c.JSON(out)
}
