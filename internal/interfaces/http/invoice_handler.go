package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

const msgInvoiceNotFound = "nota fiscal no encontrada"

// InvoiceHandler maneja alta, consulta, PDF y reemisión de notas fiscales.
type InvoiceHandler struct {
	intake *fiscal.IntakeUseCase
	query  *fiscal.QueryUseCase
	pdf    *fiscal.PDFUseCase
	log    *logger.Logger
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(intake *fiscal.IntakeUseCase, query *fiscal.QueryUseCase, pdf *fiscal.PDFUseCase, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{intake: intake, query: query, pdf: pdf, log: log}
}

// Create registra una nota en estado pending.
// @Summary      Crear nota fiscal
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateInvoiceRequest  true  "Nota fiscal"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.intake.CreateInvoice(c.Context(), in)
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List lista notas por fecha de creación descendente.
// @Summary      Listar notas fiscales
// @Tags         invoices
// @Produce      json
// @Param        status  query     string  false  "pending | issued | failed"
// @Param        limit   query     int     false  "máximo 100"
// @Param        offset  query     int     false  "desplazamiento"
// @Success      200     {object}  dto.InvoiceListResponse
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros de paginación inválidos"})
	}
	out, err := h.query.ListInvoices(c.Context(), c.Query("status"), page)
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	return c.JSON(out)
}

// Summary totales por estado.
// GET /api/invoices/summary
func (h *InvoiceHandler) Summary(c *fiber.Ctx) error {
	out, err := h.query.Summary(c.Context())
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	return c.JSON(out)
}

// GetByID detalle de una nota.
// @Summary      Obtener nota fiscal
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "ID de la nota"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.query.GetInvoice(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	return c.JSON(out)
}

// DownloadPDF devuelve el DANFE de una nota autorizada.
// GET /api/invoices/:id/pdf
func (h *InvoiceHandler) DownloadPDF(c *fiber.Ctx) error {
	data, filename, err := h.pdf.DownloadInvoicePDF(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// Reissue crea una nota pending nueva a partir de una fallida.
// POST /api/invoices/:id/reissue
func (h *InvoiceHandler) Reissue(c *fiber.Ctx) error {
	out, err := h.intake.Reissue(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err, msgInvoiceNotFound)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}
