package repository

import (
	"context"
	"time"

	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// InvoiceFilter filtros del listado de notas.
type InvoiceFilter struct {
	Status entity.InvoiceStatus // vacío = todos
	Limit  int
	Offset int
}

// InvoiceRepository define el puerto de persistencia para las notas fiscales.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	// GetByID devuelve (nil, nil) si la nota no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// List ordena por fecha de creación descendente.
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, error)
	CountByStatus(ctx context.Context) (map[entity.InvoiceStatus]int, error)
	// MarkIssued y MarkFailed son compare-and-swap sobre status = pending.
	// Devuelven domain.ErrConflict si la nota ya salió de pending y domain.ErrNotFound si no existe.
	// El resultado es la fila ya actualizada.
	MarkIssued(ctx context.Context, id string, issuance entity.Issuance, total decimal.Decimal) (*entity.Invoice, error)
	MarkFailed(ctx context.Context, id string, message string, at time.Time) (*entity.Invoice, error)
	// ListIssuedWithoutLedger notas issued sin asiento en el flujo de caja.
	ListIssuedWithoutLedger(ctx context.Context, limit int) ([]*entity.Invoice, error)
}
