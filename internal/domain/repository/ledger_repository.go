package repository

import (
	"context"

	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

// LedgerRepository puerto de persistencia del flujo de caja.
type LedgerRepository interface {
	// Create es idempotente por (SourceType, SourceID): si ya existe un asiento para el
	// mismo origen devuelve (false, nil) sin duplicarlo.
	Create(ctx context.Context, entry *entity.LedgerEntry) (created bool, err error)
	// GetBySource devuelve (nil, nil) si no hay asiento para el origen.
	GetBySource(ctx context.Context, sourceType, sourceID string) (*entity.LedgerEntry, error)
}
