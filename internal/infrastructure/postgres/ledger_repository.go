package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

const ledgerDateLayout = "2006-01-02"

// LedgerRepo implementación de LedgerRepository sobre ledger_entries.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

// Create inserta el asiento; ON CONFLICT por (source_type, source_id) no duplica.
func (r *LedgerRepo) Create(ctx context.Context, entry *entity.LedgerEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	date, err := time.Parse(ledgerDateLayout, entry.Date)
	if err != nil {
		return false, fmt.Errorf("ledger entry date %q: %w", entry.Date, err)
	}
	query := `
		INSERT INTO ledger_entries (id, entry_date, direction, category, description, amount, source_type, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_type, source_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		entry.ID, date, entry.Direction, entry.Category, entry.Description,
		entry.Amount, entry.SourceType, entry.SourceID, entry.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBySource devuelve el asiento del origen; (nil, nil) si no existe.
func (r *LedgerRepo) GetBySource(ctx context.Context, sourceType, sourceID string) (*entity.LedgerEntry, error) {
	query := `
		SELECT id, entry_date, direction, category, description, amount, source_type, source_id, created_at
		FROM ledger_entries WHERE source_type = $1 AND source_id = $2`
	var e entity.LedgerEntry
	var date time.Time
	err := r.q.QueryRow(ctx, query, sourceType, sourceID).Scan(
		&e.ID, &date, &e.Direction, &e.Category, &e.Description,
		&e.Amount, &e.SourceType, &e.SourceID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	e.Date = date.Format(ledgerDateLayout)
	return &e, nil
}
