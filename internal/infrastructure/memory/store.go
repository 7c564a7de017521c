// Package memory implementa los repositorios en memoria (DB_DRIVER=memory y tests).
// Respeta las mismas semánticas que el adaptador PostgreSQL: compare-and-swap sobre
// status = pending y unicidad del asiento por origen.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

var (
	_ repository.InvoiceRepository = (*InvoiceRepo)(nil)
	_ repository.LedgerRepository  = (*LedgerRepo)(nil)
)

// Store agrupa las "tablas" invoices y ledger_entries bajo un mismo mutex.
type Store struct {
	mu       sync.RWMutex
	invoices map[string]*entity.Invoice
	ledger   map[string]*entity.LedgerEntry // clave: sourceType + "/" + sourceID
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		invoices: make(map[string]*entity.Invoice),
		ledger:   make(map[string]*entity.LedgerEntry),
	}
}

// Invoices adaptador InvoiceRepository sobre el almacén.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }

// Ledger adaptador LedgerRepository sobre el almacén.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// InvoiceRepo implementación en memoria de InvoiceRepository.
type InvoiceRepo struct {
	s *Store
}

// Create persiste una copia de la nota.
func (r *InvoiceRepo) Create(_ context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[invoice.ID]; ok {
		return fmt.Errorf("insert invoice %s: %w", invoice.ID, domain.ErrConflict)
	}
	r.s.invoices[invoice.ID] = invoice.Clone()
	return nil
}

// GetByID devuelve una copia; (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return inv.Clone(), nil
}

// List ordena por CreatedAt descendente (ID como desempate).
func (r *InvoiceRepo) List(_ context.Context, filter repository.InvoiceFilter) ([]*entity.Invoice, error) {
	r.s.mu.RLock()
	all := make([]*entity.Invoice, 0, len(r.s.invoices))
	for _, inv := range r.s.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		all = append(all, inv.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if filter.Offset >= len(all) {
		return []*entity.Invoice{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

// CountByStatus cuenta notas por estado.
func (r *InvoiceRepo) CountByStatus(_ context.Context) (map[entity.InvoiceStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[entity.InvoiceStatus]int)
	for _, inv := range r.s.invoices {
		out[inv.Status]++
	}
	return out, nil
}

// MarkIssued compare-and-swap pending -> issued.
func (r *InvoiceRepo) MarkIssued(_ context.Context, id string, issuance entity.Issuance, total decimal.Decimal) (*entity.Invoice, error) {
	return r.transition(id, func(inv *entity.Invoice) error {
		return inv.MarkIssued(issuance, total)
	})
}

// MarkFailed compare-and-swap pending -> failed.
func (r *InvoiceRepo) MarkFailed(_ context.Context, id string, message string, at time.Time) (*entity.Invoice, error) {
	return r.transition(id, func(inv *entity.Invoice) error {
		return inv.MarkFailed(message, at)
	})
}

func (r *InvoiceRepo) transition(id string, apply func(inv *entity.Invoice) error) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if current.Status != entity.InvoiceStatusPending {
		return nil, fmt.Errorf("nota %s en estado %s: %w", id, current.Status, domain.ErrConflict)
	}
	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}
	r.s.invoices[id] = next
	return next.Clone(), nil
}

// ListIssuedWithoutLedger notas issued cuyo asiento no existe, las más antiguas primero.
func (r *InvoiceRepo) ListIssuedWithoutLedger(_ context.Context, limit int) ([]*entity.Invoice, error) {
	r.s.mu.RLock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.Status != entity.InvoiceStatusIssued {
			continue
		}
		if _, ok := r.s.ledger[ledgerKey(entity.LedgerSourceInvoice, inv.ID)]; ok {
			continue
		}
		out = append(out, inv.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LedgerRepo implementación en memoria de LedgerRepository.
type LedgerRepo struct {
	s *Store
}

// Create inserta el asiento si no existe otro con el mismo origen.
func (r *LedgerRepo) Create(_ context.Context, entry *entity.LedgerEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	key := ledgerKey(entry.SourceType, entry.SourceID)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ledger[key]; ok {
		return false, nil
	}
	cp := *entry
	r.s.ledger[key] = &cp
	return true, nil
}

// GetBySource devuelve el asiento del origen; (nil, nil) si no existe.
func (r *LedgerRepo) GetBySource(_ context.Context, sourceType, sourceID string) (*entity.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.ledger[ledgerKey(sourceType, sourceID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Count número total de asientos (tests y diagnóstico).
func (r *LedgerRepo) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.ledger)
}

func ledgerKey(sourceType, sourceID string) string {
	return sourceType + "/" + sourceID
}
