package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

const invoiceColumns = `
	id, kind, customer_name, customer_tax_id, items, total_value, status,
	document_number, series, access_key, authority_protocol, rendered_document, issued_at,
	error_message, reissue_of, created_at, updated_at`

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// lineItemJSON forma persistida de cada línea dentro de la columna items (JSONB).
type lineItemJSON struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CFOP        string          `json:"cfop,omitempty"`
	NCM         string          `json:"ncm,omitempty"`
}

func encodeItems(items []entity.LineItem) ([]byte, error) {
	rows := make([]lineItemJSON, len(items))
	for i, it := range items {
		rows[i] = lineItemJSON{
			Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
			CFOP: it.CFOP, NCM: it.NCM,
		}
	}
	return json.Marshal(rows)
}

func decodeItems(raw []byte) ([]entity.LineItem, error) {
	var rows []lineItemJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]entity.LineItem, len(rows))
	for i, r := range rows {
		items[i] = entity.LineItem{
			Description: r.Description, Quantity: r.Quantity, UnitPrice: r.UnitPrice,
			CFOP: r.CFOP, NCM: r.NCM,
		}
	}
	return items, nil
}

// Create persiste la nota en estado pending.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	items, err := encodeItems(invoice.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	query := `
		INSERT INTO invoices (id, kind, customer_name, customer_tax_id, items, total_value, status, reissue_of, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query,
		invoice.ID, string(invoice.Kind), invoice.CustomerName, invoice.CustomerTaxID,
		string(items), invoice.TotalValue, string(invoice.Status), nullIfEmpty(invoice.ReissueOf),
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert invoice %s: %w", invoice.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByID obtiene la nota completa; (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// List ordena por created_at descendente; Limit 0 = sin límite.
func (r *InvoiceRepo) List(ctx context.Context, filter repository.InvoiceFilter) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2::int, 0) OFFSET $3`
	rows, err := r.q.Query(ctx, query, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return collectInvoices(rows)
}

// CountByStatus cantidad de notas por estado.
func (r *InvoiceRepo) CountByStatus(ctx context.Context) (map[entity.InvoiceStatus]int, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}
	defer rows.Close()
	out := map[entity.InvoiceStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[entity.InvoiceStatus(status)] = n
	}
	return out, rows.Err()
}

// MarkIssued compare-and-swap pending -> issued.
func (r *InvoiceRepo) MarkIssued(ctx context.Context, id string, iss entity.Issuance, total decimal.Decimal) (*entity.Invoice, error) {
	if !iss.Complete() || iss.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: datos de autorización incompletos", domain.ErrInvalidInput)
	}
	query := `
		UPDATE invoices
		SET status             = 'issued',
		    document_number    = $2,
		    series             = $3,
		    access_key         = $4,
		    authority_protocol = $5,
		    rendered_document  = $6,
		    issued_at          = $7,
		    total_value        = $8,
		    error_message      = NULL,
		    updated_at         = $7
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(r.q.QueryRow(ctx, query,
		id, iss.DocumentNumber, iss.Series, iss.AccessKey, iss.AuthorityProtocol,
		nullIfEmpty(iss.RenderedDocument), iss.IssuedAt, total,
	))
	if err != nil {
		return nil, r.transitionError(ctx, id, entity.InvoiceStatusIssued, err)
	}
	return inv, nil
}

// MarkFailed compare-and-swap pending -> failed.
func (r *InvoiceRepo) MarkFailed(ctx context.Context, id string, message string, at time.Time) (*entity.Invoice, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: mensaje de error vacío", domain.ErrInvalidInput)
	}
	query := `
		UPDATE invoices
		SET status = 'failed', error_message = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id, message, at))
	if err != nil {
		return nil, r.transitionError(ctx, id, entity.InvoiceStatusFailed, err)
	}
	return inv, nil
}

// transitionError distingue nota inexistente de nota que ya salió de pending.
func (r *InvoiceRepo) transitionError(ctx context.Context, id string, to entity.InvoiceStatus, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mark invoice %s: %w", to, err)
	}
	var current string
	err = r.q.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("nota %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark invoice %s: %w", to, err)
	}
	return fmt.Errorf("nota %s en estado %s: %w", id, current, domain.ErrConflict)
}

// ListIssuedWithoutLedger notas issued sin asiento, las más antiguas primero.
func (r *InvoiceRepo) ListIssuedWithoutLedger(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices i
		WHERE i.status = 'issued'
		  AND NOT EXISTS (
		      SELECT 1 FROM ledger_entries l
		      WHERE l.source_type = $1 AND l.source_id = i.id
		  )
		ORDER BY i.created_at
		LIMIT NULLIF($2::int, 0)`
	rows, err := r.q.Query(ctx, query, entity.LedgerSourceInvoice, limit)
	if err != nil {
		return nil, fmt.Errorf("list issued without ledger: %w", err)
	}
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]*entity.Invoice, error) {
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var (
		inv                                    entity.Invoice
		kind, status                           string
		items                                  []byte
		docNumber, series, accessKey, protocol *string
		rendered, errorMessage, reissueOf      *string
		issuedAt                               *time.Time
	)
	err := row.Scan(
		&inv.ID, &kind, &inv.CustomerName, &inv.CustomerTaxID, &items, &inv.TotalValue, &status,
		&docNumber, &series, &accessKey, &protocol, &rendered, &issuedAt,
		&errorMessage, &reissueOf, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Kind = entity.InvoiceKind(kind)
	inv.Status = entity.InvoiceStatus(status)
	inv.ErrorMessage = derefStr(errorMessage)
	inv.ReissueOf = derefStr(reissueOf)
	if inv.Items, err = decodeItems(items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if inv.Status == entity.InvoiceStatusIssued {
		iss := entity.Issuance{
			DocumentNumber:    derefStr(docNumber),
			Series:            derefStr(series),
			AccessKey:         derefStr(accessKey),
			AuthorityProtocol: derefStr(protocol),
			RenderedDocument:  derefStr(rendered),
		}
		if issuedAt != nil {
			iss.IssuedAt = issuedAt.UTC()
		}
		inv.Issuance = &iss
	}
	return &inv, nil
}
