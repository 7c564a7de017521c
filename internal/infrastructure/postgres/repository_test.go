package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

func TestEncodeDecodeItems_PreservesDecimals(t *testing.T) {
	items := []entity.LineItem{
		{Description: "Cadeira", Quantity: 2, UnitPrice: decimal.RequireFromString("0.10"), CFOP: "5102", NCM: "94013000"},
		{Description: "Consultoria", Quantity: 1, UnitPrice: decimal.RequireFromString("1500")},
	}
	raw, err := encodeItems(items)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"unit_price":"0.1"`)
	assert.NotContains(t, string(raw), `"cfop":""`)

	got, err := decodeItems(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, items[0].UnitPrice.Equal(got[0].UnitPrice))
	assert.Equal(t, "94013000", got[0].NCM)
	assert.Empty(t, got[1].CFOP)
	assert.True(t, entity.ComputeTotal(items).Equal(entity.ComputeTotal(got)))
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, MigrationsDir+"/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	checks := map[string][]string{
		"migrations/00001_create_invoices.sql": {
			"-- +goose Up",
			"CREATE TABLE IF NOT EXISTS invoices",
			"CHECK (status IN ('pending', 'issued', 'failed'))",
			"invoices_issued_complete",
			"-- +goose Down",
		},
		"migrations/00002_create_ledger_entries.sql": {
			"CREATE TABLE IF NOT EXISTS ledger_entries",
			"UNIQUE (source_type, source_id)",
			"DROP TABLE IF EXISTS ledger_entries",
		},
	}
	for name, subs := range checks {
		data, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err, name)
		for _, sub := range subs {
			assert.True(t, strings.Contains(string(data), sub), "%s: falta %q", name, sub)
		}
	}
}
