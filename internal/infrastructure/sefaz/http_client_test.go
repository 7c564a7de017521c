package sefaz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfiscal "github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

func submission() appfiscal.SubmissionRequest {
	return appfiscal.SubmissionRequest{
		InvoiceID:     "inv-1",
		Kind:          entity.InvoiceKindGoods,
		CustomerName:  "Ana Souza",
		CustomerTaxID: "111.222.333-44",
		TotalValue:    decimal.RequireFromString("29.97"),
		Items: []entity.LineItem{
			{Description: "Widget", Quantity: 3, UnitPrice: decimal.RequireFromString("9.99"), CFOP: "5102"},
		},
	}
}

func newGateway(t *testing.T, handler http.HandlerFunc) (*HTTPAuthority, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	a := NewHTTPAuthority(HTTPConfig{
		URL:             srv.URL,
		Timeout:         2 * time.Second,
		UF:              "35",
		IssuerCNPJ:      "00.000.000/0001-91",
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, logger.Nop())
	return a, &hits
}

func TestHTTPAuthority_Authorized(t *testing.T) {
	var got gatewayRequest
	a, _ := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cStat":    "100",
			"xMotivo":  "Autorizado o uso da NF-e",
			"nNF":      "123456",
			"serie":    "1",
			"chNFe":    "35240300000000000191550010001234561777777770",
			"nProt":    "135240000000001",
			"dhRecbto": "2024-03-15T10:00:00-03:00",
		})
	})

	out := a.Submit(context.Background(), submission())

	issued, ok := out.(appfiscal.Issued)
	require.True(t, ok, "esperaba Issued, obtuvo %#v", out)
	assert.Equal(t, "123456", issued.DocumentNumber)
	assert.Equal(t, "135240000000001", issued.AuthorityProtocol)
	assert.Len(t, issued.AccessKey, 44)
	assert.Equal(t, 13, issued.AuthorizedAt.UTC().Hour())

	assert.Equal(t, "inv-1", got.InvoiceID)
	assert.Equal(t, "55", got.Model)
	assert.Equal(t, "00000000000191", got.IssuerCNPJ)
	assert.True(t, decimal.RequireFromString("29.97").Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "5102", got.Items[0].CFOP)
}

func TestHTTPAuthority_ExplicitRejection(t *testing.T) {
	a, _ := newGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"cStat":"539","xMotivo":"Duplicidade de NF-e"}`))
	})

	out := a.Submit(context.Background(), submission())

	assert.Equal(t, appfiscal.Rejected{ErrorMessage: "Rejeição 539: Duplicidade de NF-e"}, out)
}

func TestHTTPAuthority_TransientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"5xx", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"4xx", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) }},
		{"cuerpo ilegible", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"sin cStat", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newGateway(t, tt.handler)

			out := a.Submit(context.Background(), submission())

			assert.Equal(t, appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}, out)
		})
	}
}

func TestHTTPAuthority_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	a, hits := newGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		out := a.Submit(context.Background(), submission())
		assert.Equal(t, appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}, out)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "con el circuito abierto no se llama al gateway")
}

func TestHTTPAuthority_Unreachable(t *testing.T) {
	a := NewHTTPAuthority(HTTPConfig{URL: "http://127.0.0.1:1", Timeout: time.Second}, logger.Nop())

	out := a.Submit(context.Background(), submission())

	assert.Equal(t, appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}, out)
}
