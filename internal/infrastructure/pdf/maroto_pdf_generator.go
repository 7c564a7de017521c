// Package pdf implementa la representación gráfica (DANFE simplificado) de la
// nota fiscal autorizada por la SEFAZ.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón social + CNPJ  │  DANFE / NFS-e + N° + Serie  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CHAVE DE ACESSO: código de barras + 11 grupos de 4 dígitos  │
//	│  PROTOCOLO DE AUTORIZAÇÃO + fecha                            │
//	│  DESTINATÁRIO: Nombre + CPF/CNPJ                             │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Qtd | Descrição | CFOP | V.Unit | V.Total           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTAL DA NOTA                                               │
//	│  FOOTER: QR de consulta + leyenda                            │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	appfiscal "github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/fiscal"
)

// ConsultationURL portal de consulta pública de la NF-e (va en el QR).
const ConsultationURL = "https://www.nfe.fazenda.gov.br/portal/consultaRecaptcha.aspx?tipoConsulta=resumo&nfe="

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var brTime = time.FixedZone("BRT", -3*60*60)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ appfiscal.InvoicePDFGenerator = (*MarotoPDFGenerator)(nil)

// MarotoPDFGenerator implementa fiscal.InvoicePDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	printer *message.Printer
}

// NewMarotoPDFGenerator construye el generador con formato monetario pt-BR.
func NewMarotoPDFGenerator() *MarotoPDFGenerator {
	return &MarotoPDFGenerator{printer: message.NewPrinter(language.BrazilianPortuguese)}
}

// GenerateInvoicePDF genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(_ context.Context, inv *entity.Invoice, issuer appfiscal.IssuerInfo) ([]byte, error) {
	if inv == nil || inv.Issuance == nil {
		return nil, fmt.Errorf("pdf: la nota no tiene datos de autorización")
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("DANFE "+inv.Kind.Label()+" "+inv.Issuance.DocumentNumber, true).
		WithAuthor(issuer.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, issuer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(accessKeyRows(inv.Issuance)...)
	m.AddRows(recipientRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.tableDetailRows(inv.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(inv)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y tipo de documento + número/serie (der).
func headerRow(inv *entity.Invoice, issuer appfiscal.IssuerInfo) core.Row {
	iss := inv.Issuance
	return row.New(18).Add(
		col.New(7).Add(
			text.New(issuer.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+FormatTaxID(issuer.CNPJ), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("DANFE "+inv.Kind.Label(), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Nº %s  Série %s", iss.DocumentNumber, iss.Series), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Emissão: "+iss.IssuedAt.In(brTime).Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// accessKeyRows: código de barras, chave agrupada y protocolo.
func accessKeyRows(iss *entity.Issuance) []core.Row {
	return []core.Row{
		row.New(14).Add(col.New(12).Add(code.NewBar(iss.AccessKey, props.Barcode{
			Percent: 90, Center: true,
		}))),
		row.New(10).Add(col.New(12).Add(
			text.New("CHAVE DE ACESSO", props.Text{
				Style: fontstyle.Bold, Size: 7, Color: colorPrimary, Top: 1,
			}),
			text.New(GroupAccessKey(iss.AccessKey), props.Text{
				Size: 9, Top: 5, Align: align.Center,
			}),
		)),
		row.New(8).Add(col.New(12).Add(
			text.New(fmt.Sprintf("PROTOCOLO DE AUTORIZAÇÃO: %s - %s",
				iss.AuthorityProtocol, iss.IssuedAt.In(brTime).Format("02/01/2006 15:04:05")),
				props.Text{Size: 8, Top: 2, Color: colorGray}),
		)),
	}
}

// recipientRow: datos del destinatario.
func recipientRow(inv *entity.Invoice) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("DESTINATÁRIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(inv.CustomerName, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New("CPF/CNPJ: "+FormatTaxID(inv.CustomerTaxID), props.Text{
				Size: 8, Top: 12, Color: colorGray,
			}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de itens.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qtd.", 1, align.Center),
		h("Descrição do produto/serviço", 5, align.Left),
		h("CFOP", 1, align.Center),
		h("V. Unit.", 2, align.Right),
		h("V. Total", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// tableDetailRows: una fila por línea.
func (g *MarotoPDFGenerator) tableDetailRows(items []entity.LineItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				fmt.Sprint(it.Quantity),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				it.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(1).Add(text.New(
				nonEmpty(it.CFOP, "-"),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				g.FormatBRL(it.UnitPrice),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(3).Add(text.New(
				g.FormatBRL(it.Subtotal()),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: valor total alineado a la derecha.
func (g *MarotoPDFGenerator) totalsRow(inv *entity.Invoice) core.Row {
	return row.New(12).Add(
		col.New(6),
		col.New(3).Add(text.New("VALOR TOTAL DA NOTA:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2, Top: 2,
		})),
		col.New(3).Add(text.New(g.FormatBRL(inv.TotalValue), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: 2,
		})),
	)
}

// footerRows: QR de consulta + leyenda legal.
func footerRows(inv *entity.Invoice) []core.Row {
	return []core.Row{
		row.New(40).Add(
			col.New(4).Add(code.NewQr(ConsultationURL+inv.Issuance.AccessKey, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Consulte a autenticidade deste documento\nno portal da SEFAZ com a chave de acesso.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Documento auxiliar da "+inv.Kind.Label(), props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		),
		row.New(8).Add(col.New(12).Add(
			text.New(
				"Esta representação gráfica não substitui o documento fiscal eletrônico. "+
					"Conserve o XML autorizado como comprovante fiscal.",
				props.Text{Size: 6.5, Color: colorGray, Top: 2},
			),
		)),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// FormatBRL formatea el monto en reales con separadores pt-BR. Ej: 1234.5 → "R$ 1.234,50".
func (g *MarotoPDFGenerator) FormatBRL(v decimal.Decimal) string {
	return "R$ " + g.printer.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(2)))
}

// GroupAccessKey separa la chave en grupos de 4 dígitos.
func GroupAccessKey(key string) string {
	parts := make([]string, 0, len(key)/4+1)
	for len(key) > 4 {
		parts = append(parts, key[:4])
		key = key[4:]
	}
	if key != "" {
		parts = append(parts, key)
	}
	return strings.Join(parts, " ")
}

// FormatTaxID aplica la máscara de CPF (11 dígitos) o CNPJ (14 dígitos); otros valores quedan igual.
func FormatTaxID(s string) string {
	d := fiscal.OnlyDigits(s)
	switch len(d) {
	case 11:
		return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case 14:
		return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	}
	return s
}
