package sefaz

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	appfiscal "github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/fiscal"
)

// Namespace y versión del leiaute NF-e.
const (
	NamespaceNFe  = "http://www.portalfiscal.inf.br/nfe"
	LayoutVersion = "4.00"

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`
	brTimeLayout   = "2006-01-02T15:04:05-07:00"
)

// Ambiente de emisión (tpAmb).
const (
	EnvironmentProduction   = "1"
	EnvironmentHomologation = "2"
)

var _ appfiscal.DocumentRenderer = (*XMLRenderer)(nil)

// RendererConfig datos del emisor que van en <emit>.
type RendererConfig struct {
	IssuerCNPJ  string
	IssuerName  string
	Environment string // tpAmb; homologación por defecto
	Location    *time.Location
}

// XMLRenderer genera el nfeProc (NFe + protNFe) canonicalizado de una nota autorizada.
type XMLRenderer struct {
	cfg    RendererConfig
	signer *Signer // opcional
}

// NewXMLRenderer crea el renderer. signer puede ser nil (documento sin firma).
func NewXMLRenderer(cfg RendererConfig, signer *Signer) *XMLRenderer {
	if cfg.Environment == "" {
		cfg.Environment = EnvironmentHomologation
	}
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("BRT", -3*60*60)
	}
	return &XMLRenderer{cfg: cfg, signer: signer}
}

// Render implementa appfiscal.DocumentRenderer.
func (r *XMLRenderer) Render(inv *entity.Invoice, issued appfiscal.Issued) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("sefaz: nota nil")
	}
	authorizedAt := issued.AuthorizedAt
	if authorizedAt.IsZero() {
		authorizedAt = time.Now()
	}

	doc := etree.NewDocument()
	proc := doc.CreateElement("nfeProc")
	proc.CreateAttr("xmlns", NamespaceNFe)
	proc.CreateAttr("versao", LayoutVersion)

	nfe := proc.CreateElement("NFe")
	nfe.CreateAttr("xmlns", NamespaceNFe)
	inf := nfe.CreateElement("infNFe")
	inf.CreateAttr("Id", "NFe"+issued.AccessKey)
	inf.CreateAttr("versao", LayoutVersion)

	r.writeIde(inf, inv, issued, authorizedAt)
	r.writeEmit(inf)
	writeDest(inf, inv)
	for i, it := range inv.Items {
		writeDet(inf, i+1, it)
	}
	total := inf.CreateElement("total").CreateElement("ICMSTot")
	total.CreateElement("vProd").SetText(inv.TotalValue.StringFixed(2))
	total.CreateElement("vNF").SetText(inv.TotalValue.StringFixed(2))

	if r.signer != nil {
		if err := r.signer.Sign(nfe); err != nil {
			return "", err
		}
	}

	prot := proc.CreateElement("protNFe")
	prot.CreateAttr("versao", LayoutVersion)
	infProt := prot.CreateElement("infProt")
	infProt.CreateElement("tpAmb").SetText(r.cfg.Environment)
	infProt.CreateElement("chNFe").SetText(issued.AccessKey)
	infProt.CreateElement("dhRecbto").SetText(authorizedAt.In(r.cfg.Location).Format(brTimeLayout))
	infProt.CreateElement("nProt").SetText(issued.AuthorityProtocol)
	infProt.CreateElement("cStat").SetText("100")
	infProt.CreateElement("xMotivo").SetText("Autorizado o uso da " + inv.Kind.Label())

	raw, err := doc.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("sefaz: serializar XML: %w", err)
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("sefaz: canonicalizar XML: %w", err)
	}
	return xmlDeclaration + string(canonical), nil
}

func (r *XMLRenderer) writeIde(inf *etree.Element, inv *entity.Invoice, issued appfiscal.Issued, at time.Time) {
	ide := inf.CreateElement("ide")
	key := issued.AccessKey
	if len(key) == fiscal.AccessKeyLength {
		ide.CreateElement("cUF").SetText(key[0:2])
		ide.CreateElement("cNF").SetText(key[35:43])
	}
	natOp := "Venda de mercadoria"
	model := fiscal.ModelNFe
	if inv.Kind != entity.InvoiceKindGoods {
		natOp = "Prestação de serviço"
		model = fiscal.ModelNFSe
	}
	ide.CreateElement("natOp").SetText(natOp)
	ide.CreateElement("mod").SetText(model)
	ide.CreateElement("serie").SetText(issued.Series)
	ide.CreateElement("nNF").SetText(issued.DocumentNumber)
	ide.CreateElement("dhEmi").SetText(at.In(r.cfg.Location).Format(brTimeLayout))
	ide.CreateElement("tpNF").SetText("1")
	ide.CreateElement("tpEmis").SetText("1")
	if len(key) == fiscal.AccessKeyLength {
		ide.CreateElement("cDV").SetText(key[43:])
	}
	ide.CreateElement("tpAmb").SetText(r.cfg.Environment)
}

func (r *XMLRenderer) writeEmit(inf *etree.Element) {
	emit := inf.CreateElement("emit")
	emit.CreateElement("CNPJ").SetText(fiscal.OnlyDigits(r.cfg.IssuerCNPJ))
	emit.CreateElement("xNome").SetText(r.cfg.IssuerName)
}

func writeDest(inf *etree.Element, inv *entity.Invoice) {
	dest := inf.CreateElement("dest")
	digits := fiscal.OnlyDigits(inv.CustomerTaxID)
	switch len(digits) {
	case 11:
		dest.CreateElement("CPF").SetText(digits)
	case 14:
		dest.CreateElement("CNPJ").SetText(digits)
	default:
		dest.CreateElement("idEstrangeiro").SetText(inv.CustomerTaxID)
	}
	dest.CreateElement("xNome").SetText(inv.CustomerName)
}

func writeDet(inf *etree.Element, n int, it entity.LineItem) {
	det := inf.CreateElement("det")
	det.CreateAttr("nItem", strconv.Itoa(n))
	prod := det.CreateElement("prod")
	prod.CreateElement("cProd").SetText(strconv.Itoa(n))
	prod.CreateElement("xProd").SetText(it.Description)
	if it.NCM != "" {
		prod.CreateElement("NCM").SetText(it.NCM)
	}
	if it.CFOP != "" {
		prod.CreateElement("CFOP").SetText(it.CFOP)
	}
	prod.CreateElement("qCom").SetText(strconv.Itoa(it.Quantity) + ".0000")
	prod.CreateElement("vUnCom").SetText(it.UnitPrice.StringFixed(2))
	prod.CreateElement("vProd").SetText(it.Subtotal().StringFixed(2))
}
