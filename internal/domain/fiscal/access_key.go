// Package fiscal contiene las reglas de formato de los identificadores de documentos fiscales
// brasileños (chave de acesso, número, protocolo), independientes de la infraestructura.
package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AccessKeyLength longitud fija de la chave de acesso.
const AccessKeyLength = 44

// Series serie usada por todas las notas emitidas por este servicio.
const Series = "1"

// Modelos de documento dentro de la chave.
const (
	ModelNFe  = "55" // NF-e (mercancías)
	ModelNFSe = "99" // NFS-e (servicios); convención interna, la NFS-e municipal no define modelo
)

// Rand fuente de aleatoriedad inyectable (*math/rand.Rand la satisface).
type Rand interface {
	Intn(n int) int
}

// AccessKeyParams componentes de la chave de acesso.
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1)
type AccessKeyParams struct {
	UF             string    // código IBGE de la UF del emisor
	IssuedAt       time.Time // AAMM
	IssuerCNPJ     string    // se toman solo los dígitos
	Model          string
	Series         string
	DocumentNumber string
}

// GenerateAccessKey arma la chave de 44 dígitos: 43 posiciones + dígito verificador módulo 11.
// cNF (código numérico) se sortea con rnd.
func GenerateAccessKey(rnd Rand, p AccessKeyParams) (string, error) {
	uf := padDigits(p.UF, 2)
	cnpj := padDigits(p.IssuerCNPJ, 14)
	model := padDigits(p.Model, 2)
	serie := padDigits(p.Series, 3)
	nnf := padDigits(p.DocumentNumber, 9)
	if uf == "" || cnpj == "" || model == "" || serie == "" || nnf == "" {
		return "", fmt.Errorf("fiscal: componente de chave excede su longitud: %+v", p)
	}
	var sb strings.Builder
	sb.Grow(AccessKeyLength)
	sb.WriteString(uf)
	sb.WriteString(p.IssuedAt.Format("0601"))
	sb.WriteString(cnpj)
	sb.WriteString(model)
	sb.WriteString(serie)
	sb.WriteString(nnf)
	sb.WriteString("1") // tpEmis: emisión normal
	sb.WriteString(randomDigits(rnd, 8))
	base := sb.String()
	return base + strconv.Itoa(CheckDigit(base)), nil
}

// CheckDigit calcula el dígito verificador módulo 11 (pesos 2..9 de derecha a izquierda).
func CheckDigit(digits string) int {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// ValidAccessKey verifica longitud, que sean solo dígitos y el dígito verificador.
func ValidAccessKey(key string) bool {
	if len(key) != AccessKeyLength || !IsDigits(key) {
		return false
	}
	return int(key[AccessKeyLength-1]-'0') == CheckDigit(key[:AccessKeyLength-1])
}

// IsDigits es verdadero si s no está vacío y solo contiene 0-9.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// OnlyDigits elimina puntos, guiones, barras y espacios de un CPF/CNPJ.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// padDigits deja solo dígitos y rellena con ceros a la izquierda; "" si excede n.
func padDigits(s string, n int) string {
	d := OnlyDigits(s)
	if len(d) > n {
		return ""
	}
	return strings.Repeat("0", n-len(d)) + d
}

func randomDigits(rnd Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + rnd.Intn(10))
	}
	return string(b)
}
