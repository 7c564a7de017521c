package fiscal

import (
	"strconv"
	"time"
)

// Rango del número de documento (6 dígitos).
const (
	minDocumentNumber = 100000
	maxDocumentNumber = 999999
)

// GenerateDocumentNumber sortea un nNF de 6 dígitos.
func GenerateDocumentNumber(rnd Rand) string {
	return strconv.Itoa(minDocumentNumber + rnd.Intn(maxDocumentNumber-minDocumentNumber+1))
}

// GenerateProtocol número de protocolo: timestamp en milisegundos + sufijo aleatorio 0-999.
// Solo se exige que sea único por llamada; no se interpreta.
func GenerateProtocol(now time.Time, rnd Rand) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + strconv.Itoa(rnd.Intn(1000))
}

// ValidDocumentNumber verifica el formato de 6 dígitos.
func ValidDocumentNumber(s string) bool {
	return len(s) == 6 && IsDigits(s)
}
