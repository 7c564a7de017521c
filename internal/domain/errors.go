package domain

import (
	"errors"
	"sort"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrLedgerWrite       = errors.New("no se pudo registrar el asiento en el flujo de caja")
	ErrUnauthorized      = errors.New("no autorizado")
)

// ValidationError lista los campos faltantes o inválidos de una solicitud.
// errors.Is(err, ErrInvalidInput) es verdadero para cualquier ValidationError.
type ValidationError struct {
	Fields map[string]string // campo -> motivo
}

// NewValidationError construye el error a partir del mapa campo -> motivo.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	names := e.FieldNames()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Fields[n])
	}
	return "validación fallida (" + strings.Join(parts, "; ") + ")"
}

// Is permite errors.Is(err, domain.ErrInvalidInput).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// FieldNames devuelve los nombres de campo ordenados.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
