package sefaz

import (
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// NewStaticAuthority SEFAZ sin latencia que siempre autoriza (approve=true) o siempre
// rechaza con el fallo de comunicación. Útil en pruebas y para forzar un resultado
// (SEFAZ_MODE=approve|reject).
func NewStaticAuthority(approve bool, cfg SimulatedConfig, log *logger.Logger) *SimulatedAuthority {
	cfg.Delay = 0
	cfg.SuccessRate = 0
	if approve {
		cfg.SuccessRate = 1
	}
	return NewSimulatedAuthority(cfg, nil, log)
}
