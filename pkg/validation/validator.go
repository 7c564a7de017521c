// Package validation envuelve go-playground/validator con nombres de campo JSON y
// mensajes legibles, para que los casos de uso reporten todos los campos inválidos juntos.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxAmount mayor importe representable en las columnas NUMERIC(15,2).
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// Errors mapa campo -> motivo. Nil cuando la validación pasa.
type Errors map[string]string

// Validator instancia reutilizable (segura para uso concurrente).
type Validator struct {
	v *validator.Validate
}

// New registra nombres JSON y las validaciones propias ("nonneg_decimal", "max_amount").
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("nonneg_decimal", nonNegativeDecimal)
	_ = v.RegisterValidation("max_amount", withinMaxAmount)
	return &Validator{v: v}
}

// Struct valida s y devuelve los campos inválidos; error solo para fallos de programación.
func (val *Validator) Struct(s any) (Errors, error) {
	err := val.v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validation: %w", err)
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out, nil
}

// fieldPath quita el nombre del struct raíz: "CreateInvoiceRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es obligatorio"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("debe tener al menos %s elemento(s)", fe.Param())
		}
		return fmt.Sprintf("debe ser al menos %s", fe.Param())
	case "gt":
		return fmt.Sprintf("debe ser mayor que %s", fe.Param())
	case "gte":
		return fmt.Sprintf("debe ser mayor o igual a %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("debe ser uno de: %s", fe.Param())
	case "len":
		return fmt.Sprintf("debe tener %s caracteres", fe.Param())
	case "numeric":
		return "debe contener solo dígitos"
	case "nonneg_decimal":
		return "debe ser un número no negativo"
	case "max_amount":
		return "excede el importe máximo " + MaxAmount.StringFixed(2)
	}
	return "es inválido"
}

// nonNegativeDecimal acepta strings que parsean como decimal >= 0.
func nonNegativeDecimal(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

// withinMaxAmount acepta strings decimales que no superan MaxAmount.
func withinMaxAmount(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.LessThanOrEqual(MaxAmount)
}
