package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nota-fiscal-api/pkg/validation"
)

type item struct {
	Quantity int    `json:"quantity" validate:"gt=0"`
	Price    string `json:"price" validate:"required,nonneg_decimal,max_amount"`
}

type payload struct {
	Name  string `json:"name" validate:"required"`
	Kind  string `json:"kind" validate:"required,oneof=a b"`
	Items []item `json:"items" validate:"required,min=1,dive"`
}

func TestStruct_Valid(t *testing.T) {
	errs, err := validation.New().Struct(payload{Name: "x", Kind: "a", Items: []item{{Quantity: 1, Price: "0"}}})
	require.NoError(t, err)
	assert.Nil(t, errs)
}

func TestStruct_ReportsEveryFieldWithJSONPath(t *testing.T) {
	errs, err := validation.New().Struct(payload{
		Kind:  "z",
		Items: []item{{Quantity: 0, Price: "-1"}, {Quantity: 2, Price: "abc"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "es obligatorio", errs["name"])
	assert.Contains(t, errs["kind"], "uno de")
	assert.Equal(t, "debe ser mayor que 0", errs["items[0].quantity"])
	assert.Equal(t, "debe ser un número no negativo", errs["items[0].price"])
	assert.Equal(t, "debe ser un número no negativo", errs["items[1].price"])
	assert.NotContains(t, errs, "items[1].quantity")
}

func TestStruct_EmptySlice(t *testing.T) {
	errs, err := validation.New().Struct(payload{Name: "x", Kind: "a", Items: []item{}})
	require.NoError(t, err)
	assert.Contains(t, errs, "items")
}

func TestStruct_MaxAmount(t *testing.T) {
	v := validation.New()

	errs, err := v.Struct(payload{Name: "x", Kind: "a", Items: []item{{Quantity: 1, Price: "9999999999999.99"}}})
	require.NoError(t, err)
	assert.Nil(t, errs)

	errs, err = v.Struct(payload{Name: "x", Kind: "a", Items: []item{{Quantity: 1, Price: "10000000000000"}, {Quantity: 1, Price: "1e9000"}}})
	require.NoError(t, err)
	assert.Equal(t, "excede el importe máximo 9999999999999.99", errs["items[0].price"])
	assert.Contains(t, errs, "items[1].price")
}
