package functions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/domain"
	"sldpreview/internal/functions"
)

func TestDefault_LookupIsCaseInsensitive(t *testing.T) {
	sig, ok := functions.Default().Lookup("STRLENGTH")
	require.True(t, ok)
	assert.Equal(t, domain.TypeInteger, sig.Returns)
	assert.Equal(t, domain.TypeString, sig.ParamType(0))
	assert.Equal(t, domain.TypeAny, sig.ParamType(1))
}

func TestSignature_VariadicRepeatsLastParam(t *testing.T) {
	sig, ok := functions.Default().Lookup("Interpolate")
	require.True(t, ok)
	assert.Equal(t, domain.TypeDouble, sig.ParamType(0))
	assert.Equal(t, domain.TypeAny, sig.ParamType(1))
	assert.Equal(t, domain.TypeAny, sig.ParamType(7))
}

func TestRegistry_Register(t *testing.T) {
	r := functions.NewRegistry()
	_, ok := r.Lookup("heading")
	assert.False(t, ok)

	r.Register(functions.Signature{Name: "heading", Params: []domain.ScalarType{domain.TypeGeometry}, Returns: domain.TypeDouble})
	sig, ok := r.Lookup("Heading")
	require.True(t, ok)
	assert.Equal(t, domain.TypeDouble, sig.Returns)
	assert.Equal(t, []string{"heading"}, r.Names())
}
