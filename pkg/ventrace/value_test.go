package ventrace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

func TestValueAccessorsRoundTrip(t *testing.T) {
	n := ventrace.NewNumber(3.5)
	d, err := n.AsDouble()
	require.NoError(t, err)
	assert.Equal(t, 3.5, d)

	i, err := n.AsInt()
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	b := ventrace.NewBool(true)
	bv, err := b.AsBool()
	require.NoError(t, err)
	assert.True(t, bv)

	sym := ventrace.NewSymbol("weight")
	s, err := sym.AsSymbol()
	require.NoError(t, err)
	assert.Equal(t, "weight", s)
}

func TestValueAccessorTypeMismatch(t *testing.T) {
	n := ventrace.NewNumber(1)
	_, err := n.AsBool()
	require.Error(t, err)
	var typeErr *ventrace.TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, ventrace.KindBool, typeErr.Expected)
	assert.Equal(t, ventrace.KindNumber, typeErr.Got)
}

func TestValueEqualStructural(t *testing.T) {
	a := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(1), ventrace.NewSymbol("x")})
	b := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(1), ventrace.NewSymbol("x")})
	c := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(1), ventrace.NewSymbol("y")})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, ventrace.Nil().Equal(ventrace.Nil()))

	p1 := ventrace.NewPair(ventrace.NewNumber(1), ventrace.Nil())
	p2 := ventrace.NewPair(ventrace.NewNumber(1), ventrace.Nil())
	assert.True(t, p1.Equal(p2))
}

func TestValueAsListRejectsImproperList(t *testing.T) {
	improper := ventrace.NewPair(ventrace.NewNumber(1), ventrace.NewNumber(2))
	_, err := improper.AsList()
	require.Error(t, err)

	proper := ventrace.NewPair(ventrace.NewNumber(1), ventrace.NewPair(ventrace.NewNumber(2), ventrace.Nil()))
	elems, err := proper.AsList()
	require.NoError(t, err)
	require.Len(t, elems, 2)
	v0, _ := elems[0].AsDouble()
	v1, _ := elems[1].AsDouble()
	assert.Equal(t, 1.0, v0)
	assert.Equal(t, 2.0, v1)
}

func TestValueHashAgreesWithEqual(t *testing.T) {
	a := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(2), ventrace.NewBool(false)})
	b := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(2), ventrace.NewBool(false)})
	assert.Equal(t, a.Hash(), b.Hash())

	c := ventrace.NewArray([]*ventrace.Value{ventrace.NewNumber(3), ventrace.NewBool(false)})
	assert.NotEqual(t, a.Hash(), c.Hash())
}
