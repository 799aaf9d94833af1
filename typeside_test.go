package catrust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNullSemantics(t *testing.T) {
	n := NullValue()
	s := StringValue("x")

	assert.False(t, Compare(n, OpEq, s))
	assert.True(t, Compare(n, OpNeq, s))
	assert.True(t, Compare(n, OpNeq, n))
	assert.False(t, Compare(n, OpLt, s))
}

func TestCompareIntFloatPromotion(t *testing.T) {
	assert.True(t, Compare(IntValue(3), OpEq, FloatValue(3.0)))
	assert.True(t, Compare(FloatValue(2.5), OpLt, IntValue(3)))
}

func TestCompareFloatEpsilon(t *testing.T) {
	a := FloatValue(1.0000000001)
	b := FloatValue(1.0)
	assert.True(t, Compare(a, OpEq, b))
	assert.False(t, Compare(FloatValue(1.1), OpEq, b))
}

func TestCompareIncompatibleSortsIsFalse(t *testing.T) {
	assert.False(t, Compare(StringValue("1"), OpEq, IntValue(1)))
}

func TestCompareCustomSort(t *testing.T) {
	a := CustomValue("uuid", "abc")
	b := CustomValue("uuid", "abc")
	c := CustomValue("other", "abc")
	assert.True(t, Compare(a, OpEq, b))
	assert.False(t, Compare(a, OpEq, c))
}

func TestTypesideRegistry(t *testing.T) {
	r := NewTypesideRegistry()
	assert.False(t, r.HasCustomSort("uuid"))
	r.RegisterCustomSort("uuid")
	assert.True(t, r.HasCustomSort("uuid"))
	assert.Contains(t, r.CustomSorts(), "uuid")
}
