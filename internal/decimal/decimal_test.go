package decimal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesDeclaredScale(t *testing.T) {
	d, err := Parse("1000.00")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), d.Scale)
	assert.Equal(t, "1000.00", d.String())
}

func TestCmpComparesAcrossDifferentScales(t *testing.T) {
	a, _ := Parse("1.5")
	b, _ := Parse("1.50")
	assert.Equal(t, 0, Cmp(a, b))

	c, _ := Parse("1.4")
	assert.Equal(t, 1, Cmp(a, c))
}

func TestMulScaleIsSumOfOperandScales(t *testing.T) {
	a, _ := Parse("1.25")
	b, _ := Parse("2.0")
	result := Mul(a, b)
	assert.Equal(t, uint32(3), result.Scale)
	assert.Equal(t, "2.500", result.String())
}

func TestFitsPrecisionScaleRejectsOverflow(t *testing.T) {
	d, _ := Parse("12345.67")
	assert.True(t, FitsPrecisionScale(d, 7, 2))
	assert.False(t, FitsPrecisionScale(d, 5, 2))
}

func TestAddRescalesToLargerOperand(t *testing.T) {
	a, _ := Parse("1.1")
	b, _ := Parse("2.22")
	result := Add(a, b)
	assert.Equal(t, "3.32", result.String())
}
