package atto

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCarriesFraction(t *testing.T) {
	a := Amount{Base: 0, Atto: 700_000_000_000_000_000}
	b := Amount{Base: 0, Atto: 500_000_000_000_000_000}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sum.Base)
	assert.Equal(t, uint64(200_000_000_000_000_000), sum.Atto)
}

func TestAddNoCarry(t *testing.T) {
	sum, err := Amount{Base: 100, Atto: 1}.Add(Amount{Base: 23, Atto: 2})
	require.NoError(t, err)
	assert.Equal(t, Amount{Base: 123, Atto: 3}, sum)
}

func TestAddExactFactor(t *testing.T) {
	half := Amount{Base: 0, Atto: Factor / 2}
	sum, err := half.Add(half)
	require.NoError(t, err)
	assert.Equal(t, Amount{Base: 1, Atto: 0}, sum)
}

func TestAddRejectsInvalidOperand(t *testing.T) {
	_, err := Amount{Base: 0, Atto: Factor}.Add(Amount{Base: 1})
	assert.ErrorIs(t, err, ErrFractionTooLarge)

	_, err = Amount{Base: 1}.Add(Amount{Base: 0, Atto: Factor + 1})
	assert.ErrorIs(t, err, ErrFractionTooLarge)
}

func TestAddBaseOverflow(t *testing.T) {
	_, err := Amount{Base: math.MaxUint64}.Add(Amount{Base: 1})
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Amount{Base: math.MaxUint64, Atto: Factor - 1}.Add(Amount{Base: 0, Atto: 1})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Amount{Base: 0, Atto: Factor - 1}.Validate())
	assert.ErrorIs(t, Amount{Atto: Factor}.Validate(), ErrFractionTooLarge)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Amount{}.IsZero())
	assert.False(t, Amount{Base: 1}.IsZero())
	assert.False(t, Amount{Atto: 1}.IsZero())
}
