package hexid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHash(t *testing.T) {
	raw := "0xABCDEF" + strings.Repeat("1", 58)
	got, err := ParseHash(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef"+strings.Repeat("1", 58), got)

	// 0x prefix is optional
	bare, err := ParseHash(strings.Repeat("a", 64))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("a", 64), bare)
}

func TestParseHashRejects(t *testing.T) {
	_, err := ParseHash("")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ParseHash("0x1234")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ParseHash(strings.Repeat("g", 64))
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ParseHash("0x" + strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrZeroHash)
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(" 0xAa" + strings.Repeat("b", 38) + " ")
	require.NoError(t, err)
	assert.Equal(t, "0xaa"+strings.Repeat("b", 38), got)

	_, err = ParseAddress("0x" + strings.Repeat("0", 40))
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = ParseAddress("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
