package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIDDeterministic(t *testing.T) {
	owner := "0xabababababababababababababababababababab"
	unitIDs := []string{"0xaa", "0xbb"}

	first := DeriveID(owner, 20260301, unitIDs)
	second := DeriveID(owner, 20260301, unitIDs)
	assert.Equal(t, first, second)

	assert.Len(t, first, 66)
	assert.Equal(t, "0x", first[:2])
}

func TestDeriveIDSensitivity(t *testing.T) {
	owner := "0xabababababababababababababababababababab"
	base := DeriveID(owner, 20260301, []string{"0xaa", "0xbb"})

	assert.NotEqual(t, base, DeriveID(owner, 20260301, []string{"0xbb", "0xaa"}))
	assert.NotEqual(t, base, DeriveID(owner, 20260302, []string{"0xaa", "0xbb"}))
	assert.NotEqual(t, base, DeriveID("0xcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd", 20260301, []string{"0xaa", "0xbb"}))
}

func TestDeriveIDLayout(t *testing.T) {
	owner := "0xabababababababababababababababababababab"
	unitIDs := []string{"0xaa", "0xbb"}

	h := sha256.New()
	h.Write([]byte(owner))
	var day [4]byte
	binary.BigEndian.PutUint32(day[:], 20260301)
	h.Write(day[:])
	for _, id := range unitIDs {
		h.Write([]byte(id))
	}
	expected := "0x" + hex.EncodeToString(h.Sum(nil))

	assert.Equal(t, expected, DeriveID(owner, 20260301, unitIDs))
}
