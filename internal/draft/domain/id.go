package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DeriveID computes the deterministic draft id from the owner, the settlement
// day and the referenced unit ids in submission order. The same inputs always
// produce the same id, so a draft is reproducible from what it aggregates.
func DeriveID(owner string, settlementDay uint32, unitIDs []string) string {
	h := sha256.New()
	h.Write([]byte(owner))

	var day [4]byte
	binary.BigEndian.PutUint32(day[:], settlementDay)
	h.Write(day[:])

	for _, id := range unitIDs {
		h.Write([]byte(id))
	}

	return "0x" + hex.EncodeToString(h.Sum(nil))
}
