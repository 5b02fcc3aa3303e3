// Package hexid normalizes the hex-encoded identifiers used on the wire:
// 32-byte content hashes for ledger entities and 20-byte account addresses.
// Identifiers are stored lowercase with a 0x prefix.
package hexid

import (
	"errors"
	"strings"
)

const (
	hashHexLen    = 64
	addressHexLen = 40
)

var (
	ErrInvalidHash    = errors.New("invalid_hash")
	ErrZeroHash       = errors.New("zero_hash")
	ErrInvalidAddress = errors.New("invalid_address")
	ErrZeroAddress    = errors.New("zero_address")
)

// ParseHash normalizes a 32-byte hex hash. The zero hash is rejected.
func ParseHash(raw string) (string, error) {
	digits, err := normalize(raw, hashHexLen)
	if err != nil {
		return "", ErrInvalidHash
	}
	if isZero(digits) {
		return "", ErrZeroHash
	}
	return "0x" + digits, nil
}

// ParseAddress normalizes a 20-byte hex address. The zero address is rejected.
func ParseAddress(raw string) (string, error) {
	digits, err := normalize(raw, addressHexLen)
	if err != nil {
		return "", ErrInvalidAddress
	}
	if isZero(digits) {
		return "", ErrZeroAddress
	}
	return "0x" + digits, nil
}

func normalize(raw string, wantLen int) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "0x")
	if len(value) != wantLen {
		return "", errors.New("bad length")
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", errors.New("bad digit")
		}
	}
	return value, nil
}

func isZero(digits string) bool {
	for _, r := range digits {
		if r != '0' {
			return false
		}
	}
	return true
}
