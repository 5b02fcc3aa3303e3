// Package atto implements the fixed-point settlement amount used across the
// ledgers: an integer base component plus a fractional component scaled by
// 10^18 ("atto" units).
package atto

import "errors"

// Factor is the number of atto units in one base unit.
const Factor uint64 = 1_000_000_000_000_000_000

var (
	ErrFractionTooLarge = errors.New("fraction_exceeds_factor")
	ErrOverflow         = errors.New("amount_overflow")
)

// Amount is a settlement amount. Atto must stay strictly below Factor.
type Amount struct {
	Base uint64 `json:"base"`
	Atto uint64 `json:"atto"`
}

// IsZero reports whether both components are zero.
func (a Amount) IsZero() bool {
	return a.Base == 0 && a.Atto == 0
}

// Validate checks the fixed-point encoding.
func (a Amount) Validate() error {
	if a.Atto >= Factor {
		return ErrFractionTooLarge
	}
	return nil
}

// Add returns a+b with carry from the fractional into the base component.
// Both operands must be valid encodings.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	if err := b.Validate(); err != nil {
		return Amount{}, err
	}

	// Each operand is < Factor, so the raw sum fits in uint64.
	atto := a.Atto + b.Atto
	carry := atto / Factor
	atto %= Factor

	base := a.Base + b.Base
	if base < a.Base {
		return Amount{}, ErrOverflow
	}
	base += carry
	if base < carry {
		return Amount{}, ErrOverflow
	}

	return Amount{Base: base, Atto: atto}, nil
}
