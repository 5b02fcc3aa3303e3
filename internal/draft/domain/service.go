package domain

import (
	"context"
	"errors"

	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
)

// MaxPageSize caps a single GetByOwner window.
const MaxPageSize = 50

type Service interface {
	// Submit aggregates the referenced units into one draft. The caller is
	// the claimed owner and must own every referenced unit.
	Submit(ctx context.Context, caller string, linkedUnitIDs []string) (*TributeDraft, error)
	Get(ctx context.Context, id string) (*TributeDraft, error)
	// GetByOwner reads the inclusive window [indexFrom, indexTo] of the
	// owner's draft ids in insertion order.
	GetByOwner(ctx context.Context, owner string, indexFrom, indexTo uint64) ([]string, error)

	// SetUnitLedger repoints the upstream unit ledger. Owner-only.
	SetUnitLedger(caller string, ledger unitdomain.Reader) error
	// UnitLedger returns the currently configured upstream ledger.
	UnitLedger() unitdomain.Reader
}

var (
	ErrNotAuthorized    = errors.New("not_authorized")
	ErrInvalidOwner     = errors.New("invalid_draft_owner")
	ErrEmptyLinkedUnits = errors.New("empty_linked_units")
	ErrDuplicateUnit    = errors.New("duplicate_or_consumed_unit")
	ErrUnitNotFound     = errors.New("unit_not_found")
	ErrNotSameOwner     = errors.New("not_same_owner")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrDayMismatch      = errors.New("settlement_day_mismatch")
	ErrNotFound         = errors.New("draft_not_found")
	ErrInvalidRange     = errors.New("invalid_range")
	ErrPageTooLarge     = errors.New("page_too_large")
	ErrIndexOutOfBounds = errors.New("index_out_of_bounds")
	ErrNoUnitLedger     = errors.New("unit_ledger_not_configured")
)
