package domain

import (
	"context"
	"errors"

	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
)

// MaxBatchSize caps a single batch submission.
const MaxBatchSize = 100

type SubmitRequest struct {
	ID              string   `json:"id"`
	Owner           string   `json:"owner"`
	Currency        uint32   `json:"currency"`
	SettlementDay   uint32   `json:"settlement_day"`
	AmountBase      uint64   `json:"amount_base"`
	AmountAtto      uint64   `json:"amount_atto"`
	LinkedRecordIDs []string `json:"linked_record_ids"`
}

type Service interface {
	// Submit appends one unit and permanently consumes its linked records.
	// Caller must be an active agent.
	Submit(ctx context.Context, caller string, req SubmitRequest) (*ConsumptionUnit, error)
	// SubmitBatch appends up to MaxBatchSize units all-or-nothing.
	SubmitBatch(ctx context.Context, caller string, reqs []SubmitRequest) ([]*ConsumptionUnit, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Get returns a zero-valued unit when the id is unknown.
	Get(ctx context.Context, id string) (ConsumptionUnit, error)
	// GetByOwner returns the owner's unit ids in insertion order.
	GetByOwner(ctx context.Context, owner string) ([]string, error)

	// SetRecordLedger repoints the upstream record ledger. Owner-only.
	SetRecordLedger(caller string, ledger recorddomain.Reader) error
	// RecordLedger returns the currently configured upstream ledger.
	RecordLedger() recorddomain.Reader
}

// Reader is the cross-ledger surface the tribute draft ledger reads units
// through.
type Reader interface {
	Get(ctx context.Context, id string) (ConsumptionUnit, error)
}

var (
	ErrNotAuthorized         = errors.New("not_authorized")
	ErrAgentNotActive        = errors.New("agent_not_active")
	ErrInvalidID             = errors.New("invalid_unit_id")
	ErrInvalidOwner          = errors.New("invalid_unit_owner")
	ErrAlreadyExists         = errors.New("unit_already_exists")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrEmptyLinkedRecords    = errors.New("empty_linked_records")
	ErrDuplicateLinkedRecord = errors.New("duplicate_linked_record")
	ErrRecordAlreadyConsumed = errors.New("record_already_consumed")
	ErrRecordNotFound        = errors.New("record_not_found")
	ErrEmptyBatch            = errors.New("empty_batch")
	ErrBatchTooLarge         = errors.New("batch_too_large")
	ErrNoRecordLedger        = errors.New("record_ledger_not_configured")
)
