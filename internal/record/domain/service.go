package domain

import (
	"context"
	"errors"
)

// MaxBatchSize caps a single batch submission.
const MaxBatchSize = 100

type SubmitRequest struct {
	ID     string   `json:"id"`
	Owner  string   `json:"owner"`
	Keys   []string `json:"keys"`
	Values []string `json:"values"`
}

type Service interface {
	// Submit appends one record. Caller must be an active agent.
	Submit(ctx context.Context, caller string, req SubmitRequest) (*ConsumptionRecord, error)
	// SubmitBatch appends up to MaxBatchSize records all-or-nothing.
	SubmitBatch(ctx context.Context, caller string, reqs []SubmitRequest) ([]*ConsumptionRecord, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Get returns a zero-valued record when the id is unknown, so callers can
	// probe without error handling.
	Get(ctx context.Context, id string) (ConsumptionRecord, error)
	// GetByOwner returns the owner's record ids in insertion order.
	GetByOwner(ctx context.Context, owner string) ([]string, error)
}

// Reader is the cross-ledger surface the consumption unit ledger validates
// linked records against.
type Reader interface {
	Exists(ctx context.Context, id string) (bool, error)
}

var (
	ErrAgentNotActive   = errors.New("agent_not_active")
	ErrInvalidID        = errors.New("invalid_record_id")
	ErrInvalidOwner     = errors.New("invalid_record_owner")
	ErrAlreadyExists    = errors.New("record_already_exists")
	ErrMetadataMismatch = errors.New("metadata_length_mismatch")
	ErrEmptyKey         = errors.New("empty_metadata_key")
	ErrEmptyBatch       = errors.New("empty_batch")
	ErrBatchTooLarge    = errors.New("batch_too_large")
)
