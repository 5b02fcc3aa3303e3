package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Register creates an agent with status Active. Owner-only.
	Register(ctx context.Context, caller, address, displayName string) (*Agent, error)
	// UpdateStatus overwrites the agent status. Owner-only.
	UpdateStatus(ctx context.Context, caller, address string, status Status) error
	// IsActive reports whether the address is registered with status Active.
	IsActive(ctx context.Context, address string) (bool, error)
	Get(ctx context.Context, address string) (*Agent, error)
	// ListAll returns every registered address in insertion order.
	ListAll(ctx context.Context) ([]string, error)
}

// Gate is the authorization surface the write-side ledgers consume.
type Gate interface {
	IsActive(ctx context.Context, address string) (bool, error)
}

var (
	ErrNotAuthorized     = errors.New("not_authorized")
	ErrInvalidAddress    = errors.New("invalid_agent_address")
	ErrAlreadyRegistered = errors.New("agent_already_registered")
	ErrEmptyName         = errors.New("empty_display_name")
	ErrNotFound          = errors.New("agent_not_found")
	ErrInvalidStatus     = errors.New("invalid_status")
)
