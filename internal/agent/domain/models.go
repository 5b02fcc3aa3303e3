// Package domain contains the agent registry models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the lifecycle state of a reporting agent.
type Status int16

const (
	StatusInactive Status = iota
	StatusActive
	StatusSuspended
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusSuspended:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Agent is a registered consumption reporting agent. Registration is
// append-only; only the status field is ever rewritten.
type Agent struct {
	Address      string       `gorm:"primaryKey;type:text" json:"address"`
	DisplayName  string       `gorm:"type:text;not null" json:"display_name"`
	Status       Status       `gorm:"not null" json:"status"`
	RegisteredAt time.Time    `gorm:"not null" json:"registered_at"`
	Ordinal      snowflake.ID `gorm:"not null;index" json:"-"`
}

// TableName sets the database table name.
func (Agent) TableName() string { return "agents" }
