// Package events implements the transactional outbox that forms the audit
// trail of the ledgers. Every successful write appends event rows inside the
// same database transaction as the state change, so the trail and the state
// can never diverge.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is one append-only audit row.
type Event struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	EventType string         `gorm:"type:text;not null;index"`
	EntityID  string         `gorm:"type:text;not null;index"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "ledger_events" }

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
}

// Outbox appends audit events on a caller-provided transaction handle.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(p Params) *Outbox {
	return &Outbox{
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
	}
}

// Emit writes one event row on tx. The caller owns the transaction boundary;
// a rolled back submission takes its events down with it.
func (o *Outbox) Emit(ctx context.Context, tx *gorm.DB, eventType, entityID string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := Event{
		ID:        o.genID.Generate(),
		EventType: eventType,
		EntityID:  entityID,
		Payload:   datatypes.JSON(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return err
	}

	o.log.Debug("event emitted",
		zap.String("event_type", eventType),
		zap.String("entity_id", entityID),
	)
	return nil
}
