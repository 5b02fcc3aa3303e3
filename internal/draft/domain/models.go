// Package domain contains the tribute draft ledger models.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridsettle/tributary/pkg/atto"
	"gorm.io/datatypes"
)

// TributeDraft nets one owner's consumption units for a single currency and
// settlement day into one settlement claim.
type TributeDraft struct {
	ID            string         `gorm:"primaryKey;type:text" json:"id"`
	Owner         string         `gorm:"type:text;not null;index" json:"owner"`
	Currency      uint32         `gorm:"not null" json:"currency"`
	SettlementDay uint32         `gorm:"not null" json:"settlement_day"`
	AmountBase    uint64         `gorm:"not null" json:"amount_base"`
	AmountAtto    uint64         `gorm:"not null" json:"amount_atto"`
	LinkedUnits   datatypes.JSON `gorm:"type:jsonb;not null" json:"linked_unit_ids"`
	SubmittedAt   time.Time      `gorm:"not null" json:"submitted_at"`
	Ordinal       snowflake.ID   `gorm:"not null;index" json:"-"`
}

// TableName sets the database table name.
func (TributeDraft) TableName() string { return "tribute_drafts" }

// Amount returns the aggregated settlement amount as a value object.
func (d TributeDraft) Amount() atto.Amount {
	return atto.Amount{Base: d.AmountBase, Atto: d.AmountAtto}
}

// SetLinkedUnits encodes the ordered unit ids into the persisted column.
func (d *TributeDraft) SetLinkedUnits(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	d.LinkedUnits = datatypes.JSON(raw)
	return nil
}

// LinkedUnitIDs decodes the persisted column.
func (d *TributeDraft) LinkedUnitIDs() ([]string, error) {
	if len(d.LinkedUnits) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(d.LinkedUnits, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ConsumedUnit marks a consumption unit as permanently aggregated into a
// draft. The primary key doubles as the concurrency compare-and-set.
type ConsumedUnit struct {
	UnitID     string    `gorm:"primaryKey;type:text"`
	DraftID    string    `gorm:"type:text;not null"`
	ConsumedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (ConsumedUnit) TableName() string { return "consumed_units" }
