// Package domain contains the consumption unit ledger models.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gridsettle/tributary/pkg/atto"
	"gorm.io/datatypes"
)

// ConsumptionUnit rolls previously committed consumption records into one
// settlement-bearing batch for a single owner, day and currency.
type ConsumptionUnit struct {
	ID            string         `gorm:"primaryKey;type:text" json:"id"`
	Owner         string         `gorm:"type:text;not null;index" json:"owner"`
	SubmittedBy   string         `gorm:"type:text;not null" json:"submitted_by"`
	Currency      uint32         `gorm:"not null" json:"currency"`
	SettlementDay uint32         `gorm:"not null" json:"settlement_day"`
	AmountBase    uint64         `gorm:"not null" json:"amount_base"`
	AmountAtto    uint64         `gorm:"not null" json:"amount_atto"`
	LinkedRecords datatypes.JSON `gorm:"type:jsonb;not null" json:"linked_record_ids"`
	SubmittedAt   time.Time      `gorm:"not null" json:"submitted_at"`
	Ordinal       snowflake.ID   `gorm:"not null;index" json:"-"`
}

// TableName sets the database table name.
func (ConsumptionUnit) TableName() string { return "consumption_units" }

// Amount returns the settlement amount as a value object.
func (u ConsumptionUnit) Amount() atto.Amount {
	return atto.Amount{Base: u.AmountBase, Atto: u.AmountAtto}
}

// SetLinkedRecords encodes the ordered record ids into the persisted column.
func (u *ConsumptionUnit) SetLinkedRecords(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	u.LinkedRecords = datatypes.JSON(raw)
	return nil
}

// LinkedRecordIDs decodes the persisted column.
func (u *ConsumptionUnit) LinkedRecordIDs() ([]string, error) {
	if len(u.LinkedRecords) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(u.LinkedRecords, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ConsumedRecord marks a consumption record as permanently attached to a
// unit. The primary key is the compare-and-set: a second submission touching
// the same record id fails on the unique constraint and rolls back whole.
type ConsumedRecord struct {
	RecordID   string    `gorm:"primaryKey;type:text"`
	UnitID     string    `gorm:"type:text;not null"`
	ConsumedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (ConsumedRecord) TableName() string { return "consumed_records" }
