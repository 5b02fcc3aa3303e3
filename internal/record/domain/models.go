// Package domain contains the consumption record ledger models.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MetadataPair is one ordered key/value attachment on a record.
type MetadataPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConsumptionRecord is an atomic consumption attestation. Immutable once
// committed; keyed by its caller-computed content hash.
type ConsumptionRecord struct {
	ID          string         `gorm:"primaryKey;type:text" json:"id"`
	Owner       string         `gorm:"type:text;not null;index" json:"owner"`
	SubmittedBy string         `gorm:"type:text;not null" json:"submitted_by"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	Ordinal     snowflake.ID   `gorm:"not null;index" json:"-"`
}

// TableName sets the database table name.
func (ConsumptionRecord) TableName() string { return "consumption_records" }

// SetMetadata encodes the ordered pairs into the persisted column.
func (r *ConsumptionRecord) SetMetadata(pairs []MetadataPair) error {
	raw, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	r.Metadata = datatypes.JSON(raw)
	return nil
}

// MetadataPairs decodes the persisted column back into ordered pairs.
func (r *ConsumptionRecord) MetadataPairs() ([]MetadataPair, error) {
	if len(r.Metadata) == 0 {
		return nil, nil
	}
	var pairs []MetadataPair
	if err := json.Unmarshal(r.Metadata, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}
