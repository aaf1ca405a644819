package schema

import "time"

// AnchorReceipt is the receipts journal row: one row per confirmed anchor
// transaction. The journal is the worker's own durable record; upstream
// systems still persist the transaction id alongside their record.
type AnchorReceipt struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventID is the ULID assigned to the receipt event
	EventID string `gorm:"column:event_id;not null;uniqueIndex;type:text"`
	// ProductID identifies the anchored product
	ProductID string `gorm:"column:product_id;not null;type:text;index:idx_anchor_receipts_product;index:idx_anchor_receipts_product_hash,priority:1"`
	// RecordHash is the anchored content digest, 0x-prefixed hex
	RecordHash string `gorm:"column:record_hash;not null;type:text;index:idx_anchor_receipts_product_hash,priority:2"`
	// TxHash is the confirming transaction hash
	TxHash string `gorm:"column:tx_hash;not null;uniqueIndex;type:text"`
	// BlockNumber is the inclusion block
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	// AnchoredAt is when confirmation was observed
	AnchoredAt time.Time `gorm:"column:anchored_at;not null"`
	// CreatedAt is set by gorm on insert
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName overrides the gorm table name
func (AnchorReceipt) TableName() string {
	return "anchor_receipts"
}
