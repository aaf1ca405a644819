package store

import (
	"context"

	"github.com/fairtrace/trace-core/internal/store/schema"
)

// Store defines the interface for receipt journal operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// SaveReceipt appends a confirmed receipt to the journal
	SaveReceipt(ctx context.Context, receipt *schema.AnchorReceipt) error
	// GetReceiptByTxHash retrieves a receipt by transaction hash, nil if absent
	GetReceiptByTxHash(ctx context.Context, txHash string) (*schema.AnchorReceipt, error)
	// GetReceiptByProductAndHash retrieves the receipt for a previously
	// anchored (product, record hash) pair, nil if the pair was never anchored
	GetReceiptByProductAndHash(ctx context.Context, productID string, recordHash string) (*schema.AnchorReceipt, error)
	// ListReceiptsByProduct retrieves all receipts for a product, newest first
	ListReceiptsByProduct(ctx context.Context, productID string) ([]schema.AnchorReceipt, error)
}
