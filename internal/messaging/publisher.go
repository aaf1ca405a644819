package messaging

import (
	"context"

	"github.com/fairtrace/trace-core/internal/domain"
)

// ReceiptEvent is the receipt notification published after a successful
// anchor, consumed by upstream systems that persist the transaction id
// alongside the original record.
type ReceiptEvent struct {
	EventID string               `json:"event_id"`
	Receipt domain.AnchorReceipt `json:"receipt"`
}

// Publisher defines the interface for publishing anchor receipts to the
// message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishReceipt publishes a receipt event
	PublishReceipt(ctx context.Context, event *ReceiptEvent) error
	// Close closes the connection
	Close()
}
