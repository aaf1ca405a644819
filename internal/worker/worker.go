// Package worker runs the queued form of the anchoring path: it consumes
// anchor requests from a JetStream subject, drives them through the anchorer
// one at a time, journals each confirmed receipt and publishes it for the
// upstream system that enqueued the request.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/fairtrace/trace-core/internal/adapter"
	"github.com/fairtrace/trace-core/internal/anchor"
	"github.com/fairtrace/trace-core/internal/domain"
	"github.com/fairtrace/trace-core/internal/logger"
	"github.com/fairtrace/trace-core/internal/messaging"
	natsjs "github.com/fairtrace/trace-core/internal/providers/jetstream"
	"github.com/fairtrace/trace-core/internal/store"
	"github.com/fairtrace/trace-core/internal/store/schema"
)

// RequestSubject is the JetStream subject carrying anchor requests
const RequestSubject = "anchor.requests"

// Config holds the configuration for the anchor worker
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	QueueSize      int
}

// Worker defines the interface for the anchor worker
type Worker interface {
	// Run starts consuming anchor requests until ctx is cancelled
	Run(ctx context.Context) error
	// Close closes the worker and cleans up resources
	Close()
}

type worker struct {
	nc        adapter.NatsConn
	js        adapter.JetStream
	anchorer  anchor.Anchorer
	store     store.Store
	publisher messaging.Publisher
	json      adapter.JSON
	clock     adapter.Clock
	pool      pond.Pool
	config    Config
}

// NewWorker creates a new anchor worker
func NewWorker(
	cfg Config,
	natsJS adapter.NatsJetStream,
	anchorer anchor.Anchorer,
	st store.Store,
	publisher messaging.Publisher,
	jsonAdapter adapter.JSON,
	clock adapter.Clock,
) (Worker, error) {
	nc, js, err := natsJS.Connect(cfg.URL, natsjs.ConnectOptions(natsjs.Config{
		ConnectionName: cfg.ConnectionName,
		MaxReconnects:  cfg.MaxReconnects,
		ReconnectWait:  cfg.ReconnectWait,
	})...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &worker{
		nc:        nc,
		js:        js,
		anchorer:  anchorer,
		store:     st,
		publisher: publisher,
		json:      jsonAdapter,
		clock:     clock,
		config:    cfg,
	}, nil
}

// Run starts the anchor worker
func (w *worker) Run(ctx context.Context) error {
	logger.Info("Starting anchor worker",
		zap.String("stream", w.config.StreamName),
		zap.String("consumer", w.config.ConsumerName))

	// One submission slot: all anchors share a single signing account, so
	// transactions are serialized to keep nonce allocation collision-free.
	w.pool = pond.NewPool(1,
		pond.WithQueueSize(w.config.QueueSize),
		pond.WithContext(ctx))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       w.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       w.config.AckWaitTimeout,
		MaxDeliver:    w.config.MaxDeliver,
		FilterSubject: RequestSubject,
	}

	consumer, err := w.js.CreateOrUpdateConsumer(ctx, w.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("Started consuming anchor requests")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down anchor worker",
				zap.Uint64("submitted", w.pool.SubmittedTasks()),
				zap.Uint64("successful", w.pool.SuccessfulTasks()),
				zap.Uint64("failed", w.pool.FailedTasks()))
			w.pool.StopAndWait()
			return ctx.Err()
		case msg := <-msgChan:
			w.pool.SubmitErr(func() error {
				return w.handleMessage(ctx, msg)
			})
		}
	}
}

// handleMessage drives one anchor request to a terminal outcome. Malformed
// and chain-rejected requests are terminated (redelivery would fail the same
// way); transport failures are nak'd for redelivery. Redelivered requests
// whose (product, record hash) pair is already journaled skip the chain and
// republish the existing receipt.
func (w *worker) handleMessage(ctx context.Context, msg adapter.Message) error {
	var req domain.AnchorRequest
	if err := w.json.Unmarshal(msg.Data(), &req); err != nil {
		logger.Error(fmt.Errorf("failed to decode anchor request: %w", err))
		return msg.Term()
	}
	if err := req.Validate(); err != nil {
		logger.Error(err, zap.String("product_id", req.ProductID))
		return msg.Term()
	}

	existing, err := w.store.GetReceiptByProductAndHash(ctx, req.ProductID, req.RecordHash.String())
	if err != nil {
		logger.Error(err, zap.String("product_id", req.ProductID))
		return msg.Nak()
	}
	if existing != nil {
		// Already anchored on a previous delivery. Submitting again would
		// mint a second transaction for the same record, so only the
		// publish is replayed, carrying the original event id.
		event := &messaging.ReceiptEvent{
			EventID: existing.EventID,
			Receipt: domain.AnchorReceipt{
				ProductID:   existing.ProductID,
				RecordHash:  domain.RecordHash(existing.RecordHash),
				TxHash:      existing.TxHash,
				BlockNumber: existing.BlockNumber,
				AnchoredAt:  existing.AnchoredAt,
			},
		}
		if err := w.publisher.PublishReceipt(ctx, event); err != nil {
			logger.Error(err, zap.String("tx_hash", existing.TxHash))
			return msg.Nak()
		}
		logger.Info("republished journaled receipt",
			zap.String("product_id", existing.ProductID),
			zap.String("tx_hash", existing.TxHash))
		return msg.Ack()
	}

	receipt, err := w.anchorer.Anchor(ctx, req)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			logger.Error(err, zap.String("product_id", req.ProductID))
			return msg.Term()
		case domain.IsChainRejection(err):
			logger.Error(err, zap.String("product_id", req.ProductID))
			return msg.Term()
		default:
			// Transport failure: the whole call is safe to retry
			logger.Warn("anchor attempt failed, requesting redelivery",
				zap.String("product_id", req.ProductID),
				zap.Error(err))
			return msg.Nak()
		}
	}

	event := &messaging.ReceiptEvent{
		EventID: ulid.MustNewDefault(w.clock.Now()).String(),
		Receipt: *receipt,
	}

	if err := w.store.SaveReceipt(ctx, &schema.AnchorReceipt{
		EventID:     event.EventID,
		ProductID:   receipt.ProductID,
		RecordHash:  receipt.RecordHash.String(),
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		AnchoredAt:  receipt.AnchoredAt,
	}); err != nil {
		// The anchor is on chain; failing to journal must not silently drop
		// the receipt, so request redelivery.
		logger.Error(err, zap.String("tx_hash", receipt.TxHash))
		return msg.Nak()
	}

	if err := w.publisher.PublishReceipt(ctx, event); err != nil {
		logger.Error(err, zap.String("tx_hash", receipt.TxHash))
		return msg.Nak()
	}

	logger.Info("anchored product record",
		zap.String("product_id", receipt.ProductID),
		zap.String("tx_hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber))
	return msg.Ack()
}

// Close closes the worker and cleans up resources
func (w *worker) Close() {
	if w.nc != nil {
		w.nc.Close()
	}
}
