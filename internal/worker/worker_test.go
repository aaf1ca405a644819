package worker_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairtrace/trace-core/internal/adapter"
	"github.com/fairtrace/trace-core/internal/domain"
	"github.com/fairtrace/trace-core/internal/logger"
	"github.com/fairtrace/trace-core/internal/messaging"
	mockspkg "github.com/fairtrace/trace-core/internal/mocks"
	"github.com/fairtrace/trace-core/internal/store/schema"
	"github.com/fairtrace/trace-core/internal/worker"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testWorkerMocks contains all the mocks needed for testing the worker
type testWorkerMocks struct {
	ctrl      *gomock.Controller
	natsJS    *mockspkg.MockNatsJetStream
	natsConn  *mockspkg.MockNatsConn
	jetStream *mockspkg.MockJetStream
	anchorer  *mockspkg.MockAnchorer
	store     *mockspkg.MockStore
	publisher *mockspkg.MockPublisher
	json      *mockspkg.MockJSON
	clock     *mockspkg.MockClock
}

// setupTestWorker creates all the mocks for testing
func setupTestWorker(t *testing.T) *testWorkerMocks {
	ctrl := gomock.NewController(t)

	return &testWorkerMocks{
		ctrl:      ctrl,
		natsJS:    mockspkg.NewMockNatsJetStream(ctrl),
		natsConn:  mockspkg.NewMockNatsConn(ctrl),
		jetStream: mockspkg.NewMockJetStream(ctrl),
		anchorer:  mockspkg.NewMockAnchorer(ctrl),
		store:     mockspkg.NewMockStore(ctrl),
		publisher: mockspkg.NewMockPublisher(ctrl),
		json:      mockspkg.NewMockJSON(ctrl),
		clock:     mockspkg.NewMockClock(ctrl),
	}
}

// tearDownTestWorker cleans up the test mocks
func tearDownTestWorker(mocks *testWorkerMocks) {
	mocks.ctrl.Finish()
}

func testWorkerConfig() worker.Config {
	return worker.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "ANCHOR_JOBS",
		ConsumerName:   "anchor-worker",
		MaxReconnects:  10,
		ReconnectWait:  1 * time.Second,
		ConnectionName: "test-anchor-worker",
		AckWaitTimeout: 30 * time.Second,
		MaxDeliver:     5,
		QueueSize:      16,
	}
}

func newTestWorker(t *testing.T, mocks *testWorkerMocks) worker.Worker {
	t.Helper()

	cfg := testWorkerConfig()
	mocks.natsJS.
		EXPECT().
		Connect(cfg.URL, gomock.Any()).
		Return(mocks.natsConn, mocks.jetStream, nil)

	w, err := worker.NewWorker(
		cfg,
		mocks.natsJS,
		mocks.anchorer,
		mocks.store,
		mocks.publisher,
		mocks.json,
		mocks.clock,
	)
	require.NoError(t, err)
	return w
}

// startWorker sets up the consumer chain, runs the worker in a goroutine and
// returns the captured message handler
func startWorker(t *testing.T, mocks *testWorkerMocks, ctx context.Context, w worker.Worker) adapter.MessageHandler {
	t.Helper()

	var messageHandler adapter.MessageHandler
	consumer := mockspkg.NewMockNatsConsumer(mocks.ctrl)
	consumeContext := mockspkg.NewMockConsumeContext(mocks.ctrl)

	mocks.jetStream.EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), "ANCHOR_JOBS", gomock.Any()).
		Return(consumer, nil)

	consumer.EXPECT().
		Info(gomock.Any()).
		Return(&jetstream.ConsumerInfo{Name: "anchor-worker"}, nil)

	consumer.EXPECT().
		Consume(gomock.Any()).
		DoAndReturn(func(handler adapter.MessageHandler, opts ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			messageHandler = handler
			return consumeContext, nil
		})

	consumeContext.EXPECT().Stop().AnyTimes()

	go func() {
		_ = w.Run(ctx)
	}()

	// Wait for the consumer to be set up
	require.Eventually(t, func() bool {
		return messageHandler != nil
	}, time.Second, 10*time.Millisecond)

	return messageHandler
}

func testAnchorRequest() domain.AnchorRequest {
	return domain.AnchorRequest{
		ProductID:  "abc123",
		RecordHash: "0x4ec038bb89e1c8f0a2ff608f1ecc3495e3f1b3f249a4268a9e117a63f7bd225b",
	}
}

// stubDecode makes the JSON adapter hand the given request to the worker
func stubDecode(mocks *testWorkerMocks, req domain.AnchorRequest) {
	mocks.json.EXPECT().
		Unmarshal(gomock.Any(), gomock.Any()).
		DoAndReturn(func(data []byte, v interface{}) error {
			*v.(*domain.AnchorRequest) = req
			return nil
		})
}

func TestWorker_NewWorker_Success(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)
	assert.NotNil(t, w)
}

func TestWorker_NewWorker_ConnectError(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	cfg := testWorkerConfig()
	mocks.natsJS.
		EXPECT().
		Connect(cfg.URL, gomock.Any()).
		Return(nil, nil, errors.New("connection refused"))

	w, err := worker.NewWorker(
		cfg,
		mocks.natsJS,
		mocks.anchorer,
		mocks.store,
		mocks.publisher,
		mocks.json,
		mocks.clock,
	)

	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestWorker_Run_CreateConsumerError(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	mocks.jetStream.EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), "ANCHOR_JOBS", gomock.Any()).
		Return(nil, errors.New("stream not found"))

	err := w.Run(context.Background())
	assert.Error(t, err)
}

func TestWorker_Run_ContextCancellation(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startWorker(t, mocks, ctx, w)

	cancel()
	time.Sleep(100 * time.Millisecond)
}

func TestWorker_HandleMessage_Success(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	req := testAnchorRequest()

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, req)

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), req.ProductID, req.RecordHash.String()).
		Return(nil, nil)

	anchoredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	receipt := &domain.AnchorReceipt{
		ProductID:   "abc123",
		RecordHash:  req.RecordHash,
		TxHash:      "0xdeadbeef",
		BlockNumber: 1234567,
		AnchoredAt:  anchoredAt,
	}

	mocks.anchorer.EXPECT().
		Anchor(gomock.Any(), req).
		Return(receipt, nil)

	mocks.clock.EXPECT().Now().Return(anchoredAt)

	var saved *schema.AnchorReceipt
	mocks.store.EXPECT().
		SaveReceipt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, r *schema.AnchorReceipt) error {
			saved = r
			return nil
		})

	var published *messaging.ReceiptEvent
	mocks.publisher.EXPECT().
		PublishReceipt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event *messaging.ReceiptEvent) error {
			published = event
			return nil
		})

	done := make(chan struct{})
	msg.EXPECT().Ack().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not acked")
	}

	require.NotNil(t, saved)
	assert.Equal(t, "abc123", saved.ProductID)
	assert.Equal(t, "0xdeadbeef", saved.TxHash)
	assert.Equal(t, uint64(1234567), saved.BlockNumber)

	require.NotNil(t, published)
	assert.NotEmpty(t, published.EventID)
	assert.Equal(t, saved.EventID, published.EventID)
	assert.Equal(t, *receipt, published.Receipt)
}

func TestWorker_HandleMessage_RedeliveryOfAnchoredRequest(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	req := testAnchorRequest()

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, req)

	anchoredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	journaled := &schema.AnchorReceipt{
		EventID:     "01JWPM8Z8G0000000000000000",
		ProductID:   req.ProductID,
		RecordHash:  req.RecordHash.String(),
		TxHash:      "0xdeadbeef",
		BlockNumber: 1234567,
		AnchoredAt:  anchoredAt,
	}
	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), req.ProductID, req.RecordHash.String()).
		Return(journaled, nil)

	// No Anchor expectation: a redelivered request whose receipt is already
	// journaled must not reach the chain again

	var published *messaging.ReceiptEvent
	mocks.publisher.EXPECT().
		PublishReceipt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event *messaging.ReceiptEvent) error {
			published = event
			return nil
		})

	done := make(chan struct{})
	msg.EXPECT().Ack().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not acked")
	}

	require.NotNil(t, published)
	assert.Equal(t, journaled.EventID, published.EventID)
	assert.Equal(t, "0xdeadbeef", published.Receipt.TxHash)
	assert.Equal(t, uint64(1234567), published.Receipt.BlockNumber)
	assert.Equal(t, req.RecordHash, published.Receipt.RecordHash)
}

func TestWorker_HandleMessage_JournalLookupErrorNaks(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, testAnchorRequest())

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	// Without the journal the worker cannot rule out a prior anchor,
	// so it requests redelivery instead of submitting
	done := make(chan struct{})
	msg.EXPECT().Nak().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not nak'd")
	}
}

func TestWorker_HandleMessage_InvalidJSON(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`not json`)).MinTimes(1)

	mocks.json.EXPECT().
		Unmarshal(gomock.Any(), gomock.Any()).
		Return(errors.New("invalid character 'o'"))

	done := make(chan struct{})
	msg.EXPECT().Term().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not terminated")
	}
}

func TestWorker_HandleMessage_ValidationError(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, domain.AnchorRequest{ProductID: "abc123", RecordHash: "bad"})

	// The request fails validation before any journal or chain access.
	// Redelivery would fail identically, so the message is terminated
	done := make(chan struct{})
	msg.EXPECT().Term().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not terminated")
	}
}

func TestWorker_HandleMessage_ChainRejection(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, testAnchorRequest())

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	mocks.anchorer.EXPECT().
		Anchor(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewChainRejectionError(errors.New("execution reverted")))

	done := make(chan struct{})
	msg.EXPECT().Term().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not terminated")
	}
}

func TestWorker_HandleMessage_TransportErrorNaks(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, testAnchorRequest())

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	mocks.anchorer.EXPECT().
		Anchor(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewTransportError(errors.New("dial tcp: i/o timeout")))

	// Safe to retry the whole call, so redelivery is requested
	done := make(chan struct{})
	msg.EXPECT().Nak().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not nak'd")
	}
}

func TestWorker_HandleMessage_StoreErrorNaks(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, testAnchorRequest())

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	mocks.anchorer.EXPECT().
		Anchor(gomock.Any(), gomock.Any()).
		Return(&domain.AnchorReceipt{
			ProductID:  "abc123",
			TxHash:     "0xdeadbeef",
			AnchoredAt: time.Now(),
		}, nil)
	mocks.clock.EXPECT().Now().Return(time.Now())
	mocks.store.EXPECT().
		SaveReceipt(gomock.Any(), gomock.Any()).
		Return(errors.New("connection refused"))

	done := make(chan struct{})
	msg.EXPECT().Nak().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not nak'd")
	}
}

func TestWorker_HandleMessage_PublishErrorNaks(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := startWorker(t, mocks, ctx, w)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Data().Return([]byte(`{}`)).MinTimes(1)
	stubDecode(mocks, testAnchorRequest())

	mocks.store.EXPECT().
		GetReceiptByProductAndHash(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	mocks.anchorer.EXPECT().
		Anchor(gomock.Any(), gomock.Any()).
		Return(&domain.AnchorReceipt{
			ProductID:  "abc123",
			TxHash:     "0xdeadbeef",
			AnchoredAt: time.Now(),
		}, nil)
	mocks.clock.EXPECT().Now().Return(time.Now())
	mocks.store.EXPECT().SaveReceipt(gomock.Any(), gomock.Any()).Return(nil)
	mocks.publisher.EXPECT().
		PublishReceipt(gomock.Any(), gomock.Any()).
		Return(errors.New("nats: timeout"))

	done := make(chan struct{})
	msg.EXPECT().Nak().DoAndReturn(func() error {
		close(done)
		return nil
	})

	handler(msg)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not nak'd")
	}
}

func TestWorker_Close(t *testing.T) {
	mocks := setupTestWorker(t)
	defer tearDownTestWorker(mocks)

	w := newTestWorker(t, mocks)

	mocks.natsConn.EXPECT().Close()
	w.Close()
}
