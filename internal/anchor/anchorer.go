package anchor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/fairtrace/trace-core/internal/adapter"
	"github.com/fairtrace/trace-core/internal/domain"
	"github.com/fairtrace/trace-core/internal/logger"
)

// registryABI is the anchor entrypoint of the product registry contract:
// anchorProduct(address caller, string pid, bytes32 recordHash)
const registryABI = `[{"inputs":[{"name":"caller","type":"address"},{"name":"pid","type":"string"},{"name":"recordHash","type":"bytes32"}],"name":"anchorProduct","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Config holds the anchorer configuration
type Config struct {
	// ContractAddress is the product registry address
	ContractAddress string
	// GasLimit caps the anchor transaction; 0 means estimate per call
	GasLimit uint64
	// ConfirmPollInterval is the initial interval between receipt polls
	ConfirmPollInterval time.Duration
	// ConfirmMaxInterval caps the poll backoff
	ConfirmMaxInterval time.Duration
}

// Anchorer binds an off-chain content hash to a product identifier via a
// single on-chain write and returns proof of inclusion. Each call is
// independent and stateless; the only shared resource is the signing
// credential, so transaction submission is serialized per account to avoid
// nonce collisions.
//
//go:generate mockgen -source=anchorer.go -destination=../mocks/anchorer.go -package=mocks -mock_names=Anchorer=MockAnchorer
type Anchorer interface {
	// Anchor submits one registry transaction recording recordHash against
	// productId, blocks until the transaction is included in a block and
	// returns the receipt. There is no timeout at this layer; callers
	// needing bounded latency cancel ctx, which abandons waiting but does
	// not revoke an already-broadcast transaction.
	Anchor(ctx context.Context, req domain.AnchorRequest) (*domain.AnchorReceipt, error)
}

type anchorer struct {
	client   adapter.EthClient
	clock    adapter.Clock
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
	config   Config

	// submitMu serializes nonce allocation and submission per account
	submitMu sync.Mutex
}

// NewAnchorer creates an anchorer bound to one signing credential. The chain
// ID is fetched once from the connected network.
func NewAnchorer(ctx context.Context, client adapter.EthClient, clock adapter.Clock, privateKeyHex string, cfg Config) (Anchorer, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid registry contract address: %q", cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("failed to fetch chain id: %w", err))
	}

	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = time.Second
	}
	if cfg.ConfirmMaxInterval <= 0 {
		cfg.ConfirmMaxInterval = 15 * time.Second
	}

	return &anchorer{
		client:   client,
		clock:    clock,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(cfg.ContractAddress),
		abi:      parsedABI,
		chainID:  chainID,
		config:   cfg,
	}, nil
}

// call carries the state machine for one anchor invocation:
// Idle -> Validating -> Submitting -> AwaitingConfirmation -> Confirmed,
// or -> Failed from any state after Validating.
type call struct {
	req   domain.AnchorRequest
	state domain.AnchorState
}

func (c *call) transition(next domain.AnchorState) {
	logger.Debug("anchor state transition",
		zap.String("product_id", c.req.ProductID),
		zap.String("from", string(c.state)),
		zap.String("to", string(next)))
	c.state = next
}

func (c *call) fail(err error) error {
	c.transition(domain.AnchorStateFailed)
	return err
}

// Anchor implements Anchorer
func (a *anchorer) Anchor(ctx context.Context, req domain.AnchorRequest) (*domain.AnchorReceipt, error) {
	c := &call{req: req, state: domain.AnchorStateIdle}

	c.transition(domain.AnchorStateValidating)
	if err := req.Validate(); err != nil {
		// No side effect occurs on validation failure: the network is
		// never contacted.
		return nil, c.fail(err)
	}
	c.req = req

	c.transition(domain.AnchorStateSubmitting)
	tx, err := a.submit(ctx, req)
	if err != nil {
		return nil, c.fail(err)
	}

	logger.Info("anchor transaction submitted",
		zap.String("product_id", req.ProductID),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	c.transition(domain.AnchorStateAwaitingConfirmation)
	receipt, err := a.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, c.fail(err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, c.fail(domain.NewChainRejectionError(
			fmt.Errorf("transaction %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64())))
	}

	c.transition(domain.AnchorStateConfirmed)
	return &domain.AnchorReceipt{
		ProductID:   req.ProductID,
		RecordHash:  req.RecordHash,
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		AnchoredAt:  a.clock.Now(),
	}, nil
}

// submit builds, signs and broadcasts the anchor transaction. Nonce
// allocation and submission are held under one lock so concurrent anchors
// from the same process cannot collide.
func (a *anchorer) submit(ctx context.Context, req domain.AnchorRequest) (*types.Transaction, error) {
	data, err := a.abi.Pack("anchorProduct", a.from, req.ProductID, req.RecordHash.Bytes32())
	if err != nil {
		return nil, domain.NewValidationError(fmt.Errorf("failed to pack calldata: %w", err))
	}

	a.submitMu.Lock()
	defer a.submitMu.Unlock()

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("failed to fetch nonce: %w", err))
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("failed to fetch gas price: %w", err))
	}

	gasLimit := a.config.GasLimit
	if gasLimit == 0 {
		gasLimit, err = a.client.EstimateGas(ctx, ethereum.CallMsg{
			From: a.from,
			To:   &a.contract,
			Data: data,
		})
		if err != nil {
			// Estimation executes the call; contracts that would revert
			// fail here.
			return nil, classifySubmitError(err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return nil, classifySubmitError(err)
	}
	return signed, nil
}

// waitMined polls for the transaction receipt with exponential backoff until
// the transaction is included or ctx is cancelled
func (a *anchorer) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.config.ConfirmPollInterval
	b.MaxInterval = a.config.ConfirmMaxInterval
	// No overall deadline: inclusion can take from sub-second on a local
	// chain to tens of seconds on a public network.
	b.MaxElapsedTime = 0

	var receipt *types.Receipt
	operation := func() error {
		r, err := a.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			if err == ethereum.NotFound {
				return fmt.Errorf("transaction %s not yet mined", txHash.Hex())
			}
			return err
		}
		receipt = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil {
			// The caller abandoned waiting; the transaction state is
			// unknown, not failed, and must be resolved by re-querying
			// the chain rather than resubmitting.
			return nil, domain.NewTransportError(fmt.Errorf("abandoned waiting for %s: %w", txHash.Hex(), ctx.Err()))
		}
		return nil, domain.NewTransportError(fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err))
	}
	return receipt, nil
}

// rejectionMarkers are node error fragments that indicate the transaction was
// refused by policy or would revert, where blind retry would fail identically
var rejectionMarkers = []string{
	"execution reverted",
	"always failing transaction",
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
	"already known",
	"intrinsic gas too low",
}

// classifySubmitError separates node policy rejections from transport
// failures so callers know whether retrying the same input can succeed
func classifySubmitError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(msg, marker) {
			return domain.NewChainRejectionError(err)
		}
	}
	return domain.NewTransportError(err)
}
