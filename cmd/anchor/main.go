// Command anchor records an off-chain content hash against a product on the
// registry contract and prints the confirming transaction hash:
//
//	anchor -pid 42 -hash 0x<64 hex chars>
//
// The exit code is non-zero on failure; the error kind (validation,
// transport, chain rejection) is printed so callers can decide on retry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fairtrace/trace-core/internal/adapter"
	"github.com/fairtrace/trace-core/internal/anchor"
	"github.com/fairtrace/trace-core/internal/config"
	"github.com/fairtrace/trace-core/internal/domain"
	"github.com/fairtrace/trace-core/internal/logger"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	pid        = flag.String("pid", "", "Product identifier to anchor")
	hash       = flag.String("hash", "", "Record hash (0x-prefixed 32-byte hex digest)")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAnchorConfig(*configFile, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "anchor",
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Flush(2 * time.Second)

	ctx := context.Background()

	ethDialer := adapter.NewEthClientDialer()
	client, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transport: failed to dial RPC endpoint: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	anchorer, err := anchor.NewAnchorer(ctx, client, adapter.NewClock(), cfg.Ethereum.PrivateKey, anchor.Config{
		ContractAddress:     cfg.Ethereum.RegistryAddress,
		GasLimit:            cfg.Ethereum.GasLimit,
		ConfirmPollInterval: cfg.Ethereum.ConfirmPollInterval,
		ConfirmMaxInterval:  cfg.Ethereum.ConfirmMaxInterval,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	receipt, err := anchorer.Anchor(ctx, domain.AnchorRequest{
		ProductID:  *pid,
		RecordHash: domain.RecordHash(*hash),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Println(receipt.TxHash)
}
