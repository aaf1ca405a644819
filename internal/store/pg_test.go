package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fairtrace/trace-core/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Initialize the journal schema
	if err := Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// cleanupReceipts truncates the journal between tests
func cleanupReceipts(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE anchor_receipts RESTART IDENTITY").Error)
}

func testReceipt(eventID, productID, txHash string, blockNumber uint64) *schema.AnchorReceipt {
	return &schema.AnchorReceipt{
		EventID:     eventID,
		ProductID:   productID,
		RecordHash:  "0x4ec038bb89e1c8f0a2ff608f1ecc3495e3f1b3f249a4268a9e117a63f7bd225b",
		TxHash:      txHash,
		BlockNumber: blockNumber,
		AnchoredAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPGStore_SaveReceipt(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)
	ctx := context.Background()

	receipt := testReceipt("01JWMEVENT0000000000000001", "abc123", "0xaaa1", 100)
	require.NoError(t, st.SaveReceipt(ctx, receipt))
	assert.NotZero(t, receipt.ID)
	assert.False(t, receipt.CreatedAt.IsZero())
}

func TestPGStore_SaveReceipt_DuplicateTxHash(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)
	ctx := context.Background()

	require.NoError(t, st.SaveReceipt(ctx, testReceipt("01JWMEVENT0000000000000001", "abc123", "0xaaa1", 100)))

	// The journal is append-only keyed by transaction hash
	err := st.SaveReceipt(ctx, testReceipt("01JWMEVENT0000000000000002", "abc123", "0xaaa1", 100))
	assert.Error(t, err)
}

func TestPGStore_GetReceiptByTxHash(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)
	ctx := context.Background()

	saved := testReceipt("01JWMEVENT0000000000000001", "abc123", "0xaaa1", 100)
	require.NoError(t, st.SaveReceipt(ctx, saved))

	got, err := st.GetReceiptByTxHash(ctx, "0xaaa1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc123", got.ProductID)
	assert.Equal(t, uint64(100), got.BlockNumber)
	assert.Equal(t, saved.EventID, got.EventID)
}

func TestPGStore_GetReceiptByTxHash_NotFound(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)

	got, err := st.GetReceiptByTxHash(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStore_GetReceiptByProductAndHash(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)
	ctx := context.Background()

	saved := testReceipt("01JWMEVENT0000000000000001", "abc123", "0xaaa1", 100)
	require.NoError(t, st.SaveReceipt(ctx, saved))

	got, err := st.GetReceiptByProductAndHash(ctx, "abc123", saved.RecordHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.EventID, got.EventID)
	assert.Equal(t, "0xaaa1", got.TxHash)

	// Same hash under another product is a different anchor
	got, err = st.GetReceiptByProductAndHash(ctx, "other", saved.RecordHash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStore_GetReceiptByProductAndHash_NotFound(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)

	got, err := st.GetReceiptByProductAndHash(context.Background(), "abc123",
		"0x0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPGStore_ListReceiptsByProduct(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)
	ctx := context.Background()

	require.NoError(t, st.SaveReceipt(ctx, testReceipt("01JWMEVENT0000000000000001", "abc123", "0xaaa1", 100)))
	require.NoError(t, st.SaveReceipt(ctx, testReceipt("01JWMEVENT0000000000000002", "abc123", "0xaaa2", 150)))
	require.NoError(t, st.SaveReceipt(ctx, testReceipt("01JWMEVENT0000000000000003", "other", "0xbbb1", 120)))

	receipts, err := st.ListReceiptsByProduct(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	// Newest first
	assert.Equal(t, "0xaaa2", receipts[0].TxHash)
	assert.Equal(t, "0xaaa1", receipts[1].TxHash)
}

func TestPGStore_ListReceiptsByProduct_Empty(t *testing.T) {
	cleanupReceipts(t)
	st := NewPGStore(testDB)

	receipts, err := st.ListReceiptsByProduct(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestConfigureConnectionPool(t *testing.T) {
	require.NoError(t, ConfigureConnectionPool(testDB, 0, 0, 0, 0))

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}
