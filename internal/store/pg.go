package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fairtrace/trace-core/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the journal schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&schema.AnchorReceipt{})
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// SaveReceipt appends a confirmed receipt to the journal
func (s *pgStore) SaveReceipt(ctx context.Context, receipt *schema.AnchorReceipt) error {
	if err := s.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// GetReceiptByTxHash retrieves a receipt by transaction hash
func (s *pgStore) GetReceiptByTxHash(ctx context.Context, txHash string) (*schema.AnchorReceipt, error) {
	var receipt schema.AnchorReceipt
	err := s.db.WithContext(ctx).
		Where("tx_hash = ?", txHash).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return &receipt, nil
}

// GetReceiptByProductAndHash retrieves the receipt for an anchored
// (product, record hash) pair
func (s *pgStore) GetReceiptByProductAndHash(ctx context.Context, productID string, recordHash string) (*schema.AnchorReceipt, error) {
	var receipt schema.AnchorReceipt
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND record_hash = ?", productID, recordHash).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return &receipt, nil
}

// ListReceiptsByProduct retrieves all receipts for a product, newest first
func (s *pgStore) ListReceiptsByProduct(ctx context.Context, productID string) ([]schema.AnchorReceipt, error) {
	var receipts []schema.AnchorReceipt
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("block_number DESC, id DESC").
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}
