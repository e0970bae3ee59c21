package authdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AuthKeyRecord is one issued auth key: the URL-safe hash of the key and the
// account that owns it. The raw key is never stored.
type AuthKeyRecord struct {
	gorm.Model
	AuthKeyHash string `gorm:"uniqueIndex"`
	AccountID   string
}

// SQLiteDirectory is the local-development account directory, backed by the
// same auth-key-hash → account-id mapping the production table holds.
type SQLiteDirectory struct {
	db *gorm.DB
}

func NewSQLiteDirectory(path string) (*SQLiteDirectory, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open auth db: %w", err)
	}
	if err := db.AutoMigrate(&AuthKeyRecord{}); err != nil {
		return nil, fmt.Errorf("migrate auth db: %w", err)
	}
	return &SQLiteDirectory{db: db}, nil
}

func (d *SQLiteDirectory) AccountIDForKey(ctx context.Context, lookupKey string) (uuid.UUID, error) {
	var record AuthKeyRecord
	err := d.db.WithContext(ctx).Where("auth_key_hash = ?", lookupKey).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrAccountNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	accountID, err := uuid.Parse(record.AccountID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidAccountID, err)
	}
	return accountID, nil
}

// SeedKey upserts a key hash for accountID. Dev bootstrap only.
func (d *SQLiteDirectory) SeedKey(lookupKey string, accountID uuid.UUID) error {
	var existing AuthKeyRecord
	err := d.db.Where("auth_key_hash = ?", lookupKey).First(&existing).Error
	if err == nil {
		existing.AccountID = accountID.String()
		return d.db.Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return d.db.Create(&AuthKeyRecord{AuthKeyHash: lookupKey, AccountID: accountID.String()}).Error
}

func (d *SQLiteDirectory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
