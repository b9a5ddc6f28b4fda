package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pixel-backend/internal/config"
	"github.com/pixel-backend/internal/models"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testDB connects to the local development database, skipping the test
// when Postgres is not available.
func testDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "pixel_backend",
		User:           "pixel",
		Password:       "pixel_dev_password",
		MaxConnections: 10,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// testExtension registers an active extension for the shop so events can
// reference its account id. Cleanup rides on the shop's cascade delete.
func testExtension(t *testing.T, db *PostgresDB, shopID int64) *models.Extension {
	t.Helper()
	repo := NewExtensionRepository(db)
	ext := &models.Extension{
		ShopID:              shopID,
		PlatformExtensionID: fmt.Sprintf("gid://WebPixel/%d", shopID),
		AccountID:           fmt.Sprintf("acct-%d-%d", shopID, time.Now().UnixNano()),
		Status:              models.ExtensionStatusActive,
		Version:             "1",
	}
	if err := repo.Upsert(testContext(t), ext); err != nil {
		t.Fatalf("Upsert(extension) error = %v", err)
	}
	return ext
}
