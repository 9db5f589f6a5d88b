package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront-backend/logger"
	"storefront-backend/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := setupTestDB(t)
	for _, table := range []string{"users", "categories", "brands", "sizes", "products",
		"product_sizes", "product_images", "temp_images", "orders", "order_items"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, Migrate(db))
}

func TestCreateDefaultAdmin(t *testing.T) {
	db := setupTestDB(t)

	err := CreateDefaultAdmin(context.Background(), db, logger.Nop(), "admin@test.com", "secret123")
	require.NoError(t, err)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@test.com").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("secret123")))
}

func TestCreateDefaultAdminAlreadyExists(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.User{Name: "Existing", Email: "admin@test.com", Password: "hash", Role: models.RoleAdmin})

	err := CreateDefaultAdmin(context.Background(), db, logger.Nop(), "admin@test.com", "secret123")
	require.NoError(t, err)

	var count int64
	db.Model(&models.User{}).Where("email = ?", "admin@test.com").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestIsUniqueViolationFromSQLite(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Size{Name: "XL"}).Error)

	err := db.Create(&models.Size{Name: "XL"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}
