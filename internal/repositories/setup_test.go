package repositories

import (
	"testing"

	"github.com/ghadeerreda0-lab/Bot-New/internal/database"
	"github.com/ghadeerreda0-lab/Bot-New/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serialises transactions the way row locks do on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, telegramID int64, balance int64) *models.User {
	t.Helper()
	user := &models.User{TelegramID: telegramID, FullName: "Test User", Balance: balance}
	require.NoError(t, db.Create(user).Error)
	return user
}
