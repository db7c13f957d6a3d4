package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-scout/models"
)

// newTestDB öffnet eine isolierte In-Memory-Datenbank mit migriertem Schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// eine Connection, damit :memory: nicht pro Verbindung neu entsteht
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Paper{}, &models.User{}, &models.UserPaper{}))
	return db
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zap.NewNop()
}

// makePaper baut ein minimales gültiges Paper für Store-Tests.
func makePaper(id string, year int, citations int) *models.Paper {
	return &models.Paper{
		ID:        id,
		Title:     "paper " + id,
		Year:      &year,
		NCitation: citations,
	}
}
