package services

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"moim/config"
	"moim/models"
)

// newTestDB opens an isolated in-memory database with the full schema.
// A single connection keeps the concurrency tests deterministic.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.MigrateDB(db))
	return db
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var userSeq int

func newUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Email:         fmt.Sprintf("%s%d@example.com", name, userSeq),
		PasswordHash:  "hashed",
		Name:          name,
		EmailVerified: true,
		IsActive:      true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// newStudy creates a study through the service so the owner membership row
// exists too.
func newStudy(t *testing.T, db *gorm.DB, ownerID uint, name string) *models.Study {
	t.Helper()
	svc := NewStudyService(db, discardLogger())
	study, err := svc.CreateStudy(ownerID, CreateStudyInput{Name: name})
	require.NoError(t, err)
	return study
}

// joinStudy adds a member directly via the join flow.
func joinStudy(t *testing.T, db *gorm.DB, userID uint, code string) {
	t.Helper()
	svc := NewStudyService(db, discardLogger())
	_, err := svc.JoinStudy(userID, code)
	require.NoError(t, err)
}
