package service

import (
	"context"
	"path/filepath"
	"testing"

	"marketplace/internal/database"
	"marketplace/internal/models"

	"github.com/stretchr/testify/require"
)

func newServiceTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SyncServices(context.Background(), []string{"Plumbing", "Cleaning"}))
	return db
}

func seedUser(t *testing.T, db *database.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "User " + email, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}
