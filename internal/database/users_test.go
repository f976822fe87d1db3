package database

import (
	"context"
	"testing"

	"marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &models.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: models.RoleProvider, Phone: "+100"}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)

	t.Run("DuplicateEmailIsCaseInsensitive", func(t *testing.T) {
		dup := &models.User{Name: "Ann 2", Email: "ANN@example.com", PasswordHash: "h", Role: models.RoleCustomer}
		assert.ErrorIs(t, db.CreateUser(ctx, dup), ErrEmailTaken)
	})

	t.Run("EmailExists", func(t *testing.T) {
		exists, err := db.EmailExists(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = db.EmailExists(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("GetByEmailAndID", func(t *testing.T) {
		got, err := db.GetUserByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "+100", got.Phone)
		assert.Nil(t, got.RefreshToken)

		_, err = db.GetUserByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RefreshToken", func(t *testing.T) {
		token := "refresh-1"
		require.NoError(t, db.SetRefreshToken(ctx, u.ID, &token))

		got, err := db.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RefreshToken)
		assert.Equal(t, token, *got.RefreshToken)

		require.NoError(t, db.SetRefreshToken(ctx, u.ID, nil))
		got, err = db.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RefreshToken)

		assert.ErrorIs(t, db.SetRefreshToken(ctx, 9999, nil), ErrNotFound)
	})
}
