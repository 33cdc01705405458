package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileLoaderBatching(t *testing.T) {
	userA := createTestUser(t, "loader_a@example.com", "passwordA")
	userB := createTestUser(t, "loader_b@example.com", "passwordB")
	userC := createTestUser(t, "loader_c@example.com", "passwordC")
	defer cleanupTestData(userA.Email, userB.Email, userC.Email)

	profileA := getDefaultTestProfile()
	profileA.DisplayName = "Loader A"
	profileB := getDefaultTestProfile()
	profileB.DisplayName = "Loader B"
	createTestProfile(t, userA, profileA)
	createTestProfile(t, userB, profileB)
	// userC has no profile

	ctx := context.Background()
	loaders := NewDataLoaders(db)

	t.Run("LoadMany preserves key order", func(t *testing.T) {
		thunk := loaders.ProfileLoader.LoadMany(ctx, []int{userB.ID, userA.ID})
		profiles, errs := thunk()
		require.Empty(t, errs)
		require.Len(t, profiles, 2)
		assert.Equal(t, "Loader B", profiles[0].DisplayName)
		assert.Equal(t, "Loader A", profiles[1].DisplayName)
	})

	t.Run("Missing profile yields an error for that key only", func(t *testing.T) {
		thunkA := loaders.ProfileLoader.Load(ctx, userA.ID)
		thunkC := loaders.ProfileLoader.Load(ctx, userC.ID)

		profA, errA := thunkA()
		require.NoError(t, errA)
		assert.Equal(t, userA.ID, profA.UserID)

		_, errC := thunkC()
		assert.Error(t, errC)
	})

	t.Run("Soft-deleted profile is not loaded", func(t *testing.T) {
		_, err := db.Exec("UPDATE profiles SET is_deleted = TRUE WHERE user_id = $1", userB.ID)
		require.NoError(t, err)
		defer db.Exec("UPDATE profiles SET is_deleted = FALSE WHERE user_id = $1", userB.ID)

		fresh := NewDataLoaders(db)
		_, errB := fresh.ProfileLoader.Load(ctx, userB.ID)()
		assert.Error(t, errB)
	})

	t.Run("Context round trip", func(t *testing.T) {
		ctx := WithDataLoaders(context.Background(), loaders)
		assert.Same(t, loaders, GetDataLoadersFromContext(ctx))
		assert.Nil(t, GetDataLoadersFromContext(context.Background()))
	})
}
