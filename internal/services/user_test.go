package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/authgate/apiserver/internal/hash"
	"github.com/authgate/apiserver/internal/store"
	"github.com/authgate/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(t *testing.T) (*UserService, *AuthService, *fakeUserRepo) {
	t.Helper()
	auth, repo, _ := newTestAuthService(t)
	return NewUserService(repo, hash.New()), auth, repo
}

func TestUserServiceGetByIdentity(t *testing.T) {
	users, auth, _ := newTestUserService(t)
	ctx := context.Background()

	reg := testRegistration()
	reg.Email = "a@x.com"
	reg.Username = "bob"
	profile, _, err := auth.SignUp(ctx, reg)
	require.NoError(t, err)

	for _, term := range []string{"a@x.com", "bob", profile.ID} {
		resolved, err := users.GetByIdentity(ctx, term)
		require.NoError(t, err, "term %q", term)
		assert.Equal(t, profile.ID, resolved.ID)
	}

	_, err = users.GetByIdentity(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserServiceList(t *testing.T) {
	users, auth, _ := newTestUserService(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		reg := testRegistration()
		reg.Email = name + "@x.com"
		reg.Username = name
		_, _, err := auth.SignUp(ctx, reg)
		require.NoError(t, err)
	}

	profiles, total, err := users.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, profiles, 2)

	// Zero limit falls back to the default page size.
	profiles, _, err = users.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}

func TestUserServiceListClamp(t *testing.T) {
	users, _, repo := newTestUserService(t)
	ctx := context.Background()

	// Seed past the default page size without going through sign-up.
	for i := 0; i < DefaultListLimit+5; i++ {
		_, err := repo.Create(ctx, types.User{
			Email:        fmt.Sprintf("u%d@x.com", i),
			Username:     fmt.Sprintf("u%d", i),
			PasswordHash: "$argon2id$seeded",
			IsActive:     true,
		})
		require.NoError(t, err)
	}

	// Zero limit clamps to the same default the HTTP layer advertises.
	profiles, total, err := users.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit+5, total)
	assert.Len(t, profiles, DefaultListLimit)

	// Oversized limits clamp to the shared maximum.
	profiles, _, err = users.List(ctx, 0, MaxListLimit+1)
	require.NoError(t, err)
	assert.Len(t, profiles, DefaultListLimit+5)
}

func TestUserServiceUpdateRehashesPassword(t *testing.T) {
	users, auth, repo := newTestUserService(t)
	ctx := context.Background()

	profile, _, err := auth.SignUp(ctx, testRegistration())
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)

	newPassword := "Fresh456!"
	_, err = users.Update(ctx, profile.ID, UserUpdate{Password: &newPassword})
	require.NoError(t, err)

	after, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
	assert.NotContains(t, after.PasswordHash, newPassword)

	_, _, err = auth.SignIn(ctx, "tt", newPassword)
	require.NoError(t, err)
	_, _, err = auth.SignIn(ctx, "tt", "Abc123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserServiceDelete(t *testing.T) {
	users, auth, _ := newTestUserService(t)
	ctx := context.Background()

	profile, _, err := auth.SignUp(ctx, testRegistration())
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, profile.ID))
	_, err = users.Get(ctx, profile.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, users.Delete(ctx, profile.ID), store.ErrNotFound)
}
