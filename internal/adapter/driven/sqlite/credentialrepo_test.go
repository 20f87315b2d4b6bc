package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

func TestCredentialRepo_UpsertAndFindOne(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"abc","refresh_token":"xyz","expires_in":3600}`)
	require.NoError(t, err)

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, model.PlatformTwitch, cred.Platform)
	assert.JSONEq(t, `{"access_token":"abc","refresh_token":"xyz","expires_in":3600}`, cred.Token)
	assert.WithinDuration(t, time.Now().UTC(), cred.UpdatedAt, time.Minute)
}

func TestCredentialRepo_FindOneMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)

	cred, err := repo.FindOne(context.Background(), model.PlatformTwitch)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialRepo_UpsertReplacesWholeBlob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"old"}`))
	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"new"}`))

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.JSONEq(t, `{"access_token":"new"}`, cred.Token)

	// Still exactly one row for the platform.
	var count int
	err = db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE platform = ?`, model.PlatformTwitch).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCredentialRepo_UpsertPreservesProfileFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"a"}`))
	require.NoError(t, repo.UpdateProfile(ctx, model.PlatformTwitch, "StreamerName", "https://cdn.example/avatar.png"))

	// A token refresh must not wipe the cached profile.
	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"b"}`))

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "StreamerName", cred.DisplayName)
	assert.Equal(t, "https://cdn.example/avatar.png", cred.ProfileImage)
}

func TestCredentialRepo_UpdateProfileDoesNotAdvanceUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"a","expires_in":3600}`))

	// Pin updated_at to a known past instant, then sync the profile.
	_, err := db.Writer.ExecContext(ctx, `UPDATE credentials SET updated_at = ? WHERE platform = ?`,
		"2026-01-01 10:00:00", model.PlatformTwitch)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProfile(ctx, model.PlatformTwitch, "Name", "img"))

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), cred.UpdatedAt)
}

func TestCredentialRepo_UpdateProfileMissingRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)

	err := repo.UpdateProfile(context.Background(), model.PlatformTwitch, "Name", "img")
	assert.ErrorIs(t, err, driven.ErrNotAuthenticated)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"a"}`))
	require.NoError(t, repo.Delete(ctx, model.PlatformTwitch))

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialRepo_DeleteNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)

	err := repo.Delete(context.Background(), "nonexistent")
	assert.NoError(t, err, "deleting a missing credential should not error")
}

func TestCredentialRepo_DeleteAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, `{"access_token":"a"}`))
	require.NoError(t, repo.Upsert(ctx, "youtube", `{"access_token":"b"}`))

	require.NoError(t, repo.DeleteAll(ctx))

	for _, platform := range []string{model.PlatformTwitch, "youtube"} {
		cred, err := repo.FindOne(ctx, platform)
		require.NoError(t, err)
		assert.Nil(t, cred)
	}
}

func TestCredentialRepo_EncryptionRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	repo := NewCredentialRepo(db, key)
	ctx := context.Background()

	blob := `{"access_token":"secret-token","refresh_token":"secret-refresh","expires_in":3600}`
	require.NoError(t, repo.Upsert(ctx, model.PlatformTwitch, blob))

	// The raw column must not contain the plaintext token.
	var stored string
	err := db.Reader.QueryRowContext(ctx, `SELECT token FROM credentials WHERE platform = ?`, model.PlatformTwitch).Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "secret-token")

	cred, err := repo.FindOne(ctx, model.PlatformTwitch)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.JSONEq(t, blob, cred.Token)
}

func TestCredentialRepo_DecryptWrongKeyFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	keyA := make([]byte, 32)
	keyB := make([]byte, 32)
	keyB[0] = 0xff

	require.NoError(t, NewCredentialRepo(db, keyA).Upsert(ctx, model.PlatformTwitch, `{"access_token":"a"}`))

	_, err := NewCredentialRepo(db, keyB).FindOne(ctx, model.PlatformTwitch)
	assert.Error(t, err)
}
