package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

func newTestCredentialRepo(t *testing.T, db *DB) *CredentialRepo {
	t.Helper()

	repo, err := NewCredentialRepo(db, testKey)
	require.NoError(t, err)
	return repo
}

func TestCredentialRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)
	ctx := context.Background()

	err := repo.Set(ctx, model.ServerTokenService(1), "ghp_abc123")
	require.NoError(t, err)

	val, err := repo.Get(ctx, model.ServerTokenService(1))
	require.NoError(t, err)
	assert.Equal(t, "ghp_abc123", val)
}

func TestCredentialRepo_StoredEncrypted(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "server/1", "ghp_secret"))

	var stored string
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials WHERE service = ?`, "server/1").Scan(&stored))
	assert.NotContains(t, stored, "ghp_secret")
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)

	val, err := repo.Get(context.Background(), "server/404")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestCredentialRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "server/1", "old-value"))
	require.NoError(t, repo.Set(ctx, "server/1", "new-value"))

	val, err := repo.Get(ctx, "server/1")
	require.NoError(t, err)
	assert.Equal(t, "new-value", val)

	creds, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestCredentialRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "server/2", "tok-2"))
	require.NoError(t, repo.Set(ctx, "server/1", "tok-1"))

	creds, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "server/1", creds[0].Service)
	assert.Equal(t, "tok-1", creds[0].Value)
	assert.Equal(t, "server/2", creds[1].Service)
	assert.False(t, creds[1].UpdatedAt.IsZero())
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := newTestCredentialRepo(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "server/1", "ghp_abc"))
	require.NoError(t, repo.Delete(ctx, "server/1"))

	val, err := repo.Get(ctx, "server/1")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	assert.NoError(t, repo.Delete(ctx, "server/1"), "deleting nonexistent credential should not error")
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewCredentialRepo(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Set(ctx, "server/1", "tok"), driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "server/1")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_WrongKeyLength(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewCredentialRepo(db, []byte("short"))
	assert.Error(t, err)
}

func TestCredentialRepo_WrongKeyFailsDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	writer := newTestCredentialRepo(t, db)
	require.NoError(t, writer.Set(ctx, "server/1", "tok"))

	reader, err := NewCredentialRepo(db, bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	_, err = reader.Get(ctx, "server/1")
	assert.Error(t, err)
}
