package storage

import (
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *JSONDB {
	t.Helper()
	db, err := Connect(t.TempDir())
	require.NoError(t, err)
	db.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndGetWallet(t *testing.T) {
	db := openTestDB(t)
	key := solana.NewWallet().PrivateKey

	saved, err := db.SaveWallet("main", key)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), saved.PublicKey())

	got, err := db.GetWallet("main")
	require.NoError(t, err)
	assert.Equal(t, key, got.PrivateKey)
	assert.Equal(t, "main", got.Name)
	assert.Equal(t, 2025, got.CreatedAt.Year())

	info, err := os.Stat(db.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveWalletRefusesOverwrite(t *testing.T) {
	db := openTestDB(t)
	first, err := db.CreateWallet("main")
	require.NoError(t, err)

	_, err = db.CreateWallet("main")
	assert.ErrorIs(t, err, ErrProfileExists)

	got, err := db.GetWallet("main")
	require.NoError(t, err)
	assert.Equal(t, first.PrivateKey, got.PrivateKey)
}

func TestSaveWalletValidatesInput(t *testing.T) {
	db := openTestDB(t)
	for _, name := range []string{"", "has space", "-leading", "../escape"} {
		_, err := db.CreateWallet(name)
		assert.Error(t, err, "name %q", name)
	}
	_, err := db.SaveWallet("short", solana.PrivateKey{1, 2, 3})
	assert.Error(t, err)
}

func TestListAndDeleteWallets(t *testing.T) {
	db := openTestDB(t)

	names, err := db.GetAllWalletNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := db.CreateWallet(n)
		require.NoError(t, err)
	}

	names, err = db.GetAllWalletNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	addrs, err := db.Addresses()
	require.NoError(t, err)
	assert.Len(t, addrs, 3)

	require.NoError(t, db.DeleteWallet("mid"))
	_, err = db.GetWallet("mid")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, db.DeleteWallet("mid"), ErrProfileNotFound)
}

func TestCorruptFileIsReported(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, os.WriteFile(db.Path(), []byte("{not json"), 0600))

	_, err := db.GetAllWalletNames()
	assert.Error(t, err)
}
