package aireg_protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateWallet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.json")

	created, isNew, err := LoadOrCreateWallet(path)
	require.NoError(t, err)
	assert.True(t, isNew)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, isNew, err := LoadOrCreateWallet(path)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.PrivateKey, loaded.PrivateKey)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())
}

func TestCreateWalletNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))

	_, err := CreateWallet(path)
	assert.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestLoadWalletRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"short.json":    "[1,2,3]",
		"garbage.json":  "not json",
		"overflow.json": "[256]",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))
			_, err := LoadWallet(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadWallet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
