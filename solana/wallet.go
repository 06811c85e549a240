package aireg_protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

const (
	defaultConfigDirName = ".config"
	airegConfigDirName   = "aireg"
	walletFileName       = "wallet.json"
)

// Wallet holds the signing keypair.
type Wallet struct {
	PrivateKey solana.PrivateKey
}

// PublicKey returns the public key of the wallet.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.PrivateKey.PublicKey()
}

// LoadOrCreateWallet loads the keypair at path, creating a new one when the
// file does not exist. created reports which happened.
func LoadOrCreateWallet(path string) (wallet *Wallet, created bool, err error) {
	if path == "" {
		if path, err = DefaultWalletPath(); err != nil {
			return nil, false, err
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		wallet, err := CreateWallet(path)
		return wallet, err == nil, err
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to check for wallet file: %w", err)
	}
	wallet, err = LoadWallet(path)
	return wallet, false, err
}

// CreateWallet generates a keypair and writes it to path. An existing file is
// never overwritten.
func CreateWallet(path string) (*Wallet, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet file %s already exists", path)
	}
	wallet := &Wallet{PrivateKey: solana.NewWallet().PrivateKey}
	if err := SaveWallet(wallet, path); err != nil {
		return nil, fmt.Errorf("failed to save new wallet: %w", err)
	}
	return wallet, nil
}

// LoadWallet reads a keypair in the Solana CLI format: a JSON array of 64 bytes.
func LoadWallet(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}
	// Accepts both a JSON number array and a base64 string.
	var keyBytes []byte
	if err := json.Unmarshal(raw, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet file: %w", err)
	}
	if len(keyBytes) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("invalid private key length: expected %d, got %d", solana.PrivateKeyLength, len(keyBytes))
	}
	return &Wallet{PrivateKey: solana.PrivateKey(keyBytes)}, nil
}

// SaveWallet writes the keypair as a JSON byte array with owner-only permissions.
func SaveWallet(wallet *Wallet, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}
	ints := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return nil
}

// DefaultWalletPath returns ~/.config/aireg/wallet.json.
func DefaultWalletPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDirName, airegConfigDirName, walletFileName), nil
}
