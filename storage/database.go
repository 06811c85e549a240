package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	profilesFileName = "profiles.json"
	configDirName    = ".config"
	appDirName       = "aireg"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

// JSONDB stores named keypair profiles in a single JSON file.
type JSONDB struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Connect opens the profile store under dir, creating it when needed.
// An empty dir selects ~/.config/aireg.
func Connect(dir string) (*JSONDB, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, fmt.Errorf("could not get storage directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create storage directory: %w", err)
	}
	return &JSONDB{path: filepath.Join(dir, profilesFileName), now: time.Now}, nil
}

// DefaultDir returns ~/.config/aireg.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName, appDirName), nil
}

// Path returns the storage file location.
func (db *JSONDB) Path() string { return db.path }

func (db *JSONDB) load() (*profileFile, error) {
	data, err := os.ReadFile(db.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return &profileFile{Profiles: map[string]profileRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read profile file: %w", err)
	}
	var f profileFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("could not parse profile file: %w", err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]profileRecord{}
	}
	return &f, nil
}

func (db *JSONDB) store(f *profileFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal profiles: %w", err)
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("could not write profile file: %w", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("could not replace profile file: %w", err)
	}
	return nil
}

func decodeRecord(name string, rec profileRecord) (*Profile, error) {
	key, err := base64.StdEncoding.DecodeString(rec.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not decode private key for %q: %w", name, err)
	}
	if len(key) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("invalid private key length for %q: expected %d, got %d", name, solana.PrivateKeyLength, len(key))
	}
	return &Profile{Name: name, PrivateKey: solana.PrivateKey(key), CreatedAt: rec.CreatedAt}, nil
}

// GetWallet returns the profile called name.
func (db *JSONDB) GetWallet(name string) (*Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, err := db.load()
	if err != nil {
		return nil, err
	}
	rec, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return decodeRecord(name, rec)
}

// SaveWallet stores key under name. Existing profiles are never overwritten.
func (db *JSONDB) SaveWallet(name string, key solana.PrivateKey) (*Profile, error) {
	if !profileNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid profile name %q: use letters, digits, '-' or '_' (max 32)", name)
	}
	if len(key) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("invalid private key length: expected %d, got %d", solana.PrivateKeyLength, len(key))
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	f, err := db.load()
	if err != nil {
		return nil, err
	}
	if _, ok := f.Profiles[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, name)
	}
	rec := profileRecord{
		PrivateKey: base64.StdEncoding.EncodeToString(key),
		CreatedAt:  db.now().UTC().Truncate(time.Second),
	}
	f.Profiles[name] = rec
	if err := db.store(f); err != nil {
		return nil, err
	}
	return decodeRecord(name, rec)
}

// CreateWallet generates a new keypair and stores it under name.
func (db *JSONDB) CreateWallet(name string) (*Profile, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate keypair: %w", err)
	}
	return db.SaveWallet(name, key)
}

// DeleteWallet removes the profile called name.
func (db *JSONDB) DeleteWallet(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, err := db.load()
	if err != nil {
		return err
	}
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(f.Profiles, name)
	return db.store(f)
}

// GetAllWalletNames returns the stored profile names in sorted order.
func (db *JSONDB) GetAllWalletNames() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, err := db.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Addresses maps every profile name to its public key.
func (db *JSONDB) Addresses() (map[string]solana.PublicKey, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, err := db.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]solana.PublicKey, len(f.Profiles))
	for name, rec := range f.Profiles {
		p, err := decodeRecord(name, rec)
		if err != nil {
			return nil, err
		}
		out[name] = p.PublicKey()
	}
	return out, nil
}

// Close is a no-op kept so callers can treat the store like other handles.
func (db *JSONDB) Close() error {
	return nil
}
