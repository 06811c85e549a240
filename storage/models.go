package storage

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Profile is a named signing keypair kept in local storage.
type Profile struct {
	Name       string
	PrivateKey solana.PrivateKey
	CreatedAt  time.Time
}

// PublicKey returns the profile's address.
func (p *Profile) PublicKey() solana.PublicKey {
	return p.PrivateKey.PublicKey()
}

// profileRecord is the on-disk form of a Profile.
type profileRecord struct {
	PrivateKey string    `json:"private_key"` // base64
	CreatedAt  time.Time `json:"created_at"`
}

// profileFile is the whole storage file, keyed by profile name.
type profileFile struct {
	Profiles map[string]profileRecord `json:"profiles"`
}
