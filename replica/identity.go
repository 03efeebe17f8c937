package replica

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"go-ripple/save"
)

// ErrInvalidSecret is returned for a secret that can't derive a key
var ErrInvalidSecret = errors.New("replica: invalid secret")

// Identity is the local peer: the key derived from its secret. The public
// key is the id of the profile this peer may write and sign.
type Identity struct {
	key    ed25519.PrivateKey
	public string
}

// GenerateSecret returns a fresh hex-encoded ed25519 seed
func GenerateSecret() (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(seed), nil
}

// ValidateSecret checks a secret can derive a key
func ValidateSecret(secret string) error {
	_, err := PublicKey(secret)
	return err
}

// PublicKey derives the hex public key for a secret
func PublicKey(secret string) (string, error) {
	id, err := NewIdentity(secret)
	if err != nil {
		return "", err
	}
	return id.public, nil
}

// NewIdentity builds an identity from a secret
func NewIdentity(secret string) (Identity, error) {
	seed, err := hex.DecodeString(secret)
	if err != nil || len(seed) != ed25519.SeedSize {
		return Identity{}, ErrInvalidSecret
	}
	key := ed25519.NewKeyFromSeed(seed)
	return Identity{
		key:    key,
		public: hex.EncodeToString(key.Public().(ed25519.PublicKey)),
	}, nil
}

// PublicKey returns the identity's public key
func (id Identity) PublicKey() string {
	return id.public
}

// Sign signs a profile this identity owns
func (id Identity) Sign(p save.Profile) (save.Profile, error) {
	return save.Sign(p, id.key)
}
