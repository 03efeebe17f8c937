package save

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadSignature is returned for a profile its owner didn't sign
var ErrBadSignature = errors.New("save: bad signature")

var signing = jwt.SigningMethodEdDSA

// signingString is what a signature covers: the encoded profile without
// its signature
func signingString(p Profile) (string, error) {
	p.Sig = ""
	raw, err := Encode(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Sign returns p signed with key. The profile id must be the hex public
// half of key.
func Sign(p Profile, key ed25519.PrivateKey) (Profile, error) {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || p.ID != hex.EncodeToString(pub) {
		return Profile{}, fmt.Errorf("sign %q: id is not the signing key", p.ID)
	}
	msg, err := signingString(p)
	if err != nil {
		return Profile{}, err
	}
	sig, err := signing.Sign(msg, key)
	if err != nil {
		return Profile{}, fmt.Errorf("sign %q: %w", p.ID, err)
	}
	p.Sig = base64.RawURLEncoding.EncodeToString(sig)
	return p, nil
}

// VerifySignature checks p.Sig against the public key p.ID names
func VerifySignature(p Profile) error {
	pub, err := hex.DecodeString(p.ID)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: id %q is not a public key", ErrBadSignature, p.ID)
	}
	if p.Sig == "" {
		return fmt.Errorf("%w: unsigned", ErrBadSignature)
	}
	sig, err := base64.RawURLEncoding.DecodeString(p.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	msg, err := signingString(p)
	if err != nil {
		return err
	}
	if err := signing.Verify(msg, sig, ed25519.PublicKey(pub)); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

// Verify decodes a profile from another peer and checks its owner signed
// it. Invalid documents fail with ErrInvalidProfile, forged ones with
// ErrBadSignature.
func Verify(raw []byte) (Profile, error) {
	p, err := Decode(raw)
	if err != nil {
		return Profile{}, err
	}
	if err := VerifySignature(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
