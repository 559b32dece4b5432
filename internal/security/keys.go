// Package security holds the signing keys for the journal and the webhook
// signature check for the event feed.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
)

// GenerateKeyPair creates a new ed25519 key pair.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// SaveKeyPair writes both keys as hex files.
func SaveKeyPair(pub ed25519.PublicKey, priv ed25519.PrivateKey, pubPath, privPath string) error {
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0600); err != nil {
		return err
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return err
	}
	return nil
}

// LoadPrivateKey loads an ed25519 private key from a hex-encoded file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return ed25519.PrivateKey(keyBytes), nil
}

// LoadPublicKey loads an ed25519 public key from a hex-encoded file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, errors.New("invalid public key size")
	}
	return ed25519.PublicKey(keyBytes), nil
}

// EnsureKeyPair loads the journal signing keys from dir, generating and
// saving a fresh pair on first start.
func EnsureKeyPair(dir string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pubPath := filepath.Join(dir, "journal.pub")
	privPath := filepath.Join(dir, "journal.priv")

	if _, err := os.Stat(pubPath); os.IsNotExist(err) {
		pub, priv, err := GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, nil, err
		}
		if err := SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
			return nil, nil, err
		}
		return pub, priv, nil
	}

	pub, err := LoadPublicKey(pubPath)
	if err != nil {
		return nil, nil, err
	}
	priv, err := LoadPrivateKey(privPath)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}
