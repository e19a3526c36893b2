// Package wallet provides custodial keypair generation and the signing
// capability consumed by the transaction builder. The builder only ever
// sees the Signer interface, never raw key material.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Signer signs transaction messages for one wallet.
type Signer interface {
	// PublicKey returns the wallet address (base58).
	PublicKey() string

	// Sign signs the serialized transaction message.
	Sign(message []byte) ([]byte, error)
}

// Keypair is an ed25519 keypair in the Solana convention: the secret key is
// the 64-byte concatenation of seed and public key.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// FromSecretKey restores a keypair from its base58-encoded 64-byte secret.
func FromSecretKey(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key length %d, want %d", len(raw), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key")
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// PublicKey returns the wallet address (base58).
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.pub)
}

// SecretKey returns the base58-encoded 64-byte secret.
func (k *Keypair) SecretKey() string {
	return base58.Encode(k.priv)
}

// Sign signs a transaction message.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	if len(k.priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("malformed keypair")
	}
	return ed25519.Sign(k.priv, message), nil
}

var _ Signer = (*Keypair)(nil)

// ValidateAddress checks that addr is a base58-encoded point on the
// ed25519 curve.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("address length %d, want %d", len(raw), ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("address not on curve: %w", err)
	}
	return nil
}
