package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
)

// Credential is the signing material for one wallet. Keys are hex encoded;
// the address is derived from the public key and stored alongside it, so a
// stored address can always be checked against a re-derivation.
type Credential struct {
	PublicKey  string
	PrivateKey string
	Address    string
}

var ErrMissingKeys = errors.New("wallet keys not configured")

// NewCredential generates a fresh wallet keypair and derives its address.
func NewCredential() (Credential, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credential{}, fmt.Errorf("generate wallet keypair: %v", err)
	}
	pubHex := hex.EncodeToString(pub)
	addr, err := DeriveAddress(pubHex)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		PublicKey:  pubHex,
		PrivateKey: hex.EncodeToString(priv),
		Address:    addr,
	}, nil
}

// DeriveAddress computes the ledger address for a public key. The address is
// a 20-byte truncated SHA-256 of the raw key, hex encoded with a "w" prefix.
func DeriveAddress(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(raw) == 0 {
		return "", errors.New("invalid public key")
	}
	sum := sha256.Sum256(raw)
	return "w" + hex.EncodeToString(sum[:20]), nil
}

// Sign signs a submission payload with the wallet's private key.
func (c Credential) Sign(payload []byte) (string, error) {
	raw, err := hex.DecodeString(c.PrivateKey)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return "", ErrMissingKeys
	}
	sig := ed25519.Sign(ed25519.PrivateKey(raw), payload)
	return hex.EncodeToString(sig), nil
}

// Complete reports whether the credential carries all material needed to
// submit a transfer.
func (c Credential) Complete() bool {
	return c.PublicKey != "" && c.PrivateKey != "" && c.Address != ""
}
