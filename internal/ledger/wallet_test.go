package ledger

import (
	"encoding/hex"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/stretchr/testify/require"
)

func TestNewCredential(t *testing.T) {
	cred, err := NewCredential()
	require.NoError(t, err)
	require.True(t, cred.Complete())

	// The stored address must match a fresh derivation from the public key.
	addr, err := DeriveAddress(cred.PublicKey)
	require.NoError(t, err)
	require.Equal(t, cred.Address, addr)
	require.Equal(t, "w", addr[:1])
	require.Len(t, addr, 41)
}

func TestDeriveAddressDeterministic(t *testing.T) {
	cred, err := NewCredential()
	require.NoError(t, err)

	a, err := DeriveAddress(cred.PublicKey)
	require.NoError(t, err)
	b, err := DeriveAddress(cred.PublicKey)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = DeriveAddress("not hex")
	require.Error(t, err)
	_, err = DeriveAddress("")
	require.Error(t, err)
}

func TestSignVerifies(t *testing.T) {
	cred, err := NewCredential()
	require.NoError(t, err)

	payload := []byte("w123:w456:500000")
	sigHex, err := cred.Sign(payload)
	require.NoError(t, err)

	sig, err := hex.DecodeString(sigHex)
	require.NoError(t, err)
	pub, err := hex.DecodeString(cred.PublicKey)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(ed25519.PublicKey(pub), payload, sig))
}

func TestSignRejectsBadKey(t *testing.T) {
	_, err := Credential{PrivateKey: "abcd"}.Sign([]byte("x"))
	require.ErrorIs(t, err, ErrMissingKeys)
}
