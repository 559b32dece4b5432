package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "journal.pub")
	privPath := filepath.Join(dir, "journal.priv")

	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, SaveKeyPair(pub, priv, pubPath, privPath))

	loadedPub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	require.Equal(t, pub, loadedPub)

	loadedPriv, err := LoadPrivateKey(privPath)
	require.NoError(t, err)
	require.Equal(t, priv, loadedPriv)
}

func TestEnsureKeyPairGeneratesThenLoads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	pub1, _, err := EnsureKeyPair(dir)
	require.NoError(t, err)

	pub2, _, err := EnsureKeyPair(dir)
	require.NoError(t, err)
	require.Equal(t, pub1, pub2, "second call must load, not regenerate")
}

func TestVerifyWebhook(t *testing.T) {
	secret := []byte("hunter2")
	payload := []byte(`{"type":"push","branch":"main"}`)

	sig := SignPayload(secret, payload)
	require.True(t, VerifyWebhook(secret, payload, sig))

	require.False(t, VerifyWebhook(secret, payload, "sha256=deadbeef"))
	require.False(t, VerifyWebhook([]byte("wrong"), payload, sig))
	require.False(t, VerifyWebhook(secret, []byte("other payload"), sig))
}
