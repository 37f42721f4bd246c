package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapSeedPKCS8_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	seed := priv.Seed()

	der, err := WrapSeedPKCS8(seed)
	require.NoError(t, err)
	assert.Len(t, der, len(pkcs8Ed25519Prefix)+ed25519.SeedSize)

	got, err := UnwrapSeedPKCS8(der)
	require.NoError(t, err)
	assert.Equal(t, []byte(seed), got)

	recovered := ed25519.NewKeyFromSeed(got)
	assert.Equal(t, ed25519.PublicKey(pub), recovered.Public())
}

func TestWrapSeedPKCS8_WrongLength(t *testing.T) {
	_, err := WrapSeedPKCS8([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestUnwrapSeedPKCS8_MalformedHeader(t *testing.T) {
	bad := make([]byte, len(pkcs8Ed25519Prefix)+ed25519.SeedSize)
	_, err := UnwrapSeedPKCS8(bad)
	assert.Error(t, err)
}

func TestKeyPair_Certificate(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var kp KeyPair
	copy(kp.Seed[:], priv.Seed())
	copy(kp.PublicKey[:], pub)

	cert, err := kp.Certificate()
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
	assert.Equal(t, priv, cert.PrivateKey)
}

func TestKeyPair_Certificate_MismatchedKeys(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var kp KeyPair
	copy(kp.Seed[:], priv.Seed())
	copy(kp.PublicKey[:], otherPub)

	_, err = kp.Certificate()
	assert.Error(t, err)
}
