// Package identity turns the caller's Ed25519 key pair into the
// self-signed TLS certificate QUIC Engine presents during the TPU QUIC
// handshake (spec §6). Certificate generation happens once at startup;
// its output is consumed by pkg/quicengine.
//
// Certificate/key material is the one place this module reaches for
// the standard library instead of a pack dependency: crypto/ed25519,
// crypto/x509, and crypto/tls are the idiomatic (and, for TLS
// certificates specifically, only sane) choice — every Go QUIC client,
// including quic-go's own examples, builds tls.Certificate this way,
// and no library in the example pack offers an alternative.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/asymmetric-research/scramjet/internal/errkind"
)

// pkcs8Ed25519Prefix is the fixed 16-byte DER header that precedes the
// raw 32-byte seed in an Ed25519 PKCS#8 PrivateKeyInfo. It encodes:
//
//	SEQUENCE { INTEGER 0, SEQUENCE { OID 1.3.101.112 }, OCTET STRING (34 bytes) }
//
// where the inner OCTET STRING's payload is itself "04 20" (OCTET
// STRING, length 32) followed by the raw seed.
var pkcs8Ed25519Prefix = []byte{
	0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20,
}

// WrapSeedPKCS8 wraps a raw 32-byte Ed25519 seed in a PKCS#8
// PrivateKeyInfo envelope.
func WrapSeedPKCS8(seed []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errkind.Mark(errkind.ConfigInvalid, nil, "ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	out := make([]byte, 0, len(pkcs8Ed25519Prefix)+len(seed))
	out = append(out, pkcs8Ed25519Prefix...)
	out = append(out, seed...)
	return out, nil
}

// UnwrapSeedPKCS8 recovers the raw 32-byte seed from a PKCS#8 envelope
// produced by WrapSeedPKCS8. Round-trips byte-for-byte with it.
func UnwrapSeedPKCS8(der []byte) ([]byte, error) {
	if len(der) != len(pkcs8Ed25519Prefix)+ed25519.SeedSize {
		return nil, errkind.Mark(errkind.ConfigInvalid, nil, "malformed pkcs8 ed25519 envelope: length %d", len(der))
	}
	prefix, seed := der[:len(pkcs8Ed25519Prefix)], der[len(pkcs8Ed25519Prefix):]
	for i := range pkcs8Ed25519Prefix {
		if prefix[i] != pkcs8Ed25519Prefix[i] {
			return nil, errkind.Mark(errkind.ConfigInvalid, nil, "malformed pkcs8 ed25519 envelope: unexpected header")
		}
	}
	return seed, nil
}

// KeyPair is the caller-supplied Ed25519 identity (spec §6): a raw
// 32-byte seed and its corresponding 32-byte public key.
type KeyPair struct {
	Seed      [ed25519.SeedSize]byte
	PublicKey [ed25519.PublicKeySize]byte
}

// Certificate builds the self-signed X.509 certificate QUIC Engine
// presents on the wire: a TLS 1.3 certificate wrapping the caller's
// Ed25519 identity, with server-certificate verification disabled on
// the dial side since validators use ephemeral certs (spec §4.3/§6).
func (k KeyPair) Certificate() (tls.Certificate, error) {
	priv := ed25519.NewKeyFromSeed(k.Seed[:])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(k.PublicKey[:])) {
		return tls.Certificate{}, errkind.Mark(errkind.ConfigInvalid, nil, "public key does not match seed")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate certificate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "scramjet"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create self-signed certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}
