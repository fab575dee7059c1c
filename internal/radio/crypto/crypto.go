// Package crypto implements the owner-identity scheme for station
// advertisements and releases: canonical byte encoding plus Ed25519
// signatures, with 32-byte public keys and 64-byte signatures carried
// base64-encoded (standard alphabet, padded) on the wire.
package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/shortwave/go-shortwave/internal/errors"
)

// Namespaces embedded in canonical bytes. They bind a signature to a single
// message kind so an advertisement signature can never be replayed as a
// release (or vice versa).
const (
	NamespaceAdvertise = "advertise"
	NamespaceRelease   = "release"
)

// CanonicalAdBytes builds the exact byte string an advertisement signature
// covers. Any deviation in field order, separators, or whitespace breaks
// verification, so both the signer and the verifier must route through this
// function. The timestamp is the RFC 3339 string exactly as the sender
// serialized it.
func CanonicalAdBytes(namespace, frequencyKey, stationID, streamURL, advertisedAt string, ttlSeconds uint32) []byte {
	return []byte(fmt.Sprintf("shortwave:%s:freq=%s;station=%s;url=%s;at=%s;ttl=%d",
		namespace, frequencyKey, stationID, streamURL, advertisedAt, ttlSeconds))
}

// CanonicalReleaseBytes builds the byte string a release signature covers.
func CanonicalReleaseBytes(namespace, frequencyKey, stationID string) []byte {
	return []byte(fmt.Sprintf("shortwave:%s:freq=%s;station=%s", namespace, frequencyKey, stationID))
}

// ParsePublicKeyB64 decodes a base64 32-byte Ed25519 public key.
func ParsePublicKeyB64(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.NewSignatureError("decode public key", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.NewSignatureError("decode public key",
			fmt.Errorf("got %d bytes, want %d", len(raw), ed25519.PublicKeySize))
	}
	return ed25519.PublicKey(raw), nil
}

// ParseSignatureB64 decodes a base64 64-byte Ed25519 signature.
func ParseSignatureB64(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.NewSignatureError("decode signature", err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, errors.NewSignatureError("decode signature",
			fmt.Errorf("got %d bytes, want %d", len(raw), ed25519.SignatureSize))
	}
	return raw, nil
}

// ParseSecretKeyB64 decodes a base64 32-byte Ed25519 seed into a private key.
func ParseSecretKeyB64(b64 string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode owner secret key: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("decode owner secret key: got %d bytes, want %d", len(raw), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// EncodePublicKeyB64 renders a public key for the wire.
func EncodePublicKeyB64(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// EncodeSignatureB64 renders a signature for the wire.
func EncodeSignatureB64(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// Sign produces a deterministic (RFC 8032) Ed25519 signature over data.
func Sign(priv ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(priv, data)
}

// Verify checks sig over data under pub. A SignatureError is returned on
// mismatch so callers can classify without string matching.
func Verify(pub ed25519.PublicKey, data, sig []byte) error {
	if !ed25519.Verify(pub, data, sig) {
		return errors.NewSignatureError("verify", nil)
	}
	return nil
}
