package signature

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// Headers carrying the detached signature and the timestamp it binds.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verify reports whether signatureHex is a valid Ed25519 signature by
// publicKeyHex over timestamp followed by the raw request body. Malformed
// input of any kind is a failed verification, never an error.
func Verify(timestamp string, rawBody []byte, signatureHex, publicKeyHex string) bool {
	key, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	return verify(key, timestamp, rawBody, signatureHex)
}

// ParsePublicKey decodes a hex-encoded 32-byte Ed25519 public key.
func ParsePublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verifier holds a parsed public key for repeated checks.
type Verifier struct {
	key ed25519.PublicKey
}

func NewVerifier(publicKeyHex string) (*Verifier, error) {
	key, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: key}, nil
}

func (v *Verifier) Verify(timestamp string, rawBody []byte, signatureHex string) bool {
	if v == nil {
		return false
	}
	return verify(v.key, timestamp, rawBody, signatureHex)
}

func verify(key ed25519.PublicKey, timestamp string, rawBody []byte, signatureHex string) bool {
	if timestamp == "" || signatureHex == "" {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, Message(timestamp, rawBody), sig)
}

// Message builds the signed bytes: timestamp || body.
func Message(timestamp string, rawBody []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(rawBody))
	msg = append(msg, timestamp...)
	return append(msg, rawBody...)
}
