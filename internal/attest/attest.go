// Package attest issues signed match attestations: short-lived Ed25519
// statements that a subject was identified at a given distance under a
// given model. Downstream systems (door controllers, attendance
// recorders) can verify a match without trusting the transport.
package attest

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// distanceScale converts the floating-point cosine distance into a
// fixed-point integer for deterministic serialization: distance 0.1234
// serializes as 1234.
const distanceScale = 10000

// MatchAttestation is the signed statement. Distance is fixed-point
// (see distanceScale) so the signing payload is byte-deterministic.
type MatchAttestation struct {
	UserID   string
	Model    string
	Distance uint32 // cosine distance × distanceScale
	IssuedAt uint64 // unix seconds
	Expiry   uint64 // unix seconds
	Issuer   string // base64 of the issuer's public key
}

// Signer holds the service's attestation key pair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner derives the key pair from a 32-byte base64-encoded seed.
func NewSigner(seedB64 string) (*Signer, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("attest: decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attest: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// PublicKeyB64 returns the issuer identity embedded in attestations.
func (s *Signer) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(s.pub)
}

// Attest creates and signs an attestation for a successful match.
func (s *Signer) Attest(userID, model string, distance float64, ttl time.Duration) (*MatchAttestation, []byte, error) {
	if distance < 0 {
		return nil, nil, errors.New("attest: negative distance")
	}
	now := time.Now()
	a := &MatchAttestation{
		UserID:   userID,
		Model:    model,
		Distance: uint32(math.Round(distance * distanceScale)),
		IssuedAt: uint64(now.Unix()),
		Expiry:   uint64(now.Add(ttl).Unix()),
		Issuer:   s.PublicKeyB64(),
	}
	if a.Expiry <= a.IssuedAt {
		return nil, nil, errors.New("attest: expiry must be in the future")
	}
	sig := ed25519.Sign(s.priv, Serialize(a))
	return a, sig, nil
}

// Serialize produces the deterministic signing payload: length-prefixed
// strings and big-endian integers, in field order.
func Serialize(a *MatchAttestation) []byte {
	buf := make([]byte, 0, 64+len(a.UserID)+len(a.Model)+len(a.Issuer))
	buf = appendString(buf, a.UserID)
	buf = appendString(buf, a.Model)
	buf = binary.BigEndian.AppendUint32(buf, a.Distance)
	buf = binary.BigEndian.AppendUint64(buf, a.IssuedAt)
	buf = binary.BigEndian.AppendUint64(buf, a.Expiry)
	buf = appendString(buf, a.Issuer)
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Verify checks the signature against the issuer's public key.
func Verify(a *MatchAttestation, signature []byte, publicKey ed25519.PublicKey) error {
	if !ed25519.Verify(publicKey, Serialize(a), signature) {
		return errors.New("attest: invalid signature")
	}
	return nil
}

// IsExpired checks if the attestation has expired.
func (a *MatchAttestation) IsExpired() bool {
	return uint64(time.Now().Unix()) >= a.Expiry
}

// Validate checks structural validity and expiry.
func (a *MatchAttestation) Validate() error {
	if a.UserID == "" {
		return errors.New("attest: user id cannot be empty")
	}
	if a.Model == "" {
		return errors.New("attest: model cannot be empty")
	}
	if a.Issuer == "" {
		return errors.New("attest: issuer cannot be empty")
	}
	if a.IsExpired() {
		return errors.New("attest: attestation has expired")
	}
	return nil
}
