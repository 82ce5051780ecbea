package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"time"
)

// NewTestSigner generates a signer from a random seed. Test helper.
func NewTestSigner() (*Signer, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return NewSigner(base64.StdEncoding.EncodeToString(seed))
}

// NewTestAttestation creates a signed attestation with a 1 hour TTL.
func NewTestAttestation(signer *Signer, userID string, distance float64) (*MatchAttestation, []byte, error) {
	return signer.Attest(userID, "test-model", distance, time.Hour)
}

// NewTestAttestationWithExpiry creates a signed attestation with a fixed
// expiry timestamp, for expiry-path tests.
func NewTestAttestationWithExpiry(signer *Signer, userID string, expiry uint64) (*MatchAttestation, []byte, error) {
	a := &MatchAttestation{
		UserID:   userID,
		Model:    "test-model",
		Distance: 0,
		IssuedAt: uint64(time.Now().Unix()),
		Expiry:   expiry,
		Issuer:   signer.PublicKeyB64(),
	}
	sig := ed25519.Sign(signer.priv, Serialize(a))
	return a, sig, nil
}
