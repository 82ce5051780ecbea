package attest

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_RejectsBadSeeds(t *testing.T) {
	_, err := NewSigner("not base64!!!")
	assert.Error(t, err)

	_, err = NewSigner(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestAttest_VerifyRoundTrip(t *testing.T) {
	signer, err := NewTestSigner()
	require.NoError(t, err)

	a, sig, err := signer.Attest("STU2025101", "grid-hog-v1", 0.1234, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "STU2025101", a.UserID)
	assert.Equal(t, uint32(1234), a.Distance)
	assert.Equal(t, signer.PublicKeyB64(), a.Issuer)
	require.NoError(t, a.Validate())

	pub, err := base64.StdEncoding.DecodeString(a.Issuer)
	require.NoError(t, err)
	assert.NoError(t, Verify(a, sig, pub))
}

func TestVerify_WrongKeyFails(t *testing.T) {
	signer, err := NewTestSigner()
	require.NoError(t, err)
	other, err := NewTestSigner()
	require.NoError(t, err)

	a, sig, err := NewTestAttestation(signer, "alice", 0.05)
	require.NoError(t, err)

	assert.Error(t, Verify(a, sig, other.pub))
}

func TestVerify_TamperedFieldFails(t *testing.T) {
	signer, err := NewTestSigner()
	require.NoError(t, err)

	a, sig, err := NewTestAttestation(signer, "alice", 0.05)
	require.NoError(t, err)

	a.UserID = "mallory"
	assert.Error(t, Verify(a, sig, signer.pub))
}

func TestExpiry(t *testing.T) {
	signer, err := NewTestSigner()
	require.NoError(t, err)

	past := uint64(time.Now().Add(-time.Minute).Unix())
	a, sig, err := NewTestAttestationWithExpiry(signer, "alice", past)
	require.NoError(t, err)

	// Signature still verifies; validity does not.
	assert.NoError(t, Verify(a, sig, signer.pub))
	assert.True(t, a.IsExpired())
	assert.Error(t, a.Validate())
}

func TestSerialize_Deterministic(t *testing.T) {
	a := &MatchAttestation{
		UserID:   "alice",
		Model:    "grid-hog-v1",
		Distance: 400,
		IssuedAt: 1700000000,
		Expiry:   1700000300,
		Issuer:   "issuer-key",
	}
	assert.Equal(t, Serialize(a), Serialize(a))

	b := *a
	b.Distance = 401
	assert.NotEqual(t, Serialize(a), Serialize(&b))
}

func TestSerialize_NoFieldConfusion(t *testing.T) {
	// Length prefixes keep ("ab","c") distinct from ("a","bc").
	a := &MatchAttestation{UserID: "ab", Model: "c"}
	b := &MatchAttestation{UserID: "a", Model: "bc"}
	assert.NotEqual(t, Serialize(a), Serialize(b))
}

func TestAttest_RejectsNegativeDistance(t *testing.T) {
	signer, err := NewTestSigner()
	require.NoError(t, err)
	_, _, err = signer.Attest("alice", "m", -0.1, time.Hour)
	assert.Error(t, err)
}
