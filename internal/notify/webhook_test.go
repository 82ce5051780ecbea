package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_DeliversSignedEnvelope(t *testing.T) {
	var gotBody []byte
	var gotSig, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "topsecret")
	err := c.Send(context.Background(), "face.registered", map[string]string{"user_id": "alice"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, "face.registered", env.Subject)
	assert.Equal(t, "face-api-webhook", gotUA)

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestSend_NoSecretNoSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	require.NoError(t, c.Send(context.Background(), "face.removed", map[string]string{}))
	assert.Empty(t, gotSig)
}

func TestSend_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.Send(context.Background(), "face.identified", map[string]string{})
	assert.ErrorContains(t, err, "status 502")
}

func TestSend_ConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	assert.Error(t, c.Send(context.Background(), "face.identified", map[string]string{}))
}
