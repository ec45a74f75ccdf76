package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/match"
)

func newTestParty(t *testing.T, index int, runID, peerURL string) *HTTPParty {
	t.Helper()

	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	p, err := NewHTTPParty(&PartyConfig{
		Match:     match.Config{PartyIndex: index, PartyCount: 3},
		RunID:     runID,
		PeerURL:   peerURL,
		DealerURL: "http://127.0.0.1:1",
	}, priv, nil)
	require.NoError(t, err)
	return p
}

func TestNewHTTPPartyValidation(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cases := map[string]*PartyConfig{
		"empty run id": {
			Match:   match.Config{PartyIndex: 0, PartyCount: 3},
			PeerURL: "http://peer", DealerURL: "http://dealer",
		},
		"helper is not a data party": {
			Match: match.Config{PartyIndex: match.HelperParty, PartyCount: 3},
			RunID: "run-1", PeerURL: "http://peer", DealerURL: "http://dealer",
		},
		"missing dealer": {
			Match: match.Config{PartyIndex: 0, PartyCount: 3},
			RunID: "run-1", PeerURL: "http://peer",
		},
	}
	for name, cfg := range cases {
		_, err := NewHTTPParty(cfg, priv, nil)
		require.Error(t, err, name)
	}
}

// Both sides of the handshake must derive the same session secret.
func TestHandshakeDerivesSharedSecret(t *testing.T) {
	responder := newTestParty(t, match.PartyB, "run-1", "http://127.0.0.1:1")
	r := chi.NewRouter()
	responder.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	initiator := newTestParty(t, match.PartyA, "run-1", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		key crypto.SharedKey
		err error
	}
	responderDone := make(chan result, 1)
	go func() {
		key, err := responder.handshake(ctx)
		responderDone <- result{key, err}
	}()

	initiatorKey, err := initiator.handshake(ctx)
	require.NoError(t, err)

	res := <-responderDone
	require.NoError(t, res.err)
	require.Equal(t, initiatorKey.Bytes(), res.key.Bytes())
}

func TestHandshakeRejectsWrongRun(t *testing.T) {
	responder := newTestParty(t, match.PartyB, "run-1", "http://127.0.0.1:1")
	r := chi.NewRouter()
	responder.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	kemPub, _, err := crypto.GenerateKemKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &HandshakeRequest{
		RunID:        "other-run",
		PartyIndex:   match.PartyA,
		KemPublicKey: hex.EncodeToString(kemPub[:]),
	})
	require.NoError(t, err)
	body, err := json.Marshal(signed)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/handshake", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandshakeRejectsUnsignedGarbage(t *testing.T) {
	responder := newTestParty(t, match.PartyB, "run-1", "http://127.0.0.1:1")
	r := chi.NewRouter()
	responder.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// Right run, no signature.
	body := []byte(`{"object":{"run_id":"run-1"}}`)
	resp, err := http.Post(srv.URL+"/handshake", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakePinnedPeerIdentity(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	responder, err := NewHTTPParty(&PartyConfig{
		Match:         match.Config{PartyIndex: match.PartyB, PartyCount: 3},
		RunID:         "run-1",
		PeerURL:       "http://127.0.0.1:1",
		DealerURL:     "http://127.0.0.1:1",
		PeerPublicKey: "00ff", // pins an identity nobody holds
	}, priv, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	responder.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	initiator := newTestParty(t, match.PartyA, "run-1", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = initiator.handshake(ctx)
	require.Error(t, err)
}

func TestNewHTTPPartyRejectsBadPinnedKey(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	_, err = NewHTTPParty(&PartyConfig{
		Match:         match.Config{PartyIndex: match.PartyA, PartyCount: 3},
		RunID:         "run-1",
		PeerURL:       "http://peer",
		DealerURL:     "http://dealer",
		PeerPublicKey: "not-hex",
	}, priv, nil)
	require.Error(t, err)
}
