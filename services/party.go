package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/match"
	"github.com/privmatch/matchnet/mpc"
	"github.com/privmatch/matchnet/token"
)

// PartyConfig configures one data party's service for a single run.
type PartyConfig struct {
	// Match carries the public protocol parameters. A zero Capacity means
	// the padding bound is negotiated from the declared bounds instead of
	// being fixed up front.
	Match match.Config

	RunID     string
	PeerURL   string
	DealerURL string

	// PeerPublicKey optionally pins the counterpart's hex-encoded signing
	// key. When empty, any well-signed handshake for this run is accepted.
	PeerPublicKey string

	// DeclaredBound is the public dataset size bound this party announces
	// during capacity negotiation. Zero means "use the true dataset size",
	// which reveals it; parties wanting to hide their size set this higher.
	DeclaredBound int
	Margin        int

	TripleBatch int
}

// HandshakeRequest opens a run: party 0 sends its key encapsulation public
// key so both sides can derive the per-run session secret.
type HandshakeRequest struct {
	RunID        string `json:"run_id"`
	PartyIndex   int    `json:"party_index"`
	KemPublicKey string `json:"kem_public_key"`
}

// HandshakeResponse carries the responder's key encapsulation public key.
type HandshakeResponse struct {
	RunID        string `json:"run_id"`
	PartyIndex   int    `json:"party_index"`
	KemPublicKey string `json:"kem_public_key"`
}

// HTTPParty is one data party's deployable service. It mounts the protocol
// step endpoint, answers the counterpart's handshake, and drives a full
// matching run against the configured peer and dealer.
type HTTPParty struct {
	cfg          *PartyConfig
	signingKey   crypto.PrivateKey
	peerIdentity crypto.PublicKey // empty unless pinned in the config
	kemPub       crypto.KemPublicKey
	kemPriv      crypto.KemPrivateKey

	transport *mpc.HTTPPeerTransport
	store     RunStore
	client    *http.Client

	running *atomic.Bool

	peerKem       chan crypto.KemPublicKey // responder side, buffered 1
	handshakeDone *atomic.Bool
}

// NewHTTPParty creates a party service. The store may be nil, in which case
// run outcomes are kept in memory only.
func NewHTTPParty(cfg *PartyConfig, signingKey crypto.PrivateKey, store RunStore) (*HTTPParty, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("party config has empty run ID")
	}
	if cfg.Match.PartyIndex != match.PartyA && cfg.Match.PartyIndex != match.PartyB {
		return nil, fmt.Errorf("party index %d is not a data party", cfg.Match.PartyIndex)
	}
	if cfg.PeerURL == "" || cfg.DealerURL == "" {
		return nil, fmt.Errorf("peer and dealer URLs are required")
	}

	var peerIdentity crypto.PublicKey
	if cfg.PeerPublicKey != "" {
		var err error
		peerIdentity, err = crypto.NewPublicKeyFromString(cfg.PeerPublicKey)
		if err != nil {
			return nil, fmt.Errorf("parsing pinned peer key: %w", err)
		}
	}

	kemPub, kemPriv, err := crypto.GenerateKemKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating exchange keys: %w", err)
	}

	if store == nil {
		store = NewMemoryRunStore()
	}

	return &HTTPParty{
		cfg:           cfg,
		signingKey:    signingKey,
		peerIdentity:  peerIdentity,
		kemPub:        kemPub,
		kemPriv:       kemPriv,
		transport:     mpc.NewHTTPPeerTransport(cfg.RunID, cfg.PeerURL, nil),
		store:         store,
		client:        &http.Client{Timeout: 30 * time.Second},
		running:       atomic.NewBool(false),
		peerKem:       make(chan crypto.KemPublicKey, 1),
		handshakeDone: atomic.NewBool(false),
	}, nil
}

// RegisterRoutes mounts the party's endpoints.
func (p *HTTPParty) RegisterRoutes(r chi.Router) {
	p.transport.RegisterRoutes(r)
	r.Post("/handshake", p.handleHandshake)
	r.Get("/runs/{run_id}", p.handleGetRun)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// handleHandshake is the responder side of the handshake; only party 1
// answers it, since party 0 always initiates.
func (p *HTTPParty) handleHandshake(w http.ResponseWriter, r *http.Request) {
	if p.cfg.Match.PartyIndex != match.PartyB {
		http.Error(w, "this party initiates handshakes", http.StatusMethodNotAllowed)
		return
	}

	var signed Signed[HandshakeRequest]
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&signed); err != nil {
		http.Error(w, "malformed handshake", http.StatusBadRequest)
		return
	}

	// Route on the claimed run ID before verifying: a handshake for a run
	// this party is not serving is rejected without a signature check.
	if claimed := signed.UnsafeObject(); claimed == nil || claimed.RunID != p.cfg.RunID {
		http.Error(w, "unknown run", http.StatusNotFound)
		return
	}

	req, signer, err := signed.Recover()
	if err != nil {
		http.Error(w, "handshake signature invalid", http.StatusUnauthorized)
		return
	}
	if len(p.peerIdentity) > 0 && !signer.Equal(p.peerIdentity) {
		http.Error(w, "unexpected counterpart identity", http.StatusUnauthorized)
		return
	}
	if req.PartyIndex != match.PartyA {
		http.Error(w, "handshake from unexpected party", http.StatusBadRequest)
		return
	}

	peerKem, err := decodeKemKey(req.KemPublicKey)
	if err != nil {
		http.Error(w, "malformed exchange key", http.StatusBadRequest)
		return
	}

	if !p.handshakeDone.CompareAndSwap(false, true) {
		http.Error(w, "handshake already completed", http.StatusConflict)
		return
	}
	p.peerKem <- peerKem

	resp, err := NewSigned(p.signingKey, &HandshakeResponse{
		RunID:        p.cfg.RunID,
		PartyIndex:   p.cfg.Match.PartyIndex,
		KemPublicKey: hex.EncodeToString(p.kemPub[:]),
	})
	if err != nil {
		http.Error(w, "signing response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (p *HTTPParty) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := p.store.GetRun(chi.URLParam(r, "run_id"))
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// handshake establishes the per-run session secret. Party 0 posts its
// exchange key to the counterpart; party 1 waits for that post to arrive.
func (p *HTTPParty) handshake(ctx context.Context) (crypto.SharedKey, error) {
	var peerKem crypto.KemPublicKey

	if p.cfg.Match.PartyIndex == match.PartyA {
		signed, err := NewSigned(p.signingKey, &HandshakeRequest{
			RunID:        p.cfg.RunID,
			PartyIndex:   p.cfg.Match.PartyIndex,
			KemPublicKey: hex.EncodeToString(p.kemPub[:]),
		})
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(signed)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.PeerURL+"/handshake", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("handshake request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("counterpart rejected handshake with status %d", httpResp.StatusCode)
		}

		var signedResp Signed[HandshakeResponse]
		if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&signedResp); err != nil {
			return nil, fmt.Errorf("malformed handshake response: %w", err)
		}
		resp, signer, err := signedResp.Recover()
		if err != nil {
			return nil, fmt.Errorf("handshake response: %w", err)
		}
		if len(p.peerIdentity) > 0 && !signer.Equal(p.peerIdentity) {
			return nil, fmt.Errorf("unexpected counterpart identity")
		}
		if resp.RunID != p.cfg.RunID || resp.PartyIndex != match.PartyB {
			return nil, fmt.Errorf("handshake response for wrong run or party")
		}
		peerKem, err = decodeKemKey(resp.KemPublicKey)
		if err != nil {
			return nil, fmt.Errorf("handshake response: %w", err)
		}
	} else {
		select {
		case peerKem = <-p.peerKem:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for counterpart handshake: %w", ctx.Err())
		}
	}

	return crypto.DeriveSharedSecret(p.kemPriv, peerKem, []byte("matchnet/run/"+p.cfg.RunID))
}

// RunMatch executes one full matching run over this party's raw identifiers
// and returns the revealed match count. The outcome, success or abort, is
// recorded in the run store either way.
func (p *HTTPParty) RunMatch(ctx context.Context, raws []string) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, fmt.Errorf("run %s already in progress", p.cfg.RunID)
	}
	defer p.running.Store(false)

	started := time.Now()
	count, capacity, err := p.runMatch(ctx, raws)

	record := &RunRecord{
		RunID:      p.cfg.RunID,
		PartyIndex: p.cfg.Match.PartyIndex,
		Capacity:   capacity,
		MatchCount: count,
		Status:     RunCompleted,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		record.Status = RunAborted
		record.MatchCount = 0
		record.Error = err.Error()
	}
	if saveErr := p.store.SaveRun(record); saveErr != nil && err == nil {
		err = fmt.Errorf("recording run outcome: %w", saveErr)
	}

	return count, err
}

func (p *HTTPParty) runMatch(ctx context.Context, raws []string) (count, capacity int, err error) {
	tokens, err := token.NormalizeAll(raws)
	if err != nil {
		return 0, 0, err
	}

	sessionKey, err := p.handshake(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("handshake: %w", err)
	}
	sessionTag, err := crypto.DeriveSubKey(sessionKey, "matchnet/session-tag")
	if err != nil {
		return 0, 0, err
	}

	declaredBound := p.cfg.DeclaredBound
	margin := p.cfg.Margin
	if p.cfg.Match.Capacity > 0 {
		// Fixed capacity: declare it as-is and accept no negotiation slack.
		declaredBound = p.cfg.Match.Capacity
		margin = 0
	} else if declaredBound <= 0 {
		declaredBound = max(len(tokens), 1)
	}

	capacity, err = match.NegotiateCapacity(ctx, p.transport, sessionTag, declaredBound, margin)
	if err != nil {
		return 0, 0, fmt.Errorf("capacity negotiation: %w", err)
	}
	if p.cfg.Match.Capacity > 0 && capacity != p.cfg.Match.Capacity {
		return 0, capacity, fmt.Errorf("%w: counterpart expects capacity %d, configured %d",
			mpc.ErrProtocolAbort, capacity, p.cfg.Match.Capacity)
	}

	padded, err := token.Pad(tokens, capacity, p.cfg.Match.PartyIndex)
	if err != nil {
		return 0, capacity, err
	}

	triples := mpc.NewHTTPTripleSource(p.cfg.DealerURL, p.cfg.RunID, p.cfg.Match.PartyIndex,
		p.cfg.TripleBatch, crypto.TokenFieldOrder, p.client)
	engine, err := mpc.NewEngine(crypto.TokenFieldOrder, p.cfg.Match.PartyIndex, p.transport, triples)
	if err != nil {
		return 0, capacity, err
	}

	runCfg := p.cfg.Match
	runCfg.Capacity = capacity
	matcher, err := match.NewMatcher(&runCfg, match.NewEngineSharer(engine))
	if err != nil {
		return 0, capacity, err
	}

	count, err = matcher.Run(ctx, padded)
	return count, capacity, err
}

// Close shuts down the party's transport; a run in flight aborts.
func (p *HTTPParty) Close() error {
	return p.transport.Close()
}

// PublicKey returns the party's signing identity.
func (p *HTTPParty) PublicKey() (crypto.PublicKey, error) {
	return p.signingKey.PublicKey()
}

func decodeKemKey(s string) (crypto.KemPublicKey, error) {
	var key crypto.KemPublicKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("exchange key has %d bytes, want %d", len(raw), len(key))
	}
	copy(key[:], raw)
	return key, nil
}
