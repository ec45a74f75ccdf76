package services

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/mpc"
)

// maxTripleBatch bounds a single dealer response. A batch of this size covers
// several secure equality tests; clients fetch repeatedly for larger runs.
const maxTripleBatch = 4096

// Dealer is the helper party's service. It derives both data parties' triple
// share streams from a per-run seed and hands each party only its own shares.
// The dealer never sees tokens, token shares, or the match count.
type Dealer struct {
	masterSeed crypto.SharedKey

	mu   sync.Mutex
	runs map[string]*dealerRun
}

// dealerRun holds the two per-party stream views of one run. Requests for a
// run are serialized so each party's stream advances strictly in order.
type dealerRun struct {
	mu      sync.Mutex
	sources [2]*mpc.SeededTripleSource
	served  [2]int
}

// NewDealer creates a dealer from a master seed. A nil seed gets replaced by
// a fresh random one, which is the right choice for every deployment that
// does not need restart continuity.
func NewDealer(masterSeed crypto.SharedKey) (*Dealer, error) {
	if masterSeed == nil {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generating master seed: %w", err)
		}
		masterSeed = crypto.NewSharedKey(seed)
	}
	return &Dealer{
		masterSeed: masterSeed,
		runs:       make(map[string]*dealerRun),
	}, nil
}

// RegisterRoutes mounts the dealer endpoints.
func (d *Dealer) RegisterRoutes(r chi.Router) {
	r.Post("/triples/{run_id}", d.handleTriples)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// run returns the state for a run ID, creating it on first contact. Both
// parties' streams come from the same run seed, so the correlation z = x*y
// holds across their independent views.
func (d *Dealer) run(runID string) (*dealerRun, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state, ok := d.runs[runID]; ok {
		return state, nil
	}

	runSeed, err := crypto.DeriveSubKey(d.masterSeed, "dealer/run/"+runID)
	if err != nil {
		return nil, err
	}

	state := &dealerRun{}
	for party := 0; party < 2; party++ {
		src, err := mpc.NewSeededTripleSource(runSeed, party, crypto.TokenFieldOrder)
		if err != nil {
			return nil, err
		}
		state.sources[party] = src
	}
	d.runs[runID] = state
	return state, nil
}

func (d *Dealer) handleTriples(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	var req mpc.TripleBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if req.Party != 0 && req.Party != 1 {
		http.Error(w, "party index out of range", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 || req.Count > maxTripleBatch {
		http.Error(w, "batch count out of range", http.StatusBadRequest)
		return
	}

	state, err := d.run(runID)
	if err != nil {
		http.Error(w, "run setup failed", http.StatusInternalServerError)
		return
	}

	state.mu.Lock()
	resp := mpc.TripleBatchResponse{Triples: make([][3]string, 0, req.Count)}
	for i := 0; i < req.Count; i++ {
		t, err := state.sources[req.Party].Next(r.Context())
		if err != nil {
			state.mu.Unlock()
			http.Error(w, "triple derivation failed", http.StatusInternalServerError)
			return
		}
		resp.Triples = append(resp.Triples, [3]string{t.X.Text(16), t.Y.Text(16), t.Z.Text(16)})
	}
	state.served[req.Party] += req.Count
	state.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&resp)
}

// ServedTriples reports how many triples each party has consumed for a run.
func (d *Dealer) ServedTriples(runID string) (int, int) {
	d.mu.Lock()
	state, ok := d.runs[runID]
	d.mu.Unlock()
	if !ok {
		return 0, 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.served[0], state.served[1]
}
