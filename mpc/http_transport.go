package mpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// maxStepPayload bounds a single step message. The largest legitimate
// payload is the input-sharing vector, well under this for any sane capacity.
const maxStepPayload = 16 << 20

// HTTPPeerTransport is the networked PairTransport. Each party runs an HTTP
// endpoint receiving the counterpart's step payloads; Exchange posts this
// party's payload to the peer and waits for the matching inbound step.
type HTTPPeerTransport struct {
	runID   string
	peerURL string
	client  *http.Client

	mu    sync.Mutex
	inbox map[uint64]chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHTTPPeerTransport creates a transport for one run against the given
// counterpart base URL.
func NewHTTPPeerTransport(runID, peerURL string, client *http.Client) *HTTPPeerTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPeerTransport{
		runID:   runID,
		peerURL: peerURL,
		client:  client,
		inbox:   make(map[uint64]chan []byte),
		closed:  make(chan struct{}),
	}
}

// RegisterRoutes mounts the inbound step endpoint on the party's router.
func (t *HTTPPeerTransport) RegisterRoutes(r chi.Router) {
	r.Post("/mpc/{run_id}/step/{seq}", t.handleStep)
}

func (t *HTTPPeerTransport) handleStep(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "run_id") != t.runID {
		http.Error(w, "unknown run", http.StatusNotFound)
		return
	}

	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		http.Error(w, "bad step sequence", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxStepPayload))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	select {
	case t.waitChan(seq) <- payload:
		w.WriteHeader(http.StatusOK)
	default:
		// A second payload for the same step means the peer desynced.
		http.Error(w, "duplicate step", http.StatusConflict)
	}
}

// waitChan returns the delivery channel for a step, creating it if the
// payload arrives before the local party reaches that step.
func (t *HTTPPeerTransport) waitChan(seq uint64) chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.inbox[seq]
	if !ok {
		ch = make(chan []byte, 1)
		t.inbox[seq] = ch
	}
	return ch
}

func (t *HTTPPeerTransport) dropChan(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inbox, seq)
}

// Exchange implements PairTransport over HTTP.
func (t *HTTPPeerTransport) Exchange(ctx context.Context, seq uint64, payload []byte) ([]byte, error) {
	ch := t.waitChan(seq)
	defer t.dropChan(seq)

	url := fmt.Sprintf("%s/mpc/%s/step/%d", t.peerURL, t.runID, seq)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send step %d: %v", ErrProtocolAbort, seq, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: peer rejected step %d with status %d", ErrProtocolAbort, seq, resp.StatusCode)
	}

	select {
	case data := <-ch:
		return data, nil
	case <-t.closed:
		return nil, fmt.Errorf("%w: transport closed", ErrProtocolAbort)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for step %d: %v", ErrProtocolAbort, seq, ctx.Err())
	}
}

// Close terminates the transport; blocked exchanges abort.
func (t *HTTPPeerTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
