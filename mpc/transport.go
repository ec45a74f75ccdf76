package mpc

import (
	"context"
	"fmt"
	"sync"
)

// PairTransport connects the two participating parties in lockstep. Both
// parties call Exchange with the same step sequence number; each receives
// the counterpart's payload for that step. A sequence mismatch means the
// parties have desynchronized and the run must abort.
type PairTransport interface {
	Exchange(ctx context.Context, seq uint64, payload []byte) ([]byte, error)
	Close() error
}

type frame struct {
	seq     uint64
	payload []byte
}

// LoopbackTransport is the in-process PairTransport for local simulation and
// tests: two endpoints connected by buffered channels. The close signal is
// shared by both endpoints: when either party terminates, a counterpart
// blocked mid-exchange aborts instead of waiting forever.
type LoopbackTransport struct {
	out chan frame
	in  chan frame

	closeOnce *sync.Once
	closed    chan struct{}
}

// NewLoopbackPair creates two connected loopback endpoints, one per party.
func NewLoopbackPair() (*LoopbackTransport, *LoopbackTransport) {
	ab := make(chan frame, 1)
	ba := make(chan frame, 1)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &LoopbackTransport{out: ab, in: ba, closeOnce: once, closed: closed}
	b := &LoopbackTransport{out: ba, in: ab, closeOnce: once, closed: closed}
	return a, b
}

// Exchange sends this party's payload for the step and waits for the
// counterpart's. The channels are buffered so both parties can send before
// either receives.
func (t *LoopbackTransport) Exchange(ctx context.Context, seq uint64, payload []byte) ([]byte, error) {
	select {
	case t.out <- frame{seq: seq, payload: payload}:
	case <-t.closed:
		return nil, fmt.Errorf("%w: transport closed", ErrProtocolAbort)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, ctx.Err())
	}

	select {
	case f := <-t.in:
		if f.seq != seq {
			return nil, fmt.Errorf("%w: step desync, sent %d received %d", ErrProtocolAbort, seq, f.seq)
		}
		return f.payload, nil
	case <-t.closed:
		return nil, fmt.Errorf("%w: transport closed", ErrProtocolAbort)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, ctx.Err())
	}
}

// Close terminates the pair. Any blocked or subsequent Exchange on either
// endpoint aborts.
func (t *LoopbackTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
