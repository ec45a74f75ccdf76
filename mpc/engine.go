package mpc

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/atomic"

	"github.com/privmatch/matchnet/crypto"
)

// Engine executes secure operations for one party of a single protocol run.
// All blocking operations suspend at the transport round-trip and honor the
// context. An Engine holds no state between runs; create a fresh one per run.
type Engine struct {
	field     *big.Int
	party     int
	transport PairTransport
	triples   TripleSource

	// seq numbers every communication step. Both parties execute the same
	// deterministic operation sequence, so equal counters mean equal steps;
	// any divergence is detected by the transport as a desync.
	seq *atomic.Uint64
}

// NewEngine creates the engine for one party (0 or 1) of a run.
func NewEngine(field *big.Int, party int, transport PairTransport, triples TripleSource) (*Engine, error) {
	if party != 0 && party != 1 {
		return nil, fmt.Errorf("party index %d out of range", party)
	}
	if transport == nil {
		return nil, fmt.Errorf("nil transport")
	}
	if triples == nil {
		return nil, fmt.Errorf("nil triple source")
	}
	return &Engine{
		field:     field,
		party:     party,
		transport: transport,
		triples:   triples,
		seq:       atomic.NewUint64(0),
	}, nil
}

// Party returns this engine's party index.
func (e *Engine) Party() int {
	return e.party
}

// ShareVector secret-shares n values owned by the given party, element-wise.
// The owner passes its plaintext values and sends uniform masks to the
// counterpart; the counterpart passes nil values and receives its shares.
// Neither party ever sees the other's plaintext inputs.
func (e *Engine) ShareVector(ctx context.Context, owner int, values []*big.Int, n int) ([]SharedValue, error) {
	seq := e.seq.Inc()

	if e.party == owner {
		if len(values) != n {
			return nil, fmt.Errorf("%w: sharing %d values, expected %d", ErrProtocolAbort, len(values), n)
		}

		masks := make([]*big.Int, n)
		shares := make([]SharedValue, n)
		for i, v := range values {
			if v.Sign() < 0 || v.Cmp(e.field) >= 0 {
				return nil, fmt.Errorf("%w: input %d outside the field", ErrProtocolAbort, i)
			}
			r, err := crypto.RandFieldElement(e.field)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
			}
			masks[i] = r
			shares[i] = newShare(crypto.FieldSubInplace(new(big.Int).Set(v), r, e.field))
		}

		payload, err := encodeElements(masks)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
		}
		if _, err := e.transport.Exchange(ctx, seq, payload); err != nil {
			return nil, err
		}
		return shares, nil
	}

	if values != nil {
		return nil, fmt.Errorf("%w: non-owner must not supply values", ErrProtocolAbort)
	}

	peerPayload, err := e.transport.Exchange(ctx, seq, nil)
	if err != nil {
		return nil, err
	}
	masks, err := decodeElements(peerPayload, n, e.field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}

	shares := make([]SharedValue, n)
	for i, r := range masks {
		shares[i] = newShare(r)
	}
	return shares, nil
}

// open reconstructs the plaintexts of the given shared values. Both parties
// exchange their shares in one step. Used internally for triple openings and
// by Reveal; never exposed for arbitrary intermediate state.
func (e *Engine) open(ctx context.Context, vals []SharedValue) ([]*big.Int, error) {
	seq := e.seq.Inc()

	own := make([]*big.Int, len(vals))
	for i, v := range vals {
		own[i] = v.shareValue()
	}

	payload, err := encodeElements(own)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}
	peerPayload, err := e.transport.Exchange(ctx, seq, payload)
	if err != nil {
		return nil, err
	}
	peer, err := decodeElements(peerPayload, len(vals), e.field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}

	opened := make([]*big.Int, len(vals))
	for i := range vals {
		opened[i] = crypto.FieldAddInplace(new(big.Int).Set(own[i]), peer[i], e.field)
	}
	return opened, nil
}

// Sub returns a share of a - b. Linear, no communication.
func (e *Engine) Sub(a, b SharedValue) SharedValue {
	return newShare(crypto.FieldSubInplace(new(big.Int).Set(a.shareValue()), b.shareValue(), e.field))
}

// Sum aggregates shares of the given values into a share of their sum.
// Linear, no communication.
func (e *Engine) Sum(vals []SharedValue) SharedValue {
	total := new(big.Int)
	for _, v := range vals {
		crypto.FieldAddInplace(total, v.shareValue(), e.field)
	}
	return newShare(total)
}

// Mul returns a share of a*b using one Beaver triple and one opening round.
// With triple (x, y, z) and public d = a-x, e = b-y, the product shares are
// z_i + e*a_i + d*b_i, with party 0 additionally subtracting the public d*e.
func (e *Engine) Mul(ctx context.Context, a, b SharedValue) (SharedValue, error) {
	t, err := e.triples.Next(ctx)
	if err != nil {
		return SharedValue{}, err
	}

	dShare := newShare(crypto.FieldSubInplace(new(big.Int).Set(a.shareValue()), t.X, e.field))
	eShare := newShare(crypto.FieldSubInplace(new(big.Int).Set(b.shareValue()), t.Y, e.field))

	opened, err := e.open(ctx, []SharedValue{dShare, eShare})
	if err != nil {
		return SharedValue{}, err
	}
	d, ee := opened[0], opened[1]

	res := new(big.Int).Set(t.Z)
	crypto.FieldAddInplace(res, crypto.FieldMul(ee, a.shareValue(), e.field), e.field)
	crypto.FieldAddInplace(res, crypto.FieldMul(d, b.shareValue(), e.field), e.field)
	if e.party == 0 {
		crypto.FieldSubInplace(res, crypto.FieldMul(d, ee, e.field), e.field)
	}
	return newShare(res), nil
}

// exp raises a shared value to a public positive exponent by msb-first
// square-and-multiply over shares.
func (e *Engine) exp(ctx context.Context, base SharedValue, exponent *big.Int) (SharedValue, error) {
	if exponent.Sign() <= 0 {
		return SharedValue{}, fmt.Errorf("%w: non-positive exponent", ErrProtocolAbort)
	}

	res := base
	var err error
	for i := exponent.BitLen() - 2; i >= 0; i-- {
		if res, err = e.Mul(ctx, res, res); err != nil {
			return SharedValue{}, err
		}
		if exponent.Bit(i) == 1 {
			if res, err = e.Mul(ctx, res, base); err != nil {
				return SharedValue{}, err
			}
		}
	}
	return res, nil
}

// Equal returns a share of the equality indicator of a and b: 1 if the
// underlying scalars are equal, 0 otherwise. By Fermat, (a-b)^(p-1) is 0
// exactly when a = b and 1 otherwise, so the indicator is its complement.
// Nothing about a, b, or the indicator itself is revealed.
func (e *Engine) Equal(ctx context.Context, a, b SharedValue) (SharedValue, error) {
	diff := e.Sub(a, b)

	pMinusOne := new(big.Int).Sub(e.field, big.NewInt(1))
	z, err := e.exp(ctx, diff, pMinusOne)
	if err != nil {
		return SharedValue{}, err
	}

	res := crypto.FieldNeg(z.shareValue(), e.field)
	if e.party == 0 {
		crypto.FieldAddInplace(res, big.NewInt(1), e.field)
	}
	return newShare(res), nil
}

// Reveal reconstructs the plaintext of v for both parties simultaneously.
// This is the only way shared state ever becomes public.
func (e *Engine) Reveal(ctx context.Context, v SharedValue) (*big.Int, error) {
	opened, err := e.open(ctx, []SharedValue{v})
	if err != nil {
		return nil, err
	}
	return opened[0], nil
}
