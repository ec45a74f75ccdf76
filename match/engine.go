package match

import (
	"context"
	"fmt"
	"math/big"

	"github.com/privmatch/matchnet/mpc"
	"github.com/privmatch/matchnet/token"
)

// Secret is an opaque handle to a secret-shared scalar. The engine never
// inspects it; only the Sharer that produced it can operate on it.
type Secret any

// Sharer is the narrow view of the secret sharing primitives the matching
// engine consumes: input sharing, secure equality, secure sum, and reveal.
// Reveal requires the cooperation of both parties; no implementation may
// allow one party to reconstruct a Secret alone.
type Sharer interface {
	ShareVector(ctx context.Context, owner int, values []*big.Int, n int) ([]Secret, error)
	Equal(ctx context.Context, a, b Secret) (Secret, error)
	Sum(vals []Secret) Secret
	Reveal(ctx context.Context, v Secret) (*big.Int, error)
}

// Matcher drives one party's side of the secure matching protocol.
type Matcher struct {
	cfg  *Config
	prim Sharer
}

// NewMatcher creates the matcher for one data party.
func NewMatcher(cfg *Config, prim Sharer) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.IsDataParty() {
		return nil, fmt.Errorf("party %d holds no dataset", cfg.PartyIndex)
	}
	if prim == nil {
		return nil, fmt.Errorf("nil sharing primitives")
	}
	return &Matcher{cfg: cfg, prim: prim}, nil
}

// Run executes the share, compare, aggregate and reveal phases and returns
// the match count: the number of (i, j) pairs whose tokens are equal. It is
// the only plaintext the protocol ever produces. Any primitive failure
// surfaces as mpc.ErrProtocolAbort; the matcher never retries.
func (m *Matcher) Run(ctx context.Context, own token.PaddedTokenSet) (int, error) {
	capacity := m.cfg.Capacity
	if len(own) != capacity {
		return 0, fmt.Errorf("padded set has %d tokens, agreed capacity is %d", len(own), capacity)
	}

	// Share phase. Party A's set is shared first, then party B's; both
	// parties walk the same order so the transcripts stay in lockstep.
	ownValues := own.FieldElements()
	var shared [2][]Secret
	for _, party := range []int{PartyA, PartyB} {
		values := ownValues
		if party != m.cfg.PartyIndex {
			values = nil
		}
		s, err := m.prim.ShareVector(ctx, party, values, capacity)
		if err != nil {
			return 0, fmt.Errorf("share phase, party %d inputs: %w", party, err)
		}
		shared[party] = s
	}

	// Compare phase: full cross product. Sentinel-involving comparisons
	// evaluate to 0 by the tag-space construction without anyone learning
	// which positions were sentinels.
	indicators := make([]Secret, 0, capacity*capacity)
	for i := 0; i < capacity; i++ {
		for j := 0; j < capacity; j++ {
			eq, err := m.prim.Equal(ctx, shared[PartyA][i], shared[PartyB][j])
			if err != nil {
				return 0, fmt.Errorf("compare phase, pair (%d,%d): %w", i, j, err)
			}
			indicators = append(indicators, eq)
		}
	}

	// Aggregate, then reveal. Nothing before this point is plaintext.
	total := m.prim.Sum(indicators)
	revealed, err := m.prim.Reveal(ctx, total)
	if err != nil {
		return 0, fmt.Errorf("reveal phase: %w", err)
	}

	maxCount := int64(capacity) * int64(capacity)
	if !revealed.IsInt64() || revealed.Int64() < 0 || revealed.Int64() > maxCount {
		return 0, fmt.Errorf("%w: revealed count %s outside [0, %d]", mpc.ErrProtocolAbort, revealed, maxCount)
	}
	return int(revealed.Int64()), nil
}

// engineSharer adapts the additive sharing engine to the Sharer interface.
type engineSharer struct {
	eng *mpc.Engine
}

// NewEngineSharer wraps an mpc engine as the matcher's sharing primitives.
func NewEngineSharer(eng *mpc.Engine) Sharer {
	return &engineSharer{eng: eng}
}

func (s *engineSharer) ShareVector(ctx context.Context, owner int, values []*big.Int, n int) ([]Secret, error) {
	shares, err := s.eng.ShareVector(ctx, owner, values, n)
	if err != nil {
		return nil, err
	}
	out := make([]Secret, len(shares))
	for i, sh := range shares {
		out[i] = sh
	}
	return out, nil
}

func (s *engineSharer) Equal(ctx context.Context, a, b Secret) (Secret, error) {
	av, aok := a.(mpc.SharedValue)
	bv, bok := b.(mpc.SharedValue)
	if !aok || !bok {
		return nil, fmt.Errorf("%w: foreign secret handle", mpc.ErrProtocolAbort)
	}
	return s.eng.Equal(ctx, av, bv)
}

func (s *engineSharer) Sum(vals []Secret) Secret {
	shares := make([]mpc.SharedValue, 0, len(vals))
	for _, v := range vals {
		if sv, ok := v.(mpc.SharedValue); ok {
			shares = append(shares, sv)
		}
	}
	return s.eng.Sum(shares)
}

func (s *engineSharer) Reveal(ctx context.Context, v Secret) (*big.Int, error) {
	sv, ok := v.(mpc.SharedValue)
	if !ok {
		return nil, fmt.Errorf("%w: foreign secret handle", mpc.ErrProtocolAbort)
	}
	return s.eng.Reveal(ctx, sv)
}
