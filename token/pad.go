package token

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrCapacityExceeded reports a real dataset larger than the agreed public
// capacity. This is fatal: truncating would corrupt the match count and
// proceeding would break the size-hiding invariant, so padding fails before
// any cryptographic material is exchanged.
var ErrCapacityExceeded = errors.New("dataset exceeds agreed capacity")

// PaddedTokenSet is an ordered token sequence of the agreed public capacity.
// Real tokens occupy the prefix; the remainder is sentinel filler. Every
// party's set has exactly the same length, regardless of real dataset size.
type PaddedTokenSet []Token

// Pad extends tokens to exactly capacity elements using the party's sentinel
// space. The relative order of real tokens is irrelevant to the protocol's
// correctness and nothing downstream depends on it.
func Pad(tokens []Token, capacity int, partyIndex int) (PaddedTokenSet, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("negative capacity %d", capacity)
	}
	if partyIndex != 0 && partyIndex != 1 {
		return nil, fmt.Errorf("party index %d out of range", partyIndex)
	}
	if len(tokens) > capacity {
		return nil, fmt.Errorf("%w: %d tokens, capacity %d", ErrCapacityExceeded, len(tokens), capacity)
	}

	set := make(PaddedTokenSet, capacity)
	copy(set, tokens)
	for i := len(tokens); i < capacity; i++ {
		set[i] = Sentinel(partyIndex, i)
	}
	return set, nil
}

// FieldElements returns the set's values as fresh field elements, in order.
func (s PaddedTokenSet) FieldElements() []*big.Int {
	els := make([]*big.Int, len(s))
	for i, t := range s {
		els[i] = t.FieldElement()
	}
	return els
}

// NormalizeAll maps raw identifiers to tokens. A normalization failure is
// reported immediately with the offending record's position; no partial
// token list is returned.
func NormalizeAll(raws []string) ([]Token, error) {
	tokens := make([]Token, len(raws))
	for i, raw := range raws {
		t, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		tokens[i] = t
	}
	return tokens, nil
}
