package mpc

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// SharedValue is one party's additive share of a field scalar. The scalar is
// owned collectively: neither share reveals anything about it on its own.
// SharedValues are created by input sharing or by secure operations and are
// only consumed by further secure operations or an explicit Reveal.
type SharedValue struct {
	v *big.Int
}

func newShare(v *big.Int) SharedValue {
	return SharedValue{v: v}
}

// shareValue returns the underlying share, defaulting to zero so that the
// zero SharedValue behaves as a share of nothing.
func (s SharedValue) shareValue() *big.Int {
	if s.v == nil {
		return new(big.Int)
	}
	return s.v
}

// encodeElements serializes field elements for the wire as hex strings.
func encodeElements(els []*big.Int) ([]byte, error) {
	strs := make([]string, len(els))
	for i, el := range els {
		strs[i] = el.Text(16)
	}
	return json.Marshal(strs)
}

// decodeElements parses exactly n field elements and range-checks them.
// A malformed or out-of-range opening from the counterpart aborts the run.
func decodeElements(data []byte, n int, field *big.Int) ([]*big.Int, error) {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return nil, fmt.Errorf("malformed element payload: %w", err)
	}
	if len(strs) != n {
		return nil, fmt.Errorf("expected %d elements, got %d", n, len(strs))
	}

	els := make([]*big.Int, n)
	for i, s := range strs {
		el, ok := new(big.Int).SetString(s, 16)
		if !ok {
			return nil, fmt.Errorf("element %d is not a hex integer", i)
		}
		if el.Sign() < 0 || el.Cmp(field) >= 0 {
			return nil, fmt.Errorf("element %d outside the field", i)
		}
		els[i] = el
	}
	return els, nil
}
