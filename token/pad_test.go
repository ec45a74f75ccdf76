package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustNormalizeAll(t *testing.T, raws ...string) []Token {
	t.Helper()
	tokens, err := NormalizeAll(raws)
	require.NoError(t, err)
	return tokens
}

func TestPadToCapacity(t *testing.T) {
	tokens := mustNormalizeAll(t, "p1", "p2", "p3")

	set, err := Pad(tokens, 5, 0)
	require.NoError(t, err)
	require.Len(t, set, 5)

	for i := 0; i < 3; i++ {
		require.Equal(t, tokens[i], set[i])
		require.False(t, set[i].IsSentinel())
	}
	for i := 3; i < 5; i++ {
		require.True(t, set[i].IsSentinel())
	}
}

func TestPadEmptyDataset(t *testing.T) {
	set, err := Pad(nil, 3, 1)
	require.NoError(t, err)
	require.Len(t, set, 3)
	for _, tok := range set {
		require.True(t, tok.IsSentinel())
	}
}

func TestPadCapacityExceeded(t *testing.T) {
	raws := make([]string, 10)
	for i := range raws {
		raws[i] = string(rune('a' + i))
	}
	tokens := mustNormalizeAll(t, raws...)

	_, err := Pad(tokens, 5, 0)
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestPadRejectsBadParty(t *testing.T) {
	_, err := Pad(nil, 2, 2)
	require.Error(t, err)
}

func TestNormalizeAllReportsPosition(t *testing.T) {
	_, err := NormalizeAll([]string{"ok", "", "also-ok"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorContains(t, err, "record 1")
}

func TestFieldElementsOrder(t *testing.T) {
	tokens := mustNormalizeAll(t, "x", "y")
	set, err := Pad(tokens, 4, 0)
	require.NoError(t, err)

	els := set.FieldElements()
	require.Len(t, els, 4)
	for i, tok := range set {
		require.Zero(t, els[i].Cmp(tok.FieldElement()))
	}
}
