package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenFieldOrderIsM89(t *testing.T) {
	expected, ok := new(big.Int).SetString("618970019642690137449562111", 10)
	require.True(t, ok)
	require.Zero(t, TokenFieldOrder.Cmp(expected))
	require.Equal(t, 89, TokenFieldOrder.BitLen())
	require.True(t, TokenFieldOrder.ProbablyPrime(32))
}

func TestFieldAddSubRoundtrip(t *testing.T) {
	a, err := RandFieldElement(TokenFieldOrder)
	require.NoError(t, err)
	b, err := RandFieldElement(TokenFieldOrder)
	require.NoError(t, err)

	sum := FieldAddInplace(new(big.Int).Set(a), b, TokenFieldOrder)
	require.True(t, sum.Sign() >= 0)
	require.True(t, sum.Cmp(TokenFieldOrder) < 0)

	back := FieldSubInplace(new(big.Int).Set(sum), b, TokenFieldOrder)
	require.Zero(t, back.Cmp(a))
}

func TestFieldSubWrapsNegative(t *testing.T) {
	zero := new(big.Int)
	one := big.NewInt(1)

	res := FieldSubInplace(new(big.Int).Set(zero), one, TokenFieldOrder)
	expected := new(big.Int).Sub(TokenFieldOrder, one)
	require.Zero(t, res.Cmp(expected))
}

func TestFieldMulReduces(t *testing.T) {
	almost := new(big.Int).Sub(TokenFieldOrder, big.NewInt(1))

	// (p-1)^2 = 1 mod p
	res := FieldMul(almost, almost, TokenFieldOrder)
	require.Zero(t, res.Cmp(big.NewInt(1)))
}

func TestFieldNeg(t *testing.T) {
	a, err := RandFieldElement(TokenFieldOrder)
	require.NoError(t, err)

	sum := FieldAddInplace(FieldNeg(a, TokenFieldOrder), a, TokenFieldOrder)
	require.Zero(t, sum.Sign())

	require.Zero(t, FieldNeg(new(big.Int), TokenFieldOrder).Sign())
}
