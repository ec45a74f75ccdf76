package crypto

import (
	"crypto/rand"
	"math/big"
)

// TokenFieldOrder defines the finite field order for secret-shared token
// operations. It is the Mersenne prime 2^89 - 1: 89 bits leave room for a
// 64-bit token digest plus two tag bits, with a comfortable margin.
var TokenFieldOrder *big.Int

func init() {
	TokenFieldOrder = new(big.Int).Lsh(big.NewInt(1), 89)
	TokenFieldOrder.Sub(TokenFieldOrder, big.NewInt(1))
}

// FieldAddInplace performs modular addition in-place: l = (l + r) mod fieldOrder.
// The result is stored in l and also returned.
func FieldAddInplace(l *big.Int, r *big.Int, fieldOrder *big.Int) *big.Int {
	l.Add(l, r)
	if l.Cmp(fieldOrder) >= 0 {
		l.Sub(l, fieldOrder)
	}
	if l.Sign() < 0 {
		l.Add(l, fieldOrder)
	}
	return l
}

// FieldSubInplace performs modular subtraction in-place: l = (l - r) mod fieldOrder.
// The result is stored in l and also returned.
func FieldSubInplace(l *big.Int, r *big.Int, fieldOrder *big.Int) *big.Int {
	l.Sub(l, r)
	if l.Cmp(fieldOrder) >= 0 {
		l.Sub(l, fieldOrder)
	}
	if l.Sign() < 0 {
		l.Add(l, fieldOrder)
	}
	return l
}

// FieldMul returns (l * r) mod fieldOrder in a fresh big.Int.
// Unlike the in-place add/sub helpers, multiplication can double the bit
// length, so a full reduction is required.
func FieldMul(l *big.Int, r *big.Int, fieldOrder *big.Int) *big.Int {
	res := new(big.Int).Mul(l, r)
	return res.Mod(res, fieldOrder)
}

// FieldNeg returns the additive inverse of v mod fieldOrder in a fresh big.Int.
func FieldNeg(v *big.Int, fieldOrder *big.Int) *big.Int {
	if v.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(fieldOrder, v)
}

// RandFieldElement samples a uniform element of GF(fieldOrder) from crypto/rand.
func RandFieldElement(fieldOrder *big.Int) (*big.Int, error) {
	return rand.Int(rand.Reader, fieldOrder)
}
