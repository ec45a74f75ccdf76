package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// FieldStream deterministically expands a seed into uniform elements of a
// prime field. Two streams created from the same seed and label produce the
// same sequence, which is what lets the triple dealer re-derive a party's
// correlated randomness instead of storing it.
type FieldStream struct {
	block   cipher.Block
	counter uint64
	pool    []byte

	field   *big.Int
	byteLen int
	topMask byte
}

// NewFieldStream creates a field element stream keyed by SHA3-256(label || seed).
// The label separates streams derived from the same seed (e.g. the x, y and z
// components of a triple stream).
func NewFieldStream(seed SharedKey, label string, fieldOrder *big.Int) (*FieldStream, error) {
	keyBuf := make([]byte, 0, len(label)+len(seed))
	keyBuf = append(keyBuf, label...)
	keyBuf = append(keyBuf, seed...)
	key := sha3.Sum256(keyBuf)

	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}

	bitLen := fieldOrder.BitLen()
	byteLen := (bitLen + 7) / 8

	// Mask for the partial top byte so rejection sampling terminates quickly.
	excessBits := uint(byteLen*8 - bitLen)
	topMask := byte(0xff >> excessBits)

	return &FieldStream{
		block:   block,
		field:   fieldOrder,
		byteLen: byteLen,
		topMask: topMask,
	}, nil
}

// nextBytes returns n bytes of AES-CTR keystream.
func (s *FieldStream) nextBytes(n int) []byte {
	for len(s.pool) < n {
		var ctr [aes.BlockSize]byte
		binary.BigEndian.PutUint64(ctr[aes.BlockSize-8:], s.counter)
		s.counter++

		var out [aes.BlockSize]byte
		s.block.Encrypt(out[:], ctr[:])
		s.pool = append(s.pool, out[:]...)
	}

	res := s.pool[:n]
	s.pool = s.pool[n:]
	return res
}

// Next returns the next uniform field element. Candidates are drawn as
// bitLen-bit integers and rejected if they fall outside the field; for the
// Mersenne field the rejection probability is about 2^-89.
func (s *FieldStream) Next() *big.Int {
	el := new(big.Int)
	for {
		raw := make([]byte, s.byteLen)
		copy(raw, s.nextBytes(s.byteLen))
		raw[0] &= s.topMask

		el.SetBytes(raw)
		if el.Cmp(s.field) < 0 {
			return el
		}
	}
}
