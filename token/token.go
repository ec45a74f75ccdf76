package token

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// ErrInvalidInput reports a raw identifier that cannot be normalized.
// Callers decide per policy whether to skip the record or abort the run;
// an invalid identifier is never silently coerced into a token.
var ErrInvalidInput = errors.New("invalid raw identifier")

// Tag values partitioning the token field. Real tokens and each party's
// sentinels occupy disjoint value spaces, so cross-space comparisons always
// evaluate to zero.
const (
	tagReal      = 0
	tagSentinelA = 1
	tagSentinelB = 2

	tagBits = 2
)

// tokenWidth is the encoded size of a token: 89 field bits rounded up.
const tokenWidth = 12

// Token is a fixed-width digest of one raw identifier, immutable once
// created. Tokens are comparable; two raw identifiers that are byte-equal
// after normalization produce identical tokens on every party.
type Token struct {
	v [tokenWidth]byte
}

// Normalize canonicalizes a raw identifier into a Token. It is deterministic
// and independent of party identity: both parties must produce bit-identical
// tokens for semantically equal identifiers, or matching cannot succeed.
//
// The digest is SHA-256 truncated to 64 bits, the same reduction the record
// sources apply, shifted to make room for the tag bits.
func Normalize(raw string) (Token, error) {
	if raw == "" {
		return Token{}, fmt.Errorf("%w: empty identifier", ErrInvalidInput)
	}
	if !utf8.ValidString(raw) {
		return Token{}, fmt.Errorf("%w: identifier is not valid UTF-8", ErrInvalidInput)
	}

	sum := sha256.Sum256([]byte(raw))
	digest := binary.BigEndian.Uint64(sum[:8])

	return fromValue(new(big.Int).Lsh(new(big.Int).SetUint64(digest), tagBits)), nil
}

// Sentinel returns the i-th padding token for the given party index.
// Sentinels of different parties are distinct by construction, and no
// sentinel ever equals a real token.
func Sentinel(partyIndex, i int) Token {
	tag := int64(tagSentinelA)
	if partyIndex == 1 {
		tag = tagSentinelB
	}

	v := new(big.Int).Lsh(big.NewInt(int64(i)), tagBits)
	v.Or(v, big.NewInt(tag))
	return fromValue(v)
}

// IsSentinel reports whether the token is a padding sentinel of either party.
func (t Token) IsSentinel() bool {
	return t.v[tokenWidth-1]&0b11 != tagReal
}

// FieldElement returns the token's value as a fresh element of the token
// field, suitable for input sharing.
func (t Token) FieldElement() *big.Int {
	return new(big.Int).SetBytes(t.v[:])
}

// String returns a hex encoding of the token, for logs and test failures only.
func (t Token) String() string {
	return hex.EncodeToString(t.v[:])
}

func fromValue(v *big.Int) Token {
	var t Token
	v.FillBytes(t.v[:])
	return t
}
