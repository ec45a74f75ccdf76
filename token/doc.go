// Package token implements the identity normalizer and the dataset padder.
//
// A Token is a fixed-width digest of one raw record identifier, embedded in
// the token field together with a two-bit tag. The tag partitions the field
// into disjoint value spaces:
//
//	tag 0: real tokens (64-bit truncated SHA-256 digest)
//	tag 1: party 0 sentinels
//	tag 2: party 1 sentinels
//
// so a sentinel can never spuriously equal a real token or the other party's
// sentinels. Padding every party's token list to the same public capacity is
// what hides the true dataset sizes from the protocol's shape.
package token
