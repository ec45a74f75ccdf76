// Package crypto provides cryptographic primitives for the secure matching
// protocol.
//
// This package implements the low-level operations required by the additive
// secret sharing scheme and the party transport, including:
//
//   - Field arithmetic over the token field (a Mersenne prime)
//   - Pseudorandom field element streams for dealer-derived correlated randomness
//   - Key encapsulation (X25519) for pairwise shared secret derivation
//   - Digital signatures (Ed25519) for message authentication between parties
//
// Note: field arithmetic via math/big is not constant-time. The protocol's
// privacy argument does not rely on it being so; all values flowing through
// the field operations are either uniformly masked shares or public openings.
//
// # Field Operations
//
// All secret-shared scalars live in GF(p) with p = 2^89 - 1 (TokenFieldOrder).
// The field is large enough to embed a 64-bit token digest together with its
// tag bits, and small enough to keep the Fermat equality test affordable.
//
// # Randomness Derivation
//
// FieldStream expands a seed into a deterministic stream of uniform field
// elements using AES in counter mode with rejection sampling. The triple
// dealer uses it so that a party's triple shares never have to be stored:
// they are re-derived from the per-run seed on demand.
package crypto
