// Package mpc implements the secret sharing primitives consumed by the
// matching engine: two-party additive secret sharing over the token field
// with Beaver-triple multiplication, semi-honest model.
//
// # Scheme
//
// A secret x is held as x = x0 + x1 mod p, one share per party. Linear
// operations (addition, subtraction, scaling by public constants) are local.
// Multiplication consumes one precomputed triple (x, y, z=xy) and costs one
// communication round in which the masked differences d = a-x and e = b-y
// are opened. Secure equality uses Fermat's little theorem,
//
//	eq(a, b) = 1 - (a-b)^(p-1),
//
// evaluated by square-and-multiply over shared values; for the 89-bit token
// field that is 88 squarings plus 87 multiplications per comparison.
//
// # Roles
//
//   - Engine: one instance per party per run. All blocking operations take a
//     context and suspend at message round-trips.
//   - PairTransport: lockstep exchange between the two parties. Loopback
//     channels for single-process simulation, HTTP for real deployment.
//   - TripleSource: correlated randomness. Either derived in-process from a
//     dealer seed, or fetched in batches from the helper party's dealer
//     service. The helper contributes no input and learns nothing about the
//     datasets; it participates only in the sharing scheme.
//
// Any transport or dealer failure, and any step desynchronization between
// the parties, surfaces as ErrProtocolAbort. The engine never retries and
// never exposes partial results: a SharedValue is only ever turned into
// plaintext by Reveal, which requires both parties' cooperation.
package mpc
