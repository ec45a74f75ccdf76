// Package services provides the deployable surfaces around the matching
// protocol core: the per-party HTTP service, the helper party's triple
// dealer, a single-process local simulator, and run result persistence.
//
// # Topology
//
// A deployment consists of two data party services and, for networked runs,
// one dealer service:
//
//	party 0  <--- /mpc/{run}/step/{seq} --->  party 1
//	    \                                       /
//	     +---->  dealer /triples/{run}  <------+
//
// The parties exchange protocol steps directly with each other; both fetch
// Beaver triples from the dealer. The dealer never sees a token, a share of
// a token, or the match count: it contributes correlated randomness only.
//
// # Run lifecycle
//
// Party 0 initiates a signed handshake establishing a per-run shared secret
// via X25519; the session tag derived from it lets both parties verify,
// before any sharing, that they are configured for the same run. The
// capacity hello then fixes the public padding bound. After the reveal, each
// party records the run outcome in its RunStore; the match count is the only
// protocol output that is ever persisted.
package services
