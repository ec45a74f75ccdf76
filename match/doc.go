// Package match implements the secure matching protocol core.
//
// Two parties each hold a padded token set of the same public capacity L.
// A run proceeds through four strictly ordered phases:
//
//  1. Share: both padded sets are secret-shared element-wise. Neither party
//     ever sees the counterpart's plaintext tokens.
//  2. Compare: every pair (i, j) in the full L x L cross product is tested
//     with the secure equality primitive, producing a secret-shared 0/1
//     indicator. The cross product, not a position-wise walk, is required
//     because the datasets are unordered with respect to each other.
//  3. Aggregate: all indicators are summed into one secret-shared total.
//  4. Reveal: the total is reconstructed for both parties simultaneously.
//     It is the protocol's only plaintext output.
//
// Duplicate identifiers are counted pairwise: k copies of a value on each
// side contribute k*k to the count. Deduplication, when wanted, belongs to
// preprocessing, never to the engine.
//
// The engine depends on the sharing runtime only through the narrow Sharer
// interface, so it can be exercised against plaintext mock primitives in
// tests and against the real additive sharing engine in deployment.
package match
