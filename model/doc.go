// Package model composes a detector-response model from independently
// authored blocks.
//
// # Reading Guide
//
// Start with these files to understand the composition engine:
//   - block.go: the Block contract and the post-condition wrapper each block runs behind
//   - merge.go: how block declarations are merged into one frozen Configuration
//   - rate.go: differential-rate evaluation and the eager contraction loop
//   - contract.go: the rank-1/rank-2 batched matrix products behind a contraction
//
// # Architecture
//
// A Source owns an ordered list of blocks. Each block produces a tensor over
// one or two named dimensions (a distribution, or a conditional distribution
// over a pair). Evaluating the differential rate computes every block in
// declared order and contracts tensors that share a dimension until only the
// final (observable) dimensions remain. Simulate walks the same blocks
// forward; Annotate walks them backward to bound every hidden dimension.
//
// Implementations of the pluggable pieces live in sub-packages:
//   - model/grid/: the default DomainProvider (bounds-driven discretization)
//   - model/blocks/: concrete physics blocks and a ready-made signal chain
//   - model/trace/: contraction trace recording
//
// model/grid registers itself via init() by setting NewDomainProviderFunc.
package model
