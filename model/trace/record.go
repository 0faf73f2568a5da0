// Package trace provides contraction-trace recording for inspecting how a
// model's block tensors were combined.
// This package has no dependencies on model/; it stores pure data types.
package trace

// EvaluationRecord captures one differential-rate evaluation of a batch.
type EvaluationRecord struct {
	Batch     int
	Events    int
	FinalDims []string
	LeftOver  int // result-map entries still live after the last block
}

// ContractionRecord captures a single contraction of two result-map entries.
type ContractionRecord struct {
	Batch  int
	Block  string   // block whose output triggered the contraction
	Left   []string // dimensions of the newly inserted entry
	Right  []string // dimensions of the partner entry
	Shared string
	Result []string
}
