package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/blocksim/blocksim/model/trace"
)

// RunReport aggregates the outcome of one simulate-annotate-evaluate run.
type RunReport struct {
	Requested int
	Kept      int
	Batches   int

	MeanRate float64
	MinRate  float64
	MaxRate  float64

	Trace   *trace.TraceSummary // nil when tracing is off
	Elapsed time.Duration
}

func newRunReport(requested, batches int, rates []float64, ct *trace.ContractionTrace, elapsed time.Duration) *RunReport {
	r := &RunReport{
		Requested: requested,
		Kept:      len(rates),
		Batches:   batches,
		Elapsed:   elapsed,
	}
	if ct != nil {
		r.Trace = trace.Summarize(ct)
	}
	if len(rates) > 0 {
		r.MeanRate = stat.Mean(rates, nil)
		r.MinRate = floats.Min(rates)
		r.MaxRate = floats.Max(rates)
	}
	return r
}

// Print writes the report in the CLI's fixed-width layout.
func (r *RunReport) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Run Summary ===")
	fmt.Fprintf(w, "Events Requested     : %d\n", r.Requested)
	fmt.Fprintf(w, "Events Kept          : %d (%.2f%%)\n", r.Kept, 100*float64(r.Kept)/float64(max(r.Requested, 1)))
	fmt.Fprintf(w, "Batches              : %d\n", r.Batches)
	if r.Kept > 0 {
		fmt.Fprintf(w, "Mean Rate            : %.6g\n", r.MeanRate)
		fmt.Fprintf(w, "Min / Max Rate       : %.6g / %.6g\n", r.MinRate, r.MaxRate)
	}
	fmt.Fprintf(w, "Elapsed              : %s\n", r.Elapsed.Round(time.Millisecond))

	if r.Trace == nil {
		return
	}
	fmt.Fprintln(w, "=== Contraction Trace ===")
	fmt.Fprintf(w, "Evaluations          : %d\n", r.Trace.Evaluations)
	fmt.Fprintf(w, "Contractions         : %d\n", r.Trace.Contractions)
	fmt.Fprintf(w, "Events Evaluated     : %d\n", r.Trace.EventsEvaluated)
	fmt.Fprintf(w, "Max Result Rank      : %d\n", r.Trace.MaxResultRank)
	for _, dim := range slices.Sorted(maps.Keys(r.Trace.SharedDimensions)) {
		fmt.Fprintf(w, "  shared %-13s: %d\n", dim, r.Trace.SharedDimensions[dim])
	}
}
