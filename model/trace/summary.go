package trace

// TraceSummary aggregates statistics from a ContractionTrace.
type TraceSummary struct {
	Evaluations       int
	Contractions      int
	EventsEvaluated   int
	MaxResultRank     int
	MeanPerEvaluation float64
	SharedDimensions  map[string]int // dimension -> number of contractions over it
}

// Summarize computes aggregate statistics from a ContractionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ct *ContractionTrace) *TraceSummary {
	summary := &TraceSummary{
		SharedDimensions: make(map[string]int),
	}
	if ct == nil {
		return summary
	}

	summary.Evaluations = len(ct.Evaluations)
	for _, e := range ct.Evaluations {
		summary.EventsEvaluated += e.Events
	}

	summary.Contractions = len(ct.Contractions)
	for _, c := range ct.Contractions {
		summary.SharedDimensions[c.Shared]++
		if len(c.Result) > summary.MaxResultRank {
			summary.MaxResultRank = len(c.Result)
		}
	}

	if summary.Evaluations > 0 {
		summary.MeanPerEvaluation = float64(summary.Contractions) / float64(summary.Evaluations)
	}

	return summary
}
