package trace

// TraceLevel controls the verbosity of contraction tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelContractions captures every contraction of every rate evaluation.
	TraceLevelContractions TraceLevel = "contractions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:         true,
	TraceLevelContractions: true,
	"":                     true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Enabled reports whether records should be collected at this level.
func (l TraceLevel) Enabled() bool {
	return l == TraceLevelContractions
}

// ContractionTrace collects contraction records across rate evaluations.
type ContractionTrace struct {
	Level        TraceLevel
	Evaluations  []EvaluationRecord
	Contractions []ContractionRecord
}

// NewContractionTrace creates a ContractionTrace ready for recording.
func NewContractionTrace(level TraceLevel) *ContractionTrace {
	return &ContractionTrace{
		Level:        level,
		Evaluations:  make([]EvaluationRecord, 0),
		Contractions: make([]ContractionRecord, 0),
	}
}

// RecordEvaluation appends an evaluation record.
func (ct *ContractionTrace) RecordEvaluation(record EvaluationRecord) {
	ct.Evaluations = append(ct.Evaluations, record)
}

// RecordContraction appends a contraction record.
func (ct *ContractionTrace) RecordContraction(record ContractionRecord) {
	ct.Contractions = append(ct.Contractions, record)
}
