package model

import (
	"fmt"
	"math"
	"slices"
)

// Column names shared by the pipelines.
const (
	// AcceptanceColumn holds the running per-event acceptance probability
	// during simulation.
	AcceptanceColumn = "p_accepted"
)

// MinColumn, MaxColumn, MLEColumn and StepsColumn name the per-dimension
// bookkeeping columns.
func MinColumn(dim string) string   { return dim + "_min" }
func MaxColumn(dim string) string   { return dim + "_max" }
func MLEColumn(dim string) string   { return dim + "_mle" }
func StepsColumn(dim string) string { return dim + "_steps" }

// EventTable is a row-per-event columnar table of float64 values. Blocks
// mutate it in place during simulation and annotation.
//
// Array columns hold a fixed number of values per event, stored row-major.
//
// Thread-safety: NOT thread-safe.
type EventTable struct {
	n      int
	order  []string
	cols   map[string][]float64
	widths map[string]int
}

// NewEventTable creates an empty table with n rows.
func NewEventTable(n int) *EventTable {
	return &EventTable{
		n:      n,
		cols:   make(map[string][]float64),
		widths: make(map[string]int),
	}
}

// Len returns the number of events.
func (t *EventTable) Len() int { return t.n }

// Columns returns the column names in insertion order.
func (t *EventTable) Columns() []string { return slices.Clone(t.order) }

// Has reports whether the named column exists.
func (t *EventTable) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column, sharing storage.
func (t *EventTable) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Width returns the per-event value count of a column (1 for scalars).
func (t *EventTable) Width(name string) int { return t.widths[name] }

// Set stores a scalar column. values must have one entry per event.
func (t *EventTable) Set(name string, values []float64) error {
	return t.SetArray(name, 1, values)
}

// SetArray stores a column with width values per event.
func (t *EventTable) SetArray(name string, width int, values []float64) error {
	if width < 1 {
		return fmt.Errorf("column %q: width must be positive, got %d", name, width)
	}
	if len(values) != t.n*width {
		return fmt.Errorf("column %q: expected %d values, got %d", name, t.n*width, len(values))
	}
	if _, ok := t.cols[name]; !ok {
		t.order = append(t.order, name)
	}
	t.cols[name] = values
	t.widths[name] = width
	return nil
}

// Fill stores a scalar column with every row set to v.
func (t *EventTable) Fill(name string, v float64) {
	values := make([]float64, t.n)
	for i := range values {
		values[i] = v
	}
	// Length always matches.
	_ = t.Set(name, values)
}

// MustColumn returns the named column or an error naming it.
func (t *EventTable) MustColumn(name string) ([]float64, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("event table has no column %q", name)
	}
	return c, nil
}

// Filter returns a new table holding the rows where keep is true.
func (t *EventTable) Filter(keep []bool) (*EventTable, error) {
	if len(keep) != t.n {
		return nil, fmt.Errorf("filter mask has %d entries for %d events", len(keep), t.n)
	}
	rows := make([]int, 0, t.n)
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}
	return t.Rows(rows), nil
}

// Rows returns a new table holding copies of the given rows, in order.
func (t *EventTable) Rows(rows []int) *EventTable {
	out := NewEventTable(len(rows))
	for _, name := range t.order {
		w := t.widths[name]
		src := t.cols[name]
		dst := make([]float64, len(rows)*w)
		for i, r := range rows {
			copy(dst[i*w:(i+1)*w], src[r*w:(r+1)*w])
		}
		out.order = append(out.order, name)
		out.cols[name] = dst
		out.widths[name] = w
	}
	return out
}

// Slice returns a view of rows [start, end) sharing storage with t.
func (t *EventTable) Slice(start, end int) *EventTable {
	out := NewEventTable(end - start)
	for _, name := range t.order {
		w := t.widths[name]
		out.order = append(out.order, name)
		out.cols[name] = t.cols[name][start*w : end*w]
		out.widths[name] = w
	}
	return out
}

// Clone deep-copies the table.
func (t *EventTable) Clone() *EventTable {
	out := NewEventTable(t.n)
	for _, name := range t.order {
		out.order = append(out.order, name)
		out.cols[name] = slices.Clone(t.cols[name])
		out.widths[name] = t.widths[name]
	}
	return out
}

// allFinite reports the first non-finite row of a column, if any.
func allFinite(values []float64) (int, bool) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, false
		}
	}
	return -1, true
}
