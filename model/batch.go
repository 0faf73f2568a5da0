package model

// Batch is a contiguous window of the source's event table. Every tensor
// computed for a batch has Len() entries along its leading axis.
type Batch struct {
	Index  int
	Offset int // first row in the full table
	table  *EventTable
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int { return b.table.Len() }

// Table returns the batch rows as a table view sharing storage.
func (b *Batch) Table() *EventTable { return b.table }

// Column returns the batch's slice of a column.
func (b *Batch) Column(name string) ([]float64, error) {
	return b.table.MustColumn(name)
}

// NewBatch wraps an event table as a single batch.
func NewBatch(t *EventTable) *Batch {
	return &Batch{table: t}
}

// batches splits t into windows of at most size rows.
func batches(t *EventTable, size int) []*Batch {
	var out []*Batch
	for start, i := 0, 0; start < t.Len(); start, i = start+size, i+1 {
		end := min(start+size, t.Len())
		out = append(out, &Batch{Index: i, Offset: start, table: t.Slice(start, end)})
	}
	return out
}
