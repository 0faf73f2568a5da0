package model

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBlock is a block whose behaviour is supplied by closures. Every
// optional hook is a no-op when left nil.
type fakeBlock struct {
	BlockBase
	spec BlockSpec

	compute  func(in *ComputeInput) (Tensor, error)
	simulate func(sc *SimContext) error
	annotate func(t *EventTable) error
	grid     map[string][]float64
	truth    func(n int, fix FixTruth, rng *rand.Rand) (*EventTable, error)
}

func (f *fakeBlock) Spec() BlockSpec { return f.spec }

func (f *fakeBlock) Compute(in *ComputeInput) (Tensor, error) {
	if f.compute == nil {
		return nil, fmt.Errorf("%s has no compute", f.spec.Name)
	}
	return f.compute(in)
}

func (f *fakeBlock) Simulate(sc *SimContext) error {
	if f.simulate == nil {
		return nil
	}
	return f.simulate(sc)
}

func (f *fakeBlock) Annotate(t *EventTable) error {
	if f.annotate == nil {
		return nil
	}
	return f.annotate(t)
}

func (f *fakeBlock) Domain(b *Batch) (map[string]*Rank1, error) {
	out := make(map[string]*Rank1, len(f.grid))
	for dim, values := range f.grid {
		out[dim] = replicate(b.Len(), values)
	}
	return out, nil
}

func (f *fakeBlock) RandomTruth(n int, fix FixTruth, rng *rand.Rand) (*EventTable, error) {
	if f.truth == nil {
		return nil, fmt.Errorf("%s cannot sample", f.spec.Name)
	}
	return f.truth(n, fix, rng)
}

// factory wraps blk so that each NewSource binds a fresh copy.
func factory(blk fakeBlock) BlockFactory {
	return func(src *Source) Block {
		b := blk
		b.BlockBase = NewBlockBase(src)
		return &b
	}
}

// staticDomains discretizes every dimension on the same grid for all events.
type staticDomains map[string][]float64

func (d staticDomains) Domain(dim string, b *Batch) (*Rank1, error) {
	values, ok := d[dim]
	if !ok {
		return nil, fmt.Errorf("no grid for %q", dim)
	}
	return replicate(b.Len(), values), nil
}

func (d staticDomains) CrossDomains(x, y string, b *Batch) (*Rank2, *Rank2, error) {
	dx, err := d.Domain(x, b)
	if err != nil {
		return nil, nil, err
	}
	dy, err := d.Domain(y, b)
	if err != nil {
		return nil, nil, err
	}
	gx, gy := Broadcast(dx, dy)
	return gx, gy, nil
}

// replicate builds a (batch, len(values)) tensor with every row equal to values.
func replicate(batch int, values []float64) *Rank1 {
	out := NewRank1(batch, len(values))
	for e := 0; e < batch; e++ {
		copy(out.Row(e), values)
	}
	return out
}

// constVector returns a compute yielding values for every event.
func constVector(values []float64) func(in *ComputeInput) (Tensor, error) {
	return func(in *ComputeInput) (Tensor, error) {
		return replicate(in.Batch.Len(), values), nil
	}
}

// constMatrix returns a compute yielding the matrix rows for every event.
func constMatrix(rows [][]float64) func(in *ComputeInput) (Tensor, error) {
	return func(in *ComputeInput) (Tensor, error) {
		out := NewRank2(in.Batch.Len(), len(rows), len(rows[0]))
		for e := 0; e < in.Batch.Len(); e++ {
			for i, row := range rows {
				for j, v := range row {
					out.Set(e, i, j, v)
				}
			}
		}
		return out, nil
	}
}

// newTestSource builds a source over static grids with batch size 4.
func newTestSource(t *testing.T, final Dims, domains staticDomains, blocks ...fakeBlock) *Source {
	t.Helper()
	src, err := NewSource(testConfig(final, domains), factories(blocks...)...)
	require.NoError(t, err)
	return src
}

func testConfig(final Dims, domains staticDomains) SourceConfig {
	cfg := NewSourceConfig(final, 4, 10, 42)
	cfg.Domains = domains
	return cfg
}

func factories(blocks ...fakeBlock) []BlockFactory {
	out := make([]BlockFactory, len(blocks))
	for i, b := range blocks {
		out[i] = factory(b)
	}
	return out
}

// events builds a table of n rows with the given scalar columns.
func events(t *testing.T, n int, cols map[string][]float64) *EventTable {
	t.Helper()
	tbl := NewEventTable(n)
	for name, values := range cols {
		require.NoError(t, tbl.Set(name, values))
	}
	return tbl
}
