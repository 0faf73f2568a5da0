// Package grid provides the default model.DomainProvider: per-event grids
// derived from the <dim>_min / <dim>_max bounds written by annotation.
package grid

import (
	"fmt"
	"math"

	"github.com/blocksim/blocksim/model"
)

// Discretizer lays out each hidden dimension on an evenly stepped grid
// starting at its per-event minimum. Steps grow so that no event needs more
// than MaxDimSize points; all events of a batch share the grid length.
// Dimensions without bounds but with an observed column (final dimensions)
// get that single observed point.
type Discretizer struct {
	MaxDimSize int
}

// NewDiscretizer creates a Discretizer; maxDimSize below 2 is treated as 2.
func NewDiscretizer(maxDimSize int) *Discretizer {
	return &Discretizer{MaxDimSize: max(maxDimSize, 2)}
}

// Prepare writes <dim>_steps for every bounded inner dimension of t.
func (d *Discretizer) Prepare(t *model.EventTable, inner model.Dims) error {
	for _, dim := range inner {
		lo, hi, ok, err := bounds(t, dim)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		steps := make([]float64, t.Len())
		for i := range steps {
			steps[i] = Step(lo[i], hi[i], d.MaxDimSize)
		}
		if err := t.Set(model.StepsColumn(dim), steps); err != nil {
			return err
		}
	}
	return nil
}

// Step is the whole-number grid spacing needed to cover [lo, hi] in at most
// maxSize (>= 2) points.
func Step(lo, hi float64, maxSize int) float64 {
	return math.Max(1, math.Ceil((hi-lo)/float64(maxSize-1)))
}

// Domain returns the (batch, n) grid of dim.
func (d *Discretizer) Domain(dim string, b *model.Batch) (*model.Rank1, error) {
	t := b.Table()
	lo, hi, ok, err := bounds(t, dim)
	if err != nil {
		return nil, err
	}
	if !ok {
		obs, found := t.Column(dim)
		if !found {
			return nil, fmt.Errorf("dimension %q has neither bounds nor observed values", dim)
		}
		return model.Rank1From(t.Len(), 1, append([]float64(nil), obs...))
	}

	steps := make([]float64, t.Len())
	if s, found := t.Column(model.StepsColumn(dim)); found {
		copy(steps, s)
	} else {
		for i := range steps {
			steps[i] = Step(lo[i], hi[i], d.MaxDimSize)
		}
	}

	size := 1
	for i := range lo {
		n := int(math.Ceil((hi[i]-lo[i])/steps[i])) + 1
		size = max(size, n)
	}
	g := model.NewRank1(t.Len(), size)
	for e := 0; e < t.Len(); e++ {
		for i := 0; i < size; i++ {
			g.Set(e, i, lo[e]+float64(i)*steps[e])
		}
	}
	return g, nil
}

// CrossDomains returns the joint grids of x and y.
func (d *Discretizer) CrossDomains(x, y string, b *model.Batch) (*model.Rank2, *model.Rank2, error) {
	dx, err := d.Domain(x, b)
	if err != nil {
		return nil, nil, err
	}
	dy, err := d.Domain(y, b)
	if err != nil {
		return nil, nil, err
	}
	gx, gy := model.Broadcast(dx, dy)
	return gx, gy, nil
}

func bounds(t *model.EventTable, dim string) (lo, hi []float64, ok bool, err error) {
	lo, hasLo := t.Column(model.MinColumn(dim))
	hi, hasHi := t.Column(model.MaxColumn(dim))
	switch {
	case !hasLo && !hasHi:
		return nil, nil, false, nil
	case hasLo != hasHi:
		return nil, nil, false, fmt.Errorf("dimension %q has only one of its bounds", dim)
	}
	for i := range lo {
		if !(lo[i] <= hi[i]) {
			return nil, nil, false, fmt.Errorf("dimension %q: misordered bounds at row %d", dim, i)
		}
	}
	return lo, hi, true, nil
}
