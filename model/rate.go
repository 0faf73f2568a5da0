package model

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/blocksim/blocksim/model/trace"
)

// resultEntry is one live tensor of a rate evaluation with the dimensions
// indexing it.
type resultEntry struct {
	dims  Dims
	value Tensor
}

// resultMap holds the tensors of one rate evaluation in declaration order.
// Partner search walks entries in this order, which makes tie-breaks
// deterministic.
type resultMap struct {
	entries []resultEntry
}

func (m *resultMap) index(d Dims) int {
	return slices.IndexFunc(m.entries, func(e resultEntry) bool { return e.dims.Equal(d) })
}

func (m *resultMap) lookup(d Dims) (Tensor, bool) {
	i := m.index(d)
	if i < 0 {
		return nil, false
	}
	return m.entries[i].value, true
}

func (m *resultMap) insert(d Dims, v Tensor) (int, error) {
	if m.index(d) >= 0 {
		return -1, configErrorf("result %s computed twice", d)
	}
	m.entries = append(m.entries, resultEntry{dims: d, value: v})
	return len(m.entries) - 1, nil
}

// findPartner returns the first entry other than cur that shares a
// dimension with it, and that dimension. ok is false when no entry does.
func (m *resultMap) findPartner(cur int) (partner int, shared string, ok bool) {
	dims := m.entries[cur].dims
	for i, e := range m.entries {
		if i == cur {
			continue
		}
		for _, d := range e.dims {
			if dims.Contains(d) {
				return i, d, true
			}
		}
	}
	return -1, "", false
}

// replace drops entries cur and partner and stores v under d in partner's
// slot. It returns the index of the new entry.
func (m *resultMap) replace(cur, partner int, d Dims, v Tensor) (int, error) {
	for i, e := range m.entries {
		if i != cur && i != partner && e.dims.Equal(d) {
			return -1, configErrorf("contraction result %s collides with a live result", d)
		}
	}
	m.entries[partner] = resultEntry{dims: d, value: v}
	m.entries = slices.Delete(m.entries, cur, cur+1)
	if cur < partner {
		return partner - 1, nil
	}
	return partner, nil
}

// final returns the single entry indexed purely by final dimensions.
func (m *resultMap) final(final Dims) (resultEntry, error) {
	var found []resultEntry
	for _, e := range m.entries {
		if len(e.dims) > 0 && !slices.ContainsFunc(e.dims, func(d string) bool { return !final.Contains(d) }) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return resultEntry{}, fmt.Errorf("%w: no result over %s among %s", ErrNoFinalResult, final, m.keys())
	case 1:
		return found[0], nil
	default:
		return resultEntry{}, fmt.Errorf("%w: %d results over %s remain uncontracted: %s", ErrNoFinalResult, len(found), final, m.keys())
	}
}

func (m *resultMap) keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.dims.Key()
	}
	return keys
}

// DifferentialRate evaluates the differential rate of every event in b.
//
// Blocks are computed in declared order. Each new tensor is immediately
// contracted with any earlier tensor sharing a dimension, repeatedly, until
// no partner remains. Exactly one tensor over the final dimensions, with
// one value per event, must be left at the end.
func (s *Source) DifferentialRate(b *Batch, p Params) ([]float64, error) {
	if err := checkParams(s.cfg.defaults, p); err != nil {
		return nil, err
	}
	results := &resultMap{}

	for _, bb := range s.blocks {
		domains := make(map[string]Tensor)
		deps := make(map[string]Tensor, len(bb.spec.DependsOn))
		for _, dep := range bb.spec.DependsOn {
			v, ok := results.lookup(dep.Dims)
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on %s, but that has not yet been computed",
					ErrMissingDependency, bb.name, dep.Dims)
			}
			deps[dep.Name] = v
			dd, err := s.domainDict(dep.Dims, b)
			if err != nil {
				return nil, fmt.Errorf("domain of dependency %s of %s: %w", dep.Dims, bb.name, err)
			}
			for k, g := range dd {
				domains[k] = g
			}
		}

		r, err := bb.compute(b, p, domains, deps)
		if err != nil {
			return nil, err
		}
		cur, err := results.insert(bb.dims(), r)
		if err != nil {
			return nil, err
		}

		for {
			partner, shared, ok := results.findPartner(cur)
			if !ok {
				break
			}
			left, right := results.entries[cur], results.entries[partner]
			v, newDims, err := contract(left.value, left.dims, right.value, right.dims, shared)
			if err != nil {
				return nil, fmt.Errorf("contracting %s of %s with %s: %w", left.dims, bb.name, right.dims, err)
			}
			logrus.Debugf("batch %d: %s x %s over %s -> %s", b.Index, left.dims, right.dims, shared, newDims)
			if s.trace != nil {
				s.trace.RecordContraction(trace.ContractionRecord{
					Batch:  b.Index,
					Block:  bb.name,
					Left:   slices.Clone(left.dims),
					Right:  slices.Clone(right.dims),
					Shared: shared,
					Result: slices.Clone(newDims),
				})
			}
			if cur, err = results.replace(cur, partner, newDims, v); err != nil {
				return nil, err
			}
		}
	}

	res, err := results.final(s.cfg.final)
	if err != nil {
		return nil, err
	}
	if len(results.entries) > 1 {
		logrus.Debugf("batch %d: uncontracted results left over: %v", b.Index, results.keys())
	}
	if s.trace != nil {
		s.trace.RecordEvaluation(trace.EvaluationRecord{
			Batch:     b.Index,
			Events:    b.Len(),
			FinalDims: slices.Clone(res.dims),
			LeftOver:  len(results.entries) - 1,
		})
	}

	values := res.value.Values()
	if len(values) != b.Len() {
		return nil, fmt.Errorf("%w: result over %s has %d values for %d events",
			ErrNoFinalResult, res.dims, len(values), b.Len())
	}
	return slices.Clone(values), nil
}

// DifferentialRates evaluates every batch of the current data and returns
// one rate per event, in table order.
func (s *Source) DifferentialRates(p Params) ([]float64, error) {
	bs, err := s.Batches()
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, s.data.Len())
	for _, b := range bs {
		r, err := s.DifferentialRate(b, p)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", b.Index, err)
		}
		out = append(out, r...)
	}
	return out, nil
}
