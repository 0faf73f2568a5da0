package model

import "fmt"

// Domain returns the (batch, n) grid of dim for b. Initial dimensions are
// discretized by the first block; everything else by the domain provider.
func (s *Source) Domain(dim string, b *Batch) (*Rank1, error) {
	if s.cfg.initial.Contains(dim) {
		first := s.blocks[0]
		d, ok := first.block.(InitialDomainer)
		if !ok {
			return nil, configErrorf("first block %s cannot discretize initial dimension %q", first.name, dim)
		}
		grids, err := d.Domain(b)
		if err != nil {
			return nil, fmt.Errorf("domain of %s: %w", first.name, err)
		}
		g, ok := grids[dim]
		if !ok || g == nil {
			return nil, contractErrorf(first.name, "domain", "returned no grid for %q", dim)
		}
		if g.BatchLen() != b.Len() {
			return nil, contractErrorf(first.name, "domain", "grid for %q covers %d events, batch has %d", dim, g.BatchLen(), b.Len())
		}
		return g, nil
	}
	return s.domains.Domain(dim, b)
}

// CrossDomains returns a jointly discretized pair of grids for x and y. When
// either is an initial dimension, the two 1-D grids are broadcast instead.
func (s *Source) CrossDomains(x, y string, b *Batch) (*Rank2, *Rank2, error) {
	if !s.cfg.initial.Contains(x) && !s.cfg.initial.Contains(y) {
		return s.domains.CrossDomains(x, y, b)
	}
	dx, err := s.Domain(x, b)
	if err != nil {
		return nil, nil, err
	}
	dy, err := s.Domain(y, b)
	if err != nil {
		return nil, nil, err
	}
	gx, gy := Broadcast(dx, dy)
	return gx, gy, nil
}

// Broadcast expands two (batch, n) and (batch, m) grids into a pair of
// (batch, n, m) grids.
func Broadcast(dx, dy *Rank1) (*Rank2, *Rank2) {
	gx := NewRank2(dx.BatchLen(), dx.Len(), dy.Len())
	gy := NewRank2(dx.BatchLen(), dx.Len(), dy.Len())
	for e := 0; e < dx.BatchLen(); e++ {
		for i := 0; i < dx.Len(); i++ {
			for j := 0; j < dy.Len(); j++ {
				gx.Set(e, i, j, dx.At(e, i))
				gy.Set(e, i, j, dy.At(e, j))
			}
		}
	}
	return gx, gy
}

// domainDict maps each of dims to its grid for b.
func (s *Source) domainDict(dims Dims, b *Batch) (map[string]Tensor, error) {
	switch len(dims) {
	case 1:
		d, err := s.Domain(dims[0], b)
		if err != nil {
			return nil, err
		}
		return map[string]Tensor{dims[0]: d}, nil
	case 2:
		gx, gy, err := s.CrossDomains(dims[0], dims[1], b)
		if err != nil {
			return nil, err
		}
		return map[string]Tensor{dims[0]: gx, dims[1]: gy}, nil
	default:
		return nil, configErrorf("domains are defined for 1 or 2 dimensions, got %s", dims)
	}
}
