package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// contract marginalizes the dimension shared by left (over lDims) and right
// (over rDims). The result is indexed by lDims without shared followed by
// rDims without shared.
func contract(left Tensor, lDims Dims, right Tensor, rDims Dims, shared string) (Tensor, Dims, error) {
	if left.BatchLen() != right.BatchLen() {
		return nil, nil, configErrorf("contracting %s with %s: batch lengths %d and %d differ",
			lDims, rDims, left.BatchLen(), right.BatchLen())
	}
	newDims := append(lDims.Without(shared), rDims.Without(shared)...)

	var (
		out Tensor
		err error
	)
	switch l := left.(type) {
	case *Rank1:
		r, ok := right.(*Rank2)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d and %d for %s and %s", ErrUnsupportedRank, left.Rank(), right.Rank(), lDims, rDims)
		}
		if rDims.Index(shared) != 0 {
			r = r.Transpose()
		}
		out, err = contractVecMat(l, r)
	case *Rank2:
		switch r := right.(type) {
		case *Rank1:
			if lDims.Index(shared) != 1 {
				l = l.Transpose()
			}
			out, err = contractMatVec(l, r)
		case *Rank2:
			if lDims.Index(shared) != 1 {
				l = l.Transpose()
			}
			if rDims.Index(shared) != 0 {
				r = r.Transpose()
			}
			out, err = contractMatMat(l, r)
		default:
			err = fmt.Errorf("%w: %d and %d for %s and %s", ErrUnsupportedRank, left.Rank(), right.Rank(), lDims, rDims)
		}
	default:
		err = fmt.Errorf("%w: %d and %d for %s and %s", ErrUnsupportedRank, left.Rank(), right.Rank(), lDims, rDims)
	}
	if err != nil {
		return nil, nil, err
	}
	if out.Rank() != len(newDims) {
		return nil, nil, configErrorf("contraction of %s and %s produced rank %d for %s", lDims, rDims, out.Rank(), newDims)
	}
	return out, newDims, nil
}

// contractVecMat multiplies each (1,k) row by the matching (k,m) matrix.
func contractVecMat(v *Rank1, m *Rank2) (*Rank1, error) {
	if v.Len() != m.Rows() {
		return nil, configErrorf("shared axis sizes %d and %d differ", v.Len(), m.Rows())
	}
	out := NewRank1(v.BatchLen(), m.Cols())
	for b := 0; b < v.BatchLen(); b++ {
		if err := batchedMul(out.Row(b), v.Row(b), m.Matrix(b), 1, v.Len(), m.Cols()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// contractMatVec multiplies each (n,k) matrix by the matching (k,1) column.
func contractMatVec(m *Rank2, v *Rank1) (*Rank1, error) {
	if m.Cols() != v.Len() {
		return nil, configErrorf("shared axis sizes %d and %d differ", m.Cols(), v.Len())
	}
	out := NewRank1(m.BatchLen(), m.Rows())
	for b := 0; b < m.BatchLen(); b++ {
		if err := batchedMul(out.Row(b), m.Matrix(b), v.Row(b), m.Rows(), m.Cols(), 1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// contractMatMat multiplies each (n,k) matrix by the matching (k,m) matrix.
func contractMatMat(a, c *Rank2) (*Rank2, error) {
	if a.Cols() != c.Rows() {
		return nil, configErrorf("shared axis sizes %d and %d differ", a.Cols(), c.Rows())
	}
	out := NewRank2(a.BatchLen(), a.Rows(), c.Cols())
	for b := 0; b < a.BatchLen(); b++ {
		if err := batchedMul(out.Matrix(b), a.Matrix(b), c.Matrix(b), a.Rows(), a.Cols(), c.Cols()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// batchedMul writes the (r,k)x(k,c) product of x and y into dst.
func batchedMul(dst, x, y []float64, r, k, c int) error {
	if r == 0 || k == 0 || c == 0 {
		return configErrorf("empty axis in (%d,%d)x(%d,%d) product", r, k, k, c)
	}
	out := mat.NewDense(r, c, dst)
	out.Mul(mat.NewDense(r, k, x), mat.NewDense(k, c, y))
	return nil
}
