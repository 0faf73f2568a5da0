package model

import (
	"fmt"
	"slices"
	"strings"
)

// DType names the numeric type a tensor carries.
type DType string

const (
	Float64 DType = "float64"
	Float32 DType = "float32"
)

// FloatType is the single numeric type every block tensor must use.
const FloatType = Float64

// Dims is an ordered tuple of dimension names.
type Dims []string

// D builds a Dims from names.
func D(names ...string) Dims { return Dims(names) }

// Key returns a string form usable as a map key and in messages.
func (d Dims) Key() string { return "(" + strings.Join(d, ",") + ")" }

func (d Dims) String() string { return d.Key() }

// Index returns the position of name, or -1.
func (d Dims) Index(name string) int { return slices.Index(d, name) }

// Contains reports whether name is one of d.
func (d Dims) Contains(name string) bool { return d.Index(name) >= 0 }

// Equal reports element-wise equality.
func (d Dims) Equal(o Dims) bool { return slices.Equal(d, o) }

// Without returns d with every occurrence of name removed.
func (d Dims) Without(name string) Dims {
	out := make(Dims, 0, len(d))
	for _, x := range d {
		if x != name {
			out = append(out, x)
		}
	}
	return out
}

// Tensor is a batched array over one or two model dimensions. The leading
// axis is always the batch. The only implementations are *Rank1 and *Rank2.
type Tensor interface {
	// Rank is the number of non-batch axes.
	Rank() int
	BatchLen() int
	DType() DType
	// Shape includes the batch axis.
	Shape() []int
	// Values exposes the row-major backing slice.
	Values() []float64

	isTensor()
}

// Rank1 is a (batch, n) tensor.
type Rank1 struct {
	batch, n int
	dtype    DType
	data     []float64
}

// NewRank1 allocates a zeroed (batch, n) tensor of FloatType.
func NewRank1(batch, n int) *Rank1 {
	return &Rank1{batch: batch, n: n, dtype: FloatType, data: make([]float64, batch*n)}
}

// Rank1From wraps data as a (batch, n) tensor without copying.
func Rank1From(batch, n int, data []float64) (*Rank1, error) {
	if len(data) != batch*n {
		return nil, fmt.Errorf("rank-1 tensor (%d,%d) needs %d values, got %d", batch, n, batch*n, len(data))
	}
	return &Rank1{batch: batch, n: n, dtype: FloatType, data: data}, nil
}

func (t *Rank1) Rank() int         { return 1 }
func (t *Rank1) BatchLen() int     { return t.batch }
func (t *Rank1) DType() DType      { return t.dtype }
func (t *Rank1) Shape() []int      { return []int{t.batch, t.n} }
func (t *Rank1) Values() []float64 { return t.data }
func (t *Rank1) isTensor()         {}

// Len is the size of the single non-batch axis.
func (t *Rank1) Len() int { return t.n }

func (t *Rank1) At(b, i int) float64     { return t.data[b*t.n+i] }
func (t *Rank1) Set(b, i int, v float64) { t.data[b*t.n+i] = v }

// Row returns the n values of event b, sharing storage.
func (t *Rank1) Row(b int) []float64 { return t.data[b*t.n : (b+1)*t.n] }

// WithDType returns a view of t tagged with another numeric type.
func (t *Rank1) WithDType(d DType) *Rank1 {
	c := *t
	c.dtype = d
	return &c
}

// Rank2 is a (batch, n, m) tensor.
type Rank2 struct {
	batch, n, m int
	dtype       DType
	data        []float64
}

// NewRank2 allocates a zeroed (batch, n, m) tensor of FloatType.
func NewRank2(batch, n, m int) *Rank2 {
	return &Rank2{batch: batch, n: n, m: m, dtype: FloatType, data: make([]float64, batch*n*m)}
}

// Rank2From wraps data as a (batch, n, m) tensor without copying.
func Rank2From(batch, n, m int, data []float64) (*Rank2, error) {
	if len(data) != batch*n*m {
		return nil, fmt.Errorf("rank-2 tensor (%d,%d,%d) needs %d values, got %d", batch, n, m, batch*n*m, len(data))
	}
	return &Rank2{batch: batch, n: n, m: m, dtype: FloatType, data: data}, nil
}

func (t *Rank2) Rank() int         { return 2 }
func (t *Rank2) BatchLen() int     { return t.batch }
func (t *Rank2) DType() DType      { return t.dtype }
func (t *Rank2) Shape() []int      { return []int{t.batch, t.n, t.m} }
func (t *Rank2) Values() []float64 { return t.data }
func (t *Rank2) isTensor()         {}

// Rows and Cols are the sizes of the first and second non-batch axes.
func (t *Rank2) Rows() int { return t.n }
func (t *Rank2) Cols() int { return t.m }

func (t *Rank2) At(b, i, j int) float64     { return t.data[(b*t.n+i)*t.m+j] }
func (t *Rank2) Set(b, i, j int, v float64) { t.data[(b*t.n+i)*t.m+j] = v }

// Matrix returns the n*m row-major values of event b, sharing storage.
func (t *Rank2) Matrix(b int) []float64 {
	sz := t.n * t.m
	return t.data[b*sz : (b+1)*sz]
}

// Transpose swaps the two non-batch axes into a new tensor.
func (t *Rank2) Transpose() *Rank2 {
	out := &Rank2{batch: t.batch, n: t.m, m: t.n, dtype: t.dtype, data: make([]float64, len(t.data))}
	for b := 0; b < t.batch; b++ {
		for i := 0; i < t.n; i++ {
			for j := 0; j < t.m; j++ {
				out.Set(b, j, i, t.At(b, i, j))
			}
		}
	}
	return out
}

// WithDType returns a view of t tagged with another numeric type.
func (t *Rank2) WithDType(d DType) *Rank2 {
	c := *t
	c.dtype = d
	return &c
}
