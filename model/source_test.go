package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkedBlock adds a data check to a fakeBlock.
type checkedBlock struct {
	*fakeBlock
	check func(t *EventTable) error
}

func (c *checkedBlock) CheckData(t *EventTable) error { return c.check(t) }

// annotatedData returns n events carrying bounds for the chain's inner y.
func annotatedData(t *testing.T, n int, extra map[string][]float64) *EventTable {
	t.Helper()
	cols := map[string][]float64{"y_min": make([]float64, n), "y_max": make([]float64, n)}
	for k, v := range extra {
		cols[k] = v
	}
	return events(t, n, cols)
}

func TestSetData_Validation(t *testing.T) {
	blocks := chain()
	blocks[0].spec.ArrayColumns = []ArrayColumn{{"wf", 2}}

	tests := []struct {
		name    string
		table   func(t *testing.T) *EventTable
		wantErr error
	}{
		{"nil table", func(*testing.T) *EventTable { return nil }, ErrNoData},
		{"empty table", func(*testing.T) *EventTable { return NewEventTable(0) }, ErrNoData},
		{"missing array column", func(t *testing.T) *EventTable { return annotatedData(t, 1, nil) }, nil},
		{"wrong array width", func(t *testing.T) *EventTable {
			tbl := annotatedData(t, 1, nil)
			require.NoError(t, tbl.SetArray("wf", 3, []float64{1, 2, 3}))
			return tbl
		}, nil},
		{"missing bounds", func(t *testing.T) *EventTable {
			tbl := events(t, 1, nil)
			require.NoError(t, tbl.SetArray("wf", 2, []float64{1, 2}))
			return tbl
		}, ErrContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, D("s"), chainDomains(), blocks...)

			err := src.SetData(tt.table(t))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Nil(t, src.Data())
		})
	}
}

func TestSetData_FailedAnnotationKeepsPreviousData(t *testing.T) {
	// GIVEN a source with valid data
	src := newTestSource(t, D("s"), chainDomains(), chain()...)
	require.NoError(t, src.SetData(annotatedData(t, 2, nil)))
	good := src.Data()

	// WHEN new data lacks the inner bounds
	err := src.SetData(events(t, 3, nil))

	// THEN the old data stays
	require.ErrorIs(t, err, ErrContract)
	assert.Same(t, good, src.Data())
}

func TestSetData_LeavesCallerTableUntouched(t *testing.T) {
	// GIVEN a chain whose inner block writes bounds during annotation
	blocks := chain()
	blocks[2].annotate = func(t *EventTable) error {
		t.Fill("y_min", 0)
		t.Fill("y_max", 1)
		return nil
	}
	src := newTestSource(t, D("s"), chainDomains(), blocks...)
	in := events(t, 2, map[string][]float64{"s": {1, 2}})
	before := in.Columns()

	// WHEN the data is accepted
	require.NoError(t, src.SetData(in))

	// THEN the annotations live on the source's copy only
	assert.Equal(t, before, in.Columns())
	assert.NotSame(t, in, src.Data())
	assert.True(t, src.Data().Has("y_min"))

	// AND a failed SetData writes nothing into the caller's table either
	blocks[2].annotate = func(t *EventTable) error {
		t.Fill("y_min", 2)
		t.Fill("y_max", 1)
		return nil
	}
	failing := newTestSource(t, D("s"), chainDomains(), blocks...)
	bad := events(t, 2, nil)
	require.ErrorIs(t, failing.SetData(bad), ErrContract)
	assert.False(t, bad.Has("y_min"))
}

func TestSetData_RunsBlockDataChecks(t *testing.T) {
	blocks := chain()
	wantErr := errors.New("needs an s column")
	first := blocks[0]
	f := func(src *Source) Block {
		b := first
		b.BlockBase = NewBlockBase(src)
		return &checkedBlock{fakeBlock: &b, check: func(t *EventTable) error {
			if !t.Has("s") {
				return wantErr
			}
			return nil
		}}
	}
	src, err := NewSource(testConfig(D("s"), chainDomains()), f, factory(blocks[1]), factory(blocks[2]))
	require.NoError(t, err)

	err = src.SetData(annotatedData(t, 1, nil))
	assert.ErrorIs(t, err, wantErr)

	assert.NoError(t, src.SetData(annotatedData(t, 1, map[string][]float64{"s": {4}})))
}

func TestSetData_FreezesDataMethods(t *testing.T) {
	// GIVEN a frozen model function of column w
	blocks := chain()
	blocks[2].spec.ModelFunctions = []string{"efficiency"}
	blocks[2].spec.FrozenDataMethods = []string{"efficiency"}
	blocks[2].spec.Functions = map[string]ModelFunc{"efficiency": {
		Columns: []string{"w"},
		Eval: func(in FuncInput) []float64 {
			out := make([]float64, in.N)
			for i, w := range in.Args[0] {
				out[i] = 2 * w
			}
			return out
		},
	}}
	src := newTestSource(t, D("s"), chainDomains(), blocks...)

	// WHEN data is set
	require.NoError(t, src.SetData(annotatedData(t, 2, map[string][]float64{"w": {1, 3}})))

	// THEN the function was evaluated once into a column
	col, ok := src.Data().Column("efficiency")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 6}, col)

	// AND later calls read that column rather than re-evaluating
	col[0] = 100
	b, err := src.Batch(0)
	require.NoError(t, err)
	got, err := src.Gimme("efficiency", b, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 6}, got)
}

func TestSource_Batches(t *testing.T) {
	src := newTestSource(t, D("s"), chainDomains(), chain()...)
	_, err := src.Batches()
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 0, src.NBatches())

	require.NoError(t, src.SetData(annotatedData(t, 9, nil)))

	bs, err := src.Batches()
	require.NoError(t, err)
	require.Len(t, bs, 3)
	for i, b := range bs {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, 4*i, b.Offset)
	}
	assert.Equal(t, 1, bs[2].Len())

	b, err := src.Batch(1)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Offset)
	_, err = src.Batch(3)
	assert.Error(t, err)
}

func TestSource_GimmeBonus(t *testing.T) {
	// GIVEN a special function scaling a bonus grid by a per-event column
	blocks := chain()
	blocks[1].spec.ModelFunctions = []string{"plain"}
	blocks[1].spec.SpecialModelFunctions = []string{"yield"}
	blocks[1].spec.Functions = map[string]ModelFunc{
		"plain": Constant(1),
		"yield": {
			Columns: []string{"w"},
			Eval: func(in FuncInput) []float64 {
				out := make([]float64, len(in.Bonus))
				stride := in.Stride()
				for i, v := range in.Bonus {
					out[i] = v * in.Args[0][i/stride]
				}
				return out
			},
		},
	}
	src := newTestSource(t, D("s"), chainDomains(), blocks...)
	b := NewBatch(events(t, 2, map[string][]float64{"w": {10, 100}}))
	bonus, err := Rank1From(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	// WHEN evaluated over the bonus tensor
	got, err := src.GimmeBonus("yield", b, nil, bonus)

	// THEN the result has the bonus layout
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 300, 400}, got)

	t.Run("special function needs bonus", func(t *testing.T) {
		_, err := src.Gimme("yield", b, nil)
		assert.ErrorIs(t, err, ErrConfig)
	})
	t.Run("plain function rejects bonus", func(t *testing.T) {
		_, err := src.GimmeBonus("plain", b, nil, bonus)
		assert.ErrorIs(t, err, ErrConfig)
	})
	t.Run("undeclared function", func(t *testing.T) {
		_, err := src.Gimme("nope", b, nil)
		assert.ErrorIs(t, err, ErrConfig)
	})
	t.Run("bonus over another batch", func(t *testing.T) {
		_, err := src.GimmeBonus("yield", b, nil, NewRank1(3, 2))
		assert.Error(t, err)
	})
}

func TestSource_StaticFloat(t *testing.T) {
	cfg := testConfig(D("s"), chainDomains())
	cfg.StaticAttributes = map[string]any{"label": "s1", "n": int64(4)}
	src, err := NewSource(cfg, factories(chain()...)...)
	require.NoError(t, err)

	n, err := src.StaticFloat("n")
	require.NoError(t, err)
	assert.Equal(t, 4.0, n)

	_, err = src.StaticFloat("label")
	assert.ErrorIs(t, err, ErrConfig)
	_, err = src.StaticFloat("missing")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSource_Fetch(t *testing.T) {
	src := newTestSource(t, D("s"), chainDomains(), chain()...)
	require.NoError(t, src.SetData(annotatedData(t, 6, map[string][]float64{"y_steps": {1, 2, 3, 4, 5, 6}})))

	b, err := src.Batch(1)
	require.NoError(t, err)
	got, err := src.Fetch("y_steps", b)

	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, got)
}
