package model

import (
	"fmt"
	"maps"
	"slices"
)

// Params maps fittable parameter names to values.
type Params map[string]float64

// FuncInput is what a ModelFunc sees for one evaluation.
type FuncInput struct {
	// N is the number of events.
	N int
	// Args holds one slice per ModelFunc.Columns entry, N values each.
	Args [][]float64
	// Params holds every parameter in ModelFunc.Defaults, overridden by
	// the caller's values.
	Params Params
	// Bonus is the extra element-wise argument of a special model function;
	// nil for ordinary ones. It holds Stride() values per event.
	Bonus []float64
}

// Stride is the number of bonus values per event.
func (in FuncInput) Stride() int {
	if in.N == 0 {
		return 0
	}
	return len(in.Bonus) / in.N
}

// ModelFunc is a named, parameterized numeric quantity of the model. It
// returns N values, or len(Bonus) values when called with a bonus argument.
type ModelFunc struct {
	Columns  []string
	Defaults Params
	Eval     func(in FuncInput) []float64
}

// Constant returns a ModelFunc yielding v for every event or bonus element.
func Constant(v float64) ModelFunc {
	return ModelFunc{Eval: func(in FuncInput) []float64 {
		n := in.N
		if in.Bonus != nil {
			n = len(in.Bonus)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}}
}

// Parameter returns a ModelFunc yielding the named parameter, with default
// value def, for every event or bonus element.
func Parameter(name string, def float64) ModelFunc {
	return ModelFunc{
		Defaults: Params{name: def},
		Eval: func(in FuncInput) []float64 {
			n := in.N
			if in.Bonus != nil {
				n = len(in.Bonus)
			}
			out := make([]float64, n)
			for i := range out {
				out[i] = in.Params[name]
			}
			return out
		},
	}
}

func (f ModelFunc) valid() bool { return f.Eval != nil }

// evaluate runs f over the rows of t. Only parameters f declares are passed.
func (f ModelFunc) evaluate(name string, t *EventTable, p Params, bonus []float64) ([]float64, error) {
	args := make([][]float64, len(f.Columns))
	for i, col := range f.Columns {
		c, err := t.MustColumn(col)
		if err != nil {
			return nil, fmt.Errorf("model function %q: %w", name, err)
		}
		args[i] = c
	}
	params := maps.Clone(f.Defaults)
	if params == nil {
		params = Params{}
	}
	for k := range f.Defaults {
		if v, ok := p[k]; ok {
			params[k] = v
		}
	}
	in := FuncInput{N: t.Len(), Args: args, Params: params, Bonus: bonus}
	if bonus != nil && t.Len() > 0 && len(bonus)%t.Len() != 0 {
		return nil, fmt.Errorf("model function %q: %d bonus values do not divide over %d events", name, len(bonus), t.Len())
	}
	out := f.Eval(in)
	want := t.Len()
	if bonus != nil {
		want = len(bonus)
	}
	if len(out) != want {
		return nil, fmt.Errorf("model function %q returned %d values, expected %d", name, len(out), want)
	}
	return out, nil
}

// checkParams rejects parameter names that no model function declares.
func checkParams(defaults, p Params) error {
	for k := range p {
		if _, ok := defaults[k]; !ok {
			known := slices.Sorted(maps.Keys(defaults))
			return fmt.Errorf("%w %q (known: %v)", ErrUnknownParameter, k, known)
		}
	}
	return nil
}
