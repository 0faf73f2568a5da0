package model

import (
	"fmt"
	"math/rand/v2"
)

// Dependency names an earlier block's output a block needs. The tensor keyed
// by Dims in the result map is passed to Compute under Name, together with
// the domains of Dims.
type Dependency struct {
	Dims Dims
	Name string
}

// ArrayColumn declares a per-event array column of fixed Length.
type ArrayColumn struct {
	Name   string
	Length int
}

// BlockSpec is the declared configuration surface of a block. The Source
// merges it once, at construction.
type BlockSpec struct {
	// Name is used when attributing failures; defaults to the Go type name.
	Name string

	Dimensions Dims
	DependsOn  []Dependency

	ModelFunctions        []string
	SpecialModelFunctions []string
	ArrayColumns          []ArrayColumn
	FrozenDataMethods     []string
	StaticAttributes      []string

	// Functions and Statics hold the block's defaults for the names above.
	// A value configured on the source side takes precedence.
	Functions map[string]ModelFunc
	Statics   map[string]any
}

// Block is one stage of the physical chain: a distribution over one
// dimension, or a conditional distribution over a pair.
type Block interface {
	Spec() BlockSpec
	// Compute returns a tensor of FloatType with one axis per declared
	// dimension after the batch axis, in declaration order.
	Compute(in *ComputeInput) (Tensor, error)
}

// BlockFactory instantiates a block bound to its owning source.
type BlockFactory func(src *Source) Block

// Simulator is implemented by blocks that add columns during simulation.
// Simulate must set a column for every declared dimension and must not drop
// rows; exclusion is expressed by lowering AcceptanceColumn.
type Simulator interface {
	Simulate(sc *SimContext) error
}

// Annotator is implemented by blocks that bound their dimensions. Annotate
// must set <dim>_min and <dim>_max for every declared dimension that is
// neither initial nor final, with min <= max on every row.
type Annotator interface {
	Annotate(t *EventTable) error
}

// DataChecker validates an event table before it is accepted as data.
type DataChecker interface {
	CheckData(t *EventTable) error
}

// InitialDomainer is implemented by the first block, which alone knows how
// to discretize the initial dimensions.
type InitialDomainer interface {
	Domain(b *Batch) (map[string]*Rank1, error)
}

// FixTruth pins initial-dimension values during simulation.
type FixTruth map[string]float64

// TruthSampler is implemented by the first block to draw the deep truth
// (energies, positions, ...) that simulation starts from.
type TruthSampler interface {
	RandomTruth(n int, fix FixTruth, rng *rand.Rand) (*EventTable, error)
}

// TruthValidator checks a FixTruth before simulation uses it.
type TruthValidator interface {
	ValidateFixTruth(fix FixTruth) error
}

// ComputeInput carries everything a block's Compute may read.
type ComputeInput struct {
	Batch  *Batch
	Params Params
	// Domains holds the grid of each of the block's own dimensions and of
	// each dependency's dimensions.
	Domains map[string]Tensor
	// Dependencies holds declared dependency tensors by Dependency.Name.
	Dependencies map[string]Tensor

	src *Source
}

// Domain returns the grid of a dimension.
func (in *ComputeInput) Domain(dim string) (Tensor, error) {
	d, ok := in.Domains[dim]
	if !ok {
		return nil, fmt.Errorf("no domain for dimension %q", dim)
	}
	return d, nil
}

// Dependency returns a declared dependency's tensor.
func (in *ComputeInput) Dependency(name string) (Tensor, error) {
	d, ok := in.Dependencies[name]
	if !ok {
		return nil, fmt.Errorf("no dependency %q", name)
	}
	return d, nil
}

// Gimme evaluates a model function for every event of the batch.
func (in *ComputeInput) Gimme(name string) ([]float64, error) {
	return in.src.Gimme(name, in.Batch, in.Params)
}

// GimmeBonus evaluates a special model function element-wise over bonus.
func (in *ComputeInput) GimmeBonus(name string, bonus Tensor) ([]float64, error) {
	return in.src.GimmeBonus(name, in.Batch, in.Params, bonus)
}

// Fetch returns the batch's slice of a previously computed column.
func (in *ComputeInput) Fetch(column string) ([]float64, error) {
	return in.src.Fetch(column, in.Batch)
}

// SimContext carries the state a block's Simulate may use.
type SimContext struct {
	Table  *EventTable
	Params Params
	Rand   *rand.Rand

	src *Source
}

// GimmeEvents evaluates a model function for every simulated event.
func (sc *SimContext) GimmeEvents(name string) ([]float64, error) {
	return sc.src.GimmeEvents(name, sc.Table, sc.Params)
}

// GimmeEventsBonus evaluates a special model function over bonus.
func (sc *SimContext) GimmeEventsBonus(name string, bonus []float64) ([]float64, error) {
	return sc.src.GimmeEventsBonus(name, sc.Table, sc.Params, bonus)
}

// ScaleAcceptance multiplies the acceptance column by factors.
func (sc *SimContext) ScaleAcceptance(factors []float64) error {
	acc, err := sc.Table.MustColumn(AcceptanceColumn)
	if err != nil {
		return err
	}
	if len(factors) != len(acc) {
		return fmt.Errorf("acceptance factors: got %d values for %d events", len(factors), len(acc))
	}
	for i, f := range factors {
		acc[i] *= f
	}
	return nil
}

// BlockBase is embedded by blocks to hold the back-reference to their
// source. The source outlives every block it builds.
type BlockBase struct {
	src *Source
}

// NewBlockBase binds a block to src.
func NewBlockBase(src *Source) BlockBase { return BlockBase{src: src} }

// Source returns the owning source.
func (b BlockBase) Source() *Source { return b.src }

// GimmeEvents evaluates a model function over a whole table.
func (b BlockBase) GimmeEvents(name string, t *EventTable, p Params) ([]float64, error) {
	return b.src.GimmeEvents(name, t, p)
}

// GimmeEventsBonus evaluates a special model function over a whole table.
func (b BlockBase) GimmeEventsBonus(name string, t *EventTable, p Params, bonus []float64) ([]float64, error) {
	return b.src.GimmeEventsBonus(name, t, p, bonus)
}

// StaticFloat returns a numeric static attribute of the source.
func (b BlockBase) StaticFloat(name string) (float64, error) {
	return b.src.StaticFloat(name)
}

// DomainFor returns the grids of dims for batch, resolved by the source.
func (b BlockBase) DomainFor(dims Dims, batch *Batch) (map[string]Tensor, error) {
	return b.src.domainDict(dims, batch)
}

// boundBlock wraps a block with the contract's post-condition checks.
type boundBlock struct {
	block Block
	spec  BlockSpec
	name  string
	src   *Source
}

func newBoundBlock(src *Source, b Block) *boundBlock {
	spec := b.Spec()
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%T", b)
	}
	return &boundBlock{block: b, spec: spec, name: name, src: src}
}

func (bb *boundBlock) dims() Dims { return bb.spec.Dimensions }

func (bb *boundBlock) compute(batch *Batch, p Params, domains, deps map[string]Tensor) (Tensor, error) {
	own, err := bb.src.domainDict(bb.dims(), batch)
	if err != nil {
		return nil, fmt.Errorf("domain of %s: %w", bb.name, err)
	}
	for k, v := range own {
		domains[k] = v
	}
	in := &ComputeInput{Batch: batch, Params: p, Domains: domains, Dependencies: deps, src: bb.src}
	result, err := bb.block.Compute(in)
	if err != nil {
		return nil, fmt.Errorf("compute of %s: %w", bb.name, err)
	}
	if result == nil {
		return nil, contractErrorf(bb.name, "compute", "returned no tensor")
	}
	if result.DType() != FloatType {
		return nil, contractErrorf(bb.name, "compute", "returned tensor of wrong dtype %s", result.DType())
	}
	if result.Rank() != len(bb.dims()) {
		return nil, contractErrorf(bb.name, "compute", "returned tensor of wrong rank %d for %s", result.Rank(), bb.dims())
	}
	if result.BatchLen() != batch.Len() {
		return nil, contractErrorf(bb.name, "compute", "returned batch axis %d for %d events", result.BatchLen(), batch.Len())
	}
	return result, nil
}

func (bb *boundBlock) simulate(sc *SimContext) error {
	sim, ok := bb.block.(Simulator)
	if !ok {
		return bb.checkSimulated(sc.Table)
	}
	n := sc.Table.Len()
	if err := sim.Simulate(sc); err != nil {
		return fmt.Errorf("simulate of %s: %w", bb.name, err)
	}
	if sc.Table.Len() != n {
		return contractErrorf(bb.name, "simulate", "changed the event count from %d to %d", n, sc.Table.Len())
	}
	return bb.checkSimulated(sc.Table)
}

func (bb *boundBlock) checkSimulated(t *EventTable) error {
	for _, dim := range bb.dims() {
		col, ok := t.Column(dim)
		if !ok {
			return contractErrorf(bb.name, "simulate", "must set %s", dim)
		}
		if row, ok := allFinite(col); !ok {
			return contractErrorf(bb.name, "simulate", "set non-finite %s at row %d", dim, row)
		}
	}
	if acc, ok := t.Column(AcceptanceColumn); ok {
		for i, p := range acc {
			if !(p >= 0 && p <= 1) {
				return contractErrorf(bb.name, "simulate", "left %s=%v at row %d", AcceptanceColumn, p, i)
			}
		}
	}
	return nil
}

func (bb *boundBlock) annotate(t *EventTable) error {
	if a, ok := bb.block.(Annotator); ok {
		if err := a.Annotate(t); err != nil {
			return fmt.Errorf("annotate of %s: %w", bb.name, err)
		}
	}
	cfg := bb.src.cfg
	for _, dim := range bb.dims() {
		if cfg.final.Contains(dim) || cfg.initial.Contains(dim) {
			continue
		}
		lo, ok := t.Column(MinColumn(dim))
		if !ok {
			return contractErrorf(bb.name, "annotate", "must set %s", MinColumn(dim))
		}
		hi, ok := t.Column(MaxColumn(dim))
		if !ok {
			return contractErrorf(bb.name, "annotate", "must set %s", MaxColumn(dim))
		}
		for i := range lo {
			if !(lo[i] <= hi[i]) {
				return contractErrorf(bb.name, "annotate", "set misordered bounds for %s at row %d: %v > %v", dim, i, lo[i], hi[i])
			}
		}
	}
	return nil
}

func (bb *boundBlock) checkData(t *EventTable) error {
	if c, ok := bb.block.(DataChecker); ok {
		if err := c.CheckData(t); err != nil {
			return fmt.Errorf("check data of %s: %w", bb.name, err)
		}
	}
	return nil
}
