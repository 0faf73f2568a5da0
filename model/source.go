package model

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/blocksim/blocksim/model/trace"
)

// Source is a model assembled from an ordered list of blocks. It evaluates
// differential rates, simulates events and annotates data.
//
// Thread-safety: NOT thread-safe. Callers serialize SetData, Simulate,
// Annotate and rate evaluations.
type Source struct {
	blocks    []*boundBlock
	cfg       *Configuration
	batchSize int
	domains   DomainProvider
	rng       *PartitionedRNG
	trace     *trace.ContractionTrace

	data *EventTable
}

// NewSource instantiates every block with a back-reference to the new
// source and merges their declarations with cfg.
func NewSource(cfg SourceConfig, factories ...BlockFactory) (*Source, error) {
	if cfg.BatchSize <= 0 {
		return nil, configErrorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if !trace.IsValidTraceLevel(string(cfg.Trace)) {
		return nil, configErrorf("unknown trace level %q", cfg.Trace)
	}

	s := &Source{
		batchSize: cfg.BatchSize,
		rng:       NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}
	for i, f := range factories {
		if f == nil {
			return nil, configErrorf("block factory %d is nil", i)
		}
		b := f(s)
		if b == nil {
			return nil, configErrorf("block factory %d returned no block", i)
		}
		s.blocks = append(s.blocks, newBoundBlock(s, b))
	}

	conf, err := buildConfiguration(cfg, s.blocks)
	if err != nil {
		return nil, err
	}
	s.cfg = conf

	switch {
	case cfg.Domains != nil:
		s.domains = cfg.Domains
	case NewDomainProviderFunc != nil:
		if cfg.Grid.MaxDimSize <= 0 {
			return nil, configErrorf("grid max dimension size must be positive, got %d", cfg.Grid.MaxDimSize)
		}
		s.domains = NewDomainProviderFunc(cfg.Grid)
	default:
		return nil, configErrorf("no domain provider: set SourceConfig.Domains or import model/grid")
	}

	if cfg.Trace.Enabled() {
		s.trace = trace.NewContractionTrace(cfg.Trace)
	}

	logrus.Debugf("source built: blocks=%v initial=%s inner=%s final=%s",
		s.blockNames(), conf.initial, conf.inner, conf.final)
	return s, nil
}

// Configuration returns the merged, frozen configuration.
func (s *Source) Configuration() *Configuration { return s.cfg }

// Blocks returns the instantiated blocks in declared order.
func (s *Source) Blocks() []Block {
	out := make([]Block, len(s.blocks))
	for i, bb := range s.blocks {
		out[i] = bb.block
	}
	return out
}

// RNG returns the source's partitioned random generator.
func (s *Source) RNG() *PartitionedRNG { return s.rng }

// Trace returns the contraction trace, or nil when tracing is off.
func (s *Source) Trace() *trace.ContractionTrace { return s.trace }

// Defaults returns the default value of every fittable parameter.
func (s *Source) Defaults() Params { return s.cfg.Defaults() }

// Data returns the current annotated event table, or nil.
func (s *Source) Data() *EventTable { return s.data }

// SetData validates t, then works on a copy of it: frozen data methods are
// evaluated into columns, the copy is annotated and the domain provider
// derives its bookkeeping columns. On success the copy becomes the data the
// rate is evaluated on (see Data); t itself is never modified.
func (s *Source) SetData(t *EventTable) error {
	if t == nil || t.Len() == 0 {
		return fmt.Errorf("%w: empty event table", ErrNoData)
	}
	for _, col := range s.cfg.arrayColumns {
		if !t.Has(col.Name) {
			return fmt.Errorf("data lacks array column %q", col.Name)
		}
		if w := t.Width(col.Name); w != col.Length {
			return fmt.Errorf("array column %q has width %d, declared %d", col.Name, w, col.Length)
		}
	}
	for _, bb := range s.blocks {
		if err := bb.checkData(t); err != nil {
			return err
		}
	}
	work := t.Clone()
	for _, name := range s.cfg.frozenMethods {
		values, err := s.cfg.functions[name].evaluate(name, work, nil, nil)
		if err != nil {
			return fmt.Errorf("freezing data method: %w", err)
		}
		if err := work.Set(name, values); err != nil {
			return err
		}
	}

	prev := s.data
	s.data = work
	if err := s.Annotate(); err != nil {
		s.data = prev
		return err
	}
	if p, ok := s.domains.(Preparer); ok {
		if err := p.Prepare(work, s.cfg.inner); err != nil {
			s.data = prev
			return fmt.Errorf("preparing domains: %w", err)
		}
	}
	logrus.Debugf("data set: %d events in %d batches", work.Len(), s.NBatches())
	return nil
}

// BatchSize returns the maximum number of events per batch.
func (s *Source) BatchSize() int { return s.batchSize }

// NBatches returns the number of batches the current data splits into.
func (s *Source) NBatches() int {
	if s.data == nil {
		return 0
	}
	return (s.data.Len() + s.batchSize - 1) / s.batchSize
}

// Batches splits the current data into batches.
func (s *Source) Batches() ([]*Batch, error) {
	if s.data == nil {
		return nil, ErrNoData
	}
	return batches(s.data, s.batchSize), nil
}

// Batch returns batch i of the current data.
func (s *Source) Batch(i int) (*Batch, error) {
	if s.data == nil {
		return nil, ErrNoData
	}
	if i < 0 || i >= s.NBatches() {
		return nil, fmt.Errorf("batch %d out of range [0,%d)", i, s.NBatches())
	}
	start := i * s.batchSize
	end := min(start+s.batchSize, s.data.Len())
	return &Batch{Index: i, Offset: start, table: s.data.Slice(start, end)}, nil
}

// Gimme evaluates a model function for every event in b. Frozen data
// methods are read from their precomputed column.
func (s *Source) Gimme(name string, b *Batch, p Params) ([]float64, error) {
	if slices.Contains(s.cfg.frozenMethods, name) {
		return b.Column(name)
	}
	f, err := s.function(name, false)
	if err != nil {
		return nil, err
	}
	return f.evaluate(name, b.Table(), p, nil)
}

// GimmeBonus evaluates a special model function element-wise over bonus,
// whose batch axis must match b. The result has bonus's layout.
func (s *Source) GimmeBonus(name string, b *Batch, p Params, bonus Tensor) ([]float64, error) {
	if bonus == nil || bonus.BatchLen() != b.Len() {
		return nil, fmt.Errorf("model function %q: bonus argument must cover the %d batch events", name, b.Len())
	}
	f, err := s.function(name, true)
	if err != nil {
		return nil, err
	}
	return f.evaluate(name, b.Table(), p, bonus.Values())
}

// GimmeEvents evaluates a model function for every row of t.
func (s *Source) GimmeEvents(name string, t *EventTable, p Params) ([]float64, error) {
	if slices.Contains(s.cfg.frozenMethods, name) && t.Has(name) {
		return t.MustColumn(name)
	}
	f, err := s.function(name, false)
	if err != nil {
		return nil, err
	}
	return f.evaluate(name, t, p, nil)
}

// GimmeEventsBonus evaluates a special model function over bonus, which
// holds a whole number of values per row of t.
func (s *Source) GimmeEventsBonus(name string, t *EventTable, p Params, bonus []float64) ([]float64, error) {
	f, err := s.function(name, true)
	if err != nil {
		return nil, err
	}
	if bonus == nil {
		bonus = []float64{}
	}
	return f.evaluate(name, t, p, bonus)
}

func (s *Source) function(name string, special bool) (ModelFunc, error) {
	if !slices.Contains(s.cfg.dataMethods, name) {
		return ModelFunc{}, configErrorf("no block declares model function %q", name)
	}
	if special != slices.Contains(s.cfg.specialMethods, name) {
		if special {
			return ModelFunc{}, configErrorf("model function %q does not take a bonus argument", name)
		}
		return ModelFunc{}, configErrorf("special model function %q needs a bonus argument", name)
	}
	return s.cfg.functions[name], nil
}

// Fetch returns b's slice of a previously computed column, such as the
// step sizes written while preparing domains.
func (s *Source) Fetch(column string, b *Batch) ([]float64, error) {
	return b.Column(column)
}

// Static returns a merged static attribute.
func (s *Source) Static(name string) (any, bool) {
	return s.cfg.Static(name)
}

// StaticFloat returns a numeric static attribute as float64.
func (s *Source) StaticFloat(name string) (float64, error) {
	v, ok := s.cfg.Static(name)
	if !ok {
		return 0, configErrorf("no static attribute %q", name)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, configErrorf("static attribute %q is %T, not a number", name, v)
	}
}

func (s *Source) blockNames() []string {
	names := make([]string, len(s.blocks))
	for i, bb := range s.blocks {
		names[i] = bb.name
	}
	return names
}
