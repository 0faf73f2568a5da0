package model

import "github.com/blocksim/blocksim/model/trace"

// DomainProvider discretizes model dimensions per event. It is consulted for
// every dimension except the initial ones.
type DomainProvider interface {
	// Domain returns a (batch, n) grid for dim.
	Domain(dim string, b *Batch) (*Rank1, error)
	// CrossDomains returns a jointly discretized pair of (batch, n, m) grids:
	// the first varies along axis 1 with x, the second along axis 2 with y.
	CrossDomains(x, y string, b *Batch) (*Rank2, *Rank2, error)
}

// Preparer is implemented by domain providers that derive bookkeeping
// columns (such as step sizes) once bounds are known.
type Preparer interface {
	Prepare(t *EventTable, inner Dims) error
}

// GridConfig parameterizes the default DomainProvider.
type GridConfig struct {
	MaxDimSize int // upper bound on grid points per hidden dimension (must be > 0)
}

// NewDomainProviderFunc builds the default DomainProvider. Set by
// model/grid's init(); nil until that package is imported.
var NewDomainProviderFunc func(cfg GridConfig) DomainProvider

// SourceConfig groups everything a Source needs besides its blocks. Values
// here take precedence over block defaults of the same name.
type SourceConfig struct {
	FinalDimensions Dims
	BatchSize       int // events per batch (must be > 0)

	ModelFunctions    map[string]ModelFunc
	StaticAttributes  map[string]any
	ArrayColumns      []ArrayColumn
	FrozenDataMethods []string

	// Domains overrides the registered default provider.
	Domains DomainProvider
	Grid    GridConfig

	Seed  int64
	Trace trace.TraceLevel
}

// NewSourceConfig creates a SourceConfig with the required fields set.
func NewSourceConfig(finalDims Dims, batchSize int, maxDimSize int, seed int64) SourceConfig {
	return SourceConfig{
		FinalDimensions: finalDims,
		BatchSize:       batchSize,
		Grid:            GridConfig{MaxDimSize: maxDimSize},
		Seed:            seed,
	}
}
