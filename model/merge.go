package model

import (
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
)

// Configuration is the frozen result of merging every block's declarations
// with the source's own. It is built once by NewSource and never mutated;
// accessors return copies.
type Configuration struct {
	final   Dims
	initial Dims
	inner   Dims
	all     Dims

	functions map[string]ModelFunc
	statics   map[string]any
	defaults  Params

	dataMethods    []string
	specialMethods []string
	frozenMethods  []string
	arrayColumns   []ArrayColumn
}

// FinalDimensions are the observable output dimensions.
func (c *Configuration) FinalDimensions() Dims { return slices.Clone(c.final) }

// InitialDimensions are the first block's dimensions.
func (c *Configuration) InitialDimensions() Dims { return slices.Clone(c.initial) }

// InnerDimensions are the hidden dimensions that are neither final nor initial.
func (c *Configuration) InnerDimensions() Dims { return slices.Clone(c.inner) }

// Dimensions lists every block dimension once, in declaration order.
func (c *Configuration) Dimensions() Dims { return slices.Clone(c.all) }

// DataMethods lists every declared model function, special ones included.
func (c *Configuration) DataMethods() []string { return slices.Clone(c.dataMethods) }

// SpecialDataMethods lists the model functions that take a bonus argument.
func (c *Configuration) SpecialDataMethods() []string { return slices.Clone(c.specialMethods) }

// FrozenDataMethods lists model functions evaluated once per data set.
func (c *Configuration) FrozenDataMethods() []string { return slices.Clone(c.frozenMethods) }

// ArrayColumns lists the merged array-column declarations.
func (c *Configuration) ArrayColumns() []ArrayColumn { return slices.Clone(c.arrayColumns) }

// ModelFunction returns the merged value of a model function.
func (c *Configuration) ModelFunction(name string) (ModelFunc, bool) {
	f, ok := c.functions[name]
	return f, ok
}

// Static returns the merged value of a static attribute.
func (c *Configuration) Static(name string) (any, bool) {
	v, ok := c.statics[name]
	return v, ok
}

// Defaults returns the default value of every fittable parameter.
func (c *Configuration) Defaults() Params { return maps.Clone(c.defaults) }

// StaticAttributes returns every merged static attribute.
func (c *Configuration) StaticAttributes() map[string]any { return maps.Clone(c.statics) }

// buildConfiguration merges the declarations of blocks (in order) with cfg.
// A value present on the source side wins and is what the block sees;
// otherwise the block's default is promoted to the source. Later blocks see
// values promoted by earlier ones.
func buildConfiguration(cfg SourceConfig, blocks []*boundBlock) (*Configuration, error) {
	if len(blocks) == 0 {
		return nil, configErrorf("a source needs at least one block")
	}
	if len(cfg.FinalDimensions) == 0 {
		return nil, configErrorf("final dimensions must not be empty")
	}

	c := &Configuration{
		final:     slices.Clone(cfg.FinalDimensions),
		initial:   slices.Clone(blocks[0].dims()),
		functions: maps.Clone(cfg.ModelFunctions),
		statics:   maps.Clone(cfg.StaticAttributes),
		defaults:  Params{},
	}
	if c.functions == nil {
		c.functions = make(map[string]ModelFunc)
	}
	if c.statics == nil {
		c.statics = make(map[string]any)
	}

	for _, bb := range blocks {
		spec := bb.spec
		if err := validateSpec(bb.name, spec); err != nil {
			return nil, err
		}
		for _, d := range spec.Dimensions {
			if !c.all.Contains(d) {
				c.all = append(c.all, d)
			}
		}

		for _, name := range slices.Concat(spec.ModelFunctions, spec.SpecialModelFunctions) {
			if f, ok := c.functions[name]; ok && f.valid() {
				logrus.Debugf("model function %q of %s taken from source", name, bb.name)
			} else if f, ok := spec.Functions[name]; ok && f.valid() {
				c.functions[name] = f
			} else {
				return nil, configErrorf("model function %q declared by %s has no value", name, bb.name)
			}
			c.dataMethods = appendUnique(c.dataMethods, name)
		}
		for _, name := range spec.SpecialModelFunctions {
			c.specialMethods = appendUnique(c.specialMethods, name)
		}
		for _, name := range spec.StaticAttributes {
			if v, ok := c.statics[name]; ok && v != nil {
				logrus.Debugf("static attribute %q of %s taken from source", name, bb.name)
			} else if v, ok := spec.Statics[name]; ok && v != nil {
				c.statics[name] = v
			} else {
				return nil, configErrorf("static attribute %q declared by %s has no value", name, bb.name)
			}
		}
		for _, col := range spec.ArrayColumns {
			c.arrayColumns = mergeArrayColumn(c.arrayColumns, col)
		}
		for _, name := range spec.FrozenDataMethods {
			c.frozenMethods = appendUnique(c.frozenMethods, name)
		}
	}

	// The source may declare new array columns or change the length of
	// existing ones.
	for _, col := range cfg.ArrayColumns {
		if col.Name == "" || col.Length < 1 {
			return nil, configErrorf("array column %q must have a name and positive length, got %d", col.Name, col.Length)
		}
		c.arrayColumns = mergeArrayColumn(c.arrayColumns, col)
	}
	for _, name := range cfg.FrozenDataMethods {
		c.frozenMethods = appendUnique(c.frozenMethods, name)
	}
	for _, name := range c.frozenMethods {
		if _, ok := c.functions[name]; !ok {
			return nil, configErrorf("frozen data method %q is not a model function", name)
		}
		if slices.Contains(c.specialMethods, name) {
			return nil, configErrorf("frozen data method %q takes a bonus argument", name)
		}
	}

	for _, name := range c.dataMethods {
		for k, v := range c.functions[name].Defaults {
			if old, ok := c.defaults[k]; ok && old != v {
				logrus.Debugf("parameter %q: keeping default %v over %v from %q", k, old, v, name)
				continue
			}
			c.defaults[k] = v
		}
	}

	for _, d := range c.all {
		if !c.final.Contains(d) && !c.initial.Contains(d) {
			c.inner = append(c.inner, d)
		}
	}
	return c, nil
}

func validateSpec(name string, spec BlockSpec) error {
	if n := len(spec.Dimensions); n != 1 && n != 2 {
		return configErrorf("%s must declare 1 or 2 dimensions, got %d", name, n)
	}
	for _, d := range spec.Dimensions {
		if d == "" {
			return configErrorf("%s declares an empty dimension name", name)
		}
	}
	if len(spec.Dimensions) == 2 && spec.Dimensions[0] == spec.Dimensions[1] {
		return configErrorf("%s declares dimension %q twice", name, spec.Dimensions[0])
	}
	for _, dep := range spec.DependsOn {
		if n := len(dep.Dims); n != 1 && n != 2 {
			return configErrorf("%s: dependency %q must name 1 or 2 dimensions, got %d", name, dep.Name, n)
		}
		if dep.Name == "" {
			return configErrorf("%s: dependency on %s has no name", name, dep.Dims)
		}
	}
	for _, col := range spec.ArrayColumns {
		if col.Name == "" || col.Length < 1 {
			return configErrorf("%s: array column %q must have a name and positive length, got %d", name, col.Name, col.Length)
		}
	}
	for _, group := range [][]string{spec.ModelFunctions, spec.SpecialModelFunctions, spec.StaticAttributes, spec.FrozenDataMethods} {
		if slices.Contains(group, "") {
			return configErrorf("%s declares an empty attribute name", name)
		}
	}
	return nil
}

// mergeArrayColumn replaces the length of an existing column of the same
// name in place, or appends col.
func mergeArrayColumn(cols []ArrayColumn, col ArrayColumn) []ArrayColumn {
	for i := range cols {
		if cols[i].Name == col.Name {
			cols[i].Length = col.Length
			return cols
		}
	}
	return append(cols, col)
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
