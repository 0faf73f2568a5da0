// register.go wires the Discretizer into the model package's registration
// variable (NewDomainProviderFunc). This init() runs when any package imports
// model/grid, breaking the import cycle between model/ (interface owner) and
// model/grid/ (implementation). Test code in package model uses
// grid_import_test.go for the blank import.
package grid

import "github.com/blocksim/blocksim/model"

func init() {
	model.NewDomainProviderFunc = func(cfg model.GridConfig) model.DomainProvider {
		return NewDiscretizer(cfg.MaxDimSize)
	}
}
