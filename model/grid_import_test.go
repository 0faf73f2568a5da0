package model_test

// Blank import triggers model/grid's init(), which registers NewDomainProviderFunc.
// This allows package model's internal test files to build sources with the
// default provider without directly importing model/grid (which would create
// an import cycle).
import _ "github.com/blocksim/blocksim/model/grid"
