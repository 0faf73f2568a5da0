package blocks_test

// Blank import registers the default domain provider so that chain sources
// built in package blocks tests can discretize hidden dimensions.
import _ "github.com/blocksim/blocksim/model/grid"
