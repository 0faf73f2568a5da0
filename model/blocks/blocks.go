// Package blocks provides the physics blocks of a liquid-xenon detector
// response model. A recoil deposits energy, which becomes quanta; the quanta
// split into electrons and photons, each branch is detected and finally
// smeared into the S2 and S1 signals. The Block contract is defined in
// model/ (parent package). NewChainSource assembles the blocks into a
// model.Source observing (s1, s2).
package blocks

import (
	"fmt"
	"math"

	"github.com/blocksim/blocksim/model"
)

// Dimension names of the detector chain.
const (
	DimEnergy            = "energy"
	DimQuanta            = "quanta_produced"
	DimElectronsProduced = "electrons_produced"
	DimPhotonsProduced   = "photons_produced"
	DimPhotoelectrons    = "photoelectrons_detected"
	DimElectronsDetected = "electrons_detected"
	DimS1                = "s1"
	DimS2                = "s2"
)

// Default physics constants. Each is the block-side default of a model
// function or static attribute; a source may override any of them.
const (
	DefaultWork                 = 13.7e-3 // keV per quantum
	DefaultPElectron            = 0.5
	DefaultPhotonDetectionEff   = 0.12
	DefaultElectronDetectionEff = 0.95
	DefaultPhotoelectronGain    = 1.0
	DefaultPhotoelectronGainStd = 0.5
	DefaultElectronGain         = 20.0
	DefaultElectronGainStd      = 5.0
	DefaultS1Threshold          = 2.0
	DefaultS2Threshold          = 200.0
	DefaultMaxSigma             = 5.0
	DefaultLindhardK            = 0.138
)

// sigmaFloor keeps Normal densities finite when the smearing width is zero.
const sigmaFloor = 1e-10

// crossGrids returns the (batch, n, m) grids of x and y from in.
func crossGrids(in *model.ComputeInput, x, y string) (*model.Rank2, *model.Rank2, error) {
	gx, err := rank2Domain(in, x)
	if err != nil {
		return nil, nil, err
	}
	gy, err := rank2Domain(in, y)
	if err != nil {
		return nil, nil, err
	}
	if gx.Rows() != gy.Rows() || gx.Cols() != gy.Cols() {
		return nil, nil, fmt.Errorf("grids of %s %v and %s %v differ in shape", x, gx.Shape(), y, gy.Shape())
	}
	return gx, gy, nil
}

func rank2Domain(in *model.ComputeInput, dim string) (*model.Rank2, error) {
	d, err := in.Domain(dim)
	if err != nil {
		return nil, err
	}
	g, ok := d.(*model.Rank2)
	if !ok {
		return nil, fmt.Errorf("domain of %s has rank %d, want 2", dim, d.Rank())
	}
	return g, nil
}

// fetchSteps returns the per-event step column of dim, or all ones when the
// domain provider wrote none (unbounded grids).
func fetchSteps(in *model.ComputeInput, dim string) []float64 {
	steps, err := in.Fetch(model.StepsColumn(dim))
	if err != nil {
		steps = make([]float64, in.Batch.Len())
		for i := range steps {
			steps[i] = 1
		}
	}
	return steps
}

// columns fetches several columns of t at once.
func columns(t *model.EventTable, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		c, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// clipLow returns max(v, 0).
func clipLow(v float64) float64 { return math.Max(v, 0) }

// setBounds writes the min, max and mle columns of dim.
func setBounds(t *model.EventTable, dim string, lo, hi, mle []float64) error {
	if err := t.Set(model.MinColumn(dim), lo); err != nil {
		return err
	}
	if err := t.Set(model.MaxColumn(dim), hi); err != nil {
		return err
	}
	return t.Set(model.MLEColumn(dim), mle)
}

// checkProbability rejects per-event values of name outside [lo, 1], with lo
// itself excluded when open is set.
func checkProbability(name string, values []float64, open bool) error {
	for i, p := range values {
		if p > 1 || p < 0 || (open && p == 0) || math.IsNaN(p) {
			interval := "[0, 1]"
			if open {
				interval = "(0, 1]"
			}
			return fmt.Errorf("%s %v at event %d outside %s", name, p, i, interval)
		}
	}
	return nil
}

// checkPositive rejects per-event values of name that are not finite and > 0.
func checkPositive(name string, values []float64) error {
	for i, v := range values {
		if !(v > 0) || math.IsInf(v, 1) {
			return fmt.Errorf("%s %v at event %d must be positive and finite", name, v, i)
		}
	}
	return nil
}
