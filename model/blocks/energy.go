package blocks

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blocksim/blocksim/model"
)

// EnergySpectrum configures a flat recoil-energy spectrum discretized into
// Bins points between Min and Max (keV).
type EnergySpectrum struct {
	Min  float64
	Max  float64
	Bins int
}

// Validate rejects empty or inverted ranges.
func (c EnergySpectrum) Validate() error {
	if !(c.Min >= 0) {
		return fmt.Errorf("energy spectrum: min must be >= 0, got %v", c.Min)
	}
	if !(c.Max > c.Min) {
		return fmt.Errorf("energy spectrum: max %v must exceed min %v", c.Max, c.Min)
	}
	if c.Bins < 1 {
		return fmt.Errorf("energy spectrum: bins must be positive, got %d", c.Bins)
	}
	return nil
}

// Energies returns the grid points, Min and Max included.
func (c EnergySpectrum) Energies() []float64 {
	if c.Bins == 1 {
		return []float64{c.Min}
	}
	step := (c.Max - c.Min) / float64(c.Bins-1)
	out := make([]float64, c.Bins)
	for i := range out {
		out[i] = c.Min + float64(i)*step
	}
	return out
}

// SpectrumBlock is the first block of the chain. Its differential rate is
// flat in energy: energy_spectrum_rate_multiplier / Bins per grid point.
type SpectrumBlock struct {
	model.BlockBase
	cfg      EnergySpectrum
	energies []float64
}

// NewSpectrumBlock returns a factory for a spectrum block over cfg.
func NewSpectrumBlock(cfg EnergySpectrum) model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &SpectrumBlock{BlockBase: model.NewBlockBase(src), cfg: cfg, energies: cfg.Energies()}
	}
}

func (s *SpectrumBlock) Spec() model.BlockSpec {
	return model.BlockSpec{
		Name:           "energy_spectrum",
		Dimensions:     model.D(DimEnergy),
		ModelFunctions: []string{"energy_spectrum_rate_multiplier"},
		Functions: map[string]model.ModelFunc{
			"energy_spectrum_rate_multiplier": model.Constant(1),
		},
	}
}

func (s *SpectrumBlock) Compute(in *model.ComputeInput) (model.Tensor, error) {
	mult, err := in.Gimme("energy_spectrum_rate_multiplier")
	if err != nil {
		return nil, err
	}
	n := len(s.energies)
	out := model.NewRank1(in.Batch.Len(), n)
	for e := 0; e < in.Batch.Len(); e++ {
		row := out.Row(e)
		for i := range row {
			row[i] = mult[e] / float64(n)
		}
	}
	return out, nil
}

// Domain discretizes energy on the same grid for every event.
func (s *SpectrumBlock) Domain(b *model.Batch) (map[string]*model.Rank1, error) {
	g := model.NewRank1(b.Len(), len(s.energies))
	for e := 0; e < b.Len(); e++ {
		copy(g.Row(e), s.energies)
	}
	return map[string]*model.Rank1{DimEnergy: g}, nil
}

// RandomTruth draws energies uniformly in [Min, Max), or pins them to
// fix[energy].
func (s *SpectrumBlock) RandomTruth(n int, fix model.FixTruth, rng *rand.Rand) (*model.EventTable, error) {
	dist := distuv.Uniform{Min: s.cfg.Min, Max: s.cfg.Max, Src: rng}
	energies := make([]float64, n)
	pinned, ok := fix[DimEnergy]
	for i := range energies {
		if ok {
			energies[i] = pinned
		} else {
			energies[i] = dist.Rand()
		}
	}
	t := model.NewEventTable(n)
	if err := t.Set(DimEnergy, energies); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SpectrumBlock) ValidateFixTruth(fix model.FixTruth) error {
	for k, v := range fix {
		if k != DimEnergy {
			return fmt.Errorf("cannot fix %q, only %q", k, DimEnergy)
		}
		if v < s.cfg.Min || v > s.cfg.Max {
			return fmt.Errorf("fixed energy %v outside spectrum [%v, %v]", v, s.cfg.Min, s.cfg.Max)
		}
	}
	return nil
}
