package blocks

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blocksim/blocksim/model"
)

// MakePhotonsElectrons splits the produced quanta into electrons and
// photons: each quantum is an electron with probability p_electron.
//
// The block folds in the quanta rate itself (the rate_vs_quanta
// dependency), so its (electrons, photons) output carries the whole rate up
// to this point and the detector branches contract onto it independently.
type MakePhotonsElectrons struct {
	model.BlockBase
}

// NewMakePhotonsElectrons returns a factory for the quanta splitting block.
func NewMakePhotonsElectrons() model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &MakePhotonsElectrons{BlockBase: model.NewBlockBase(src)}
	}
}

func (m *MakePhotonsElectrons) Spec() model.BlockSpec {
	return model.BlockSpec{
		Name:           "make_photons_electrons",
		Dimensions:     model.D(DimElectronsProduced, DimPhotonsProduced),
		DependsOn:      []model.Dependency{{Dims: model.D(DimQuanta), Name: "rate_vs_quanta"}},
		ModelFunctions: []string{"p_electron"},
		Functions: map[string]model.ModelFunc{
			"p_electron": model.Parameter("p_electron", DefaultPElectron),
		},
	}
}

// Compute returns rate(nq) * Binomial(nq, p_electron)(ne) on the (electrons,
// photons) grid, with nq = ne + np. rate(nq) is the quanta rate of the grid
// point whose step covers nq, spread evenly over that step.
func (m *MakePhotonsElectrons) Compute(in *model.ComputeInput) (model.Tensor, error) {
	electrons, photons, err := crossGrids(in, DimElectronsProduced, DimPhotonsProduced)
	if err != nil {
		return nil, err
	}
	dep, err := in.Dependency("rate_vs_quanta")
	if err != nil {
		return nil, err
	}
	rate, ok := dep.(*model.Rank1)
	if !ok {
		return nil, fmt.Errorf("rate_vs_quanta has rank %d, want 1", dep.Rank())
	}
	d, err := in.Domain(DimQuanta)
	if err != nil {
		return nil, err
	}
	quanta, ok := d.(*model.Rank1)
	if !ok || quanta.Len() != rate.Len() {
		return nil, fmt.Errorf("rate_vs_quanta shape %v does not match the quanta grid %v", rate.Shape(), d.Shape())
	}
	pel, err := in.Gimme("p_electron")
	if err != nil {
		return nil, err
	}
	if err := checkProbability("p_electron", pel, false); err != nil {
		return nil, err
	}
	qSteps := fetchSteps(in, DimQuanta)
	eSteps := fetchSteps(in, DimElectronsProduced)
	pSteps := fetchSteps(in, DimPhotonsProduced)

	out := model.NewRank2(in.Batch.Len(), electrons.Rows(), electrons.Cols())
	for e := 0; e < in.Batch.Len(); e++ {
		for i := 0; i < electrons.Rows(); i++ {
			for j := 0; j < electrons.Cols(); j++ {
				ne := electrons.At(e, i, j)
				nq := ne + photons.At(e, i, j)
				k := int(math.Floor((nq - quanta.At(e, 0)) / qSteps[e]))
				if k < 0 || k >= quanta.Len() {
					continue
				}
				density := rate.At(e, k) / qSteps[e]
				if density == 0 {
					continue
				}
				out.Set(e, i, j, density*binomialProb(nq, pel[e], ne)*eSteps[e]*pSteps[e])
			}
		}
	}
	return out, nil
}

func (m *MakePhotonsElectrons) Simulate(sc *model.SimContext) error {
	quanta, err := sc.Table.MustColumn(DimQuanta)
	if err != nil {
		return err
	}
	pel, err := sc.GimmeEvents("p_electron")
	if err != nil {
		return err
	}
	if err := checkProbability("p_electron", pel, false); err != nil {
		return err
	}
	electrons := make([]float64, len(quanta))
	photons := make([]float64, len(quanta))
	for i, n := range quanta {
		switch {
		case n <= 0 || pel[i] == 0:
		case pel[i] == 1:
			electrons[i] = n
		default:
			electrons[i] = distuv.Binomial{N: n, P: pel[i], Src: sc.Rand}.Rand()
		}
		photons[i] = n - electrons[i]
	}
	if err := sc.Table.Set(DimElectronsProduced, electrons); err != nil {
		return err
	}
	return sc.Table.Set(DimPhotonsProduced, photons)
}
