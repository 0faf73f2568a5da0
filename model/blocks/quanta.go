package blocks

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blocksim/blocksim/model"
)

// Visible-energy columns written while annotating the quanta blocks: the
// energy reconstructed from the most likely numbers of produced electrons
// and photons.
const (
	ChargeEnergyColumn  = "e_charge_vis"
	LightEnergyColumn   = "e_light_vis"
	VisibleEnergyColumn = "e_vis"
)

// Recoil selects the quanta production model.
type Recoil string

const (
	// RecoilER is an electronic recoil: floor(E/work) quanta, no fluctuation.
	RecoilER Recoil = "er"
	// RecoilNR is a nuclear recoil: Poisson quanta quenched by Lindhard's L.
	RecoilNR Recoil = "nr"
)

// IsValid reports whether r names a known recoil type.
func (r Recoil) IsValid() bool { return r == RecoilER || r == RecoilNR }

// quantaSpec is the part of the quanta blocks' declaration they share.
func quantaSpec(name string) model.BlockSpec {
	return model.BlockSpec{
		Name:           name,
		Dimensions:     model.D(DimQuanta, DimEnergy),
		DependsOn:      []model.Dependency{{Dims: model.D(DimEnergy), Name: "rate_vs_energy"}},
		ModelFunctions: []string{"work"},
		Functions: map[string]model.ModelFunc{
			"work": model.Parameter("work", DefaultWork),
		},
	}
}

// MakeERQuanta turns deposited energy into exactly floor(E/work) quanta.
type MakeERQuanta struct {
	model.BlockBase
}

// NewMakeERQuanta returns a factory for the electronic-recoil quanta block.
func NewMakeERQuanta() model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &MakeERQuanta{BlockBase: model.NewBlockBase(src)}
	}
}

func (m *MakeERQuanta) Spec() model.BlockSpec { return quantaSpec("make_er_quanta") }

// Compute puts all of p(quanta | energy) on the quanta grid point whose
// step covers floor(E/work).
func (m *MakeERQuanta) Compute(in *model.ComputeInput) (model.Tensor, error) {
	quanta, energy, work, err := quantaInputs(in)
	if err != nil {
		return nil, err
	}
	steps := fetchSteps(in, DimQuanta)

	out := model.NewRank2(in.Batch.Len(), quanta.Rows(), quanta.Cols())
	ev, qv, ov := energy.Values(), quanta.Values(), out.Values()
	per := quanta.Rows() * quanta.Cols()
	for e := 0; e < in.Batch.Len(); e++ {
		for k := e * per; k < (e+1)*per; k++ {
			n := math.Floor(ev[k] / work[e])
			if n >= qv[k] && n < qv[k]+steps[e] {
				ov[k] = 1
			}
		}
	}
	return out, nil
}

func (m *MakeERQuanta) Simulate(sc *model.SimContext) error {
	energies, err := sc.Table.MustColumn(DimEnergy)
	if err != nil {
		return err
	}
	work, err := sc.GimmeEvents("work")
	if err != nil {
		return err
	}
	if err := checkPositive("work", work); err != nil {
		return err
	}
	quanta := make([]float64, len(energies))
	for i, energy := range energies {
		quanta[i] = math.Floor(energy / work[i])
	}
	return sc.Table.Set(DimQuanta, quanta)
}

func (m *MakeERQuanta) Annotate(t *model.EventTable) error {
	return annotateQuanta(m.BlockBase, t)
}

// LindhardL returns the Lindhard quenching factor of xenon as a special
// model function of recoil energy (keV), with k as the lindhard_k default.
func LindhardL(k float64) model.ModelFunc {
	return model.ModelFunc{
		Defaults: model.Params{"lindhard_k": k},
		Eval: func(in model.FuncInput) []float64 {
			k := in.Params["lindhard_k"]
			out := make([]float64, len(in.Bonus))
			for i, e := range in.Bonus {
				eps := e * 11.5 * math.Pow(54, -7.0/3.0)
				g := 3*math.Pow(eps, 0.15) + 0.7*math.Pow(eps, 0.6) + eps
				out[i] = k * g / (1 + k*g)
			}
			return out
		},
	}
}

// MakeNRQuanta turns deposited energy into a Poisson number of quanta with
// mean E * lindhard_l(E) / work.
type MakeNRQuanta struct {
	model.BlockBase
}

// NewMakeNRQuanta returns a factory for the nuclear-recoil quanta block.
func NewMakeNRQuanta() model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &MakeNRQuanta{BlockBase: model.NewBlockBase(src)}
	}
}

func (m *MakeNRQuanta) Spec() model.BlockSpec {
	spec := quantaSpec("make_nr_quanta")
	spec.SpecialModelFunctions = []string{"lindhard_l"}
	spec.Functions["lindhard_l"] = LindhardL(DefaultLindhardK)
	return spec
}

// Compute returns the Poisson p(quanta | energy). Each quanta grid point
// stands for quanta_produced_steps integer values, so the probability is
// scaled by the step.
func (m *MakeNRQuanta) Compute(in *model.ComputeInput) (model.Tensor, error) {
	quanta, energy, work, err := quantaInputs(in)
	if err != nil {
		return nil, err
	}
	quench, err := in.GimmeBonus("lindhard_l", energy)
	if err != nil {
		return nil, err
	}
	steps := fetchSteps(in, DimQuanta)

	out := model.NewRank2(in.Batch.Len(), quanta.Rows(), quanta.Cols())
	ev, qv, ov := energy.Values(), quanta.Values(), out.Values()
	per := quanta.Rows() * quanta.Cols()
	for e := 0; e < in.Batch.Len(); e++ {
		for k := e * per; k < (e+1)*per; k++ {
			ov[k] = poissonProb(ev[k]*quench[k]/work[e], qv[k]) * steps[e]
		}
	}
	return out, nil
}

func (m *MakeNRQuanta) Simulate(sc *model.SimContext) error {
	energies, err := sc.Table.MustColumn(DimEnergy)
	if err != nil {
		return err
	}
	work, err := sc.GimmeEvents("work")
	if err != nil {
		return err
	}
	if err := checkPositive("work", work); err != nil {
		return err
	}
	quench, err := sc.GimmeEventsBonus("lindhard_l", energies)
	if err != nil {
		return err
	}
	quanta := make([]float64, len(energies))
	for i, energy := range energies {
		if mean := energy * quench[i] / work[i]; mean > 0 {
			quanta[i] = distuv.Poisson{Lambda: mean, Src: sc.Rand}.Rand()
		}
	}
	return sc.Table.Set(DimQuanta, quanta)
}

func (m *MakeNRQuanta) Annotate(t *model.EventTable) error {
	return annotateQuanta(m.BlockBase, t)
}

// quantaInputs gathers what both quanta blocks compute from: the cross
// grids, a checked work value per event and the energy spectrum they fold.
func quantaInputs(in *model.ComputeInput) (quanta, energy *model.Rank2, work []float64, err error) {
	quanta, energy, err = crossGrids(in, DimQuanta, DimEnergy)
	if err != nil {
		return nil, nil, nil, err
	}
	rate, err := in.Dependency("rate_vs_energy")
	if err != nil {
		return nil, nil, nil, err
	}
	if got := rate.Shape()[1]; got != energy.Cols() {
		return nil, nil, nil, fmt.Errorf("rate_vs_energy has %d energies, grid has %d", got, energy.Cols())
	}
	work, err = in.Gimme("work")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkPositive("work", work); err != nil {
		return nil, nil, nil, err
	}
	return quanta, energy, work, nil
}

// annotateQuanta bounds the produced quanta by the sum of the electron and
// photon bounds, and reconstructs the visible energy from their estimates.
// Energy itself needs no bounds; the whole spectrum is considered.
func annotateQuanta(b model.BlockBase, t *model.EventTable) error {
	cols, err := columns(t,
		model.MinColumn(DimElectronsProduced), model.MaxColumn(DimElectronsProduced), model.MLEColumn(DimElectronsProduced),
		model.MinColumn(DimPhotonsProduced), model.MaxColumn(DimPhotonsProduced), model.MLEColumn(DimPhotonsProduced))
	if err != nil {
		return err
	}
	work, err := b.GimmeEvents("work", t, nil)
	if err != nil {
		return err
	}
	if err := checkPositive("work", work); err != nil {
		return err
	}

	n := t.Len()
	lo, hi, mle := make([]float64, n), make([]float64, n), make([]float64, n)
	charge, light, vis := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		lo[i] = cols[0][i] + cols[3][i]
		hi[i] = cols[1][i] + cols[4][i]
		mle[i] = cols[2][i] + cols[5][i]
		charge[i] = work[i] * cols[2][i]
		light[i] = work[i] * cols[5][i]
		vis[i] = charge[i] + light[i]
	}
	if err := setBounds(t, DimQuanta, lo, hi, mle); err != nil {
		return err
	}
	if err := t.Set(ChargeEnergyColumn, charge); err != nil {
		return err
	}
	if err := t.Set(LightEnergyColumn, light); err != nil {
		return err
	}
	return t.Set(VisibleEnergyColumn, vis)
}

// poissonProb is the Poisson pmf at k, with a degenerate mean of zero
// putting all mass on k = 0.
func poissonProb(mean, k float64) float64 {
	if mean <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	return distuv.Poisson{Lambda: mean}.Prob(k)
}
