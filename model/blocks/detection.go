package blocks

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blocksim/blocksim/model"
)

// DetectQuanta detects each produced quantum of one kind independently with
// a per-event efficiency. NewDetectPhotons and NewDetectElectrons configure
// it for the light and charge branches.
type DetectQuanta struct {
	model.BlockBase

	name       string
	produced   string // dimension of produced quanta
	detected   string // dimension of detected quanta
	efficiency string // model function giving the detection probability
	defaultEff float64
}

// NewDetectPhotons returns a factory for photon detection with
// photon_detection_eff.
func NewDetectPhotons() model.BlockFactory {
	return newDetectQuanta("detect_photons", DimPhotonsProduced, DimPhotoelectrons,
		"photon_detection_eff", DefaultPhotonDetectionEff)
}

// NewDetectElectrons returns a factory for electron detection with
// electron_detection_eff.
func NewDetectElectrons() model.BlockFactory {
	return newDetectQuanta("detect_electrons", DimElectronsProduced, DimElectronsDetected,
		"electron_detection_eff", DefaultElectronDetectionEff)
}

func newDetectQuanta(name, produced, detected, efficiency string, def float64) model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &DetectQuanta{
			BlockBase:  model.NewBlockBase(src),
			name:       name,
			produced:   produced,
			detected:   detected,
			efficiency: efficiency,
			defaultEff: def,
		}
	}
}

func (d *DetectQuanta) Spec() model.BlockSpec {
	return model.BlockSpec{
		Name:             d.name,
		Dimensions:       model.D(d.detected, d.produced),
		ModelFunctions:   []string{d.efficiency},
		StaticAttributes: []string{"max_sigma"},
		Functions: map[string]model.ModelFunc{
			d.efficiency: model.Parameter(d.efficiency, d.defaultEff),
		},
		Statics: map[string]any{"max_sigma": DefaultMaxSigma},
	}
}

// Compute returns the Binomial p(detected | produced), scaled by the
// detected step.
func (d *DetectQuanta) Compute(in *model.ComputeInput) (model.Tensor, error) {
	detected, produced, err := crossGrids(in, d.detected, d.produced)
	if err != nil {
		return nil, err
	}
	eff, err := in.Gimme(d.efficiency)
	if err != nil {
		return nil, err
	}
	if err := checkProbability(d.efficiency, eff, true); err != nil {
		return nil, err
	}
	steps := fetchSteps(in, d.detected)

	out := model.NewRank2(in.Batch.Len(), detected.Rows(), detected.Cols())
	dv, pv, ov := detected.Values(), produced.Values(), out.Values()
	per := detected.Rows() * detected.Cols()
	for e := 0; e < in.Batch.Len(); e++ {
		for k := e * per; k < (e+1)*per; k++ {
			ov[k] = binomialProb(pv[k], eff[e], dv[k]) * steps[e]
		}
	}
	return out, nil
}

func (d *DetectQuanta) Simulate(sc *model.SimContext) error {
	produced, err := sc.Table.MustColumn(d.produced)
	if err != nil {
		return err
	}
	eff, err := sc.GimmeEvents(d.efficiency)
	if err != nil {
		return err
	}
	if err := checkProbability(d.efficiency, eff, true); err != nil {
		return err
	}
	detected := make([]float64, len(produced))
	for i, n := range produced {
		switch {
		case n <= 0:
		case eff[i] >= 1:
			detected[i] = n
		default:
			detected[i] = distuv.Binomial{N: n, P: eff[i], Src: sc.Rand}.Rand()
		}
	}
	return sc.Table.Set(d.detected, detected)
}

// Annotate bounds the produced quanta from the detected bounds: at least as
// many produced as detected, and within max_sigma Poisson widths of
// bounds/efficiency.
func (d *DetectQuanta) Annotate(t *model.EventTable) error {
	cols, err := columns(t,
		model.MinColumn(d.detected),
		model.MaxColumn(d.detected),
		model.MLEColumn(d.detected))
	if err != nil {
		return err
	}
	lo, hi, mle := cols[0], cols[1], cols[2]
	eff, err := d.GimmeEvents(d.efficiency, t, nil)
	if err != nil {
		return err
	}
	if err := checkProbability(d.efficiency, eff, true); err != nil {
		return err
	}
	maxSigma, err := d.StaticFloat("max_sigma")
	if err != nil {
		return err
	}

	n := t.Len()
	pMin, pMax, pMLE := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		pMLE[i] = mle[i] / eff[i]
		low := (lo[i] - maxSigma*math.Sqrt(lo[i]+1)) / eff[i]
		pMin[i] = math.Floor(clipLow(math.Max(lo[i], low)))
		pMax[i] = math.Ceil(clipLow((hi[i] + maxSigma*math.Sqrt(hi[i]+1)) / eff[i]))
	}
	return setBounds(t, d.produced, pMin, pMax, pMLE)
}

// binomialProb is the Binomial(n, p) pmf at k. Non-integer or out-of-range
// counts have zero probability.
func binomialProb(n, p, k float64) float64 {
	if k < 0 || k > n || math.Floor(k) != k || math.Floor(n) != n {
		return 0
	}
	switch {
	case n == 0:
		return 1
	case p <= 0:
		if k == 0 {
			return 1
		}
		return 0
	case p >= 1:
		if k == n {
			return 1
		}
		return 0
	}
	return distuv.Binomial{N: n, P: p}.Prob(k)
}
