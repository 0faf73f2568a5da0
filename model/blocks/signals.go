package blocks

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blocksim/blocksim/model"
)

// SignalAcceptance returns a model function accepting events whose signal
// column is at or above the <signal>_threshold parameter.
func SignalAcceptance(signal string, threshold float64) model.ModelFunc {
	param := signal + "_threshold"
	return model.ModelFunc{
		Columns:  []string{signal},
		Defaults: model.Params{param: threshold},
		Eval: func(in model.FuncInput) []float64 {
			thr := in.Params[param]
			out := make([]float64, in.N)
			for i, v := range in.Args[0] {
				if v >= thr {
					out[i] = 1
				}
			}
			return out
		},
	}
}

// MakeFinalSignal smears detected quanta into an observed signal: Normal
// with mean n*gain_mean and width sqrt(n)*gain_std. NewMakeS1 and NewMakeS2
// configure it for photoelectrons and detected electrons.
type MakeFinalSignal struct {
	model.BlockBase

	name     string
	quanta   string // prefix of the gain model functions
	detected string // dimension of detected quanta
	signal   string // observed dimension

	gainMean, gainStd, threshold float64
}

// NewMakeS1 returns a factory for the S1 block.
func NewMakeS1() model.BlockFactory {
	return newMakeFinalSignal("make_s1", "photoelectron", DimPhotoelectrons, DimS1,
		DefaultPhotoelectronGain, DefaultPhotoelectronGainStd, DefaultS1Threshold)
}

// NewMakeS2 returns a factory for the S2 block.
func NewMakeS2() model.BlockFactory {
	return newMakeFinalSignal("make_s2", "electron", DimElectronsDetected, DimS2,
		DefaultElectronGain, DefaultElectronGainStd, DefaultS2Threshold)
}

func newMakeFinalSignal(name, quanta, detected, signal string, mean, std, threshold float64) model.BlockFactory {
	return func(src *model.Source) model.Block {
		return &MakeFinalSignal{
			BlockBase: model.NewBlockBase(src),
			name:      name,
			quanta:    quanta,
			detected:  detected,
			signal:    signal,
			gainMean:  mean,
			gainStd:   std,
			threshold: threshold,
		}
	}
}

func (m *MakeFinalSignal) gainMeanName() string   { return m.quanta + "_gain_mean" }
func (m *MakeFinalSignal) gainStdName() string    { return m.quanta + "_gain_std" }
func (m *MakeFinalSignal) acceptanceName() string { return m.signal + "_acceptance" }

func (m *MakeFinalSignal) Spec() model.BlockSpec {
	return model.BlockSpec{
		Name:       m.name,
		Dimensions: model.D(m.detected, m.signal),
		ModelFunctions: []string{
			m.gainMeanName(),
			m.gainStdName(),
			m.acceptanceName(),
		},
		StaticAttributes: []string{"max_sigma"},
		Functions: map[string]model.ModelFunc{
			m.gainMeanName():   model.Parameter(m.gainMeanName(), m.gainMean),
			m.gainStdName():    model.Parameter(m.gainStdName(), m.gainStd),
			m.acceptanceName(): SignalAcceptance(m.signal, m.threshold),
		},
		Statics: map[string]any{"max_sigma": DefaultMaxSigma},
	}
}

// Compute returns p(signal | detected) times the signal acceptance.
func (m *MakeFinalSignal) Compute(in *model.ComputeInput) (model.Tensor, error) {
	detected, signal, err := crossGrids(in, m.detected, m.signal)
	if err != nil {
		return nil, err
	}
	mean, err := in.Gimme(m.gainMeanName())
	if err != nil {
		return nil, err
	}
	std, err := in.Gimme(m.gainStdName())
	if err != nil {
		return nil, err
	}
	acc, err := in.Gimme(m.acceptanceName())
	if err != nil {
		return nil, err
	}

	out := model.NewRank2(in.Batch.Len(), detected.Rows(), detected.Cols())
	dv, sv, ov := detected.Values(), signal.Values(), out.Values()
	per := detected.Rows() * detected.Cols()
	for e := 0; e < in.Batch.Len(); e++ {
		if acc[e] == 0 {
			continue
		}
		for k := e * per; k < (e+1)*per; k++ {
			n := dv[k]
			dist := distuv.Normal{Mu: n * mean[e], Sigma: math.Sqrt(n)*std[e] + sigmaFloor}
			ov[k] = dist.Prob(sv[k]) * acc[e]
		}
	}
	return out, nil
}

func (m *MakeFinalSignal) Simulate(sc *model.SimContext) error {
	detected, err := sc.Table.MustColumn(m.detected)
	if err != nil {
		return err
	}
	mean, err := sc.GimmeEvents(m.gainMeanName())
	if err != nil {
		return err
	}
	std, err := sc.GimmeEvents(m.gainStdName())
	if err != nil {
		return err
	}
	signal := make([]float64, len(detected))
	for i, n := range detected {
		mu, sigma := n*mean[i], math.Sqrt(n)*std[i]
		if sigma > 0 {
			signal[i] = distuv.Normal{Mu: mu, Sigma: sigma, Src: sc.Rand}.Rand()
		} else {
			signal[i] = mu
		}
	}
	if err := sc.Table.Set(m.signal, signal); err != nil {
		return err
	}
	acc, err := sc.GimmeEvents(m.acceptanceName())
	if err != nil {
		return err
	}
	return sc.ScaleAcceptance(acc)
}

// Annotate estimates the detected quanta as signal/gain_mean and bounds
// them max_sigma relative widths either side, rounded outward. The
// fluctuations of detected quanta are small, so the relative error of the
// estimate is enough.
func (m *MakeFinalSignal) Annotate(t *model.EventTable) error {
	signal, err := t.MustColumn(m.signal)
	if err != nil {
		return err
	}
	mean, err := m.GimmeEvents(m.gainMeanName(), t, nil)
	if err != nil {
		return err
	}
	if err := checkPositive(m.gainMeanName(), mean); err != nil {
		return err
	}
	std, err := m.GimmeEvents(m.gainStdName(), t, nil)
	if err != nil {
		return err
	}
	maxSigma, err := m.StaticFloat("max_sigma")
	if err != nil {
		return err
	}

	n := t.Len()
	lo, hi, mle := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		mle[i] = clipLow(signal[i] / mean[i])
		scale := math.Sqrt(mle[i]) * std[i] / mean[i]
		lo[i] = math.Floor(clipLow(mle[i] - maxSigma*scale))
		hi[i] = math.Ceil(clipLow(mle[i] + maxSigma*scale))
	}
	return setBounds(t, m.detected, lo, hi, mle)
}

func (m *MakeFinalSignal) CheckData(t *model.EventTable) error {
	if !t.Has(m.signal) {
		return fmt.Errorf("event table has no %q column", m.signal)
	}
	return nil
}
