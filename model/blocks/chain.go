package blocks

import (
	"fmt"
	"maps"

	"github.com/blocksim/blocksim/model"
)

// ChainConfig parameterizes the detector chain. Every field is used as
// given; NewChainConfig fills in the defaults.
type ChainConfig struct {
	Energy EnergySpectrum
	Recoil Recoil

	Work                 float64 // keV per quantum
	PElectron            float64 // probability that a quantum is an electron
	PhotonDetectionEff   float64
	ElectronDetectionEff float64
	PhotoelectronGain    float64
	PhotoelectronGainStd float64
	ElectronGain         float64
	ElectronGainStd      float64
	S1Threshold          float64
	S2Threshold          float64
	MaxSigma             float64
	LindhardK            float64 // nuclear recoils only
}

// NewChainConfig returns an electronic-recoil ChainConfig over the given
// energy range with every physics value at its default.
func NewChainConfig(minEnergy, maxEnergy float64, bins int) ChainConfig {
	return ChainConfig{
		Energy:               EnergySpectrum{Min: minEnergy, Max: maxEnergy, Bins: bins},
		Recoil:               RecoilER,
		Work:                 DefaultWork,
		PElectron:            DefaultPElectron,
		PhotonDetectionEff:   DefaultPhotonDetectionEff,
		ElectronDetectionEff: DefaultElectronDetectionEff,
		PhotoelectronGain:    DefaultPhotoelectronGain,
		PhotoelectronGainStd: DefaultPhotoelectronGainStd,
		ElectronGain:         DefaultElectronGain,
		ElectronGainStd:      DefaultElectronGainStd,
		S1Threshold:          DefaultS1Threshold,
		S2Threshold:          DefaultS2Threshold,
		MaxSigma:             DefaultMaxSigma,
		LindhardK:            DefaultLindhardK,
	}
}

// Validate checks every field's range.
func (c ChainConfig) Validate() error {
	if err := c.Energy.Validate(); err != nil {
		return err
	}
	if !c.Recoil.IsValid() {
		return fmt.Errorf("unknown recoil type %q (valid: %s, %s)", c.Recoil, RecoilER, RecoilNR)
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"work", c.Work},
		{"photoelectron_gain_mean", c.PhotoelectronGain},
		{"electron_gain_mean", c.ElectronGain},
		{"lindhard_k", c.LindhardK},
	}
	for _, f := range positive {
		if !(f.v > 0) {
			return fmt.Errorf("%s must be > 0, got %v", f.name, f.v)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"photoelectron_gain_std", c.PhotoelectronGainStd},
		{"electron_gain_std", c.ElectronGainStd},
		{"s1_threshold", c.S1Threshold},
		{"s2_threshold", c.S2Threshold},
		{"max_sigma", c.MaxSigma},
	}
	for _, f := range nonNegative {
		if !(f.v >= 0) {
			return fmt.Errorf("%s must be >= 0, got %v", f.name, f.v)
		}
	}
	if !(c.PElectron >= 0 && c.PElectron <= 1) {
		return fmt.Errorf("p_electron must be in [0, 1], got %v", c.PElectron)
	}
	if !(c.PhotonDetectionEff > 0 && c.PhotonDetectionEff <= 1) {
		return fmt.Errorf("photon_detection_eff must be in (0, 1], got %v", c.PhotonDetectionEff)
	}
	if !(c.ElectronDetectionEff > 0 && c.ElectronDetectionEff <= 1) {
		return fmt.Errorf("electron_detection_eff must be in (0, 1], got %v", c.ElectronDetectionEff)
	}
	return nil
}

// Chain returns the block factories of the detector chain, in order. The
// light branch is declared before the charge branch, and S1 before S2.
func Chain(energy EnergySpectrum, recoil Recoil) []model.BlockFactory {
	quanta := NewMakeERQuanta()
	if recoil == RecoilNR {
		quanta = NewMakeNRQuanta()
	}
	return []model.BlockFactory{
		NewSpectrumBlock(energy),
		quanta,
		NewMakePhotonsElectrons(),
		NewDetectPhotons(),
		NewDetectElectrons(),
		NewMakeS1(),
		NewMakeS2(),
	}
}

// NewChainSource builds the energy -> quanta -> (electrons, photons) ->
// (s1, s2) model. Every cc value becomes a source-side override of the
// block default; model functions and statics already present in sc take
// precedence over cc. The final dimensions are always (s1, s2).
func NewChainSource(cc ChainConfig, sc model.SourceConfig) (*model.Source, error) {
	if err := cc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	sc.FinalDimensions = model.D(DimS1, DimS2)

	fns := map[string]model.ModelFunc{
		"s1_acceptance": SignalAcceptance(DimS1, cc.S1Threshold),
		"s2_acceptance": SignalAcceptance(DimS2, cc.S2Threshold),
	}
	for name, v := range map[string]float64{
		"work":                    cc.Work,
		"p_electron":              cc.PElectron,
		"photon_detection_eff":    cc.PhotonDetectionEff,
		"electron_detection_eff":  cc.ElectronDetectionEff,
		"photoelectron_gain_mean": cc.PhotoelectronGain,
		"photoelectron_gain_std":  cc.PhotoelectronGainStd,
		"electron_gain_mean":      cc.ElectronGain,
		"electron_gain_std":       cc.ElectronGainStd,
	} {
		fns[name] = model.Parameter(name, v)
	}
	if cc.Recoil == RecoilNR {
		fns["lindhard_l"] = LindhardL(cc.LindhardK)
	}
	maps.Copy(fns, sc.ModelFunctions)
	sc.ModelFunctions = fns

	statics := map[string]any{"max_sigma": cc.MaxSigma}
	maps.Copy(statics, sc.StaticAttributes)
	sc.StaticAttributes = statics

	return model.NewSource(sc, Chain(cc.Energy, cc.Recoil)...)
}
