package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blocksim/blocksim/model"
	"github.com/blocksim/blocksim/model/blocks"
	"github.com/blocksim/blocksim/model/trace"
)

// EnergyRange is the energy section of a model file.
type EnergyRange struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Bins int     `yaml:"bins"`
}

// ModelFile describes a detector chain model and how to run it.
// All top-level fields must be listed to satisfy KnownFields(true) strict parsing.
type ModelFile struct {
	Seed       int64            `yaml:"seed"`
	Events     int              `yaml:"events"`
	BatchSize  int              `yaml:"batch_size"`
	MaxDimSize int              `yaml:"max_dim_size"`
	Trace      trace.TraceLevel `yaml:"trace"`

	Energy                EnergyRange   `yaml:"energy"`
	Recoil                blocks.Recoil `yaml:"recoil"`
	Work                  float64       `yaml:"work"`
	PElectron             float64       `yaml:"p_electron"`
	PhotonDetectionEff    float64       `yaml:"photon_detection_eff"`
	ElectronDetectionEff  float64       `yaml:"electron_detection_eff"`
	PhotoelectronGainMean float64       `yaml:"photoelectron_gain_mean"`
	PhotoelectronGainStd  float64       `yaml:"photoelectron_gain_std"`
	ElectronGainMean      float64       `yaml:"electron_gain_mean"`
	ElectronGainStd       float64       `yaml:"electron_gain_std"`
	S1Threshold           float64       `yaml:"s1_threshold"`
	S2Threshold           float64       `yaml:"s2_threshold"`
	MaxSigma              float64       `yaml:"max_sigma"`
	LindhardK             float64       `yaml:"lindhard_k"`

	// Params override parameter defaults for simulation and rate evaluation.
	Params map[string]float64 `yaml:"params"`
}

// DefaultModelFile returns the model used when no file is given.
func DefaultModelFile() *ModelFile {
	return &ModelFile{
		Seed:                  42,
		Events:                1000,
		BatchSize:             50,
		MaxDimSize:            70,
		Trace:                 trace.TraceLevelNone,
		Energy:                EnergyRange{Min: 1, Max: 20, Bins: 40},
		Recoil:                blocks.RecoilER,
		Work:                  blocks.DefaultWork,
		PElectron:             blocks.DefaultPElectron,
		PhotonDetectionEff:    blocks.DefaultPhotonDetectionEff,
		ElectronDetectionEff:  blocks.DefaultElectronDetectionEff,
		PhotoelectronGainMean: blocks.DefaultPhotoelectronGain,
		PhotoelectronGainStd:  blocks.DefaultPhotoelectronGainStd,
		ElectronGainMean:      blocks.DefaultElectronGain,
		ElectronGainStd:       blocks.DefaultElectronGainStd,
		S1Threshold:           blocks.DefaultS1Threshold,
		S2Threshold:           blocks.DefaultS2Threshold,
		MaxSigma:              blocks.DefaultMaxSigma,
		LindhardK:             blocks.DefaultLindhardK,
	}
}

// LoadModelFile reads a model file over the defaults. Unknown fields are
// errors so typos cannot silently fall back to a default.
func LoadModelFile(path string) (*ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return parseModelFile(data)
}

func parseModelFile(data []byte) (*ModelFile, error) {
	mf := DefaultModelFile()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(mf); err != nil {
		return nil, fmt.Errorf("parsing model file: %w", err)
	}
	if err := mf.Validate(); err != nil {
		return nil, err
	}
	return mf, nil
}

// Validate checks the run settings and the physics values. Every value in
// the file is used as written, so a zero that makes no physical sense is
// rejected here rather than replaced by a default.
func (m *ModelFile) Validate() error {
	if m.Events <= 0 {
		return fmt.Errorf("events must be positive, got %d", m.Events)
	}
	if m.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", m.BatchSize)
	}
	if m.MaxDimSize < 2 {
		return fmt.Errorf("max_dim_size must be at least 2, got %d", m.MaxDimSize)
	}
	if !trace.IsValidTraceLevel(string(m.Trace)) {
		return fmt.Errorf("unknown trace level %q", m.Trace)
	}
	if err := m.ChainConfig().Validate(); err != nil {
		return fmt.Errorf("model file: %w", err)
	}
	return nil
}

// ChainConfig converts the physics section.
func (m *ModelFile) ChainConfig() blocks.ChainConfig {
	return blocks.ChainConfig{
		Energy:               blocks.EnergySpectrum{Min: m.Energy.Min, Max: m.Energy.Max, Bins: m.Energy.Bins},
		Recoil:               m.Recoil,
		Work:                 m.Work,
		PElectron:            m.PElectron,
		PhotonDetectionEff:   m.PhotonDetectionEff,
		ElectronDetectionEff: m.ElectronDetectionEff,
		PhotoelectronGain:    m.PhotoelectronGainMean,
		PhotoelectronGainStd: m.PhotoelectronGainStd,
		ElectronGain:         m.ElectronGainMean,
		ElectronGainStd:      m.ElectronGainStd,
		S1Threshold:          m.S1Threshold,
		S2Threshold:          m.S2Threshold,
		MaxSigma:             m.MaxSigma,
		LindhardK:            m.LindhardK,
	}
}

// SourceConfig converts the run settings.
func (m *ModelFile) SourceConfig() model.SourceConfig {
	sc := model.NewSourceConfig(model.D(blocks.DimS1, blocks.DimS2), m.BatchSize, m.MaxDimSize, m.Seed)
	sc.Trace = m.Trace
	return sc
}

// NewSource builds the chain source the file describes.
func (m *ModelFile) NewSource() (*model.Source, error) {
	return blocks.NewChainSource(m.ChainConfig(), m.SourceConfig())
}
