package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocksim/blocksim/model"
	"github.com/blocksim/blocksim/model/blocks"
	"github.com/blocksim/blocksim/model/trace"
)

const exampleModel = `
seed: 7
events: 500
batch_size: 25
max_dim_size: 30
trace: contractions
energy: {min: 2, max: 10, bins: 16}
recoil: nr
work: 0.015
p_electron: 0.4
photon_detection_eff: 0.2
electron_detection_eff: 0.9
photoelectron_gain_mean: 1.1
photoelectron_gain_std: 0.4
electron_gain_mean: 25
electron_gain_std: 6
s1_threshold: 3
s2_threshold: 150
max_sigma: 4
lindhard_k: 0.15
params:
  photon_detection_eff: 0.25
`

func TestParseModelFile_AllFields(t *testing.T) {
	// GIVEN a model file setting every field
	mf, err := parseModelFile([]byte(exampleModel))
	require.NoError(t, err)

	// THEN each lands in its field
	assert.Equal(t, int64(7), mf.Seed)
	assert.Equal(t, 500, mf.Events)
	assert.Equal(t, 25, mf.BatchSize)
	assert.Equal(t, 30, mf.MaxDimSize)
	assert.Equal(t, trace.TraceLevelContractions, mf.Trace)
	assert.Equal(t, EnergyRange{Min: 2, Max: 10, Bins: 16}, mf.Energy)
	assert.Equal(t, blocks.RecoilNR, mf.Recoil)
	assert.Equal(t, 0.015, mf.Work)
	assert.Equal(t, 0.4, mf.PElectron)
	assert.Equal(t, 0.2, mf.PhotonDetectionEff)
	assert.Equal(t, 0.9, mf.ElectronDetectionEff)
	assert.Equal(t, 1.1, mf.PhotoelectronGainMean)
	assert.Equal(t, 0.4, mf.PhotoelectronGainStd)
	assert.Equal(t, 25.0, mf.ElectronGainMean)
	assert.Equal(t, 6.0, mf.ElectronGainStd)
	assert.Equal(t, 3.0, mf.S1Threshold)
	assert.Equal(t, 150.0, mf.S2Threshold)
	assert.Equal(t, 4.0, mf.MaxSigma)
	assert.Equal(t, 0.15, mf.LindhardK)
	assert.Equal(t, map[string]float64{"photon_detection_eff": 0.25}, mf.Params)
}

func TestParseModelFile_OmittedFieldsKeepDefaults(t *testing.T) {
	mf, err := parseModelFile([]byte("events: 10\n"))
	require.NoError(t, err)

	want := DefaultModelFile()
	want.Events = 10
	assert.Equal(t, want, mf)
}

func TestParseModelFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "evnets: 10\n"},
		{"unknown nested field", "energy: {min: 1, max: 2, bins: 3, width: 4}\n"},
		{"zero events", "events: 0\n"},
		{"zero batch size", "batch_size: 0\n"},
		{"grid too small", "max_dim_size: 1\n"},
		{"unknown trace level", "trace: verbose\n"},
		{"wrong type", "events: many\n"},
		{"unknown recoil", "recoil: gamma\n"},
		{"zero work", "work: 0\n"},
		{"zero photon detection efficiency", "photon_detection_eff: 0\n"},
		{"zero electron detection efficiency", "electron_detection_eff: 0\n"},
		{"zero photoelectron gain", "photoelectron_gain_mean: 0\n"},
		{"zero electron gain", "electron_gain_mean: 0\n"},
		{"p_electron above one", "p_electron: 1.2\n"},
		{"negative threshold", "s1_threshold: -1\n"},
		{"empty energy range", "energy: {min: 5, max: 5, bins: 3}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseModelFile([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseModelFile_ZeroValuesAreKept(t *testing.T) {
	// GIVEN a file setting thresholds and max_sigma to zero
	mf, err := parseModelFile([]byte("s1_threshold: 0\ns2_threshold: 0\nmax_sigma: 0\nelectron_gain_std: 0\n"))
	require.NoError(t, err)

	// WHEN the source is built
	src, err := mf.NewSource()
	require.NoError(t, err)

	// THEN the zeros reach the model instead of the block defaults
	defaults := src.Defaults()
	assert.Equal(t, 0.0, defaults["s1_threshold"])
	assert.Equal(t, 0.0, defaults["s2_threshold"])
	assert.Equal(t, 0.0, defaults["electron_gain_std"])
	sigma, err := src.StaticFloat("max_sigma")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sigma)
}

func TestLoadModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleModel), 0o644))

	mf, err := LoadModelFile(path)
	require.NoError(t, err)
	assert.Equal(t, 500, mf.Events)

	_, err = LoadModelFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestModelFile_Conversions(t *testing.T) {
	mf, err := parseModelFile([]byte(exampleModel))
	require.NoError(t, err)

	cc := mf.ChainConfig()
	assert.Equal(t, blocks.EnergySpectrum{Min: 2, Max: 10, Bins: 16}, cc.Energy)
	assert.Equal(t, blocks.RecoilNR, cc.Recoil)
	assert.Equal(t, 0.015, cc.Work)
	assert.Equal(t, 1.1, cc.PhotoelectronGain)
	assert.Equal(t, 25.0, cc.ElectronGain)
	assert.Equal(t, 0.15, cc.LindhardK)

	sc := mf.SourceConfig()
	assert.Equal(t, model.D(blocks.DimS1, blocks.DimS2), sc.FinalDimensions)
	assert.Equal(t, 25, sc.BatchSize)
	assert.Equal(t, 30, sc.Grid.MaxDimSize)
	assert.Equal(t, int64(7), sc.Seed)
	assert.Equal(t, trace.TraceLevelContractions, sc.Trace)

	src, err := mf.NewSource()
	require.NoError(t, err)
	assert.Equal(t, 0.015, src.Defaults()["work"])
	assert.Equal(t, 0.15, src.Defaults()["lindhard_k"])
}
