package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"

	"github.com/blocksim/blocksim/model"
	"github.com/blocksim/blocksim/model/internal/testutil"
)

func TestPoissonProb(t *testing.T) {
	t.Run("normalized", func(t *testing.T) {
		probs := make([]float64, 60)
		for k := range probs {
			probs[k] = poissonProb(7.5, float64(k))
		}
		testutil.AssertFloat64Equal(t, "sum", 1, floats.Sum(probs), 1e-9)
	})
	t.Run("zero mean puts all mass on zero", func(t *testing.T) {
		assert.Equal(t, 1.0, poissonProb(0, 0))
		assert.Equal(t, 0.0, poissonProb(0, 3))
	})
	t.Run("non-integer counts have no mass", func(t *testing.T) {
		assert.Equal(t, 0.0, poissonProb(4, 2.5))
	})
}

func TestBinomialProb(t *testing.T) {
	tests := []struct {
		name    string
		n, p, k float64
		want    float64
	}{
		{"single trial success", 1, 0.3, 1, 0.3},
		{"single trial failure", 1, 0.3, 0, 0.7},
		{"two of three", 3, 0.5, 2, 0.375},
		{"no trials", 0, 0.3, 0, 1},
		{"more detected than produced", 2, 0.5, 3, 0},
		{"negative count", 2, 0.5, -1, 0},
		{"certain detection", 4, 1, 4, 1},
		{"certain detection, fewer detected", 4, 1, 3, 0},
		{"impossible detection", 4, 0, 0, 1},
		{"impossible detection, some detected", 4, 0, 1, 0},
		{"non-integer trials", 2.5, 0.5, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertFloat64Equal(t, "pmf", tt.want, binomialProb(tt.n, tt.p, tt.k), 1e-12)
		})
	}

	t.Run("normalized", func(t *testing.T) {
		probs := make([]float64, 21)
		for k := range probs {
			probs[k] = binomialProb(20, 0.12, float64(k))
		}
		testutil.AssertFloat64Equal(t, "sum", 1, floats.Sum(probs), 1e-12)
	})
}

func TestSignalAcceptance(t *testing.T) {
	f := SignalAcceptance(DimS2, 200)
	in := model.FuncInput{
		N:      4,
		Args:   [][]float64{{50, 200, 300, 199.9}},
		Params: model.Params{"s2_threshold": 200},
	}
	assert.Equal(t, []float64{0, 1, 1, 0}, f.Eval(in))
	assert.Equal(t, []string{DimS2}, f.Columns)
	assert.Equal(t, model.Params{"s2_threshold": 200.0}, f.Defaults)
}

func TestLindhardL(t *testing.T) {
	f := LindhardL(DefaultLindhardK)
	energies := []float64{1, 5, 10, 50, 100}
	got := f.Eval(model.FuncInput{N: 1, Bonus: energies, Params: model.Params{"lindhard_k": DefaultLindhardK}})

	// Quenching is a fraction that grows with recoil energy.
	assert.Len(t, got, len(energies))
	for i, l := range got {
		assert.Greater(t, l, 0.0, "E=%v", energies[i])
		assert.Less(t, l, 1.0, "E=%v", energies[i])
		if i > 0 {
			assert.Greater(t, l, got[i-1], "E=%v", energies[i])
		}
	}
	// Xenon, k = 0.138.
	testutil.AssertFloat64Equal(t, "L(10 keV)", 0.177976, got[2], 1e-4)

	stronger := f.Eval(model.FuncInput{N: 1, Bonus: energies, Params: model.Params{"lindhard_k": 0.2}})
	assert.Greater(t, stronger[2], got[2])
}

func TestEnergySpectrum(t *testing.T) {
	t.Run("grid includes both ends", func(t *testing.T) {
		c := EnergySpectrum{Min: 1, Max: 3, Bins: 5}
		assert.Equal(t, []float64{1, 1.5, 2, 2.5, 3}, c.Energies())
	})
	t.Run("single bin sits at min", func(t *testing.T) {
		assert.Equal(t, []float64{4}, EnergySpectrum{Min: 4, Max: 5, Bins: 1}.Energies())
	})

	invalid := []struct {
		name string
		cfg  EnergySpectrum
	}{
		{"negative min", EnergySpectrum{Min: -1, Max: 2, Bins: 3}},
		{"inverted range", EnergySpectrum{Min: 3, Max: 2, Bins: 3}},
		{"empty range", EnergySpectrum{Min: 2, Max: 2, Bins: 3}},
		{"no bins", EnergySpectrum{Min: 1, Max: 2}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
