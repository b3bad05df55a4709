package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestDensityIntegratesToOne(t *testing.T) {
	tests := []struct {
		name     string
		mean     float64
		variance float64
	}{
		{"standard", 0, 1},
		{"shifted", 50, 100},
		{"narrow", -3, 1e-4},
		{"wide", 1e3, 2.5e5},
		{"tiny", 0, 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd := math.Sqrt(tt.variance)
			step := sd / 100
			lo, hi := tt.mean-10*sd, tt.mean+10*sd

			var area float64
			prev, err := Density(lo, tt.mean, tt.variance)
			require.NoError(t, err)
			for x := lo + step; x <= hi; x += step {
				cur, err := Density(x, tt.mean, tt.variance)
				require.NoError(t, err)
				area += (prev + cur) / 2 * step
				prev = cur
			}
			assert.InDelta(t, 1.0, area, 1e-3)
		})
	}
}

func TestDensityMatchesNormal(t *testing.T) {
	ref := distuv.Normal{Mu: 2, Sigma: 3}
	for _, x := range []float64{-10, -1, 0, 2, 4.5, 11} {
		got, err := Density(x, 2, 9)
		require.NoError(t, err)
		assert.InDelta(t, ref.Prob(x), got, 1e-12, "x=%v", x)
	}
}

func TestDensityRejectsInvalidVariance(t *testing.T) {
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Density(0, 0, v)
		assert.ErrorIs(t, err, ErrInvalidParameter, "variance=%v", v)

		_, err = NewComponent(0, v)
		assert.ErrorIs(t, err, ErrInvalidParameter, "variance=%v", v)
	}

	_, err := NewComponent(math.NaN(), 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestComponentLogDensity(t *testing.T) {
	c, err := NewComponent(1, 4)
	require.NoError(t, err)

	for _, x := range []float64{-3, 0, 1, 7} {
		d, err := c.Density(x)
		require.NoError(t, err)
		assert.InDelta(t, math.Log(d), c.logDensity(x), 1e-12)
	}
	assert.Equal(t, 2.0, c.StdDev())

	// Far in the tail the density underflows but the log stays finite.
	tail, err := c.Density(1e6)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tail)
	assert.False(t, math.IsInf(c.logDensity(1e6), 0))
}

func TestComponentDensityRejectsZeroValue(t *testing.T) {
	tests := []struct {
		name string
		c    Component
	}{
		{"zero value", Component{}},
		{"negative variance", Component{Mean: 1, Variance: -2}},
		{"nan variance", Component{Variance: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.c.Density(0)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.False(t, math.IsNaN(d))
		})
	}
}
