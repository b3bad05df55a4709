package samplegen

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Generate draws size observations from mix. Equal seeds give equal samples.
func Generate(mix []Component, size int, seed uint64) []float64 {
	if len(mix) == 0 || size <= 0 {
		return nil
	}

	src := rand.NewPCG(seed, uint64(len(mix)))
	weights := make([]float64, len(mix))
	normals := make([]distuv.Normal, len(mix))
	for i, c := range mix {
		weights[i] = c.Weight
		normals[i] = distuv.Normal{Mu: c.Mean, Sigma: c.StdDev, Src: src}
	}
	pick := distuv.NewCategorical(weights, src)

	out := make([]float64, size)
	for i := range out {
		out[i] = normals[int(pick.Rand())].Rand()
	}
	return out
}
