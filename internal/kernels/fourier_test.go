// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/harmonics/internal/workerspool"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func randomTensor(rng *rand.Rand, dimensions ...int) *tensors.Tensor {
	t := tensors.New(dimensions...)
	for ii := range t.Flat() {
		t.Flat()[ii] = rng.NormFloat64()
	}
	return t
}

func dot(a, b *tensors.Tensor) float64 {
	return floats.Dot(a.Flat(), b.Flat())
}

func TestAnalyzeNaiveDFT(t *testing.T) {
	pool := workerspool.New()
	rng := rand.New(rand.NewPCG(1, 2))
	for _, numLon := range []int{2, 7, 8, 16} {
		t.Run(fmt.Sprintf("nlon=%d", numLon), func(t *testing.T) {
			f := NewFourier(numLon)
			const nb, rows = 3, 4
			x := randomTensor(rng, nb, rows, numLon)
			numFreq := f.NumFrequencies()
			spec := f.Analyze(pool, x, 0, numFreq)
			require.Equal(t, []int{nb, 2, numFreq, rows}, spec.Shape().Dimensions)
			for b := range nb {
				for r := range rows {
					for m := range numFreq {
						var re, im float64
						for j := range numLon {
							v := x.Flat()[(b*rows+r)*numLon+j]
							phi := 2 * math.Pi * float64(j) / float64(numLon)
							re += v * math.Cos(float64(m)*phi)
							im -= v * math.Sin(float64(m)*phi)
						}
						re /= float64(numLon)
						im /= float64(numLon)
						assert.InDelta(t, re, spec.Flat()[((2*b)*numFreq+m)*rows+r], 1e-12)
						assert.InDelta(t, im, spec.Flat()[((2*b+1)*numFreq+m)*rows+r], 1e-12)
					}
				}
			}

			// A sub-range of orders is a slice of the full range.
			if numFreq > 2 {
				sub := f.Analyze(pool, x, 1, numFreq-1)
				assert.Equal(t, spec.SliceAxis(2, 1, numFreq-1).Flat(), sub.Flat())
			}
		})
	}
}

func TestFourierRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, numLon := range []int{5, 12} {
		f := NewFourier(numLon)
		x := randomTensor(rng, 2, 3, numLon)
		spec := f.Analyze(nil, x, 0, f.NumFrequencies())
		back := f.Synthesize(nil, spec)
		assert.InDeltaSlice(t, x.Flat(), back.Flat(), 1e-12, "nlon=%d", numLon)
	}
}

// TestFourierAdjoints checks <A x, y> == <x, Aᵀ y> for the longitude stages.
func TestFourierAdjoints(t *testing.T) {
	pool := workerspool.New()
	rng := rand.New(rand.NewPCG(5, 6))
	for _, numLon := range []int{2, 9, 10} {
		for _, numOrders := range []int{1, numLon/2 + 1} {
			t.Run(fmt.Sprintf("nlon=%d/orders=%d", numLon, numOrders), func(t *testing.T) {
				f := NewFourier(numLon)
				const nb, rows = 2, 3
				x := randomTensor(rng, nb, rows, numLon)
				g := randomTensor(rng, nb, 2, numOrders, rows)

				lhs := dot(f.Analyze(pool, x, 0, numOrders), g)
				rhs := dot(x, f.AnalyzeAdjoint(pool, g))
				assert.InDelta(t, lhs, rhs, 1e-10*math.Max(1, math.Abs(lhs)), "Analyze")

				lhs = dot(f.Synthesize(pool, g), x)
				rhs = dot(g, f.SynthesizeAdjoint(pool, x, 0, numOrders))
				assert.InDelta(t, lhs, rhs, 1e-10*math.Max(1, math.Abs(lhs)), "Synthesize")
			})
		}
	}
}

func TestFourierPanics(t *testing.T) {
	require.Panics(t, func() { NewFourier(0) })
	f := NewFourier(8)
	require.Panics(t, func() { f.Analyze(nil, tensors.New(1, 2, 7), 0, 1) })
	require.Panics(t, func() { f.Analyze(nil, tensors.New(1, 2, 8), 0, 6) })
	require.Panics(t, func() { f.Synthesize(nil, tensors.New(1, 3, 2, 2)) })
}
