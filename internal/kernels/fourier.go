// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements the numerical stages of the spherical harmonic transforms over flat row-major
// tensors:
//
//   - Longitude stages (Fourier): real FFT analysis and synthesis along longitude, and their adjoints.
//   - Latitude stages (Legendre): contraction of the per-latitude Fourier coefficients with a basis table
//     (Integrate) and its expansion back to latitudes (Expand), for scalar and vector fields.
//
// Layouts, with nb the flattened batch (including the vector component axis, if any):
//
//   - spatial: [nb, numLatRows, numLon]
//   - spectrum: [nb, 2, numOrders, numLatRows], the per-latitude Fourier coefficients, real then imaginary parts.
//   - coefficients: [nb, numDegrees, numOrders, 2], the spherical harmonic coefficients.
//
// Every stage works on a sub-range of orders, degrees or latitude rows, which is what the distributed transforms
// need. Stages are parallelized over nb with a workerspool.Pool, but the arithmetic of each output element never
// depends on the parallelism, so results are deterministic.
//
// Kernels panic on inconsistent shapes: callers validate user input.
package kernels

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/internal/workerspool"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Fourier implements the longitude stages for a fixed number of longitudes.
// It is safe for concurrent use.
type Fourier struct {
	numLon int

	// scratch holds *fftScratch: gonum FFT plans are not safe for concurrent use.
	scratch sync.Pool
}

type fftScratch struct {
	fft    *fourier.FFT
	coeffs []complex128
}

// NewFourier creates the longitude stages for numLon longitudes.
func NewFourier(numLon int) *Fourier {
	if numLon <= 0 {
		exceptions.Panicf("kernels.NewFourier(%d): number of longitudes must be > 0", numLon)
	}
	f := &Fourier{numLon: numLon}
	f.scratch.New = func() any {
		return &fftScratch{
			fft:    fourier.NewFFT(numLon),
			coeffs: make([]complex128, numLon/2+1),
		}
	}
	return f
}

// NumLon returns the number of longitudes.
func (f *Fourier) NumLon() int { return f.numLon }

// NumFrequencies returns the number of non-negative frequencies of a real sequence of NumLon values.
func (f *Fourier) NumFrequencies() int { return f.numLon/2 + 1 }

// hermitianFactor is the multiplicity of frequency k in a real sequence: 1 for the mean and for the Nyquist
// frequency (even numLon), 2 for the others which also stand for their negative frequency.
func (f *Fourier) hermitianFactor(k int) float64 {
	if k == 0 || 2*k == f.numLon {
		return 1
	}
	return 2
}

func (f *Fourier) checkOrders(mStart, mEnd int) {
	if mStart < 0 || mEnd < mStart || mEnd > f.NumFrequencies() {
		exceptions.Panicf("orders [%d, %d) out of range for %d longitudes", mStart, mEnd, f.numLon)
	}
}

func checkRank(name string, t *tensors.Tensor, rank int) {
	if t.Rank() != rank {
		exceptions.Panicf("%s: expected tensor of rank %d, got shape %s", name, rank, t.Shape())
	}
}

// Analyze computes F_m = (1/numLon) Σ_j x_j e^{-imφ_j} of every row of x, for the orders [mStart, mEnd).
//
// x is spatial [nb, rows, numLon], the result a spectrum [nb, 2, mEnd-mStart, rows].
func (f *Fourier) Analyze(pool *workerspool.Pool, x *tensors.Tensor, mStart, mEnd int) *tensors.Tensor {
	checkRank("Fourier.Analyze", x, 3)
	f.checkOrders(mStart, mEnd)
	nb, rows := x.Dim(0), x.Dim(1)
	if x.Dim(2) != f.numLon {
		exceptions.Panicf("Fourier.Analyze: input %s doesn't have %d longitudes", x.Shape(), f.numLon)
	}
	numOrders := mEnd - mStart
	out := tensors.New(nb, 2, numOrders, rows)
	src, dst := x.Flat(), out.Flat()
	norm := 1 / float64(f.numLon)
	pool.ParallelFor(nb, func(b int) {
		s := f.scratch.Get().(*fftScratch)
		defer f.scratch.Put(s)
		re := dst[(2*b)*numOrders*rows : (2*b+1)*numOrders*rows]
		im := dst[(2*b+1)*numOrders*rows : (2*b+2)*numOrders*rows]
		for r := range rows {
			row := src[(b*rows+r)*f.numLon : (b*rows+r+1)*f.numLon]
			s.fft.Coefficients(s.coeffs, row)
			for mi := range numOrders {
				c := s.coeffs[mStart+mi]
				re[mi*rows+r] = real(c) * norm
				im[mi*rows+r] = imag(c) * norm
			}
		}
	})
	return out
}

// AnalyzeAdjoint is the adjoint (transpose) of Analyze over all orders [0, numOrders):
// x_j = (1/numLon) Σ_m Re(G_m e^{imφ_j}).
//
// g is a spectrum [nb, 2, numOrders, rows], the result is spatial [nb, rows, numLon].
func (f *Fourier) AnalyzeAdjoint(pool *workerspool.Pool, g *tensors.Tensor) *tensors.Tensor {
	return f.sequence(pool, g, "Fourier.AnalyzeAdjoint", func(k int) float64 {
		return 1 / (f.hermitianFactor(k) * float64(f.numLon))
	})
}

// Synthesize evaluates f_j = Σ_m c_m Re(V_m e^{imφ_j}) for every row, with c_m the hermitian multiplicity of the
// order: it is the real inverse of Analyze, with the orders not given zero-filled.
//
// v is a spectrum [nb, 2, numOrders, rows] with the orders [0, numOrders), the result is spatial
// [nb, rows, numLon]. The imaginary parts of the mean and Nyquist frequencies are ignored.
func (f *Fourier) Synthesize(pool *workerspool.Pool, v *tensors.Tensor) *tensors.Tensor {
	return f.sequence(pool, v, "Fourier.Synthesize", func(int) float64 { return 1 })
}

// sequence runs the inverse real FFT of every row of the spectrum, after scaling frequency k by scaleFn(k).
func (f *Fourier) sequence(pool *workerspool.Pool, spec *tensors.Tensor, name string,
	scaleFn func(k int) float64) *tensors.Tensor {
	checkRank(name, spec, 4)
	nb, numOrders, rows := spec.Dim(0), spec.Dim(2), spec.Dim(3)
	if spec.Dim(1) != 2 {
		exceptions.Panicf("%s: spectrum %s must have real and imaginary parts on axis 1", name, spec.Shape())
	}
	f.checkOrders(0, numOrders)
	scales := make([]float64, numOrders)
	for k := range scales {
		scales[k] = scaleFn(k)
	}
	out := tensors.New(nb, rows, f.numLon)
	src, dst := spec.Flat(), out.Flat()
	pool.ParallelFor(nb, func(b int) {
		s := f.scratch.Get().(*fftScratch)
		defer f.scratch.Put(s)
		re := src[(2*b)*numOrders*rows : (2*b+1)*numOrders*rows]
		im := src[(2*b+1)*numOrders*rows : (2*b+2)*numOrders*rows]
		for r := range rows {
			clear(s.coeffs)
			for k := range numOrders {
				s.coeffs[k] = complex(re[k*rows+r]*scales[k], im[k*rows+r]*scales[k])
			}
			s.fft.Sequence(dst[(b*rows+r)*f.numLon:(b*rows+r+1)*f.numLon], s.coeffs)
		}
	})
	return out
}

// SynthesizeAdjoint is the adjoint (transpose) of Synthesize, restricted to the orders [mStart, mEnd):
// g_m = c_m Σ_j h_j e^{-imφ_j}.
//
// h is spatial [nb, rows, numLon], the result a spectrum [nb, 2, mEnd-mStart, rows].
func (f *Fourier) SynthesizeAdjoint(pool *workerspool.Pool, h *tensors.Tensor, mStart, mEnd int) *tensors.Tensor {
	checkRank("Fourier.SynthesizeAdjoint", h, 3)
	f.checkOrders(mStart, mEnd)
	nb, rows := h.Dim(0), h.Dim(1)
	if h.Dim(2) != f.numLon {
		exceptions.Panicf("Fourier.SynthesizeAdjoint: input %s doesn't have %d longitudes", h.Shape(), f.numLon)
	}
	numOrders := mEnd - mStart
	out := tensors.New(nb, 2, numOrders, rows)
	src, dst := h.Flat(), out.Flat()
	pool.ParallelFor(nb, func(b int) {
		s := f.scratch.Get().(*fftScratch)
		defer f.scratch.Put(s)
		re := dst[(2*b)*numOrders*rows : (2*b+1)*numOrders*rows]
		im := dst[(2*b+1)*numOrders*rows : (2*b+2)*numOrders*rows]
		for r := range rows {
			s.fft.Coefficients(s.coeffs, src[(b*rows+r)*f.numLon:(b*rows+r+1)*f.numLon])
			for mi := range numOrders {
				c := f.hermitianFactor(mStart + mi)
				re[mi*rows+r] = c * real(s.coeffs[mStart+mi])
				im[mi*rows+r] = c * imag(s.coeffs[mStart+mi])
			}
		}
	})
	return out
}
