// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/internal/workerspool"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/sht/legendre"
	"gonum.org/v1/gonum/floats"
)

// checkOrderRange verifies that the orders [mStart, mStart+numOrders) are covered by the table.
func checkOrderRange(name string, table *legendre.Table, mStart, numOrders int) {
	if mStart < 0 || numOrders < 0 || mStart+numOrders > table.MMax+1 {
		exceptions.Panicf("%s: orders [%d, %d) out of range of table with mmax=%d",
			name, mStart, mStart+numOrders, table.MMax)
	}
}

// Integrate contracts the spectrum with the table along latitude, for the degrees [lStart, lEnd):
//
//	out[b, l-lStart, m-mStart] = scale Σ_i table_l^m[i] F[b, m-mStart, i]
//
// spec is [nb, 2, numOrders, numLat] with all table.NumLat latitudes, holding the orders starting at mStart.
// The result is [nb, lEnd-lStart, numOrders, 2], with zeros where l < m.
//
// With a weighted table it is the quadrature of the forward transform. Integrate(P, β) is also the adjoint of
// Expand(P, β) for any table.
func Integrate(pool *workerspool.Pool, spec *tensors.Tensor, mStart int, table *legendre.Table, scale float64,
	lStart, lEnd int) *tensors.Tensor {
	nb, numOrders, numLat := checkIntegrate("Integrate", spec, mStart, table, lStart, lEnd)
	numDegrees := lEnd - lStart
	out := tensors.New(nb, numDegrees, numOrders, 2)
	src, dst := spec.Flat(), out.Flat()
	pool.ParallelFor(nb, func(b int) {
		re := src[(2*b)*numOrders*numLat : (2*b+1)*numOrders*numLat]
		im := src[(2*b+1)*numOrders*numLat : (2*b+2)*numOrders*numLat]
		coeffs := dst[b*numDegrees*numOrders*2 : (b+1)*numDegrees*numOrders*2]
		for mi := range numOrders {
			m := mStart + mi
			fRe, fIm := re[mi*numLat:(mi+1)*numLat], im[mi*numLat:(mi+1)*numLat]
			for l := max(lStart, m); l < lEnd; l++ {
				row := table.Row(l, m)
				idx := ((l-lStart)*numOrders + mi) * 2
				coeffs[idx] = scale * floats.Dot(row, fRe)
				coeffs[idx+1] = scale * floats.Dot(row, fIm)
			}
		}
	})
	return out
}

func checkIntegrate(name string, spec *tensors.Tensor, mStart int, table *legendre.Table,
	lStart, lEnd int) (nb, numOrders, numLat int) {
	checkRank(name, spec, 4)
	nb, numOrders, numLat = spec.Dim(0), spec.Dim(2), spec.Dim(3)
	if spec.Dim(1) != 2 || numLat != table.NumLat {
		exceptions.Panicf("%s: spectrum %s doesn't match [nb, 2, numOrders, %d]", name, spec.Shape(), table.NumLat)
	}
	checkOrderRange(name, table, mStart, numOrders)
	if lStart < 0 || lEnd < lStart || lEnd > table.LMax+1 {
		exceptions.Panicf("%s: degrees [%d, %d) out of range of table with lmax=%d", name, lStart, lEnd, table.LMax)
	}
	return
}

// Expand evaluates the coefficients on the latitude rows [latStart, latEnd):
//
//	out[b, m-mStart, i-latStart] = scale Σ_l a[b, l, m-mStart] table_l^m[i]
//
// coeffs is [nb, table.LMax+1, numOrders, 2] holding the orders starting at mStart; entries with l < m are
// ignored. The result is a spectrum [nb, 2, numOrders, latEnd-latStart].
//
// With the table P̄ and scale 1/√(2π) it is the Legendre stage of the inverse transform. Expand(W, α) with a
// weighted table W is also the adjoint of Integrate(W, α).
func Expand(pool *workerspool.Pool, coeffs *tensors.Tensor, mStart int, table *legendre.Table, scale float64,
	latStart, latEnd int) *tensors.Tensor {
	nb, numOrders := checkExpand("Expand", coeffs, mStart, table, latStart, latEnd)
	numDegrees, numRows := table.LMax+1, latEnd-latStart
	out := tensors.New(nb, 2, numOrders, numRows)
	src, dst := coeffs.Flat(), out.Flat()
	pool.ParallelFor(nb, func(b int) {
		a := src[b*numDegrees*numOrders*2 : (b+1)*numDegrees*numOrders*2]
		re := dst[(2*b)*numOrders*numRows : (2*b+1)*numOrders*numRows]
		im := dst[(2*b+1)*numOrders*numRows : (2*b+2)*numOrders*numRows]
		for mi := range numOrders {
			m := mStart + mi
			vRe, vIm := re[mi*numRows:(mi+1)*numRows], im[mi*numRows:(mi+1)*numRows]
			for l := m; l < numDegrees; l++ {
				row := table.Row(l, m)[latStart:latEnd]
				idx := (l*numOrders + mi) * 2
				floats.AddScaled(vRe, scale*a[idx], row)
				floats.AddScaled(vIm, scale*a[idx+1], row)
			}
		}
	})
	return out
}

func checkExpand(name string, coeffs *tensors.Tensor, mStart int, table *legendre.Table,
	latStart, latEnd int) (nb, numOrders int) {
	checkRank(name, coeffs, 4)
	nb, numOrders = coeffs.Dim(0), coeffs.Dim(2)
	if coeffs.Dim(1) != table.LMax+1 || coeffs.Dim(3) != 2 {
		exceptions.Panicf("%s: coefficients %s don't match [nb, %d, numOrders, 2]", name, coeffs.Shape(),
			table.LMax+1)
	}
	checkOrderRange(name, table, mStart, numOrders)
	if latStart < 0 || latEnd < latStart || latEnd > table.NumLat {
		exceptions.Panicf("%s: latitude rows [%d, %d) out of range for %d latitudes", name, latStart, latEnd,
			table.NumLat)
	}
	return
}

func checkVectorTables(name string, nb int, polar, azimuthal *legendre.Table) {
	if nb%2 != 0 {
		exceptions.Panicf("%s: batch dimension %d must hold pairs of components", name, nb)
	}
	if polar.LMax != azimuthal.LMax || polar.MMax != azimuthal.MMax || polar.NumLat != azimuthal.NumLat {
		exceptions.Panicf("%s: polar and azimuthal tables have different truncations", name)
	}
}

// IntegrateVector is the vector version of Integrate: entries 2b and 2b+1 of the batch are the colatitude (θ) and
// longitude (φ) components of a field, and become its spheroidal (s) and toroidal (t) coefficients. With D the
// polar table and Q the azimuthal one:
//
//	s = scale Σ_i (D F_θ - i Q F_φ)
//	t = scale Σ_i (i Q F_θ + D F_φ)
//
// The coupling is symmetric, so IntegrateVector(D, Q, α) and ExpandVector(D, Q, α) are adjoints of each other.
func IntegrateVector(pool *workerspool.Pool, spec *tensors.Tensor, mStart int, polar, azimuthal *legendre.Table,
	scale float64, lStart, lEnd int) *tensors.Tensor {
	nb, numOrders, numLat := checkIntegrate("IntegrateVector", spec, mStart, polar, lStart, lEnd)
	checkVectorTables("IntegrateVector", nb, polar, azimuthal)
	numDegrees := lEnd - lStart
	out := tensors.New(nb, numDegrees, numOrders, 2)
	src, dst := spec.Flat(), out.Flat()
	plane := numOrders * numLat
	block := numDegrees * numOrders * 2
	pool.ParallelFor(nb/2, func(pair int) {
		theta := src[(4*pair)*plane : (4*pair+2)*plane]
		phi := src[(4*pair+2)*plane : (4*pair+4)*plane]
		s := dst[(2*pair)*block : (2*pair+1)*block]
		t := dst[(2*pair+1)*block : (2*pair+2)*block]
		for mi := range numOrders {
			m := mStart + mi
			thetaRe, thetaIm := theta[mi*numLat:(mi+1)*numLat], theta[plane+mi*numLat:plane+(mi+1)*numLat]
			phiRe, phiIm := phi[mi*numLat:(mi+1)*numLat], phi[plane+mi*numLat:plane+(mi+1)*numLat]
			for l := max(lStart, m, 1); l < lEnd; l++ {
				d, q := polar.Row(l, m), azimuthal.Row(l, m)
				idx := ((l-lStart)*numOrders + mi) * 2
				s[idx] = scale * (floats.Dot(d, thetaRe) + floats.Dot(q, phiIm))
				s[idx+1] = scale * (floats.Dot(d, thetaIm) - floats.Dot(q, phiRe))
				t[idx] = scale * (floats.Dot(d, phiRe) - floats.Dot(q, thetaIm))
				t[idx+1] = scale * (floats.Dot(q, thetaRe) + floats.Dot(d, phiIm))
			}
		}
	})
	return out
}

// ExpandVector is the vector version of Expand: entries 2b and 2b+1 of the batch are the spheroidal (s) and
// toroidal (t) coefficients of a field, and the result holds the spectra of its colatitude (θ) and longitude (φ)
// components:
//
//	V_θ = scale Σ_l (D s - i Q t)
//	V_φ = scale Σ_l (i Q s + D t)
func ExpandVector(pool *workerspool.Pool, coeffs *tensors.Tensor, mStart int, polar, azimuthal *legendre.Table,
	scale float64, latStart, latEnd int) *tensors.Tensor {
	nb, numOrders := checkExpand("ExpandVector", coeffs, mStart, polar, latStart, latEnd)
	checkVectorTables("ExpandVector", nb, polar, azimuthal)
	numDegrees, numRows := polar.LMax+1, latEnd-latStart
	out := tensors.New(nb, 2, numOrders, numRows)
	src, dst := coeffs.Flat(), out.Flat()
	plane := numOrders * numRows
	block := numDegrees * numOrders * 2
	pool.ParallelFor(nb/2, func(pair int) {
		s := src[(2*pair)*block : (2*pair+1)*block]
		t := src[(2*pair+1)*block : (2*pair+2)*block]
		theta := dst[(4*pair)*plane : (4*pair+2)*plane]
		phi := dst[(4*pair+2)*plane : (4*pair+4)*plane]
		for mi := range numOrders {
			m := mStart + mi
			thetaRe, thetaIm := theta[mi*numRows:(mi+1)*numRows], theta[plane+mi*numRows:plane+(mi+1)*numRows]
			phiRe, phiIm := phi[mi*numRows:(mi+1)*numRows], phi[plane+mi*numRows:plane+(mi+1)*numRows]
			for l := max(m, 1); l < numDegrees; l++ {
				d := polar.Row(l, m)[latStart:latEnd]
				q := azimuthal.Row(l, m)[latStart:latEnd]
				idx := (l*numOrders + mi) * 2
				sRe, sIm := scale*s[idx], scale*s[idx+1]
				tRe, tIm := scale*t[idx], scale*t[idx+1]
				floats.AddScaled(thetaRe, sRe, d)
				floats.AddScaled(thetaRe, tIm, q)
				floats.AddScaled(thetaIm, sIm, d)
				floats.AddScaled(thetaIm, -tRe, q)
				floats.AddScaled(phiRe, -sIm, q)
				floats.AddScaled(phiRe, tRe, d)
				floats.AddScaled(phiIm, sRe, q)
				floats.AddScaled(phiIm, tIm, d)
			}
		}
	})
	return out
}
