// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package legendre builds tables of normalized associated Legendre functions sampled at the nodes of a latitude
// quadrature.
//
// The functions P̄_l^m are orthonormal on [-1, 1] (∫ P̄_l^m P̄_l'^m dx = δ_ll') and include the Condon–Shortley
// phase (-1)^m. With this normalization the orthonormal spherical harmonics are
//
//	Y_l^m(θ, φ) = P̄_l^m(cos θ) e^{imφ} / √(2π).
//
// They are evaluated with the three-term recurrence in increasing degree for each fixed order, starting from the
// sectoral values P̄_m^m, which is stable for high degrees.
package legendre

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/pkg/sht/quadrature"
	"github.com/pkg/errors"
)

// FlushThreshold is the magnitude below which table values are flushed to zero.
const FlushThreshold = 1e-280

// Table holds, for each order m in [0, MMax] and degree l in [m, LMax], a row of NumLat values: the function for
// (l, m) sampled at every node. Rows of the same order are contiguous, in increasing degree.
//
// Tables are immutable once built and can be shared by any number of goroutines.
type Table struct {
	LMax, MMax, NumLat int

	// orderOffset[m] is the index of the first row of order m.
	orderOffset []int
	data        []float64
}

func newTable(lmax, mmax, numLat int) *Table {
	t := &Table{LMax: lmax, MMax: mmax, NumLat: numLat, orderOffset: make([]int, mmax+2)}
	for m := 0; m <= mmax; m++ {
		t.orderOffset[m+1] = t.orderOffset[m] + lmax + 1 - m
	}
	t.data = make([]float64, t.orderOffset[mmax+1]*numLat)
	return t
}

// NumRows returns the number of (l, m) rows in the table.
func (t *Table) NumRows() int { return t.orderOffset[t.MMax+1] }

// Row returns the values of (l, m) at every node. The returned slice must not be modified.
//
// It panics if m > l, or if (l, m) is out of the table's range.
func (t *Table) Row(l, m int) []float64 {
	if m < 0 || m > t.MMax || l < m || l > t.LMax {
		exceptions.Panicf("legendre.Table.Row(l=%d, m=%d) out of range for lmax=%d, mmax=%d", l, m, t.LMax, t.MMax)
	}
	start := (t.orderOffset[m] + l - m) * t.NumLat
	return t.data[start : start+t.NumLat]
}

// Weighted returns a copy of the table with every row multiplied element-wise by the weights.
func (t *Table) Weighted(weights []float64) *Table {
	if len(weights) != t.NumLat {
		exceptions.Panicf("legendre.Table.Weighted: got %d weights for %d nodes", len(weights), t.NumLat)
	}
	w := &Table{LMax: t.LMax, MMax: t.MMax, NumLat: t.NumLat, orderOffset: t.orderOffset,
		data: make([]float64, len(t.data))}
	for row := range t.NumRows() {
		src := t.data[row*t.NumLat : (row+1)*t.NumLat]
		dst := w.data[row*t.NumLat : (row+1)*t.NumLat]
		for i, v := range src {
			dst[i] = v * weights[i]
		}
	}
	return w
}

// WithoutOrder returns a copy of the table where the rows of order m are zero.
func (t *Table) WithoutOrder(m int) *Table {
	if m < 0 || m > t.MMax {
		exceptions.Panicf("legendre.Table.WithoutOrder(m=%d) out of range for mmax=%d", m, t.MMax)
	}
	w := &Table{LMax: t.LMax, MMax: t.MMax, NumLat: t.NumLat, orderOffset: t.orderOffset,
		data: make([]float64, len(t.data))}
	copy(w.data, t.data)
	clear(w.data[t.orderOffset[m]*t.NumLat : t.orderOffset[m+1]*t.NumLat])
	return w
}

func (t *Table) flush() {
	for i, v := range t.data {
		if math.Abs(v) < FlushThreshold {
			t.data[i] = 0
		}
	}
}

func checkTruncation(rule *quadrature.Rule, lmax, mmax int) error {
	if lmax < 0 || mmax < 0 || mmax > lmax {
		return errors.Errorf("invalid truncation lmax=%d, mmax=%d: it requires 0 <= mmax <= lmax", lmax, mmax)
	}
	if len(rule.Cos) != len(rule.Sin) || len(rule.Cos) == 0 {
		return errors.Errorf("invalid quadrature rule with %d cosines and %d sines", len(rule.Cos), len(rule.Sin))
	}
	return nil
}

// Build evaluates P̄_l^m at the nodes of rule for 0 <= m <= mmax, m <= l <= lmax.
func Build(rule *quadrature.Rule, lmax, mmax int) (*Table, error) {
	if err := checkTruncation(rule, lmax, mmax); err != nil {
		return nil, err
	}
	t := newTable(lmax, mmax, len(rule.Cos))
	t.recurse(rule.Cos, rule.Sin, false)
	t.flush()
	return t, nil
}

// recurse fills the table. With divideBySin, it computes R_l^m = P̄_l^m / sin θ instead, which is finite at the
// poles for m >= 1. Rows of order 0 are left at zero in that case.
func (t *Table) recurse(cos, sin []float64, divideBySin bool) {
	for i, x := range cos {
		s := sin[i]
		// pmm holds P̄_m^m at the node, updated as m increases.
		pmm := 1 / math.Sqrt2
		for m := 0; m <= t.MMax; m++ {
			if m == 0 {
				if !divideBySin {
					t.recurseOrder(i, 0, x, pmm)
				}
				continue
			}
			overSin := -math.Sqrt(float64(2*m+1)/float64(2*m)) * pmm
			pmm = overSin * s
			if divideBySin {
				t.recurseOrder(i, m, x, overSin)
			} else {
				t.recurseOrder(i, m, x, pmm)
			}
		}
	}
}

// recurseOrder fills column i of the rows of order m, given the sectoral value at the node.
func (t *Table) recurseOrder(i, m int, x, sectoral float64) {
	rows := t.data[t.orderOffset[m]*t.NumLat : t.orderOffset[m+1]*t.NumLat]
	n := t.NumLat
	rows[i] = sectoral
	if m == t.LMax {
		return
	}
	pPrev, p := sectoral, math.Sqrt(float64(2*m+3))*x*sectoral
	rows[n+i] = p
	mm := float64(m * m)
	for l := m + 2; l <= t.LMax; l++ {
		ll := float64(l * l)
		l1 := float64((l - 1) * (l - 1))
		a := math.Sqrt((4*ll - 1) / (ll - mm))
		b := math.Sqrt((l1 - mm) / (4*l1 - 1))
		pPrev, p = p, a*(x*p-b*pPrev)
		rows[(l-m)*n+i] = p
	}
}

// BuildVector builds the tables used by the vector transforms, for 0 <= m <= mmax, m <= l <= lmax:
//
//   - polar: D_l^m = (dP̄_l^m/dθ) / √(l(l+1))
//   - azimuthal: Q_l^m = m P̄_l^m / (sin θ √(l(l+1)))
//
// Rows with l = 0 are zero. Q is evaluated through the recurrence of P̄/sin θ, so pole nodes are finite.
func BuildVector(rule *quadrature.Rule, lmax, mmax int) (polar, azimuthal *Table, err error) {
	if err = checkTruncation(rule, lmax, mmax); err != nil {
		return nil, nil, err
	}
	numLat := len(rule.Cos)

	// The derivative of order m needs P̄ of order m+1.
	pbar := newTable(lmax, min(mmax+1, lmax), numLat)
	pbar.recurse(rule.Cos, rule.Sin, false)
	overSin := newTable(lmax, mmax, numLat)
	overSin.recurse(rule.Cos, rule.Sin, true)

	polar = newTable(lmax, mmax, numLat)
	azimuthal = newTable(lmax, mmax, numLat)
	for m := 0; m <= mmax; m++ {
		for l := max(m, 1); l <= lmax; l++ {
			norm := 1 / math.Sqrt(float64(l*(l+1)))
			d, q := polar.Row(l, m), azimuthal.Row(l, m)
			if m == 0 {
				copy(d, pbar.Row(l, 1))
			} else {
				// dP̄_l^m/dθ = ½[√((l-m)(l+m+1)) P̄_l^{m+1} - √((l+m)(l-m+1)) P̄_l^{m-1}]
				cUp := 0.5 * math.Sqrt(float64((l-m)*(l+m+1))) * norm
				cDown := 0.5 * math.Sqrt(float64((l+m)*(l-m+1))) * norm
				down := pbar.Row(l, m-1)
				var up []float64
				if m+1 <= l {
					up = pbar.Row(l, m+1)
				}
				for i := range d {
					d[i] = -cDown * down[i]
					if up != nil {
						d[i] += cUp * up[i]
					}
				}
				r := overSin.Row(l, m)
				qScale := float64(m) * norm
				for i := range q {
					q[i] = qScale * r[i]
				}
			}
		}
	}
	polar.flush()
	azimuthal.flush()
	return polar, azimuthal, nil
}
