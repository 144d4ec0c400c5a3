// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package quadrature

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

func TestParseGridType(t *testing.T) {
	for _, grid := range []GridType{Equiangular, LegendreGauss} {
		parsed, err := ParseGridType(grid.String())
		require.NoError(t, err)
		assert.Equal(t, grid, parsed)
	}
	parsed, err := ParseGridType("Legendre-Gauss")
	require.NoError(t, err)
	assert.Equal(t, LegendreGauss, parsed)

	_, err = ParseGridType("lobatto")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidGridKind))

	var g GridType
	require.NoError(t, g.UnmarshalText([]byte("legendre-gauss")))
	assert.Equal(t, LegendreGauss, g)
	text, err := Equiangular.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "equiangular", string(text))
	assert.Equal(t, "GridType(7)", GridType(7).String())
}

func TestNewErrors(t *testing.T) {
	_, err := New(0, Equiangular)
	assert.True(t, errors.Is(err, ErrInvalidGrid))
	_, err = New(4, GridType(5))
	assert.True(t, errors.Is(err, ErrInvalidGridKind))
}

func TestSmallRules(t *testing.T) {
	r, err := New(3, Equiangular)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, math.Pi / 2, math.Pi}, r.Colatitudes, 1e-15)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 4.0 / 3, 1.0 / 3}, r.Weights, 1e-15) // Simpson
	assert.Equal(t, []float64{0, 1, 0}, []float64{r.Sin[0], r.Sin[1], r.Sin[2]})

	r, err = New(2, LegendreGauss)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1 / math.Sqrt(3), -1 / math.Sqrt(3)}, r.Cos, 1e-15)
	assert.InDeltaSlice(t, []float64{1, 1}, r.Weights, 1e-15)

	for _, grid := range []GridType{Equiangular, LegendreGauss} {
		r, err = New(1, grid)
		require.NoError(t, err)
		assert.Equal(t, []float64{2}, r.Weights)
		assert.Equal(t, []float64{0}, r.Cos)
	}
}

// integrate x^k over [-1, 1].
func integratePower(k int) float64 {
	if k%2 == 1 {
		return 0
	}
	return 2 / float64(k+1)
}

func TestExactness(t *testing.T) {
	for _, grid := range []GridType{Equiangular, LegendreGauss} {
		for _, nlat := range []int{2, 5, 16, 33, 64} {
			t.Run(fmt.Sprintf("%s/%d", grid, nlat), func(t *testing.T) {
				r, err := New(nlat, grid)
				require.NoError(t, err)
				assert.InDelta(t, 2.0, floats.Sum(r.Weights), 1e-13)
				for ii := 1; ii < nlat; ii++ {
					assert.Greater(t, r.Colatitudes[ii], r.Colatitudes[ii-1], "nodes must go north to south")
				}
				for ii := range nlat {
					assert.InDelta(t, 1.0, r.Cos[ii]*r.Cos[ii]+r.Sin[ii]*r.Sin[ii], 1e-14)
					assert.Greater(t, r.Weights[ii], 0.0)
				}
				// Exactness: monomials up to ExactDegree.
				values := make([]float64, nlat)
				for k := 0; k <= r.ExactDegree(); k++ {
					for ii, x := range r.Cos {
						values[ii] = math.Pow(x, float64(k))
					}
					assert.InDelta(t, integratePower(k), floats.Dot(r.Weights, values), 1e-12, "x^%d", k)
				}
			})
		}
	}
}

// TestAgainstGonum compares the legendre-gauss nodes and weights with the ones of gonum's quad.Legendre.
func TestAgainstGonum(t *testing.T) {
	type node struct{ x, w float64 }
	sorted := func(xs, ws []float64) []node {
		nodes := make([]node, len(xs))
		for ii := range xs {
			nodes[ii] = node{xs[ii], ws[ii]}
		}
		slices.SortFunc(nodes, func(a, b node) int { return cmp.Compare(a.x, b.x) })
		return nodes
	}
	for _, n := range []int{2, 5, 16, 33} {
		t.Run(fmt.Sprintf("nlat=%d", n), func(t *testing.T) {
			rule, err := New(n, LegendreGauss)
			require.NoError(t, err)
			x, w := make([]float64, n), make([]float64, n)
			quad.Legendre{}.FixedLocations(x, w, -1, 1)
			want, got := sorted(x, w), sorted(rule.Cos, rule.Weights)
			for ii := range want {
				assert.InDelta(t, want[ii].x, got[ii].x, 1e-12, "node #%d", ii)
				assert.InDelta(t, want[ii].w, got[ii].w, 1e-12, "weight #%d", ii)
			}
		})
	}
}
