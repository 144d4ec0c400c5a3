// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMesh(t *testing.T) {
	tests := []struct {
		mesh         string
		gridH, gridW int
		wantErr      bool
	}{
		{"2x3", 2, 3, false},
		{" 1X4 ", 1, 4, false},
		{"2", 0, 0, true},
		{"axb", 0, 0, true},
		{"2x2x2", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.mesh, func(t *testing.T) {
			gridH, gridW, err := Case{Mesh: tt.mesh}.ParseMesh()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.gridH, gridH)
			assert.Equal(t, tt.gridW, gridW)
		})
	}
}

func TestParseCases(t *testing.T) {
	lmax := 10
	defaults := Case{NumLat: 16, NumLon: 32, Grid: "equiangular", Mesh: "1x1", Batch: 1, Channels: 2, Tol: 1e-9,
		LMax: &lmax}
	cases, err := parseCases([]byte(`
cases:
  - name: small
    nlat: 8
    nlon: 16
    grid: legendre-gauss
    mesh: 2x2
    mmax: 3
    vector: true
  - mesh: 1x2
`), defaults)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	small := cases[0]
	assert.Equal(t, "small", small.Name)
	assert.Equal(t, 8, small.NumLat)
	assert.Equal(t, "legendre-gauss", small.Grid)
	assert.True(t, small.Vector)
	assert.Equal(t, 1e-9, small.Tol)
	require.NotNil(t, small.MMax)
	assert.Equal(t, 3, *small.MMax)
	assert.Equal(t, 10, *small.LMax)

	second := cases[1]
	assert.Equal(t, "case #1", second.Name)
	assert.Equal(t, 16, second.NumLat)
	assert.Equal(t, "1x2", second.Mesh)
	assert.Nil(t, second.MMax)
	config := must.M1(second.Config())
	assert.Equal(t, 10, config.LMax)
	assert.Equal(t, -1, config.MMax)

	_, err = parseCases([]byte("cases: []"), defaults)
	assert.Error(t, err)
	_, err = parseCases([]byte("cases: {"), defaults)
	assert.Error(t, err)
	_, err = Case{Grid: "hexagonal"}.Config()
	assert.Error(t, err)
}

func TestRunCase(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, vector := range []bool{false, true} {
		c := Case{Name: "test", NumLat: 12, NumLon: 16, Grid: "legendre-gauss", Mesh: "2x2", Batch: 1, Channels: 2,
			Vector: vector, Tol: 1e-12}
		results, err := runCase(c, 0, rng)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			require.NoError(t, r.Err)
			assert.True(t, r.Passed(), "%s: forward %g, backward %g", r.Transform, r.ForwardErr, r.BackwardErr)
			assert.Greater(t, r.BytesSent, 0.0, "%s should all-gather over the 2x2 mesh", r.Transform)
		}
		table := resultsTable(results)
		assert.Contains(t, table, results[0].Transform)
	}

	// 8 latitudes can't be split over 9 ranks.
	c := Case{Name: "too small", NumLat: 8, NumLon: 16, Grid: "equiangular", Mesh: "9x1", Batch: 1, Channels: 1,
		Tol: 1e-12}
	results, err := runCase(c, 0, rng)
	require.NoError(t, err)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.False(t, r.Passed())
	}

	_, err = runCase(Case{NumLat: 8, NumLon: 16, Grid: "equiangular", Mesh: "2"}, 0, rng)
	assert.Error(t, err)
}
