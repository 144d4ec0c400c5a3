// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed_test

import (
	"testing"

	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceMesh(t *testing.T) {
	t.Run("NewDeviceMesh_Valid", func(t *testing.T) {
		tests := []struct {
			name      string
			shape     []int
			axisNames []string
			wantRank  int
			wantNum   int
		}{
			{"1D mesh", []int{8}, []string{"replica"}, 1, 8},
			{"2D mesh", []int{2, 4}, []string{"h", "w"}, 2, 8},
			{"3D mesh", []int{2, 2, 2}, []string{"x", "y", "z"}, 3, 8},
			{"single device", []int{1}, []string{"replica"}, 1, 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mesh, err := distributed.NewDeviceMesh(tt.shape, tt.axisNames)
				require.NoError(t, err)
				assert.Equal(t, tt.wantRank, mesh.Rank())
				assert.Equal(t, tt.wantNum, mesh.NumDevices())
				assert.Equal(t, tt.axisNames, mesh.AxesNames())
			})
		}
	})

	t.Run("NewDeviceMesh_Errors", func(t *testing.T) {
		tests := []struct {
			name      string
			shape     []int
			axisNames []string
			wantErr   string
		}{
			{"mismatched lengths", []int{2, 4}, []string{"x"}, "must have the same length"},
			{"empty shape", []int{}, []string{}, "cannot be empty"},
			{"empty axis name", []int{4}, []string{""}, "is not a valid identifier"},
			{"invalid axis name", []int{4}, []string{"1x"}, "is not a valid identifier"},
			{"duplicate axis names", []int{2, 4}, []string{"x", "x"}, "axis name \"x\" is duplicated"},
			{"zero size", []int{2, 0}, []string{"x", "y"}, "must be > 0"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := distributed.NewDeviceMesh(tt.shape, tt.axisNames)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			})
		}
	})

	t.Run("AxisSize", func(t *testing.T) {
		mesh, err := distributed.NewGridMesh(2, 3)
		require.NoError(t, err)
		size, err := mesh.AxisSize(distributed.AxisW)
		require.NoError(t, err)
		assert.Equal(t, 3, size)
		_, err = mesh.AxisSize("z")
		require.Error(t, err)
		assert.Equal(t, "DeviceMesh(axesSizes={h: 2, w: 3})", mesh.String())
	})

	t.Run("Coordinates", func(t *testing.T) {
		mesh, err := distributed.NewGridMesh(2, 3)
		require.NoError(t, err)
		for rank := range mesh.NumDevices() {
			coords := mesh.Coordinates(rank)
			assert.Equal(t, []int{rank / 3, rank % 3}, coords)
			assert.Equal(t, rank, mesh.RankOf(coords))
		}
		require.Panics(t, func() { _ = mesh.Coordinates(6) })
	})
}

func TestComputeReplicaGroups(t *testing.T) {
	mesh, err := distributed.NewGridMesh(2, 3)
	require.NoError(t, err)

	tests := []struct {
		name string
		axes []string
		want [][]int
	}{
		{"row groups", []string{distributed.AxisW}, [][]int{{0, 1, 2}, {3, 4, 5}}},
		{"column groups", []string{distributed.AxisH}, [][]int{{0, 3}, {1, 4}, {2, 5}}},
		{"global", []string{distributed.AxisH, distributed.AxisW}, [][]int{{0, 1, 2, 3, 4, 5}}},
		{"global transposed", []string{distributed.AxisW, distributed.AxisH}, [][]int{{0, 3, 1, 4, 2, 5}}},
		{"none", []string{}, [][]int{{0}, {1}, {2}, {3}, {4}, {5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mesh.ComputeReplicaGroups(tt.axes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = mesh.ComputeReplicaGroups([]string{"z"})
	require.Error(t, err)
	_, err = mesh.ComputeReplicaGroups([]string{distributed.AxisH, distributed.AxisH})
	require.Error(t, err)
}
