// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed_test

import (
	"testing"

	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/support/xslices"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardSpec(t *testing.T) {
	mesh, err := distributed.NewGridMesh(2, 3)
	require.NoError(t, err)

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, distributed.SpatialSpec.Validate(mesh))
		require.NoError(t, distributed.SpectralSpec.Validate(mesh))
		assert.False(t, distributed.SpectralSpec.IsReplicated())
		assert.True(t, distributed.NewShardSpec("", "").IsReplicated())
		require.Error(t, distributed.NewShardSpec("z").Validate(mesh))
		require.Error(t, distributed.NewShardSpec(distributed.AxisH, distributed.AxisH).Validate(mesh))
	})

	tests := []struct {
		name       string
		dims       []int
		spec       distributed.ShardSpec
		wantShapes [][]int
	}{
		{
			name: "spatial",
			dims: []int{2, 7, 10},
			spec: distributed.SpatialSpec,
			wantShapes: [][]int{
				{2, 4, 4}, {2, 4, 3}, {2, 4, 3},
				{2, 3, 4}, {2, 3, 3}, {2, 3, 3},
			},
		},
		{
			name: "spectral",
			dims: []int{3, 5, 4, 2},
			spec: distributed.SpectralSpec,
			wantShapes: [][]int{
				{3, 3, 2, 2}, {3, 3, 1, 2}, {3, 3, 1, 2},
				{3, 2, 2, 2}, {3, 2, 1, 2}, {3, 2, 1, 2},
			},
		},
		{
			name: "latitude only",
			dims: []int{5, 4},
			spec: distributed.NewShardSpec(distributed.AxisH, ""),
			wantShapes: [][]int{
				{3, 4}, {3, 4}, {3, 4},
				{2, 4}, {2, 4}, {2, 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := makeIota(tt.dims...)
			shards, err := mesh.SplitTensor(x, tt.spec)
			require.NoError(t, err)
			gotShapes := xslices.Map(shards, func(s *tensors.Tensor) []int { return s.Shape().Dimensions })
			if diff := cmp.Diff(tt.wantShapes, gotShapes); diff != "" {
				t.Errorf("shard shapes mismatch (-want +got):\n%s", diff)
			}
			got, err := mesh.AssembleTensor(shards, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, x.Shape().Dimensions, got.Shape().Dimensions)
			assert.Equal(t, x.Flat(), got.Flat())
		})
	}

	t.Run("Errors", func(t *testing.T) {
		_, err := mesh.SplitTensor(makeIota(1, 10), distributed.SpatialSpec)
		require.Error(t, err)
		assert.ErrorIs(t, err, distributed.ErrAxisTooSmall)

		shards, err := mesh.SplitTensor(makeIota(4, 6), distributed.SpatialSpec)
		require.NoError(t, err)
		_, err = mesh.AssembleTensor(shards[:5], distributed.SpatialSpec)
		assert.ErrorIs(t, err, distributed.ErrGroupSizeMismatch)
	})
}
