// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/pkg/core/shapes"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ShardSpec (also known as PartitionSpec in JAX) defines how the trailing axes of a field tensor are sharded
// (partitioned) across a DeviceMesh.
//
// The last element refers to the last axis of the tensor, the one before to the second to last, and so on.
// Leading axes not covered are replicated. Each element is either:
//  1. An axis name from the DeviceMesh: the corresponding tensor axis is split across this mesh axis
//     (and replicated over the other mesh axes).
//  2. An empty string (""): the corresponding tensor axis is replicated.
type ShardSpec []string

// Shard specs of the field tensors of the transforms on an H×W grid.
var (
	// SpatialSpec shards [..., nlat, nlon]: latitude over AxisH, longitude over AxisW.
	SpatialSpec = NewShardSpec(AxisH, AxisW)

	// SpectralSpec shards [..., lmax+1, mmax+1, 2]: degree over AxisH, order over AxisW.
	SpectralSpec = NewShardSpec(AxisH, AxisW, "")
)

// NewShardSpec creates a new ShardSpec for the trailing axes of a tensor.
func NewShardSpec(axes ...string) ShardSpec {
	return axes
}

// Rank returns the number of trailing axes this ShardSpec describes.
func (s ShardSpec) Rank() int {
	return len(s)
}

// IsReplicated returns true if the tensor is fully replicated
// (i.e., not sharded along any axis).
func (s ShardSpec) IsReplicated() bool {
	for _, axisName := range s {
		if axisName != "" {
			return false
		}
	}
	return true
}

// Validate checks that the ShardSpec is valid for the given mesh.
func (s ShardSpec) Validate(mesh *DeviceMesh) error {
	meshAxesUsed := make(map[string]bool)
	for i, axisName := range s {
		if axisName == "" {
			continue
		}
		if _, ok := mesh.nameToAxis[axisName]; !ok {
			return errors.Errorf("ShardSpec axis %d refers to unknown mesh axis %q", i, axisName)
		}
		if meshAxesUsed[axisName] {
			return errors.Errorf("mesh axis %q used more than once in ShardSpec", axisName)
		}
		meshAxesUsed[axisName] = true
	}
	return nil
}

// tensorAxisOf returns the tensor axis sharded over the given mesh axis, or -1 if the mesh axis is not used.
func (s ShardSpec) tensorAxisOf(rank int, meshAxis string) int {
	for i, axisName := range s {
		if axisName == meshAxis {
			return rank - len(s) + i
		}
	}
	return -1
}

// SplitTensor splits a global tensor into one shard per rank of the mesh, in rank order, according to spec.
// Sharded axes are split with SplitShapes sizes. It returns copies.
func (m *DeviceMesh) SplitTensor(t *tensors.Tensor, spec ShardSpec) ([]*tensors.Tensor, error) {
	if err := spec.Validate(m); err != nil {
		return nil, err
	}
	if t.Rank() < spec.Rank() {
		return nil, errors.Wrapf(shapes.ErrShapeMismatch, "ShardSpec of rank %d for a tensor of shape %s",
			spec.Rank(), t.Shape())
	}
	// bounds[meshAxis] holds the offsets of the chunks along the corresponding tensor axis.
	bounds := make([][]int, m.Rank())
	for meshAxis, name := range m.axesNames {
		axis := spec.tensorAxisOf(t.Rank(), name)
		if axis < 0 {
			continue
		}
		sizes, err := SplitShapes(t.Dim(axis), m.axesSizes[meshAxis])
		if err != nil {
			return nil, errors.WithMessagef(err, "splitting axis %d of %s over mesh axis %q", axis, t.Shape(), name)
		}
		bounds[meshAxis] = xslices.Offsets(sizes)
	}
	shards := make([]*tensors.Tensor, m.numDevices)
	for rank := range shards {
		shard := t
		for meshAxis, c := range m.Coordinates(rank) {
			if bounds[meshAxis] == nil {
				continue
			}
			axis := spec.tensorAxisOf(t.Rank(), m.axesNames[meshAxis])
			shard = shard.SliceAxis(axis, bounds[meshAxis][c], bounds[meshAxis][c+1])
		}
		if shard == t {
			shard = t.Clone()
		}
		shards[rank] = shard
	}
	return shards, nil
}

// AssembleTensor is the inverse of SplitTensor: it concatenates the shards of every rank (given in rank order)
// back into the global tensor. For mesh axes not used by spec, the shards are replicas and the first one is taken.
func (m *DeviceMesh) AssembleTensor(shards []*tensors.Tensor, spec ShardSpec) (*tensors.Tensor, error) {
	if err := spec.Validate(m); err != nil {
		return nil, err
	}
	if len(shards) != m.numDevices {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "%d shards given for a mesh of %d ranks",
			len(shards), m.numDevices)
	}
	rank := shards[0].Rank()
	if rank < spec.Rank() {
		return nil, errors.Wrapf(shapes.ErrShapeMismatch, "ShardSpec of rank %d for shards of shape %s",
			spec.Rank(), shards[0].Shape())
	}
	coords := make([]int, m.Rank())
	var assemble func(meshAxis int) (*tensors.Tensor, error)
	assemble = func(meshAxis int) (*tensors.Tensor, error) {
		if meshAxis == m.Rank() {
			return shards[m.RankOf(coords)], nil
		}
		axis := spec.tensorAxisOf(rank, m.axesNames[meshAxis])
		if axis < 0 {
			coords[meshAxis] = 0
			return assemble(meshAxis + 1)
		}
		parts := make([]*tensors.Tensor, m.axesSizes[meshAxis])
		for c := range parts {
			coords[meshAxis] = c
			part, err := assemble(meshAxis + 1)
			if err != nil {
				return nil, err
			}
			parts[c] = part
		}
		var err error
		var out *tensors.Tensor
		if panicErr := exceptions.TryCatch[error](func() { out = tensors.Concatenate(parts, axis) }); panicErr != nil {
			err = errors.Wrapf(shapes.ErrShapeMismatch, "assembling over mesh axis %q: %v", m.axesNames[meshAxis], panicErr)
		}
		return out, err
	}
	return assemble(0)
}
