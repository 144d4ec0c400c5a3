// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"github.com/gomlx/harmonics/pkg/core/shapes"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Tensor is a logical field tensor distributed across the ranks of a DeviceMesh.
//
// It holds the local tensor shards (one per rank, in rank order) and the sharding specification as a ShardSpec.
type Tensor struct {
	// mesh is the DeviceMesh this tensor is distributed on.
	mesh *DeviceMesh

	// spec defines how this tensor is sharded across the mesh.
	spec ShardSpec

	// shape is the logical, unsharded shape.
	shape shapes.Shape

	// shards holds the local tensor of each rank, indexed by the rank (0 to NumDevices-1).
	shards []*tensors.Tensor
}

// ShardTensor splits the global tensor t across the mesh according to spec.
func ShardTensor(mesh *DeviceMesh, t *tensors.Tensor, spec ShardSpec) (*Tensor, error) {
	shards, err := mesh.SplitTensor(t, spec)
	if err != nil {
		return nil, errors.WithMessage(err, "ShardTensor")
	}
	return &Tensor{mesh: mesh, spec: spec, shape: t.Shape().Clone(), shards: shards}, nil
}

// New creates a new Tensor from the shards of every rank, given in rank order.
//
// The shards must be consistent with spec: it fails with an error wrapping shapes.ErrShapeMismatch otherwise.
func New(mesh *DeviceMesh, spec ShardSpec, shards []*tensors.Tensor) (*Tensor, error) {
	if err := spec.Validate(mesh); err != nil {
		return nil, errors.WithMessage(err, "invalid ShardSpec")
	}
	if len(shards) != mesh.NumDevices() {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "number of shards (%d) does not match number of devices in mesh (%d)",
			len(shards), mesh.NumDevices())
	}
	for rank, shard := range shards {
		if shard == nil {
			return nil, errors.Errorf("shard of rank %d is nil", rank)
		}
	}
	// Assembling validates the shard shapes: it is the simplest way to derive the logical shape.
	global, err := mesh.AssembleTensor(shards, spec)
	if err != nil {
		return nil, err
	}
	dt := &Tensor{mesh: mesh, spec: spec, shape: global.Shape(), shards: shards}
	if err := dt.checkShards(); err != nil {
		return nil, err
	}
	return dt, nil
}

// checkShards verifies every shard has the shape SplitTensor would give it.
func (dt *Tensor) checkShards() error {
	for rank, shard := range dt.shards {
		want, err := dt.ShardShape(rank)
		if err != nil {
			return err
		}
		if !want.Equal(shard.Shape()) {
			return errors.Wrapf(shapes.ErrShapeMismatch, "shard of rank %d has shape %s, expected %s for logical shape %s",
				rank, shard.Shape(), want, dt.shape)
		}
	}
	return nil
}

// Mesh returns the DeviceMesh for this tensor.
func (dt *Tensor) Mesh() *DeviceMesh {
	return dt.mesh
}

// ShardSpec returns the sharding specification for this tensor.
func (dt *Tensor) ShardSpec() ShardSpec {
	return dt.spec
}

// Shards returns the local tensors of every rank, in rank order.
func (dt *Tensor) Shards() []*tensors.Tensor {
	return dt.shards
}

// Shard returns the local tensor of the given rank.
func (dt *Tensor) Shard(rank int) *tensors.Tensor {
	return dt.shards[rank]
}

// Shape returns the logical, unsharded shape of the tensor.
func (dt *Tensor) Shape() shapes.Shape {
	return dt.shape
}

// ShardShape returns the shape of the shard held by rank.
func (dt *Tensor) ShardShape(rank int) (shapes.Shape, error) {
	shape := dt.shape.Clone()
	for meshAxis, c := range dt.mesh.Coordinates(rank) {
		axis := dt.spec.tensorAxisOf(shape.Rank(), dt.mesh.axesNames[meshAxis])
		if axis < 0 {
			continue
		}
		sizes, err := SplitShapes(dt.shape.Dim(axis), dt.mesh.axesSizes[meshAxis])
		if err != nil {
			return shapes.Shape{}, err
		}
		shape = shape.WithDim(axis, sizes[c])
	}
	return shape, nil
}

// Assemble concatenates the shards back into the global tensor.
func (dt *Tensor) Assemble() (*tensors.Tensor, error) {
	return dt.mesh.AssembleTensor(dt.shards, dt.spec)
}
