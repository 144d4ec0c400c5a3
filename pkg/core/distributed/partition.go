// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"github.com/gomlx/harmonics/pkg/core/shapes"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SplitShapes returns the sizes of numChunks contiguous chunks of an axis of the given size.
//
// Sizes are balanced to within one unit, with larger chunks first: SplitShapes(8, 3) -> [3, 3, 2].
// It returns an error wrapping ErrAxisTooSmall if numChunks > size.
func SplitShapes(size, numChunks int) ([]int, error) {
	if numChunks <= 0 {
		return nil, errors.Errorf("SplitShapes(%d, %d): number of chunks must be > 0", size, numChunks)
	}
	if numChunks > size {
		return nil, errors.Wrapf(ErrAxisTooSmall, "cannot split axis of size %d into %d chunks", size, numChunks)
	}
	sizes := make([]int, numChunks)
	base, extra := size/numChunks, size%numChunks
	for ii := range sizes {
		sizes[ii] = base
		if ii < extra {
			sizes[ii]++
		}
	}
	return sizes, nil
}

// SplitAlongAxis splits t along axis into numChunks contiguous chunks, with sizes given by SplitShapes.
// A negative axis is counted from the end. Chunks are copies.
func SplitAlongAxis(t *tensors.Tensor, axis, numChunks int) ([]*tensors.Tensor, error) {
	axis, err := adjustAxis(t, axis)
	if err != nil {
		return nil, err
	}
	sizes, err := SplitShapes(t.Dim(axis), numChunks)
	if err != nil {
		return nil, errors.WithMessagef(err, "SplitAlongAxis(%s, axis=%d)", t.Shape(), axis)
	}
	offsets := xslices.Offsets(sizes)
	chunks := make([]*tensors.Tensor, numChunks)
	for ii := range chunks {
		chunks[ii] = t.SliceAxis(axis, offsets[ii], offsets[ii+1])
	}
	return chunks, nil
}

// ExtractShard returns a copy of the chunk owned by rank along axis, given the per-rank chunk sizes.
// The global extent of axis must be the sum of sizes.
//
// It is the adjoint of GatherAlongAxis.
func ExtractShard(t *tensors.Tensor, axis int, sizes []int, rank int) (*tensors.Tensor, error) {
	axis, err := adjustAxis(t, axis)
	if err != nil {
		return nil, err
	}
	if rank < 0 || rank >= len(sizes) {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "rank %d out of range for %d chunks", rank, len(sizes))
	}
	offsets := xslices.Offsets(sizes)
	if total := xslices.Last(offsets); t.Dim(axis) != total {
		return nil, errors.Wrapf(shapes.ErrShapeMismatch, "ExtractShard: axis %d of %s has dimension %d, chunks %v add up to %d",
			axis, t.Shape(), t.Dim(axis), sizes, total)
	}
	return t.SliceAxis(axis, offsets[rank], offsets[rank+1]), nil
}

// GatherAlongAxis reassembles along axis the chunks held by every rank of group: each rank's local chunk is
// all-gathered and the chunks are concatenated in ascending rank order.
//
// sizes holds the extent of axis for each rank (e.g. one of the lat/lon/l/m shape tables), so the local chunk must
// have dimension sizes[group.Rank()] on axis. All other dimensions must be the same on all ranks.
//
// It is the exact inverse of SplitAlongAxis when sizes are those given by SplitShapes. A nil group, or a group of
// size 1, makes it a no-op returning t itself.
func GatherAlongAxis(t *tensors.Tensor, axis int, group Group, sizes []int) (*tensors.Tensor, error) {
	axis, err := adjustAxis(t, axis)
	if err != nil {
		return nil, err
	}
	if group == nil {
		group = trivialGroup{}
	}
	if len(sizes) != group.Size() {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "GatherAlongAxis: %d chunk sizes given for a group of size %d",
			len(sizes), group.Size())
	}
	rank := group.Rank()
	if t.Dim(axis) != sizes[rank] {
		return nil, errors.Wrapf(shapes.ErrShapeMismatch,
			"GatherAlongAxis: local chunk %s has dimension %d on axis %d, rank %d should hold %d",
			t.Shape(), t.Dim(axis), axis, rank, sizes[rank])
	}
	if group.Size() == 1 {
		return t, nil
	}
	klog.V(2).Infof("GatherAlongAxis(axis=%d, sizes=%v): rank %d contributes %s", axis, sizes, rank, t.Shape())
	parts, err := group.AllGather(t.Flat())
	if err != nil {
		return nil, errors.WithMessagef(err, "GatherAlongAxis(axis=%d) on rank %d", axis, rank)
	}
	if len(parts) != group.Size() {
		return nil, errors.Wrapf(ErrCollectiveFailure, "all-gather returned %d parts for a group of size %d",
			len(parts), group.Size())
	}
	chunks := make([]*tensors.Tensor, len(parts))
	for ii, part := range parts {
		chunkShape := t.Shape().WithDim(axis, sizes[ii])
		if len(part) != chunkShape.Size() {
			return nil, errors.Wrapf(ErrCollectiveFailure,
				"rank %d contributed %d values, expected a chunk of shape %s (%d values)",
				ii, len(part), chunkShape, chunkShape.Size())
		}
		chunks[ii] = tensors.FromFlat(part, chunkShape.Dimensions...)
	}
	return tensors.Concatenate(chunks, axis), nil
}

func adjustAxis(t *tensors.Tensor, axis int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += t.Rank()
	}
	if adjusted < 0 || adjusted >= t.Rank() {
		return 0, errors.Wrapf(shapes.ErrShapeMismatch, "axis %d out of range for tensor of shape %s", axis, t.Shape())
	}
	return adjusted, nil
}
