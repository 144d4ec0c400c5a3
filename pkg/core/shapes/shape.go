// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dimensions of a dense row-major float64 tensor.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: is the index of a dimension on a multidimensional Tensor. Negative axes count from the end,
//     so axis -1 refers to the last axis.
//   - Dimension: the size of a multi-dimensions Tensor in one of its axes.
//
// Field tensors used by the transforms follow a fixed shape contract: leading batch/channel axes,
// an optional size-2 vector component axis, and trailing spatial (lat, lon) or spectral (l, m, 2) axes.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned (wrapped with context) when a tensor's dimensions disagree with what an
// operation was configured for.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape represents the dimensions of a Tensor.
//
// Use Make to create a new shape.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any dimension is negative. Zero dimensions are accepted, they produce an empty tensor.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%v): cannot create a shape with an axis with dimension < 0", dimensions)
		}
	}
	return s
}

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// AdjustAxis converts a negative axis to its positive counterpart and checks that it is in range.
// It panics for an out-of-bound axis.
func (s Shape) AdjustAxis(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("axis %d out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return adjustedAxis
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	return s.Dimensions[s.AdjustAxis(axis)]
}

// Size returns the number of elements needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout.
//
// Notice the strides are **not in bytes**, but in indices.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for dim := rank - 1; dim >= 0; dim-- {
		strides[dim] = currentStride
		currentStride *= s.Dimensions[dim]
	}
	return
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// WithDim returns a copy of the shape with the dimension of the given axis replaced.
func (s Shape) WithDim(axis, dim int) Shape {
	s2 := s.Clone()
	s2.Dimensions[s.AdjustAxis(axis)] = dim
	return s2
}

// Leading returns the dimensions of all but the last n axes: these are the batch-like axes of a field tensor.
// It panics if rank < n.
func (s Shape) Leading(n int) []int {
	if s.Rank() < n {
		exceptions.Panicf("shape %s has rank %d, needs at least %d axes", s, s.Rank(), n)
	}
	return slices.Clone(s.Dimensions[:s.Rank()-n])
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	return fmt.Sprintf("%v", s.Dimensions)
}

// CheckTrailing returns an error wrapping ErrShapeMismatch if the last axes of s don't match want.
// A negative value in want means the dimension is unchecked.
func (s Shape) CheckTrailing(want ...int) error {
	if s.Rank() < len(want) {
		return errors.Wrapf(ErrShapeMismatch, "shape %s has rank %d, wanted at least %d trailing axes %v",
			s, s.Rank(), len(want), want)
	}
	offset := s.Rank() - len(want)
	for ii, dim := range want {
		if dim >= 0 && s.Dimensions[offset+ii] != dim {
			return errors.Wrapf(ErrShapeMismatch, "shape %s: axis %d has dimension %d, wanted %d (trailing axes %v)",
				s, offset+ii, s.Dimensions[offset+ii], dim, want)
		}
	}
	return nil
}
