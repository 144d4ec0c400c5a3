// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a `Tensor`, a dense multidimensional array of float64 values stored in row-major
// order.
//
// Tensors are the field tensors consumed and produced by the spherical harmonic transforms: spatial fields shaped
// `[..., nlat, nlon]` and spectral fields shaped `[..., lmax+1, mmax+1, 2]`, where the last axis holds the real
// and imaginary parts.
//
// Ways to construct a Tensor:
//
//   - New(dimensions ...int): creates a tensor with the given dimensions and zero values.
//   - FromFlat(data []float64, dimensions ...int): wraps the flat data (not copied) with the given dimensions.
//     Example:
//
//     t := FromFlat([]float64{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
// A Tensor is owned by whoever created it: the transforms never retain references to their inputs or outputs.
package tensors

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/pkg/core/shapes"
	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense row-major multidimensional array of float64.
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// New returns a zero-initialized Tensor with the given dimensions.
func New(dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	return &Tensor{shape: shape, flat: make([]float64, shape.Size())}
}

// FromShape returns a zero-initialized Tensor with the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	return New(shape.Dimensions...)
}

// FromFlat returns a Tensor that uses the given flat data as storage -- it is not copied.
//
// It panics if len(data) doesn't match the size of the dimensions.
func FromFlat(data []float64, dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlat: len(data)=%d doesn't match dimensions %v (size %d)",
			len(data), dimensions, shape.Size())
	}
	return &Tensor{shape: shape, flat: data}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Dim returns the dimension of the given axis, negative axes are counted from the end.
func (t *Tensor) Dim(axis int) int { return t.shape.Dim(axis) }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.flat) }

// Flat returns the underlying flat storage. Changes to it are reflected in the tensor.
func (t *Tensor) Flat() []float64 { return t.flat }

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	flat := make([]float64, len(t.flat))
	copy(flat, t.flat)
	return &Tensor{shape: t.shape.Clone(), flat: flat}
}

// Reshape returns a tensor sharing the same storage with new dimensions. The total size must be preserved.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	return FromFlat(t.flat, dimensions...)
}

// String implements fmt.Stringer. It only prints the shape, values can be too many.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%s", t.shape)
}

// splitAround returns the product of the dimensions before the axis (outer) and after it (inner).
func splitAround(shape shapes.Shape, axis int) (outer, inner int) {
	outer, inner = 1, 1
	for ii, dim := range shape.Dimensions {
		if ii < axis {
			outer *= dim
		} else if ii > axis {
			inner *= dim
		}
	}
	return
}

// SliceAxis returns a copy of the [start, end) range of the given axis.
// A negative axis is counted from the end.
func (t *Tensor) SliceAxis(axis, start, end int) *Tensor {
	axis = t.shape.AdjustAxis(axis)
	dim := t.shape.Dimensions[axis]
	if start < 0 || end > dim || start > end {
		exceptions.Panicf("SliceAxis(axis=%d, %d, %d) out of range for shape %s", axis, start, end, t.shape)
	}
	outer, inner := splitAround(t.shape, axis)
	out := FromShape(t.shape.WithDim(axis, end-start))
	blockIn := dim * inner
	blockOut := (end - start) * inner
	for ii := range outer {
		copy(out.flat[ii*blockOut:(ii+1)*blockOut], t.flat[ii*blockIn+start*inner:ii*blockIn+end*inner])
	}
	return out
}

// Concatenate tensors on the given axis. A negative axis will be counted from
// the end -- so `axis==-1` means the last axis.
//
// All dimensions except the concatenated one must match, otherwise it panics.
func Concatenate(operands []*Tensor, axis int) *Tensor {
	if len(operands) == 0 {
		exceptions.Panicf("cannot Concatenate with 0 operands")
	}
	baseShape := operands[0].shape
	axis = baseShape.AdjustAxis(axis)
	total := 0
	for ii, operand := range operands {
		if operand.Rank() != baseShape.Rank() {
			exceptions.Panicf("Concatenate operand #%d has rank %d, operand 0 has rank %d",
				ii, operand.Rank(), baseShape.Rank())
		}
		for axisIdx, dim := range operand.shape.Dimensions {
			if axisIdx != axis && dim != baseShape.Dimensions[axisIdx] {
				exceptions.Panicf(
					"Concatenate(axis=%d) operand #%d has incompatible shape %s with operand 0's shape %s "+
						"-- except for axis %d, the dimensions on all other axes must match",
					axis, ii, operand.shape, baseShape, axis)
			}
		}
		total += operand.shape.Dimensions[axis]
	}
	out := FromShape(baseShape.WithDim(axis, total))
	outer, inner := splitAround(baseShape, axis)
	blockOut := total * inner
	offset := 0
	for _, operand := range operands {
		block := operand.shape.Dimensions[axis] * inner
		for ii := range outer {
			copy(out.flat[ii*blockOut+offset:ii*blockOut+offset+block], operand.flat[ii*block:(ii+1)*block])
		}
		offset += block
	}
	return out
}

// MeanRelativeError returns the relative Frobenius-norm error of got with respect to want, computed over the last
// numAxes axes and averaged over all leading axes.
//
// Leading entries whose reference norm is zero contribute the absolute error instead.
func MeanRelativeError(want, got *Tensor, numAxes int) float64 {
	if !want.shape.Equal(got.shape) {
		exceptions.Panicf("MeanRelativeError: shapes %s and %s differ", want.shape, got.shape)
	}
	inner := 1
	for _, dim := range want.shape.Dimensions[want.Rank()-numAxes:] {
		inner *= dim
	}
	if inner == 0 {
		return 0
	}
	outer := want.Size() / inner
	var sum float64
	for ii := range outer {
		w, g := want.flat[ii*inner:(ii+1)*inner], got.flat[ii*inner:(ii+1)*inner]
		diff := floats.Distance(w, g, 2)
		norm := floats.Norm(w, 2)
		if norm == 0 {
			sum += diff
		} else {
			sum += diff / norm
		}
	}
	if outer == 0 {
		return 0
	}
	return sum / float64(outer)
}

// MaxAbs returns the largest absolute value in the tensor, or 0 for an empty tensor.
func (t *Tensor) MaxAbs() float64 {
	maxAbs := 0.0
	for _, v := range t.flat {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	return maxAbs
}
