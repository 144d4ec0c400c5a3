// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	shape0 := Make()
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())

	shape1 := Make(4, 3, 2)
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, "[4 3 2]", shape1.String())

	require.Panics(t, func() { _ = Make(2, -1) })
}

func TestDim(t *testing.T) {
	shape := Make(4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 3, shape.Dim(1))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 3, shape.Dim(-2))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestStrides(t *testing.T) {
	assert.Equal(t, []int{6, 2, 1}, Make(4, 3, 2).Strides())
	assert.Equal(t, []int{1}, Make(7).Strides())
	assert.Nil(t, Make().Strides())
}

func TestWithDimAndLeading(t *testing.T) {
	shape := Make(5, 2, 16, 32)
	shape2 := shape.WithDim(-1, 8)
	assert.Equal(t, []int{5, 2, 16, 8}, shape2.Dimensions)
	assert.Equal(t, []int{5, 2, 16, 32}, shape.Dimensions, "WithDim must not change the original shape")
	assert.Equal(t, []int{5, 2}, shape.Leading(2))
	assert.Equal(t, []int{}, shape.Leading(4))
	require.Panics(t, func() { _ = shape.Leading(5) })
	assert.True(t, shape.Equal(shape.Clone()))
	assert.False(t, shape.Equal(shape2))
}

func TestCheckTrailing(t *testing.T) {
	shape := Make(3, 16, 32)
	require.NoError(t, shape.CheckTrailing(16, 32))
	require.NoError(t, shape.CheckTrailing(-1, 32))
	require.NoError(t, shape.CheckTrailing(3, -1, 32))

	err := shape.CheckTrailing(16, 31)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	err = shape.CheckTrailing(1, 3, 16, 32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
