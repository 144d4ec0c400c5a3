// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeIota(dims ...int) *Tensor {
	t := New(dims...)
	for ii := range t.Flat() {
		t.Flat()[ii] = float64(ii)
	}
	return t
}

func TestNewAndFromFlat(t *testing.T) {
	x := New(2, 3)
	assert.Equal(t, []int{2, 3}, x.Shape().Dimensions)
	assert.Equal(t, make([]float64, 6), x.Flat())

	y := FromFlat([]float64{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, 2, y.Dim(-1))
	require.Panics(t, func() { _ = FromFlat([]float64{1, 2, 3}, 2, 2) })

	r := y.Reshape(4)
	r.Flat()[0] = 7
	assert.Equal(t, 7.0, y.Flat()[0], "Reshape must share storage")
	c := y.Clone()
	c.Flat()[0] = 11
	assert.Equal(t, 7.0, y.Flat()[0], "Clone must not share storage")
}

func TestSliceAxis(t *testing.T) {
	x := makeIota(2, 3, 4)
	s := x.SliceAxis(1, 1, 3)
	assert.Equal(t, []int{2, 2, 4}, s.Shape().Dimensions)
	assert.Equal(t, []float64{4, 5, 6, 7, 8, 9, 10, 11, 16, 17, 18, 19, 20, 21, 22, 23}, s.Flat())

	s = x.SliceAxis(-1, 3, 4)
	assert.Equal(t, []float64{3, 7, 11, 15, 19, 23}, s.Flat())

	s = x.SliceAxis(0, 1, 1)
	assert.Equal(t, 0, s.Size())

	require.Panics(t, func() { _ = x.SliceAxis(1, 2, 4) })
	require.Panics(t, func() { _ = x.SliceAxis(3, 0, 1) })
}

func TestConcatenate(t *testing.T) {
	x := makeIota(2, 3, 4)
	for axis := range 3 {
		dim := x.Dim(axis)
		parts := []*Tensor{x.SliceAxis(axis, 0, 1), x.SliceAxis(axis, 1, dim)}
		got := Concatenate(parts, axis)
		assert.Equal(t, x.Flat(), got.Flat(), "axis=%d", axis)
		assert.True(t, x.Shape().Equal(got.Shape()))
	}
	require.Panics(t, func() { _ = Concatenate(nil, 0) })
	require.Panics(t, func() { _ = Concatenate([]*Tensor{New(2, 3), New(3, 3)}, 1) })
}

func TestMeanRelativeError(t *testing.T) {
	want := FromFlat([]float64{3, 4, 0, 1}, 2, 2)
	got := FromFlat([]float64{3, 4, 0, 1}, 2, 2)
	assert.Equal(t, 0.0, MeanRelativeError(want, got, 1))

	got = FromFlat([]float64{3, 4.5, 0, 1}, 2, 2)
	// Row 0: |0.5| / 5 = 0.1; row 1: exact.
	assert.InDelta(t, 0.05, MeanRelativeError(want, got, 1), 1e-15)
	// All in one: 0.5 / sqrt(26).
	assert.InDelta(t, 0.5/math.Sqrt(26), MeanRelativeError(want, got, 2), 1e-15)
	assert.Equal(t, 4.5, got.MaxAbs())
}
