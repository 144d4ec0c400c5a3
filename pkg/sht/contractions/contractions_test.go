// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package contractions

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/harmonics/pkg/core/shapes"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTensor(rng *rand.Rand, dims ...int) *tensors.Tensor {
	x := tensors.New(dims...)
	for ii := range x.Flat() {
		x.Flat()[ii] = rng.NormFloat64()
	}
	return x
}

// offset returns the flat offset of the multi-index idx.
func offset(t *tensors.Tensor, idx ...int) int {
	strides := t.Shape().Strides()
	var pos int
	for axis, i := range idx {
		pos += i * strides[axis]
	}
	return pos
}

// get returns the complex element at the multi-index idx (without the trailing real/imag axis).
func get(t *tensors.Tensor, idx ...int) complex128 {
	pos := offset(t, append(idx, 0)...)
	return complex(t.Flat()[pos], t.Flat()[pos+1])
}

func set(t *tensors.Tensor, v complex128, idx ...int) {
	pos := offset(t, append(idx, 0)...)
	t.Flat()[pos], t.Flat()[pos+1] = real(v), imag(v)
}

const (
	nb, ni, no, nx, ny, nz = 2, 3, 4, 5, 3, 2
	tolerance              = 1e-12
)

func TestContractDiagonal(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a, w := randomTensor(rng, nb, ni, nx, ny, 2), randomTensor(rng, no, ni, nx, ny, 2)
	want := tensors.New(nb, no, nx, ny, 2)
	for b := range nb {
		for k := range no {
			for x := range nx {
				for y := range ny {
					var sum complex128
					for i := range ni {
						sum += get(a, b, i, x, y) * get(w, k, i, x, y)
					}
					set(want, sum, b, k, x, y)
				}
			}
		}
	}
	got := must.M1(ContractDiagonal(a, w))
	require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
	assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)
}

func TestContractDHConv(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	a, w := randomTensor(rng, nb, ni, nx, ny, 2), randomTensor(rng, no, ni, nx, 2)
	want := tensors.New(nb, no, nx, ny, 2)
	for b := range nb {
		for k := range no {
			for x := range nx {
				for y := range ny {
					var sum complex128
					for i := range ni {
						sum += get(a, b, i, x, y) * get(w, k, i, x)
					}
					set(want, sum, b, k, x, y)
				}
			}
		}
	}
	got := must.M1(ContractDHConv(a, w))
	require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
	assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)
}

func TestContractBlockDiag(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	a, w := randomTensor(rng, nb, ni, nx, ny, 2), randomTensor(rng, no, ni, nx, ny, nz, 2)
	want := tensors.New(nb, no, nx, nz, 2)
	for b := range nb {
		for k := range no {
			for x := range nx {
				for z := range nz {
					var sum complex128
					for i := range ni {
						for y := range ny {
							sum += get(a, b, i, x, y) * get(w, k, i, x, y, z)
						}
					}
					set(want, sum, b, k, x, z)
				}
			}
		}
	}
	got := must.M1(ContractBlockDiag(a, w))
	require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
	assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)
}

func TestComplexMul(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	w := randomTensor(rng, ni, no, 2)

	t.Run("1D", func(t *testing.T) {
		a, c := randomTensor(rng, nb, ni, nx, 2), randomTensor(rng, nb, no, nx, 2)
		want := tensors.New(nb, no, nx, 2)
		for b := range nb {
			for o := range no {
				for x := range nx {
					var sum complex128
					for i := range ni {
						sum += get(a, b, i, x) * get(w, i, o)
					}
					set(want, sum, b, o, x)
				}
			}
		}
		got := must.M1(ComplexMul1D(a, w))
		require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
		assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)

		withBias := must.M1(ComplexMulAdd1D(a, w, c))
		for ii := range want.Flat() {
			want.Flat()[ii] += c.Flat()[ii]
		}
		assert.InDeltaSlice(t, want.Flat(), withBias.Flat(), tolerance)
	})

	t.Run("2D", func(t *testing.T) {
		a, c := randomTensor(rng, nb, ni, nx, ny, 2), randomTensor(rng, nb, no, nx, ny, 2)
		want := tensors.New(nb, no, nx, ny, 2)
		for b := range nb {
			for o := range no {
				for x := range nx {
					for y := range ny {
						var sum complex128
						for i := range ni {
							sum += get(a, b, i, x, y) * get(w, i, o)
						}
						set(want, sum, b, o, x, y)
					}
				}
			}
		}
		got := must.M1(ComplexMul2D(a, w))
		require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
		assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)

		cFlat := append([]float64{}, c.Flat()...)
		withBias := must.M1(ComplexMulAdd2D(a, w, c))
		for ii := range want.Flat() {
			want.Flat()[ii] += c.Flat()[ii]
		}
		assert.InDeltaSlice(t, want.Flat(), withBias.Flat(), tolerance)
		assert.Equal(t, cFlat, c.Flat(), "the bias operand must not be modified")
	})
}

func TestRealMul2D(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	a, w, c := randomTensor(rng, nb, ni, nx, ny), randomTensor(rng, ni, no), randomTensor(rng, nb, no, nx, ny)
	want := tensors.New(nb, no, nx, ny)
	for b := range nb {
		for o := range no {
			for x := range nx {
				for y := range ny {
					var sum float64
					for i := range ni {
						sum += a.Flat()[offset(a, b, i, x, y)] * w.Flat()[offset(w, i, o)]
					}
					want.Flat()[offset(want, b, o, x, y)] = sum
				}
			}
		}
	}
	got := must.M1(RealMul2D(a, w))
	require.Equal(t, want.Shape().Dimensions, got.Shape().Dimensions)
	assert.InDeltaSlice(t, want.Flat(), got.Flat(), tolerance)

	withBias := must.M1(RealMulAdd2D(a, w, c))
	for ii := range want.Flat() {
		want.Flat()[ii] += c.Flat()[ii]
	}
	assert.InDeltaSlice(t, want.Flat(), withBias.Flat(), tolerance)
}

func TestShapeMismatch(t *testing.T) {
	a := tensors.New(nb, ni, nx, ny, 2)
	tests := []struct {
		name string
		fn   func() (*tensors.Tensor, error)
	}{
		{"diagonal in", func() (*tensors.Tensor, error) { return ContractDiagonal(a, tensors.New(no, ni+1, nx, ny, 2)) }},
		{"diagonal rank", func() (*tensors.Tensor, error) { return ContractDiagonal(a, tensors.New(no, ni, nx, 2)) }},
		{"dhconv degrees", func() (*tensors.Tensor, error) { return ContractDHConv(a, tensors.New(no, ni, nx+1, 2)) }},
		{"blockdiag orders", func() (*tensors.Tensor, error) {
			return ContractBlockDiag(a, tensors.New(no, ni, nx, ny+1, nz, 2))
		}},
		{"complex not 2", func() (*tensors.Tensor, error) { return ComplexMul2D(tensors.New(nb, ni, nx, ny, 3), tensors.New(ni, no, 3)) }},
		{"mul1d rank", func() (*tensors.Tensor, error) { return ComplexMul1D(a, tensors.New(ni, no, 2)) }},
		{"muladd bias", func() (*tensors.Tensor, error) {
			return ComplexMulAdd2D(a, tensors.New(ni, no, 2), tensors.New(nb, no+1, nx, ny, 2))
		}},
		{"real", func() (*tensors.Tensor, error) { return RealMul2D(tensors.New(nb, ni, nx, ny), tensors.New(ni+1, no)) }},
		{"real bias", func() (*tensors.Tensor, error) {
			return RealMulAdd2D(tensors.New(nb, ni, nx, ny), tensors.New(ni, no), tensors.New(nb, no, nx, ny+1))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, shapes.ErrShapeMismatch), "got %v", err)
		})
	}

	_, err := ContractDiagonal(nil, a)
	assert.Error(t, err)
}
