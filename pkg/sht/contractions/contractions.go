// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package contractions implements the complex tensor contractions used by spectral layers built on top of the
// transforms: a spectral field [batch, in, ...] is mixed into [batch, out, ...] by complex weights.
//
// Complex tensors are represented with a trailing axis of size 2 holding the real and imaginary parts, the same
// layout as the coefficients returned by the transforms of package sht.
//
// All functions are pure: they allocate and return a new tensor, and fail with an error wrapping
// shapes.ErrShapeMismatch if the operands are incompatible.
package contractions

import (
	"github.com/gomlx/harmonics/pkg/core/shapes"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/pkg/errors"
)

// operand describes the expected layout of an operand: its name and its axes names, for error messages.
type operand struct {
	name string
	t    *tensors.Tensor
	axes string
}

// check verifies ranks and bindings of named axes across operands, and returns the size of every axis name.
// Axis "c" is the real/imaginary axis, always of size 2.
func check(fn string, operands ...operand) (map[byte]int, error) {
	sizes := map[byte]int{'c': 2}
	for _, op := range operands {
		if op.t == nil {
			return nil, errors.Errorf("%s: operand %s is nil", fn, op.name)
		}
		if op.t.Rank() != len(op.axes) {
			return nil, errors.Wrapf(shapes.ErrShapeMismatch, "%s: operand %s must have rank %d (axes %q), got shape %s",
				fn, op.name, len(op.axes), op.axes, op.t.Shape())
		}
		for ii := range len(op.axes) {
			axis, dim := op.axes[ii], op.t.Dim(ii)
			if want, found := sizes[axis]; found && want != dim {
				return nil, errors.Wrapf(shapes.ErrShapeMismatch,
					"%s: operand %s (axes %q) has dimension %d for axis %q, expected %d", fn, op.name, op.axes, dim,
					string(axis), want)
			}
			sizes[axis] = dim
		}
	}
	return sizes, nil
}

func at(flat []float64, idx int) complex128 { return complex(flat[2*idx], flat[2*idx+1]) }

func addAt(flat []float64, idx int, v complex128) {
	flat[2*idx] += real(v)
	flat[2*idx+1] += imag(v)
}

// ContractDiagonal computes out[b, k, x, y] = Σ_i a[b, i, x, y] w[k, i, x, y].
//
// a is [batch, in, x, y, 2] and w is [out, in, x, y, 2]; the result is [batch, out, x, y, 2].
func ContractDiagonal(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ContractDiagonal", operand{"a", a, "bixyc"}, operand{"w", w, "kixyc"})
	if err != nil {
		return nil, err
	}
	nb, ni, nk, nxy := s['b'], s['i'], s['k'], s['x']*s['y']
	out := tensors.New(nb, nk, s['x'], s['y'], 2)
	af, wf, of := a.Flat(), w.Flat(), out.Flat()
	for b := range nb {
		for k := range nk {
			for i := range ni {
				for xy := range nxy {
					addAt(of, (b*nk+k)*nxy+xy, at(af, (b*ni+i)*nxy+xy)*at(wf, (k*ni+i)*nxy+xy))
				}
			}
		}
	}
	return out, nil
}

// ContractDHConv computes out[b, k, x, y] = Σ_i a[b, i, x, y] w[k, i, x]: the weights are shared by all orders y
// of a degree x, as in the convolution theorem on the sphere (Driscoll–Healy).
//
// a is [batch, in, x, y, 2] and w is [out, in, x, 2]; the result is [batch, out, x, y, 2].
func ContractDHConv(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ContractDHConv", operand{"a", a, "bixyc"}, operand{"w", w, "kixc"})
	if err != nil {
		return nil, err
	}
	nb, ni, nk, nx, ny := s['b'], s['i'], s['k'], s['x'], s['y']
	out := tensors.New(nb, nk, nx, ny, 2)
	af, wf, of := a.Flat(), w.Flat(), out.Flat()
	for b := range nb {
		for k := range nk {
			for i := range ni {
				for x := range nx {
					wv := at(wf, (k*ni+i)*nx+x)
					for y := range ny {
						addAt(of, ((b*nk+k)*nx+x)*ny+y, at(af, ((b*ni+i)*nx+x)*ny+y)*wv)
					}
				}
			}
		}
	}
	return out, nil
}

// ContractBlockDiag computes out[b, k, x, z] = Σ_{i,y} a[b, i, x, y] w[k, i, x, y, z]: a dense mixing of the
// orders within each degree.
//
// a is [batch, in, x, y, 2] and w is [out, in, x, y, z, 2]; the result is [batch, out, x, z, 2].
func ContractBlockDiag(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ContractBlockDiag", operand{"a", a, "bixyc"}, operand{"w", w, "kixyzc"})
	if err != nil {
		return nil, err
	}
	nb, ni, nk, nx, ny, nz := s['b'], s['i'], s['k'], s['x'], s['y'], s['z']
	out := tensors.New(nb, nk, nx, nz, 2)
	af, wf, of := a.Flat(), w.Flat(), out.Flat()
	for b := range nb {
		for k := range nk {
			for i := range ni {
				for x := range nx {
					for y := range ny {
						av := at(af, ((b*ni+i)*nx+x)*ny+y)
						for z := range nz {
							addAt(of, ((b*nk+k)*nx+x)*nz+z, av*at(wf, (((k*ni+i)*nx+x)*ny+y)*nz+z))
						}
					}
				}
			}
		}
	}
	return out, nil
}

// complexMul computes out[b, o, p] = Σ_i a[b, i, p] w[i, o] (+ c[b, o, p]) over flattened positions p.
func complexMul(a, w, c *tensors.Tensor, nb, ni, no, np int, outDims []int) *tensors.Tensor {
	var out *tensors.Tensor
	if c != nil {
		out = c.Clone()
	} else {
		out = tensors.New(outDims...)
	}
	af, wf, of := a.Flat(), w.Flat(), out.Flat()
	for b := range nb {
		for i := range ni {
			for o := range no {
				wv := at(wf, i*no+o)
				for p := range np {
					addAt(of, (b*no+o)*np+p, at(af, (b*ni+i)*np+p)*wv)
				}
			}
		}
	}
	return out
}

// ComplexMul1D computes out[b, o, x] = Σ_i a[b, i, x] w[i, o].
//
// a is [batch, in, x, 2] and w is [in, out, 2]; the result is [batch, out, x, 2].
func ComplexMul1D(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ComplexMul1D", operand{"a", a, "bixc"}, operand{"w", w, "ioc"})
	if err != nil {
		return nil, err
	}
	return complexMul(a, w, nil, s['b'], s['i'], s['o'], s['x'], []int{s['b'], s['o'], s['x'], 2}), nil
}

// ComplexMulAdd1D computes ComplexMul1D(a, w) + c, with c of shape [batch, out, x, 2].
func ComplexMulAdd1D(a, w, c *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ComplexMulAdd1D", operand{"a", a, "bixc"}, operand{"w", w, "ioc"}, operand{"c", c, "boxc"})
	if err != nil {
		return nil, err
	}
	return complexMul(a, w, c, s['b'], s['i'], s['o'], s['x'], nil), nil
}

// ComplexMul2D computes out[b, o, x, y] = Σ_i a[b, i, x, y] w[i, o].
//
// a is [batch, in, x, y, 2] and w is [in, out, 2]; the result is [batch, out, x, y, 2].
func ComplexMul2D(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ComplexMul2D", operand{"a", a, "bixyc"}, operand{"w", w, "ioc"})
	if err != nil {
		return nil, err
	}
	return complexMul(a, w, nil, s['b'], s['i'], s['o'], s['x']*s['y'],
		[]int{s['b'], s['o'], s['x'], s['y'], 2}), nil
}

// ComplexMulAdd2D computes ComplexMul2D(a, w) + c, with c of shape [batch, out, x, y, 2].
func ComplexMulAdd2D(a, w, c *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("ComplexMulAdd2D", operand{"a", a, "bixyc"}, operand{"w", w, "ioc"},
		operand{"c", c, "boxyc"})
	if err != nil {
		return nil, err
	}
	return complexMul(a, w, c, s['b'], s['i'], s['o'], s['x']*s['y'], nil), nil
}

// realMul computes out[b, o, p] = Σ_i a[b, i, p] w[i, o] (+ c[b, o, p]) for real tensors.
func realMul(a, w, c *tensors.Tensor, nb, ni, no, np int, outDims []int) *tensors.Tensor {
	var out *tensors.Tensor
	if c != nil {
		out = c.Clone()
	} else {
		out = tensors.New(outDims...)
	}
	af, wf, of := a.Flat(), w.Flat(), out.Flat()
	for b := range nb {
		for i := range ni {
			for o := range no {
				wv := wf[i*no+o]
				dst := of[(b*no+o)*np : (b*no+o+1)*np]
				src := af[(b*ni+i)*np : (b*ni+i+1)*np]
				for p, v := range src {
					dst[p] += v * wv
				}
			}
		}
	}
	return out
}

// RealMul2D computes out[b, o, x, y] = Σ_i a[b, i, x, y] w[i, o] for real tensors.
//
// a is [batch, in, x, y] and w is [in, out]; the result is [batch, out, x, y].
func RealMul2D(a, w *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("RealMul2D", operand{"a", a, "bixy"}, operand{"w", w, "io"})
	if err != nil {
		return nil, err
	}
	return realMul(a, w, nil, s['b'], s['i'], s['o'], s['x']*s['y'], []int{s['b'], s['o'], s['x'], s['y']}), nil
}

// RealMulAdd2D computes RealMul2D(a, w) + c, with c of shape [batch, out, x, y].
func RealMulAdd2D(a, w, c *tensors.Tensor) (*tensors.Tensor, error) {
	s, err := check("RealMulAdd2D", operand{"a", a, "bixy"}, operand{"w", w, "io"}, operand{"c", c, "boxy"})
	if err != nil {
		return nil, err
	}
	return realMul(a, w, c, s['b'], s['i'], s['o'], s['x']*s['y'], nil), nil
}
