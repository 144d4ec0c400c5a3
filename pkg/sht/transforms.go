// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sht

import (
	"slices"

	"github.com/gomlx/harmonics/internal/kernels"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/pkg/errors"
)

// leadingAxes validates the trailing axes of t and returns the dimensions of the axes before them.
func leadingAxes(name string, t *tensors.Tensor, trailing ...int) ([]int, error) {
	if t == nil {
		return nil, errors.Errorf("%s: nil tensor", name)
	}
	if err := t.Shape().CheckTrailing(trailing...); err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return t.Shape().Leading(len(trailing)), nil
}

func withTrailing(leading []int, trailing ...int) []int {
	return append(slices.Clone(leading), trailing...)
}

// RealSHT is the forward (analysis) transform of real scalar fields: [..., nlat, nlon] to [..., lmax+1, mmax+1, 2].
type RealSHT struct{ plan *Plan }

// RealSHT returns the forward scalar transform of the plan.
func (p *Plan) RealSHT() *RealSHT { return &RealSHT{plan: p} }

// Plan returns the plan of the transform.
func (t *RealSHT) Plan() *Plan { return t.plan }

// Forward computes a_lm = √(2π) Σ_i w_i P̄_lm(x_i) F_m(θ_i), with F_m the Fourier coefficients along longitude.
//
// Content above the truncation is discarded (aliased) silently.
func (t *RealSHT) Forward(x *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("RealSHT.Forward", x, c.NumLat, c.NumLon)
	if err != nil {
		return nil, err
	}
	nb := x.Size() / (c.NumLat * c.NumLon)
	spec := p.fourier.Analyze(p.pool, x.Reshape(nb, c.NumLat, c.NumLon), 0, p.NumOrders())
	out := kernels.Integrate(p.pool, spec, 0, p.weighted, AnalysisScale, 0, p.NumDegrees())
	return out.Reshape(withTrailing(leading, p.NumDegrees(), p.NumOrders(), 2)...), nil
}

// Backward is the adjoint of Forward: it maps the gradient with respect to the coefficients,
// [..., lmax+1, mmax+1, 2], to the gradient with respect to the field, [..., nlat, nlon].
func (t *RealSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("RealSHT.Backward", grad, p.NumDegrees(), p.NumOrders(), 2)
	if err != nil {
		return nil, err
	}
	nb := grad.Size() / (p.NumDegrees() * p.NumOrders() * 2)
	g := grad.Reshape(nb, p.NumDegrees(), p.NumOrders(), 2)
	spec := kernels.Expand(p.pool, g, 0, p.weighted, AnalysisScale, 0, c.NumLat)
	out := p.fourier.AnalyzeAdjoint(p.pool, spec)
	return out.Reshape(withTrailing(leading, c.NumLat, c.NumLon)...), nil
}

// InverseRealSHT is the inverse (synthesis) transform of real scalar fields: [..., lmax+1, mmax+1, 2] to
// [..., nlat, nlon].
type InverseRealSHT struct{ plan *Plan }

// InverseRealSHT returns the inverse scalar transform of the plan.
func (p *Plan) InverseRealSHT() *InverseRealSHT { return &InverseRealSHT{plan: p} }

// Plan returns the plan of the transform.
func (t *InverseRealSHT) Plan() *Plan { return t.plan }

// Forward evaluates f(θ_i, φ_j) = Σ_m c_m Re(F_m(θ_i) e^{imφ_j}), with F_m = (1/√(2π)) Σ_l a_lm P̄_lm(x_i) and
// c_m = 1 for m = 0 and for the Nyquist frequency, 2 otherwise.
//
// Coefficients with l < m are ignored, and so are the imaginary parts of the orders 0 and nlon/2.
func (t *InverseRealSHT) Forward(coeffs *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("InverseRealSHT.Forward", coeffs, p.NumDegrees(), p.NumOrders(), 2)
	if err != nil {
		return nil, err
	}
	nb := coeffs.Size() / (p.NumDegrees() * p.NumOrders() * 2)
	a := coeffs.Reshape(nb, p.NumDegrees(), p.NumOrders(), 2)
	spec := kernels.Expand(p.pool, a, 0, p.basis, SynthesisScale, 0, c.NumLat)
	out := p.fourier.Synthesize(p.pool, spec)
	return out.Reshape(withTrailing(leading, c.NumLat, c.NumLon)...), nil
}

// Backward is the adjoint of Forward: [..., nlat, nlon] to [..., lmax+1, mmax+1, 2].
func (t *InverseRealSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("InverseRealSHT.Backward", grad, c.NumLat, c.NumLon)
	if err != nil {
		return nil, err
	}
	nb := grad.Size() / (c.NumLat * c.NumLon)
	spec := p.fourier.SynthesizeAdjoint(p.pool, grad.Reshape(nb, c.NumLat, c.NumLon), 0, p.NumOrders())
	out := kernels.Integrate(p.pool, spec, 0, p.basis, SynthesisScale, 0, p.NumDegrees())
	return out.Reshape(withTrailing(leading, p.NumDegrees(), p.NumOrders(), 2)...), nil
}

// RealVectorSHT is the forward transform of real tangent vector fields: [..., 2, nlat, nlon] (colatitude and
// longitude components) to [..., 2, lmax+1, mmax+1, 2] (spheroidal and toroidal coefficients).
type RealVectorSHT struct {
	plan  *Plan
	basis *VectorBasis
}

// RealVectorSHT returns the forward vector transform of the plan. It builds the vector tables if needed.
func (p *Plan) RealVectorSHT() (*RealVectorSHT, error) {
	basis, err := p.VectorBasis()
	if err != nil {
		return nil, err
	}
	return &RealVectorSHT{plan: p, basis: basis}, nil
}

// Plan returns the plan of the transform.
func (t *RealVectorSHT) Plan() *Plan { return t.plan }

// Forward computes the spheroidal and toroidal coefficients of the field:
//
//	s_lm = √(2π) Σ_i w_i (D_lm F^θ_m - i Q_lm F^φ_m)
//	t_lm = √(2π) Σ_i w_i (i Q_lm F^θ_m + D_lm F^φ_m)
//
// with D and Q the polar and azimuthal tables. Coefficients of degree 0 are always 0, and so are those of the
// Nyquist order, see Plan.HasNyquistOrder.
func (t *RealVectorSHT) Forward(x *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("RealVectorSHT.Forward", x, 2, c.NumLat, c.NumLon)
	if err != nil {
		return nil, err
	}
	nb := x.Size() / (c.NumLat * c.NumLon)
	spec := p.fourier.Analyze(p.pool, x.Reshape(nb, c.NumLat, c.NumLon), 0, p.NumOrders())
	out := kernels.IntegrateVector(p.pool, spec, 0, t.basis.WeightedPolar, t.basis.WeightedAzimuthal,
		AnalysisScale, 0, p.NumDegrees())
	return out.Reshape(withTrailing(leading, 2, p.NumDegrees(), p.NumOrders(), 2)...), nil
}

// Backward is the adjoint of Forward: [..., 2, lmax+1, mmax+1, 2] to [..., 2, nlat, nlon].
func (t *RealVectorSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("RealVectorSHT.Backward", grad, 2, p.NumDegrees(), p.NumOrders(), 2)
	if err != nil {
		return nil, err
	}
	nb := grad.Size() / (p.NumDegrees() * p.NumOrders() * 2)
	g := grad.Reshape(nb, p.NumDegrees(), p.NumOrders(), 2)
	spec := kernels.ExpandVector(p.pool, g, 0, t.basis.WeightedPolar, t.basis.WeightedAzimuthal,
		AnalysisScale, 0, c.NumLat)
	out := p.fourier.AnalyzeAdjoint(p.pool, spec)
	return out.Reshape(withTrailing(leading, 2, c.NumLat, c.NumLon)...), nil
}

// InverseRealVectorSHT is the inverse transform of real tangent vector fields: [..., 2, lmax+1, mmax+1, 2] to
// [..., 2, nlat, nlon].
type InverseRealVectorSHT struct {
	plan  *Plan
	basis *VectorBasis
}

// InverseRealVectorSHT returns the inverse vector transform of the plan. It builds the vector tables if needed.
func (p *Plan) InverseRealVectorSHT() (*InverseRealVectorSHT, error) {
	basis, err := p.VectorBasis()
	if err != nil {
		return nil, err
	}
	return &InverseRealVectorSHT{plan: p, basis: basis}, nil
}

// Plan returns the plan of the transform.
func (t *InverseRealVectorSHT) Plan() *Plan { return t.plan }

// Forward synthesizes the field of the spheroidal and toroidal coefficients:
//
//	V^θ_m = (1/√(2π)) Σ_l (D_lm s_lm - i Q_lm t_lm)
//	V^φ_m = (1/√(2π)) Σ_l (i Q_lm s_lm + D_lm t_lm)
//
// followed by the inverse real FFT of both components.
func (t *InverseRealVectorSHT) Forward(coeffs *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("InverseRealVectorSHT.Forward", coeffs, 2, p.NumDegrees(), p.NumOrders(), 2)
	if err != nil {
		return nil, err
	}
	nb := coeffs.Size() / (p.NumDegrees() * p.NumOrders() * 2)
	a := coeffs.Reshape(nb, p.NumDegrees(), p.NumOrders(), 2)
	spec := kernels.ExpandVector(p.pool, a, 0, t.basis.Polar, t.basis.Azimuthal, SynthesisScale, 0, c.NumLat)
	out := p.fourier.Synthesize(p.pool, spec)
	return out.Reshape(withTrailing(leading, 2, c.NumLat, c.NumLon)...), nil
}

// Backward is the adjoint of Forward: [..., 2, nlat, nlon] to [..., 2, lmax+1, mmax+1, 2].
func (t *InverseRealVectorSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	p, c := t.plan, t.plan.config
	leading, err := leadingAxes("InverseRealVectorSHT.Backward", grad, 2, c.NumLat, c.NumLon)
	if err != nil {
		return nil, err
	}
	nb := grad.Size() / (c.NumLat * c.NumLon)
	spec := p.fourier.SynthesizeAdjoint(p.pool, grad.Reshape(nb, c.NumLat, c.NumLon), 0, p.NumOrders())
	out := kernels.IntegrateVector(p.pool, spec, 0, t.basis.Polar, t.basis.Azimuthal, SynthesisScale,
		0, p.NumDegrees())
	return out.Reshape(withTrailing(leading, 2, p.NumDegrees(), p.NumOrders(), 2)...), nil
}
