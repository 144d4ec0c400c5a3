// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distsht

import (
	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/sht"
)

var vectorComponents = []int{2}

// RealSHT is the distributed version of sht.RealSHT: local spatial shards [..., latc, lonc] to local spectral
// shards [..., lc, mc, 2].
type RealSHT struct {
	*Layout
}

// NewRealSHT creates the distributed forward scalar transform of this rank.
// A nil grid is the same as distributed.SingleProcess().
//
// It fails with distributed.ErrAxisTooSmall if an axis has fewer elements than ranks along it.
func NewRealSHT(plan *sht.Plan, grid *distributed.ProcessGrid) (*RealSHT, error) {
	layout, err := newLayout("distsht.RealSHT", plan, grid)
	if err != nil {
		return nil, err
	}
	return &RealSHT{Layout: layout}, nil
}

// Forward transforms the local spatial shard. All ranks of the grid must call it collectively.
func (t *RealSHT) Forward(x *tensors.Tensor) (*tensors.Tensor, error) {
	return t.analysis("distsht.RealSHT.Forward", x, nil, t.plan.Fourier().Analyze,
		t.scalarIntegrate(sht.AnalysisScale, true))
}

// Backward is the adjoint of Forward: local spectral gradient shard to local spatial gradient shard.
func (t *RealSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	return t.synthesis("distsht.RealSHT.Backward", grad, nil, t.scalarExpand(sht.AnalysisScale, true),
		t.plan.Fourier().AnalyzeAdjoint)
}

// InverseRealSHT is the distributed version of sht.InverseRealSHT: local spectral shards [..., lc, mc, 2] to
// local spatial shards [..., latc, lonc].
type InverseRealSHT struct {
	*Layout
}

// NewInverseRealSHT creates the distributed inverse scalar transform of this rank.
func NewInverseRealSHT(plan *sht.Plan, grid *distributed.ProcessGrid) (*InverseRealSHT, error) {
	layout, err := newLayout("distsht.InverseRealSHT", plan, grid)
	if err != nil {
		return nil, err
	}
	return &InverseRealSHT{Layout: layout}, nil
}

// Forward synthesizes the local spatial shard. All ranks of the grid must call it collectively.
func (t *InverseRealSHT) Forward(coeffs *tensors.Tensor) (*tensors.Tensor, error) {
	return t.synthesis("distsht.InverseRealSHT.Forward", coeffs, nil, t.scalarExpand(sht.SynthesisScale, false),
		t.plan.Fourier().Synthesize)
}

// Backward is the adjoint of Forward: local spatial gradient shard to local spectral gradient shard.
func (t *InverseRealSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	return t.analysis("distsht.InverseRealSHT.Backward", grad, nil, t.plan.Fourier().SynthesizeAdjoint,
		t.scalarIntegrate(sht.SynthesisScale, false))
}

// RealVectorSHT is the distributed version of sht.RealVectorSHT: local shards [..., 2, latc, lonc] to
// [..., 2, lc, mc, 2].
type RealVectorSHT struct {
	*Layout
	basis *sht.VectorBasis
}

// NewRealVectorSHT creates the distributed forward vector transform of this rank.
func NewRealVectorSHT(plan *sht.Plan, grid *distributed.ProcessGrid) (*RealVectorSHT, error) {
	layout, err := newLayout("distsht.RealVectorSHT", plan, grid)
	if err != nil {
		return nil, err
	}
	basis, err := plan.VectorBasis()
	if err != nil {
		return nil, err
	}
	return &RealVectorSHT{Layout: layout, basis: basis}, nil
}

// Forward transforms the local spatial shard. All ranks of the grid must call it collectively.
func (t *RealVectorSHT) Forward(x *tensors.Tensor) (*tensors.Tensor, error) {
	return t.analysis("distsht.RealVectorSHT.Forward", x, vectorComponents, t.plan.Fourier().Analyze,
		vectorIntegrate(t.basis, sht.AnalysisScale, true))
}

// Backward is the adjoint of Forward.
func (t *RealVectorSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	return t.synthesis("distsht.RealVectorSHT.Backward", grad, vectorComponents,
		vectorExpand(t.basis, sht.AnalysisScale, true), t.plan.Fourier().AnalyzeAdjoint)
}

// InverseRealVectorSHT is the distributed version of sht.InverseRealVectorSHT: local shards [..., 2, lc, mc, 2]
// to [..., 2, latc, lonc].
type InverseRealVectorSHT struct {
	*Layout
	basis *sht.VectorBasis
}

// NewInverseRealVectorSHT creates the distributed inverse vector transform of this rank.
func NewInverseRealVectorSHT(plan *sht.Plan, grid *distributed.ProcessGrid) (*InverseRealVectorSHT, error) {
	layout, err := newLayout("distsht.InverseRealVectorSHT", plan, grid)
	if err != nil {
		return nil, err
	}
	basis, err := plan.VectorBasis()
	if err != nil {
		return nil, err
	}
	return &InverseRealVectorSHT{Layout: layout, basis: basis}, nil
}

// Forward synthesizes the local spatial shard. All ranks of the grid must call it collectively.
func (t *InverseRealVectorSHT) Forward(coeffs *tensors.Tensor) (*tensors.Tensor, error) {
	return t.synthesis("distsht.InverseRealVectorSHT.Forward", coeffs, vectorComponents,
		vectorExpand(t.basis, sht.SynthesisScale, false), t.plan.Fourier().Synthesize)
}

// Backward is the adjoint of Forward.
func (t *InverseRealVectorSHT) Backward(grad *tensors.Tensor) (*tensors.Tensor, error) {
	return t.analysis("distsht.InverseRealVectorSHT.Backward", grad, vectorComponents,
		t.plan.Fourier().SynthesizeAdjoint, vectorIntegrate(t.basis, sht.SynthesisScale, false))
}
