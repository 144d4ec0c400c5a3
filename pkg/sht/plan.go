// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sht implements the Spherical Harmonic Transforms of real scalar and vector fields sampled on
// latitude-longitude grids.
//
// A Plan holds the quadrature and the basis tables for one Config, and creates the transforms:
//
//   - RealSHT (analysis): spatial [..., nlat, nlon] to spectral [..., lmax+1, mmax+1, 2].
//   - InverseRealSHT (synthesis): the mirror of RealSHT.
//   - RealVectorSHT and InverseRealVectorSHT: the same for vector fields, with a component axis of size 2 before
//     the grid axes: [..., 2, nlat, nlon] (colatitude and longitude components) and [..., 2, lmax+1, mmax+1, 2]
//     (spheroidal and toroidal coefficients).
//
// The last axis of spectral tensors holds the real and imaginary parts. Coefficients with l < m are always 0.
//
// Each transform has a Forward method and a Backward method, the explicit adjoint (transpose) of Forward, used to
// back-propagate gradients.
//
// Example:
//
//	plan, err := sht.NewPlan(sht.NewConfig(64, 128).WithGrid(quadrature.LegendreGauss))
//	if err != nil { ... }
//	coeffs, err := plan.RealSHT().Forward(field)
//
// Plans and transforms are immutable and safe for concurrent use.
package sht

import (
	"math"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/harmonics/internal/kernels"
	"github.com/gomlx/harmonics/internal/workerspool"
	"github.com/gomlx/harmonics/pkg/sht/legendre"
	"github.com/gomlx/harmonics/pkg/sht/quadrature"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// AnalysisScale multiplies the latitude quadrature of forward transforms: √(2π).
	AnalysisScale = math.Sqrt(2 * math.Pi)

	// SynthesisScale multiplies the Legendre expansion of inverse transforms: 1/√(2π).
	SynthesisScale = 1 / AnalysisScale
)

func defaultParallelism() int { return runtime.NumCPU() }

// Plan holds the precomputed tables shared by the transforms of one configuration.
type Plan struct {
	config   Config
	rule     *quadrature.Rule
	basis    *legendre.Table
	weighted *legendre.Table
	fourier  *kernels.Fourier
	pool     *workerspool.Pool

	vectorOnce sync.Once
	vector     *VectorBasis
	vectorErr  error
}

// VectorBasis holds the tables of the vector transforms.
type VectorBasis struct {
	// Polar and Azimuthal are the tables D and Q, see legendre.BuildVector.
	Polar, Azimuthal *legendre.Table

	// WeightedPolar and WeightedAzimuthal have the quadrature weights folded in.
	WeightedPolar, WeightedAzimuthal *legendre.Table
}

// NewPlan resolves the configuration and builds the quadrature and the scalar basis tables.
// The vector tables are built on first use.
func NewPlan(config Config) (*Plan, error) {
	config, err := config.Resolve()
	if err != nil {
		return nil, err
	}
	p := &Plan{config: config}
	p.rule, err = quadrature.New(config.NumLat, config.Grid)
	if err != nil {
		return nil, err
	}
	p.basis, err = legendre.Build(p.rule, config.LMax, config.MMax)
	if err != nil {
		return nil, errors.WithMessagef(err, "building basis for %s", config)
	}
	p.weighted = p.basis.Weighted(p.rule.Weights)
	p.fourier = kernels.NewFourier(config.NumLon)
	p.pool = workerspool.New()
	p.pool.SetMaxParallelism(config.Parallelism)
	klog.V(1).Infof("sht.NewPlan(%s): %d basis rows, tables using %s", config, p.basis.NumRows(),
		humanize.IBytes(uint64(2*8*p.basis.NumRows()*config.NumLat)))
	return p, nil
}

// Config returns the resolved configuration: the truncation is always set.
func (p *Plan) Config() Config { return p.config }

// Rule returns the latitude quadrature.
func (p *Plan) Rule() *quadrature.Rule { return p.rule }

// Basis returns the table of P̄_l^m at the latitude nodes.
func (p *Plan) Basis() *legendre.Table { return p.basis }

// WeightedBasis returns the table of w_i P̄_l^m(x_i) used by the forward transforms.
func (p *Plan) WeightedBasis() *legendre.Table { return p.weighted }

// HasNyquistOrder returns whether MMax is the Nyquist order NumLon/2 of an even number of longitudes.
// The vector transforms drop that order: their coefficients for it are always 0.
func (p *Plan) HasNyquistOrder() bool {
	return 2*p.config.MMax == p.config.NumLon
}

// VectorBasis returns the tables of the vector transforms, building them on the first call.
func (p *Plan) VectorBasis() (*VectorBasis, error) {
	p.vectorOnce.Do(func() {
		polar, azimuthal, err := legendre.BuildVector(p.rule, p.config.LMax, p.config.MMax)
		if err != nil {
			p.vectorErr = errors.WithMessagef(err, "building vector basis for %s", p.config)
			return
		}
		if p.HasNyquistOrder() {
			// The coupling terms of the Nyquist order land in its imaginary part, which the real FFT drops.
			polar, azimuthal = polar.WithoutOrder(p.config.MMax), azimuthal.WithoutOrder(p.config.MMax)
		}
		p.vector = &VectorBasis{
			Polar:             polar,
			Azimuthal:         azimuthal,
			WeightedPolar:     polar.Weighted(p.rule.Weights),
			WeightedAzimuthal: azimuthal.Weighted(p.rule.Weights),
		}
		klog.V(1).Infof("sht: built vector basis for %s", p.config)
	})
	return p.vector, p.vectorErr
}

// Fourier returns the longitude stages of the transforms.
func (p *Plan) Fourier() *kernels.Fourier { return p.fourier }

// Pool returns the workers pool used to parallelize the transforms.
func (p *Plan) Pool() *workerspool.Pool { return p.pool }

// NumDegrees returns LMax+1.
func (p *Plan) NumDegrees() int { return p.config.LMax + 1 }

// NumOrders returns MMax+1.
func (p *Plan) NumOrders() int { return p.config.MMax + 1 }
