// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distsht implements the spherical harmonic transforms of package sht distributed over an H×W process
// grid (see distributed.ProcessGrid).
//
// Spatial tensors are split along latitude over the H axis and along longitude over the W axis: the rank at
// (h, w) holds [..., LatShapes()[h], LonShapes()[w]]. Spectral tensors are split along degree over H and along
// order over W: the rank holds [..., LShapes()[h], MShapes()[w], 2]. Extents are balanced, larger chunks first, as
// given by distributed.SplitShapes; distributed.SpatialSpec and distributed.SpectralSpec describe these layouts.
//
// Forward transforms gather the longitude extent over the row group, transform along longitude only the owned
// orders, gather the latitude extent over the column group and integrate only the owned degrees. Inverse
// transforms gather the degrees over the column group, expand on the owned latitude rows, gather the orders over
// the row group and keep the owned longitude slab of the inverse FFT. All exchanges are concatenations of
// disjoint ranges: no rank ever sums partial results of another.
//
// Every output element is computed with exactly the same arithmetic as the local transforms of package sht, so on
// a 1×1 grid, and on any grid once gathered, results are bit-identical to the local ones.
//
// Backward methods are the explicit adjoints: the adjoint of each all-gather is the extraction of the own shard,
// which is what the downstream stages of the adjoint pipelines compute.
package distsht

import (
	"fmt"

	"github.com/gomlx/harmonics/internal/kernels"
	"github.com/gomlx/harmonics/internal/workerspool"
	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/sht"
	"github.com/gomlx/harmonics/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Layout is the shard descriptor of this rank: its place in the process grid and the per-rank extents of every
// split axis. It is embedded in all distributed transforms.
type Layout struct {
	plan *sht.Plan
	grid *distributed.ProcessGrid

	latShapes, lonShapes, lShapes, mShapes []int
	latOffsets, lOffsets, mOffsets         []int
}

func newLayout(name string, plan *sht.Plan, grid *distributed.ProcessGrid) (*Layout, error) {
	if plan == nil {
		return nil, errors.Errorf("%s: nil plan", name)
	}
	if grid == nil {
		grid = distributed.SingleProcess()
	}
	c := plan.Config()
	l := &Layout{plan: plan, grid: grid}
	splits := []struct {
		axis    string
		size, n int
		shapes  *[]int
		offsets *[]int
	}{
		{"latitude", c.NumLat, grid.GridSizeH(), &l.latShapes, &l.latOffsets},
		{"longitude", c.NumLon, grid.GridSizeW(), &l.lonShapes, nil},
		{"degree", plan.NumDegrees(), grid.GridSizeH(), &l.lShapes, &l.lOffsets},
		{"order", plan.NumOrders(), grid.GridSizeW(), &l.mShapes, &l.mOffsets},
	}
	for _, split := range splits {
		sizes, err := distributed.SplitShapes(split.size, split.n)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: splitting the %s axis of %s over %s", name, split.axis, c, grid)
		}
		*split.shapes = sizes
		if split.offsets != nil {
			*split.offsets = xslices.Offsets(sizes)
		}
	}
	klog.V(1).Infof("%s(%s) on %s: lat=%v, lon=%v, l=%v, m=%v", name, c, grid,
		l.latShapes, l.lonShapes, l.lShapes, l.mShapes)
	return l, nil
}

// Plan returns the plan of the local transforms.
func (l *Layout) Plan() *sht.Plan { return l.plan }

// Grid returns the process grid.
func (l *Layout) Grid() *distributed.ProcessGrid { return l.grid }

// HRank is this rank's position along the latitude/degree axis.
func (l *Layout) HRank() int { return l.grid.HRank() }

// WRank is this rank's position along the longitude/order axis.
func (l *Layout) WRank() int { return l.grid.WRank() }

// GridSizeH is the number of ranks along the latitude/degree axis.
func (l *Layout) GridSizeH() int { return l.grid.GridSizeH() }

// GridSizeW is the number of ranks along the longitude/order axis.
func (l *Layout) GridSizeW() int { return l.grid.GridSizeW() }

// LatShapes returns the number of latitudes held by each rank of a column group.
func (l *Layout) LatShapes() []int { return l.latShapes }

// LonShapes returns the number of longitudes held by each rank of a row group.
func (l *Layout) LonShapes() []int { return l.lonShapes }

// LShapes returns the number of degrees held by each rank of a column group.
func (l *Layout) LShapes() []int { return l.lShapes }

// MShapes returns the number of orders held by each rank of a row group.
func (l *Layout) MShapes() []int { return l.mShapes }

// NumLon returns the global number of longitudes.
func (l *Layout) NumLon() int { return l.plan.Config().NumLon }

// NumLat returns the global number of latitudes.
func (l *Layout) NumLat() int { return l.plan.Config().NumLat }

// MMax returns the global order cutoff (inclusive).
func (l *Layout) MMax() int { return l.plan.Config().MMax }

// LMax returns the global degree cutoff (inclusive).
func (l *Layout) LMax() int { return l.plan.Config().LMax }

// NumOrders returns the global number of orders, MMax()+1.
func (l *Layout) NumOrders() int { return l.plan.NumOrders() }

// String implements fmt.Stringer.
func (l *Layout) String() string {
	return fmt.Sprintf("distsht.Layout(%s, %s)", l.plan.Config(), l.grid)
}

// Local extents and ranges of this rank.
func (l *Layout) localLat() (start, end int) { return l.latOffsets[l.HRank()], l.latOffsets[l.HRank()+1] }
func (l *Layout) localL() (start, end int) { return l.lOffsets[l.HRank()], l.lOffsets[l.HRank()+1] }
func (l *Layout) localM() (start, end int) { return l.mOffsets[l.WRank()], l.mOffsets[l.WRank()+1] }

// spatialDims and spectralDims are the trailing dimensions of the local shards, with the optional component axis.
func (l *Layout) spatialDims(components []int) []int {
	return append(append([]int{}, components...), l.latShapes[l.HRank()], l.lonShapes[l.WRank()])
}

func (l *Layout) spectralDims(components []int) []int {
	return append(append([]int{}, components...), l.lShapes[l.HRank()], l.mShapes[l.WRank()], 2)
}

// leading validates the trailing axes of a local shard and returns the dimensions of the leading axes.
func leading(name string, t *tensors.Tensor, trailing []int) ([]int, error) {
	if t == nil {
		return nil, errors.Errorf("%s: nil tensor", name)
	}
	if err := t.Shape().CheckTrailing(trailing...); err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return t.Shape().Leading(len(trailing)), nil
}

// fourierStage transforms full-longitude rows [nb, rows, nlon] into the spectrum of the orders [mStart, mEnd).
type fourierStage func(pool *workerspool.Pool, x *tensors.Tensor, mStart, mEnd int) *tensors.Tensor

// integrateStage contracts a full-latitude spectrum into the coefficients of the degrees [lStart, lEnd).
type integrateStage func(pool *workerspool.Pool, spec *tensors.Tensor, mStart int, lStart, lEnd int) *tensors.Tensor

// expandStage evaluates full-degree coefficients on the latitude rows [latStart, latEnd).
type expandStage func(pool *workerspool.Pool, coeffs *tensors.Tensor, mStart int, latStart, latEnd int) *tensors.Tensor

// inverseFourierStage transforms a spectrum with all orders into full-longitude rows.
type inverseFourierStage func(pool *workerspool.Pool, spec *tensors.Tensor) *tensors.Tensor

// analysis runs the spatial-to-spectral pipeline on a local spatial shard [..., components..., latc, lonc],
// returning the local spectral shard [..., components..., lc, mc, 2].
func (l *Layout) analysis(name string, x *tensors.Tensor, components []int, fft fourierStage,
	integrate integrateStage) (*tensors.Tensor, error) {
	lead, err := leading(name, x, l.spatialDims(components))
	if err != nil {
		return nil, err
	}
	pool := l.plan.Pool()
	latc := l.latShapes[l.HRank()]
	nb := x.Size() / (latc * l.lonShapes[l.WRank()])
	mStart, mEnd := l.localM()
	lStart, lEnd := l.localL()

	rows, err := distributed.GatherAlongAxis(x.Reshape(nb, latc, l.lonShapes[l.WRank()]), -1, l.grid.Row(), l.lonShapes)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: gathering longitudes", name)
	}
	spec := fft(pool, rows, mStart, mEnd)
	spec, err = distributed.GatherAlongAxis(spec, -1, l.grid.Column(), l.latShapes)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: gathering latitudes", name)
	}
	out := integrate(pool, spec, mStart, lStart, lEnd)
	return out.Reshape(append(lead, l.spectralDims(components)...)...), nil
}

// synthesis runs the spectral-to-spatial pipeline on a local spectral shard [..., components..., lc, mc, 2],
// returning the local spatial shard [..., components..., latc, lonc].
func (l *Layout) synthesis(name string, coeffs *tensors.Tensor, components []int, expand expandStage,
	ifft inverseFourierStage) (*tensors.Tensor, error) {
	lead, err := leading(name, coeffs, l.spectralDims(components))
	if err != nil {
		return nil, err
	}
	pool := l.plan.Pool()
	lc, mc := l.lShapes[l.HRank()], l.mShapes[l.WRank()]
	nb := coeffs.Size() / (lc * mc * 2)
	mStart, _ := l.localM()
	latStart, latEnd := l.localLat()

	a, err := distributed.GatherAlongAxis(coeffs.Reshape(nb, lc, mc, 2), 1, l.grid.Column(), l.lShapes)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: gathering degrees", name)
	}
	spec := expand(pool, a, mStart, latStart, latEnd)
	spec, err = distributed.GatherAlongAxis(spec, 2, l.grid.Row(), l.mShapes)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: gathering orders", name)
	}
	rows := ifft(pool, spec)
	out, err := distributed.ExtractShard(rows, -1, l.lonShapes, l.WRank())
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return out.Reshape(append(lead, l.spatialDims(components)...)...), nil
}

// Stages shared by the transforms.

func (l *Layout) scalarIntegrate(scale float64, weighted bool) integrateStage {
	table := l.plan.Basis()
	if weighted {
		table = l.plan.WeightedBasis()
	}
	return func(pool *workerspool.Pool, spec *tensors.Tensor, mStart, lStart, lEnd int) *tensors.Tensor {
		return kernels.Integrate(pool, spec, mStart, table, scale, lStart, lEnd)
	}
}

func (l *Layout) scalarExpand(scale float64, weighted bool) expandStage {
	table := l.plan.Basis()
	if weighted {
		table = l.plan.WeightedBasis()
	}
	return func(pool *workerspool.Pool, coeffs *tensors.Tensor, mStart, latStart, latEnd int) *tensors.Tensor {
		return kernels.Expand(pool, coeffs, mStart, table, scale, latStart, latEnd)
	}
}

func vectorIntegrate(basis *sht.VectorBasis, scale float64, weighted bool) integrateStage {
	polar, azimuthal := basis.Polar, basis.Azimuthal
	if weighted {
		polar, azimuthal = basis.WeightedPolar, basis.WeightedAzimuthal
	}
	return func(pool *workerspool.Pool, spec *tensors.Tensor, mStart, lStart, lEnd int) *tensors.Tensor {
		return kernels.IntegrateVector(pool, spec, mStart, polar, azimuthal, scale, lStart, lEnd)
	}
}

func vectorExpand(basis *sht.VectorBasis, scale float64, weighted bool) expandStage {
	polar, azimuthal := basis.Polar, basis.Azimuthal
	if weighted {
		polar, azimuthal = basis.WeightedPolar, basis.WeightedAzimuthal
	}
	return func(pool *workerspool.Pool, coeffs *tensors.Tensor, mStart, latStart, latEnd int) *tensors.Tensor {
		return kernels.ExpandVector(pool, coeffs, mStart, polar, azimuthal, scale, latStart, latEnd)
	}
}
