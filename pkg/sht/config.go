// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sht

import (
	"fmt"

	"github.com/gomlx/harmonics/pkg/sht/quadrature"
	"github.com/pkg/errors"
)

// ErrInvalidTruncation is returned when the degree/order cutoffs are incompatible with the grid.
var ErrInvalidTruncation = errors.New("invalid spectral truncation")

// Config describes the grid and the spectral truncation of a transform.
//
// It is a value type: the With* methods return modified copies. Negative LMax or MMax mean "use the default",
// see Resolve.
type Config struct {
	NumLat, NumLon int
	Grid           quadrature.GridType

	// LMax and MMax are the inclusive degree and order cutoffs.
	LMax, MMax int

	// Parallelism is the maximum number of goroutines used by each transform call: 0 runs sequentially,
	// a negative value means unlimited. The default is runtime.NumCPU(), see NewConfig.
	Parallelism int
}

// NewConfig returns the configuration of an equiangular grid of nlat×nlon samples with default truncation.
func NewConfig(nlat, nlon int) Config {
	return Config{NumLat: nlat, NumLon: nlon, Grid: quadrature.Equiangular, LMax: -1, MMax: -1,
		Parallelism: defaultParallelism()}
}

// WithGrid returns a copy of the configuration using the given latitude grid.
func (c Config) WithGrid(grid quadrature.GridType) Config {
	c.Grid = grid
	return c
}

// WithTruncation returns a copy of the configuration with the given degree and order cutoffs.
// Negative values select the defaults.
func (c Config) WithTruncation(lmax, mmax int) Config {
	c.LMax, c.MMax = lmax, mmax
	return c
}

// WithParallelism returns a copy of the configuration with the given parallelism, see Config.Parallelism.
func (c Config) WithParallelism(parallelism int) Config {
	c.Parallelism = parallelism
	return c
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return fmt.Sprintf("sht.Config(grid=%s, nlat=%d, nlon=%d, lmax=%d, mmax=%d)",
		c.Grid, c.NumLat, c.NumLon, c.LMax, c.MMax)
}

// Resolve fills in the default truncation and validates the configuration.
//
// The default LMax is the largest degree such that products of two basis functions are integrated exactly by the
// latitude quadrature: NumLat-1 for legendre-gauss grids and (NumLat-1)/2 for equiangular ones. The default MMax
// is min(LMax, NumLon/2).
func (c Config) Resolve() (Config, error) {
	if c.NumLat <= 0 || c.NumLon <= 0 {
		return c, errors.Wrapf(quadrature.ErrInvalidGrid, "grid of %d×%d samples, both must be > 0", c.NumLat, c.NumLon)
	}
	if _, err := c.Grid.MarshalText(); err != nil {
		return c, err
	}
	if c.LMax < 0 {
		if c.Grid == quadrature.LegendreGauss {
			c.LMax = c.NumLat - 1
		} else {
			c.LMax = (c.NumLat - 1) / 2
		}
	}
	if c.MMax < 0 {
		c.MMax = min(c.LMax, c.NumLon/2)
	}
	if c.MMax > c.LMax || c.LMax >= c.NumLat {
		return c, errors.Wrapf(ErrInvalidTruncation, "lmax=%d, mmax=%d for %d latitudes: it requires mmax <= lmax < nlat",
			c.LMax, c.MMax, c.NumLat)
	}
	if c.MMax > c.NumLon/2 {
		return c, errors.Wrapf(ErrInvalidTruncation, "mmax=%d for %d longitudes: it requires mmax <= nlon/2",
			c.MMax, c.NumLon)
	}
	return c, nil
}
