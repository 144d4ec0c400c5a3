// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package quadrature builds the latitude sample points and integration weights of the grids supported by the
// spherical harmonic transforms.
//
// Nodes are given as colatitudes θ ∈ [0, π], ordered north to south (increasing θ), and the weights integrate over
// x = cos θ ∈ [-1, 1], so they always sum to 2.
package quadrature

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidGridKind is returned when parsing an unsupported grid type name.
	ErrInvalidGridKind = errors.New("invalid grid kind")

	// ErrInvalidGrid is returned for an invalid number of latitude samples.
	ErrInvalidGrid = errors.New("invalid grid")
)

// GridType is the latitude sampling scheme.
type GridType int

const (
	// Equiangular samples nlat evenly spaced colatitudes, both poles included, integrated with the
	// Clenshaw–Curtis rule.
	Equiangular GridType = iota

	// LegendreGauss samples the roots of the Legendre polynomial of degree nlat, integrated with Gauss weights.
	LegendreGauss
)

var gridTypeNames = []string{"equiangular", "legendre-gauss"}

// String implements fmt.Stringer.
func (g GridType) String() string {
	if g < 0 || int(g) >= len(gridTypeNames) {
		return fmt.Sprintf("GridType(%d)", int(g))
	}
	return gridTypeNames[g]
}

// ParseGridType converts "equiangular" or "legendre-gauss" (case-insensitive) to a GridType.
func ParseGridType(name string) (GridType, error) {
	for ii, candidate := range gridTypeNames {
		if strings.EqualFold(name, candidate) {
			return GridType(ii), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidGridKind, "unknown grid type %q, valid values are %q", name, gridTypeNames)
}

// MarshalText implements encoding.TextMarshaler.
func (g GridType) MarshalText() ([]byte, error) {
	if g < 0 || int(g) >= len(gridTypeNames) {
		return nil, errors.Wrapf(ErrInvalidGridKind, "invalid grid type %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so GridType can be used in configuration files.
func (g *GridType) UnmarshalText(text []byte) error {
	parsed, err := ParseGridType(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Rule holds the nodes and weights of a latitude quadrature. It is immutable once built.
type Rule struct {
	Grid GridType

	// Colatitudes θ of the nodes, in increasing order.
	Colatitudes []float64

	// Cos and Sin hold cos θ and sin θ of the nodes. Sin is exactly 0 at the poles.
	Cos, Sin []float64

	// Weights of the nodes, for integration over cos θ ∈ [-1, 1].
	Weights []float64
}

// NumLat returns the number of nodes.
func (r *Rule) NumLat() int { return len(r.Weights) }

// ExactDegree returns the largest polynomial degree in cos θ the rule integrates exactly.
func (r *Rule) ExactDegree() int {
	n := r.NumLat()
	if r.Grid == LegendreGauss {
		return 2*n - 1
	}
	if n == 1 {
		return 1
	}
	return n - 1
}

// New builds the quadrature rule with nlat nodes for the given grid type.
//
// For nlat == 1 both grids have a single node at the equator with weight 2.
func New(nlat int, grid GridType) (*Rule, error) {
	if nlat <= 0 {
		return nil, errors.Wrapf(ErrInvalidGrid, "number of latitudes must be > 0, got %d", nlat)
	}
	r := &Rule{
		Grid:        grid,
		Colatitudes: make([]float64, nlat),
		Cos:         make([]float64, nlat),
		Sin:         make([]float64, nlat),
		Weights:     make([]float64, nlat),
	}
	if nlat == 1 {
		r.Colatitudes[0], r.Cos[0], r.Sin[0], r.Weights[0] = math.Pi/2, 0, 1, 2
		return r, nil
	}
	switch grid {
	case Equiangular:
		r.clenshawCurtis()
	case LegendreGauss:
		r.legendreGauss()
	default:
		return nil, errors.Wrapf(ErrInvalidGridKind, "invalid grid type %d", int(grid))
	}
	return r, nil
}

// clenshawCurtis fills equiangular nodes θ_j = jπ/N, N = nlat-1, and their weights:
//
//	w_j = (c_j/N) [1 - Σ_{k=1}^{⌊N/2⌋} b_k/(4k²-1) cos(2kjπ/N)]
//
// with c_j = 1 at the poles (2 otherwise) and b_k = 1 for k = N/2 (2 otherwise).
func (r *Rule) clenshawCurtis() {
	n := r.NumLat() - 1
	for j := range n + 1 {
		theta := float64(j) * math.Pi / float64(n)
		r.Colatitudes[j] = theta
		r.Cos[j] = math.Cos(theta)
		r.Sin[j] = math.Sin(theta)
		sum := 0.0
		for k := 1; k <= n/2; k++ {
			b := 2.0
			if 2*k == n {
				b = 1.0
			}
			sum += b / float64(4*k*k-1) * math.Cos(2*float64(k)*theta)
		}
		c := 2.0
		if j == 0 || j == n {
			c = 1.0
		}
		r.Weights[j] = c / float64(n) * (1 - sum)
	}
	r.Cos[0], r.Sin[0] = 1, 0
	r.Cos[n], r.Sin[n] = -1, 0
	if n%2 == 0 {
		r.Cos[n/2] = 0
	}
}

// legendreGauss finds the roots of P_n by Newton iteration, starting from the asymptotic estimates
// cos(π(i+3/4)/(n+1/2)), which are already ordered by decreasing x (increasing colatitude).
func (r *Rule) legendreGauss() {
	n := r.NumLat()
	const maxIterations = 100
	for i := range n {
		x := math.Cos(math.Pi * (float64(i) + 0.75) / (float64(n) + 0.5))
		var dp float64
		for range maxIterations {
			var p float64
			p, dp = legendreAndDerivative(n, x)
			dx := p / dp
			x -= dx
			if math.Abs(dx) <= 1e-15 {
				break
			}
		}
		_, dp = legendreAndDerivative(n, x)
		r.Cos[i] = x
		r.Sin[i] = math.Sqrt((1 - x) * (1 + x))
		r.Colatitudes[i] = math.Acos(x)
		r.Weights[i] = 2 / ((1 - x*x) * dp * dp)
	}
}

// legendreAndDerivative returns P_n(x) and P'_n(x) using the Bonnet recurrence. x must be in (-1, 1).
func legendreAndDerivative(n int, x float64) (p, dp float64) {
	p, pPrev := x, 1.0
	for l := 2; l <= n; l++ {
		p, pPrev = (float64(2*l-1)*x*p-float64(l-1)*pPrev)/float64(l), p
	}
	dp = float64(n) * (x*p - pPrev) / (x*x - 1)
	return
}
