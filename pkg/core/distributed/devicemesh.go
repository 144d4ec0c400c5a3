// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Names of the two mesh axes of a process grid.
const (
	// AxisH is the mesh axis that splits latitude (spatial side) and degree l (spectral side).
	// The ranks along it form a column group.
	AxisH = "h"

	// AxisW is the mesh axis that splits longitude (spatial side) and order m (spectral side).
	// The ranks along it form a row group.
	AxisW = "w"
)

// DeviceMesh defines the logical topology of a set of ranks (processes or goroutines).
//
// Ranks are numbered in row-major order of the mesh axes: for a GridMesh(h, w), rank = hRank*w + wRank.
type DeviceMesh struct {
	// axesNames are the names of the mesh axes.
	axesNames []string

	// axesSizes defines the number of ranks along each mesh axis.
	axesSizes []int

	// nameToAxis maps axis names to their index.
	nameToAxis map[string]int

	// numDevices is the total number of ranks in the mesh.
	numDevices int
}

// IsNameValid checks whether a name is a valid identifier for a mesh axis name.
func IsNameValid(name string) bool {
	if name == "" {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// NewDeviceMesh creates a new logical topology of a set of ranks.
//
//   - axesSizes: defines the number of ranks along each mesh axis, one value per axis, all > 0.
//   - axesNames: the names of the mesh axes. One value per axis.
func NewDeviceMesh(axesSizes []int, axesNames []string) (*DeviceMesh, error) {
	if len(axesSizes) != len(axesNames) {
		return nil, errors.Errorf("axesSizes and axesNames must have the same length, got %d and %d",
			len(axesSizes), len(axesNames))
	}
	if len(axesSizes) == 0 {
		return nil, errors.New("DeviceMesh axesSizes cannot be empty")
	}
	numDevices := 1
	nameToAxis := make(map[string]int, len(axesSizes))
	for i, name := range axesNames {
		if !IsNameValid(name) {
			return nil, errors.Errorf(
				"DeviceMesh axis name %q at index %d is not a valid identifier, it must start with a ASCII letter "+
					"and be followed only by letters, numbers or underscore", name, i)
		}
		if _, found := nameToAxis[name]; found {
			return nil, errors.Errorf("DeviceMesh axis name %q is duplicated", name)
		}
		if axesSizes[i] <= 0 {
			return nil, errors.Errorf("DeviceMesh axis %q has size %d, it must be > 0", name, axesSizes[i])
		}
		nameToAxis[name] = i
		numDevices *= axesSizes[i]
	}
	return &DeviceMesh{
		axesNames:  slices.Clone(axesNames),
		axesSizes:  slices.Clone(axesSizes),
		nameToAxis: nameToAxis,
		numDevices: numDevices,
	}, nil
}

// NewGridMesh creates the 2D mesh of an H×W process grid, with axes AxisH and AxisW.
func NewGridMesh(gridH, gridW int) (*DeviceMesh, error) {
	return NewDeviceMesh([]int{gridH, gridW}, []string{AxisH, AxisW})
}

// NumDevices returns the total number of ranks in the mesh.
func (m *DeviceMesh) NumDevices() int {
	return m.numDevices
}

// Rank returns the number of axes in the mesh.
func (m *DeviceMesh) Rank() int {
	return len(m.axesSizes)
}

// AxesNames returns a copy of the mesh's axis names.
func (m *DeviceMesh) AxesNames() []string {
	return slices.Clone(m.axesNames)
}

// AxesSizes returns a copy of the mesh's axesSizes.
func (m *DeviceMesh) AxesSizes() []int {
	return slices.Clone(m.axesSizes)
}

// AxisSize returns the number of ranks along the given mesh axis.
func (m *DeviceMesh) AxisSize(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return m.axesSizes[idx], nil
}

// String implements the fmt.Stringer interface.
func (m *DeviceMesh) String() string {
	var sb strings.Builder
	sb.WriteString("DeviceMesh(axesSizes={")
	for i, name := range m.axesNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %d", name, m.axesSizes[i])
	}
	sb.WriteString("})")
	return sb.String()
}

// Coordinates returns the per-axis coordinates of the given rank. It panics if rank is out of range.
func (m *DeviceMesh) Coordinates(rank int) []int {
	if rank < 0 || rank >= m.numDevices {
		exceptions.Panicf("rank %d out of range for %s", rank, m)
	}
	coords := make([]int, len(m.axesSizes))
	for i := len(m.axesSizes) - 1; i >= 0; i-- {
		coords[i] = rank % m.axesSizes[i]
		rank /= m.axesSizes[i]
	}
	return coords
}

// RankOf returns the rank at the given per-axis coordinates. It's the inverse of Coordinates.
func (m *DeviceMesh) RankOf(coords []int) int {
	rank := 0
	for i, c := range coords {
		rank = rank*m.axesSizes[i] + c
	}
	return rank
}

// ComputeReplicaGroups returns the groups of ranks participating together in a collective operation performed
// along the given mesh axes.
//
// Each group (a []int) lists the ranks that differ only on the given axes, ordered by their coordinates on those
// axes. The other axes will be split into different groups.
//
// Example:
//
//	m, _ := NewGridMesh(2, 3)
//	rowGroups, _ := m.ComputeReplicaGroups([]string{AxisW})     // -> [][]int{{0, 1, 2}, {3, 4, 5}}
//	columnGroups, _ := m.ComputeReplicaGroups([]string{AxisH})  // -> [][]int{{0, 3}, {1, 4}, {2, 5}}
//	globalGroups, _ := m.ComputeReplicaGroups([]string{AxisH, AxisW})  // -> [][]int{{0, 1, 2, 3, 4, 5}}
func (m *DeviceMesh) ComputeReplicaGroups(axes []string) ([][]int, error) {
	axisIndices := make([]int, 0, len(axes))
	axisSet := make([]bool, len(m.axesSizes))
	for _, axis := range axes {
		idx, found := m.nameToAxis[axis]
		if !found {
			return nil, errors.Errorf("axis %q not found in mesh", axis)
		}
		if axisSet[idx] {
			return nil, errors.Errorf("axis %q is duplicated: each axis can only appear once", axis)
		}
		axisIndices = append(axisIndices, idx)
		axisSet[idx] = true
	}
	nonAxisIndices := make([]int, 0, len(m.axesSizes)-len(axisIndices))
	for i := range m.axesSizes {
		if !axisSet[i] {
			nonAxisIndices = append(nonAxisIndices, i)
		}
	}

	groupSize := 1
	for _, idx := range axisIndices {
		groupSize *= m.axesSizes[idx]
	}
	groups := make([][]int, m.numDevices/groupSize)
	for i := range groups {
		groups[i] = make([]int, groupSize)
	}
	for rank := range m.numDevices {
		coords := m.Coordinates(rank)
		groupIdx := 0
		for _, axisIdx := range nonAxisIndices {
			groupIdx = groupIdx*m.axesSizes[axisIdx] + coords[axisIdx]
		}
		posInGroup := 0
		for _, axisIdx := range axisIndices {
			posInGroup = posInGroup*m.axesSizes[axisIdx] + coords[axisIdx]
		}
		groups[groupIdx][posInGroup] = rank
	}
	return groups, nil
}
