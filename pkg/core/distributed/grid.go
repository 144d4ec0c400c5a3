// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"fmt"

	"github.com/pkg/errors"
)

// ProcessGrid is the immutable description of this rank's place in an H×W process grid, along with the two
// communication groups it belongs to:
//
//   - row group: the GridSizeW ranks that share this rank's latitude shard, and split longitude and order m.
//   - column group: the GridSizeH ranks that share this rank's longitude shard, and split latitude and degree l.
//
// It replaces any global process-group state: each distributed transform is given its ProcessGrid explicitly.
type ProcessGrid struct {
	gridH, gridW int
	row, column  Group
}

// NewProcessGrid validates and returns the ProcessGrid of a rank.
//
// A nil row (or column) group is accepted only when gridW (or gridH) is 1.
// It returns an error wrapping ErrGroupSizeMismatch if the group sizes are inconsistent with the grid shape.
func NewProcessGrid(gridH, gridW int, row, column Group) (*ProcessGrid, error) {
	if gridH <= 0 || gridW <= 0 {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "invalid process grid %dx%d", gridH, gridW)
	}
	var err error
	if row, err = checkGroup("row", row, gridW); err != nil {
		return nil, err
	}
	if column, err = checkGroup("column", column, gridH); err != nil {
		return nil, err
	}
	return &ProcessGrid{gridH: gridH, gridW: gridW, row: row, column: column}, nil
}

func checkGroup(name string, g Group, want int) (Group, error) {
	if g == nil {
		if want != 1 {
			return nil, errors.Wrapf(ErrGroupSizeMismatch, "no %s group given for a grid axis of size %d", name, want)
		}
		return trivialGroup{}, nil
	}
	if g.Size() != want {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "%s group has size %d, the process grid requires %d",
			name, g.Size(), want)
	}
	if g.Rank() < 0 || g.Rank() >= g.Size() {
		return nil, errors.Wrapf(ErrGroupSizeMismatch, "%s group rank %d out of range for size %d",
			name, g.Rank(), g.Size())
	}
	return g, nil
}

// SingleProcess returns the 1×1 ProcessGrid: no communication takes place.
func SingleProcess() *ProcessGrid {
	return &ProcessGrid{gridH: 1, gridW: 1, row: trivialGroup{}, column: trivialGroup{}}
}

// GridSizeH is the number of ranks along the latitude/degree axis.
func (g *ProcessGrid) GridSizeH() int { return g.gridH }

// GridSizeW is the number of ranks along the longitude/order axis.
func (g *ProcessGrid) GridSizeW() int { return g.gridW }

// HRank is this rank's position in its column group.
func (g *ProcessGrid) HRank() int { return g.column.Rank() }

// WRank is this rank's position in its row group.
func (g *ProcessGrid) WRank() int { return g.row.Rank() }

// Row returns the row group: ranks splitting longitude and order.
func (g *ProcessGrid) Row() Group { return g.row }

// Column returns the column group: ranks splitting latitude and degree.
func (g *ProcessGrid) Column() Group { return g.column }

// String implements fmt.Stringer.
func (g *ProcessGrid) String() string {
	return fmt.Sprintf("ProcessGrid(%dx%d, h=%d, w=%d)", g.gridH, g.gridW, g.HRank(), g.WRank())
}
