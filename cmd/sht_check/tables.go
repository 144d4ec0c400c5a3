// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// TableWithReds is a lipgloss table where individual rows can be highlighted.
type TableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

// Row appends a row, in red if isRed.
func (t *TableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

func newTableWithReds(alignments ...lipgloss.Position) *TableWithReds {
	t := &TableWithReds{
		Reds: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			if t.Reds[row] {
				s = redRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}

// resultsTable renders the results, one row per case and transform. Failed rows are red.
func resultsTable(results []Result) string {
	t := newTableWithReds(lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	t.Table.Headers("Case", "Transform", "Grid", "Mesh", "Forward err", "Backward err", "Local", "Distributed",
		"All-gather", "Status")
	for _, r := range results {
		status := "ok"
		if !r.Passed() {
			status = "FAILED"
			if r.Err != nil {
				status = r.Err.Error()
			}
		}
		t.Row(!r.Passed(),
			r.Case.Name, r.Transform,
			fmt.Sprintf("%s %dx%d", r.Case.Grid, r.Case.NumLat, r.Case.NumLon),
			r.Case.Mesh,
			fmt.Sprintf("%.2e", r.ForwardErr), fmt.Sprintf("%.2e", r.BackwardErr),
			r.Local.Round(time.Microsecond).String(), r.Distributed.Round(time.Microsecond).String(),
			humanize.IBytes(uint64(r.BytesSent)),
			status)
	}
	return t.Table.Render()
}
