// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distributed implements the process-grid plumbing used by the distributed transforms: the H×W DeviceMesh,
// communication groups with an all-gather collective, the ProcessGrid handed to the transforms, and the
// AxisPartitioner operations (SplitShapes, SplitAlongAxis, GatherAlongAxis).
//
// The transforms never set up communication themselves: they consume an already built ProcessGrid. LocalMesh
// provides one backed by goroutines, used by tests and by the command-line checker.
package distributed

import (
	"github.com/pkg/errors"
)

var (
	// ErrAxisTooSmall is returned when an axis is split into more chunks than it has elements.
	ErrAxisTooSmall = errors.New("axis too small for the number of chunks")

	// ErrGroupSizeMismatch is returned when the process-grid shape is inconsistent with the sizes of the
	// supplied groups, or with the per-rank extent tables.
	ErrGroupSizeMismatch = errors.New("group size mismatch")

	// ErrCollectiveFailure is returned when a collective could not complete: a transport fault, a peer that aborted
	// or peers contributing inconsistent data. It is not recoverable: the distributed computation must be abandoned.
	ErrCollectiveFailure = errors.New("collective failure")
)

// Group is a communication group of ranks: e.g. the row group (ranks sharing a latitude shard) or the column
// group (ranks sharing a longitude shard) of a ProcessGrid.
//
// Implementations are provided by whoever bootstraps the processes. Each rank holds its own Group value.
type Group interface {
	// Size is the number of ranks in the group.
	Size() int

	// Rank of the caller within the group, from 0 to Size()-1.
	Rank() int

	// AllGather contributes local and returns the contributions of every rank of the group, in ascending rank
	// order. Contributions may have different lengths.
	//
	// It is a synchronous barrier: it blocks until every rank in the group called it. The returned slices must be
	// treated as read-only, they may be shared among ranks.
	AllGather(local []float64) ([][]float64, error)
}

// trivialGroup is the group of a single rank, used when a grid axis has size 1.
type trivialGroup struct{}

func (trivialGroup) Size() int { return 1 }
func (trivialGroup) Rank() int { return 0 }
func (trivialGroup) AllGather(local []float64) ([][]float64, error) {
	return [][]float64{local}, nil
}
