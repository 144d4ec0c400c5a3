// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/harmonics/pkg/support/xsync"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// LocalMesh runs an H×W process grid inside the current process, one goroutine per rank, with collectives
// implemented over shared memory.
//
// It's meant for tests and tools: a real deployment provides its own Group implementations.
type LocalMesh struct {
	mesh                    *DeviceMesh
	rowGroups, columnGroups [][]int
	metrics                 *Metrics
}

// NewLocalMesh creates a LocalMesh for an H×W process grid.
func NewLocalMesh(gridH, gridW int) (*LocalMesh, error) {
	mesh, err := NewGridMesh(gridH, gridW)
	if err != nil {
		return nil, errors.WithMessagef(err, "NewLocalMesh(%d, %d)", gridH, gridW)
	}
	m := &LocalMesh{mesh: mesh}
	if m.rowGroups, err = mesh.ComputeReplicaGroups([]string{AxisW}); err != nil {
		return nil, err
	}
	if m.columnGroups, err = mesh.ComputeReplicaGroups([]string{AxisH}); err != nil {
		return nil, err
	}
	return m, nil
}

// WithMetrics configures the mesh to instrument every group it creates with the given metrics.
// It returns itself, to allow cascading calls.
func (m *LocalMesh) WithMetrics(metrics *Metrics) *LocalMesh {
	m.metrics = metrics
	return m
}

// DeviceMesh returns the topology of the mesh.
func (m *LocalMesh) DeviceMesh() *DeviceMesh { return m.mesh }

// NumRanks is the total number of ranks, GridSizeH*GridSizeW.
func (m *LocalMesh) NumRanks() int { return m.mesh.NumDevices() }

// Run executes fn concurrently for every rank of the mesh, each with its own ProcessGrid, and waits for all of
// them.
//
// If fn fails (returns an error or panics) on any rank, the collectives of the mesh are aborted:
// ranks blocked on (or later calling) an all-gather get an error wrapping ErrCollectiveFailure instead of
// deadlocking. Run then returns the first failure.
//
// Each call to Run uses fresh groups, so a mesh can be reused after a failure.
func (m *LocalMesh) Run(fn func(rank int, grid *ProcessGrid) error) error {
	numRanks := m.mesh.NumDevices()
	rows := make([]*localMember, numRanks)
	columns := make([]*localMember, numRanks)
	var states []*localGroupState
	for _, groups := range []struct {
		ranks   [][]int
		members []*localMember
	}{{m.rowGroups, rows}, {m.columnGroups, columns}} {
		for _, ranks := range groups.ranks {
			state := newLocalGroupState(len(ranks))
			states = append(states, state)
			for pos, rank := range ranks {
				groups.members[rank] = &localMember{state: state, rank: pos}
			}
		}
	}

	var (
		failOnce sync.Once
		firstErr error
	)
	abort := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			for _, state := range states {
				state.barrier.Break(err)
			}
		})
	}

	var eg errgroup.Group
	for rank := range numRanks {
		eg.Go(func() error {
			grid, err := NewProcessGrid(m.mesh.axesSizes[0], m.mesh.axesSizes[1],
				Instrument(rows[rank], m.metrics, "row"), Instrument(columns[rank], m.metrics, "column"))
			if err == nil {
				if exception := exceptions.TryCatch[any](func() { err = fn(rank, grid) }); exception != nil {
					err = panicToError(exception)
				}
			}
			if err != nil {
				err = errors.WithMessagef(err, "rank %d", rank)
				klog.V(1).Infof("LocalMesh: %v", err)
				abort(err)
			}
			return err
		})
	}
	_ = eg.Wait()
	return firstErr
}

// panicToError returns the error of a recovered panic. Values other than errors are wrapped in
// ErrCollectiveFailure.
func panicToError(exception any) error {
	if err, ok := exception.(error); ok {
		return err
	}
	return errors.Wrapf(ErrCollectiveFailure, "panic: %v", exception)
}

// localGroupState is shared by the members of one group.
type localGroupState struct {
	barrier *xsync.Barrier

	mu       sync.Mutex
	pending  [][]float64 // Contributions to the current all-gather.
	released [][]float64 // Result of the last completed all-gather.
}

func newLocalGroupState(size int) *localGroupState {
	return &localGroupState{
		barrier: xsync.NewBarrier(size),
		pending: make([][]float64, size),
	}
}

// localMember implements Group for one rank of a localGroupState.
type localMember struct {
	state *localGroupState
	rank  int
}

// Size implements Group.
func (m *localMember) Size() int { return m.state.barrier.Parties() }

// Rank implements Group.
func (m *localMember) Rank() int { return m.rank }

// AllGather implements Group.
func (m *localMember) AllGather(local []float64) ([][]float64, error) {
	st := m.state
	st.mu.Lock()
	st.pending[m.rank] = slices.Clone(local)
	st.mu.Unlock()

	err := st.barrier.Wait(func() {
		st.mu.Lock()
		st.released = st.pending
		st.pending = make([][]float64, len(st.released))
		st.mu.Unlock()
	})
	if err != nil {
		return nil, errors.Wrapf(ErrCollectiveFailure, "all-gather aborted: %v", err)
	}
	// released can only be replaced once this rank joins the next all-gather.
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.released, nil
}
