// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed_test

import (
	"strings"
	"testing"

	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := prometheus.NewRegistry()
	metrics, err := distributed.NewMetrics(reg)
	require.NoError(t, err)

	mesh, err := distributed.NewLocalMesh(2, 2)
	require.NoError(t, err)
	mesh.WithMetrics(metrics)
	err = mesh.Run(func(rank int, grid *distributed.ProcessGrid) error {
		if _, err := grid.Row().AllGather(make([]float64, 3)); err != nil {
			return err
		}
		_, err := grid.Column().AllGather(make([]float64, 5))
		return err
	})
	require.NoError(t, err)

	// Counts are summed over the 4 ranks, with 3 and 5 float64 sent per rank.
	expected := `
# HELP harmonics_collectives_all_gather_calls_total Total number of all-gather calls by group and status
# TYPE harmonics_collectives_all_gather_calls_total counter
harmonics_collectives_all_gather_calls_total{group="column",status="ok"} 4
harmonics_collectives_all_gather_calls_total{group="row",status="ok"} 4
# HELP harmonics_collectives_all_gather_sent_bytes_total Total bytes contributed to all-gather calls by group
# TYPE harmonics_collectives_all_gather_sent_bytes_total counter
harmonics_collectives_all_gather_sent_bytes_total{group="column"} 160
harmonics_collectives_all_gather_sent_bytes_total{group="row"} 96
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"harmonics_collectives_all_gather_calls_total", "harmonics_collectives_all_gather_sent_bytes_total"))
	numHistograms, err := testutil.GatherAndCount(reg, "harmonics_collectives_all_gather_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, numHistograms)

	// Registering twice on the same registry fails.
	_, err = distributed.NewMetrics(reg)
	require.Error(t, err)

	// A nil Metrics leaves the group untouched.
	grid := distributed.SingleProcess()
	assert.Equal(t, grid.Row(), distributed.Instrument(grid.Row(), nil, "row"))
}
