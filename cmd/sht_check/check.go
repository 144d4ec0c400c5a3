// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math/rand/v2"
	"time"

	"github.com/gomlx/harmonics/pkg/core/distributed"
	"github.com/gomlx/harmonics/pkg/core/tensors"
	"github.com/gomlx/harmonics/pkg/sht"
	"github.com/gomlx/harmonics/pkg/sht/distsht"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// transform is implemented by the local and by the distributed transforms.
type transform interface {
	Forward(*tensors.Tensor) (*tensors.Tensor, error)
	Backward(*tensors.Tensor) (*tensors.Tensor, error)
}

// direction is one transform of a case, with its local and distributed constructors.
type direction struct {
	name                  string
	inverse               bool
	local                 localFn
	distributed           distributedFn
	inputSpec, outputSpec distributed.ShardSpec
}

type (
	localFn       func(plan *sht.Plan) (transform, error)
	distributedFn func(plan *sht.Plan, grid *distributed.ProcessGrid) (transform, error)
)

func newDirection(name string, inverse bool, local localFn, dist distributedFn) direction {
	d := direction{name: name, inverse: inverse, local: local, distributed: dist,
		inputSpec: distributed.SpatialSpec, outputSpec: distributed.SpectralSpec}
	if inverse {
		d.inputSpec, d.outputSpec = d.outputSpec, d.inputSpec
	}
	return d
}

func scalarDirections() []direction {
	return []direction{
		newDirection("RealSHT", false,
			func(plan *sht.Plan) (transform, error) { return plan.RealSHT(), nil },
			func(plan *sht.Plan, grid *distributed.ProcessGrid) (transform, error) {
				return distsht.NewRealSHT(plan, grid)
			}),
		newDirection("InverseRealSHT", true,
			func(plan *sht.Plan) (transform, error) { return plan.InverseRealSHT(), nil },
			func(plan *sht.Plan, grid *distributed.ProcessGrid) (transform, error) {
				return distsht.NewInverseRealSHT(plan, grid)
			}),
	}
}

func vectorDirections() []direction {
	return []direction{
		newDirection("RealVectorSHT", false,
			func(plan *sht.Plan) (transform, error) { return plan.RealVectorSHT() },
			func(plan *sht.Plan, grid *distributed.ProcessGrid) (transform, error) {
				return distsht.NewRealVectorSHT(plan, grid)
			}),
		newDirection("InverseRealVectorSHT", true,
			func(plan *sht.Plan) (transform, error) { return plan.InverseRealVectorSHT() },
			func(plan *sht.Plan, grid *distributed.ProcessGrid) (transform, error) {
				return distsht.NewInverseRealVectorSHT(plan, grid)
			}),
	}
}

// Result of one direction of a case.
type Result struct {
	Case                    Case
	Transform               string
	Local, Distributed      time.Duration
	ForwardErr, BackwardErr float64
	BytesSent               float64
	Err                     error
}

// Passed returns whether both the forward and the backward results match within the case tolerance.
func (r Result) Passed() bool {
	return r.Err == nil && r.ForwardErr <= r.Case.Tol && r.BackwardErr <= r.Case.Tol
}

// runCase checks every direction of the case, returning one Result each.
// If the case itself is invalid (bad grid or mesh) it returns an error instead.
func runCase(c Case, parallelism int, rng *rand.Rand) ([]Result, error) {
	config, err := c.Config()
	if err != nil {
		return nil, err
	}
	gridH, gridW, err := c.ParseMesh()
	if err != nil {
		return nil, err
	}
	plan, err := sht.NewPlan(config.WithParallelism(parallelism))
	if err != nil {
		return nil, err
	}
	directions := scalarDirections()
	if c.Vector {
		directions = vectorDirections()
	}
	results := make([]Result, 0, len(directions))
	for _, d := range directions {
		r := Result{Case: c, Transform: d.name}
		r.Err = r.check(plan, d, gridH, gridW, rng)
		if r.Err != nil {
			klog.V(1).Infof("%s/%s: %+v", c.Name, d.name, r.Err)
		}
		results = append(results, r)
	}
	return results, nil
}

// fieldDims returns the global input and output dimensions of a direction.
func fieldDims(c Case, plan *sht.Plan, d direction) (input, output []int) {
	leading := []int{c.Batch, c.Channels}
	if c.Vector {
		leading = append(leading, 2)
	}
	config := plan.Config()
	spatial := append(append([]int{}, leading...), config.NumLat, config.NumLon)
	spectral := append(append([]int{}, leading...), plan.NumDegrees(), plan.NumOrders(), 2)
	if d.inverse {
		return spectral, spatial
	}
	return spatial, spectral
}

func randomTensor(rng *rand.Rand, dims ...int) *tensors.Tensor {
	t := tensors.New(dims...)
	for ii := range t.Flat() {
		t.Flat()[ii] = rng.NormFloat64()
	}
	return t
}

// check runs the direction locally and on a gridH×gridW LocalMesh and fills in the errors, timings and traffic.
func (r *Result) check(plan *sht.Plan, d direction, gridH, gridW int, rng *rand.Rand) error {
	inputDims, outputDims := fieldDims(r.Case, plan, d)
	x, grad := randomTensor(rng, inputDims...), randomTensor(rng, outputDims...)

	start := time.Now()
	local, err := d.local(plan)
	if err != nil {
		return err
	}
	want, err := local.Forward(x)
	if err != nil {
		return err
	}
	wantGrad, err := local.Backward(grad)
	if err != nil {
		return err
	}
	r.Local = time.Since(start)

	registry := prometheus.NewRegistry()
	metrics, err := distributed.NewMetrics(registry)
	if err != nil {
		return err
	}
	mesh, err := distributed.NewLocalMesh(gridH, gridW)
	if err != nil {
		return err
	}
	mesh.WithMetrics(metrics)
	xDist, err := distributed.ShardTensor(mesh.DeviceMesh(), x, d.inputSpec)
	if err != nil {
		return err
	}
	gradDist, err := distributed.ShardTensor(mesh.DeviceMesh(), grad, d.outputSpec)
	if err != nil {
		return err
	}
	outShards := make([]*tensors.Tensor, mesh.NumRanks())
	gradInShards := make([]*tensors.Tensor, mesh.NumRanks())
	start = time.Now()
	err = mesh.Run(func(rank int, grid *distributed.ProcessGrid) error {
		tr, err := d.distributed(plan, grid)
		if err != nil {
			return err
		}
		if outShards[rank], err = tr.Forward(xDist.Shard(rank)); err != nil {
			return err
		}
		gradInShards[rank], err = tr.Backward(gradDist.Shard(rank))
		return err
	})
	if err != nil {
		return err
	}
	r.Distributed = time.Since(start)

	out, err := assemble(mesh, d.outputSpec, outShards)
	if err != nil {
		return err
	}
	gradIn, err := assemble(mesh, d.inputSpec, gradInShards)
	if err != nil {
		return err
	}
	r.ForwardErr = tensors.MeanRelativeError(want, out, 2)
	r.BackwardErr = tensors.MeanRelativeError(wantGrad, gradIn, 2)
	r.BytesSent, err = sentBytes(registry)
	return err
}

func assemble(mesh *distributed.LocalMesh, spec distributed.ShardSpec, shards []*tensors.Tensor) (
	*tensors.Tensor, error) {
	dt, err := distributed.New(mesh.DeviceMesh(), spec, shards)
	if err != nil {
		return nil, err
	}
	return dt.Assemble()
}

const sentBytesMetric = "harmonics_collectives_all_gather_sent_bytes_total"

// sentBytes sums the bytes contributed to all-gathers by every group, as recorded in the registry.
func sentBytes(registry *prometheus.Registry) (float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return 0, errors.Wrap(err, "failed to gather metrics")
	}
	var total float64
	for _, family := range families {
		if family.GetName() != sentBytesMetric {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total, nil
}
