// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBarrier(t *testing.T) {
	defer goleak.VerifyNone(t)
	const parties, rounds = 4, 10
	b := NewBarrier(parties)
	require.Equal(t, parties, b.Parties())

	var released atomic.Int32
	var counts [rounds]atomic.Int32
	var wg sync.WaitGroup
	for range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range rounds {
				counts[round].Add(1)
				err := b.Wait(func() { released.Add(1) })
				assert.NoError(t, err)
				// After the barrier every party must have arrived at this round.
				assert.Equal(t, int32(parties), counts[round].Load())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(rounds), released.Load())
}

func TestBarrierBreak(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := NewBarrier(3)
	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- b.Wait(nil) }()
	}
	b.Break(errors.New("rank 2 failed"))
	for range 2 {
		err := <-errs
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBarrierBroken))
		assert.Contains(t, err.Error(), "rank 2 failed")
	}
	// Future waits fail immediately.
	assert.True(t, errors.Is(b.Wait(nil), ErrBarrierBroken))
	require.PanicsWithError(t, "xsync.NewBarrier(0): number of parties must be > 0", func() { _ = NewBarrier(0) })
}
