// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements synchronization primitives used by the in-process collectives.
package xsync

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrBarrierBroken is returned by Barrier.Wait once the barrier was broken with Break.
var ErrBarrierBroken = errors.New("barrier broken")

// Barrier is a cyclic barrier for a fixed number of parties: each call to Wait blocks until all parties
// called Wait for the same generation, and then all are released and the barrier is reset for the next one.
//
// It uses sync.Cond to coordinate the parties.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
	broken     error
}

// NewBarrier creates a Barrier for the given number of parties. It panics if parties <= 0.
func NewBarrier(parties int) *Barrier {
	if parties <= 0 {
		exceptions.Panicf("xsync.NewBarrier(%d): number of parties must be > 0", parties)
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int { return b.parties }

// Wait blocks until all parties have called Wait for the current generation.
//
// The optional onRelease function is called exactly once per generation, by the last party to arrive,
// while holding the barrier's lock and before any party is released.
//
// It returns an error wrapping ErrBarrierBroken if the barrier was broken before or while waiting.
func (b *Barrier) Wait(onRelease func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken != nil {
		return b.broken
	}
	generation := b.generation
	b.arrived++
	if b.arrived == b.parties {
		if onRelease != nil {
			onRelease()
		}
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	// Loop is necessary because sync.Cond.Wait() can have spurious wakeups.
	for generation == b.generation && b.broken == nil {
		b.cond.Wait()
	}
	if generation == b.generation {
		return b.broken
	}
	return nil
}

// Break the barrier: all current and future waiters return an error wrapping ErrBarrierBroken and cause.
// Only the first cause is kept.
func (b *Barrier) Break(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken != nil {
		return
	}
	if cause == nil {
		b.broken = ErrBarrierBroken
	} else {
		b.broken = errors.Wrapf(ErrBarrierBroken, "%v", cause)
	}
	b.cond.Broadcast()
}
