// Package jitter provides a small seedable PRNG used to stagger reconnect
// backoff across WebSocket shards, avoiding a synchronized reconnect storm
// when the upstream venue drops many connections at once.
package jitter

import (
	"sync"
	"time"
)

// RNG is a seedable pseudo-random number generator using PCG-XSH-RR.
// Safe for concurrent use.
type RNG struct {
	mu    sync.Mutex
	state uint64
	inc   uint64
}

// New creates a new PRNG with the given seed. If seed is 0, uses current time.
func New(seed int64) *RNG {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &RNG{}
	r.inc = uint64(seed)<<1 | 1
	r.state = 0
	r.step()
	r.state += uint64(seed)
	r.step()
	return r
}

func (r *RNG) step() {
	r.state = r.state*6364136223846793005 + r.inc
}

// Uint32 returns a uniformly distributed uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	old := r.state
	r.step()
	r.mu.Unlock()

	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Float64 returns a uniformly distributed float64 in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.Uint32()) / (1 << 32)
}

// Jitter returns base plus or minus up to spread, uniformly distributed.
// Used to stagger reconnect backoff across shards.
func (r *RNG) Jitter(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	offset := time.Duration((r.Float64()*2 - 1) * float64(spread))
	d := base + offset
	if d < 0 {
		return 0
	}
	return d
}
